package adapter

import "context"

// Intent is the remote payment/subscription intent created at the gateway.
// Handle is the opaque identifier the caller completes payment against.
type Intent struct {
	Handle      string
	RedirectURL string
}

// RemoteStatus is the gateway's view of an intent.
type RemoteStatus struct {
	Handle string
	Status string // gateway vocabulary, e.g. "created" / "active" / "cancelled"
}

// PaymentGateway is the hex port for the external payment processor.
// The engine performs a single gateway call per state transition and treats
// every failure as opaque (wrapped as a gateway failure upstream).
type PaymentGateway interface {
	Name() string

	// CreateIntent registers a payment/subscription intent for the given plan
	// reference and final amount in minor units.
	CreateIntent(ctx context.Context, planRef string, amount int64, cadence string) (Intent, error)

	// Fetch returns the remote status for an intent handle.
	Fetch(ctx context.Context, handle string) (RemoteStatus, error)

	// Cancel cancels the remote intent/subscription.
	Cancel(ctx context.Context, handle string) (RemoteStatus, error)
}

// SignatureVerifier checks gateway payment confirmations. The canonical
// message is "{paymentID}|{handle}" signed with a shared secret.
type SignatureVerifier interface {
	Verify(paymentID, handle, signature string) bool
}
