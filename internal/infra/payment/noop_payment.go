package payment

import (
	"context"
	"fmt"
	"sync"

	"xraymed-saas/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is a simple in-memory gateway for dev mode and tests.
// Every intent starts "created"; Cancel flips it to "cancelled".
type NoopPaymentGateway struct {
	mu      sync.Mutex
	seq     int64
	intents map[string]string // handle -> status
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		intents: make(map[string]string),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("noop-sub-%d", g.seq)
}

func (g *NoopPaymentGateway) CreateIntent(ctx context.Context, planRef string, amount int64, cadence string) (adapter.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	handle := g.next()
	g.intents[handle] = "created"
	return adapter.Intent{
		Handle:      handle,
		RedirectURL: "https://example.test/pay/" + handle,
	}, nil
}

func (g *NoopPaymentGateway) Fetch(ctx context.Context, handle string) (adapter.RemoteStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.intents[handle]
	if !ok {
		return adapter.RemoteStatus{}, fmt.Errorf("noop: handle not found")
	}
	return adapter.RemoteStatus{Handle: handle, Status: status}, nil
}

func (g *NoopPaymentGateway) Cancel(ctx context.Context, handle string) (adapter.RemoteStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.intents[handle]; !ok {
		return adapter.RemoteStatus{}, fmt.Errorf("noop: handle not found")
	}
	g.intents[handle] = "cancelled"
	return adapter.RemoteStatus{Handle: handle, Status: "cancelled"}, nil
}

var _ adapter.SignatureVerifier = (*AcceptAllVerifier)(nil)

// AcceptAllVerifier passes any non-empty signature. Dev mode only.
type AcceptAllVerifier struct{}

func (AcceptAllVerifier) Verify(paymentID, handle, signature string) bool {
	return paymentID != "" && handle != "" && signature != ""
}
