package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrUnsupported     = errors.New("operation not supported")

	// Billing flow errors
	ErrPlanNotFound       = errors.New("plan not found")
	ErrAlreadyAtMaxTier   = errors.New("account already on the highest tier")
	ErrInvalidUpgradePath = errors.New("requested plan is not a valid upgrade")
	ErrAlreadyProcessed   = errors.New("order already processed")
	ErrInvalidSignature   = errors.New("payment signature mismatch")
	ErrGatewayFailure     = errors.New("payment gateway failure")
	ErrNotActive          = errors.New("subscription is not active")

	// Coupon errors
	ErrCouponNotFound  = errors.New("coupon not found")
	ErrCouponInactive  = errors.New("coupon is not active")
	ErrCouponExpired   = errors.New("coupon is outside its validity window")
	ErrCouponExhausted = errors.New("coupon redemption cap reached")
	ErrAlreadyRedeemed = errors.New("coupon already redeemed by this account")

	// Entitlement errors
	ErrInsufficientCredits = errors.New("insufficient credits")

	// Infrastructure-facing errors surfaced through repositories
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid transaction executor")
)
