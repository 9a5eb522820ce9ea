package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"xraymed-saas/internal/domain"
)

type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// statusAndKind maps domain sentinels to HTTP status codes and stable kind
// strings clients can branch on.
func statusAndKind(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrPlanNotFound):
		return http.StatusNotFound, "plan_not_found"
	case errors.Is(err, domain.ErrCouponNotFound):
		return http.StatusNotFound, "coupon_not_found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, domain.ErrAlreadyAtMaxTier):
		return http.StatusConflict, "already_at_max_tier"
	case errors.Is(err, domain.ErrInvalidUpgradePath):
		return http.StatusConflict, "invalid_upgrade_path"
	case errors.Is(err, domain.ErrAlreadyProcessed):
		return http.StatusConflict, "already_processed"
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid_signature"
	case errors.Is(err, domain.ErrCouponInactive):
		return http.StatusConflict, "coupon_inactive"
	case errors.Is(err, domain.ErrCouponExpired):
		return http.StatusConflict, "coupon_expired"
	case errors.Is(err, domain.ErrCouponExhausted):
		return http.StatusConflict, "coupon_exhausted"
	case errors.Is(err, domain.ErrAlreadyRedeemed):
		return http.StatusConflict, "already_redeemed"
	case errors.Is(err, domain.ErrNotActive):
		return http.StatusConflict, "not_active"
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, "insufficient_credits"
	case errors.Is(err, domain.ErrUnsupported):
		return http.StatusBadRequest, "unsupported"
	case errors.Is(err, domain.ErrGatewayFailure):
		return http.StatusBadGateway, "gateway_failure"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := statusAndKind(err)
	var body errorBody
	body.Error.Kind = kind
	body.Error.Message = err.Error()
	if status == http.StatusInternalServerError {
		body.Error.Message = "internal error"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
