package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"xraymed-saas/internal/domain"
	"xraymed-saas/internal/domain/model"
	"xraymed-saas/internal/infra/metrics"
	"xraymed-saas/internal/usecase"
)

// ===== response shapes =====

type orderResponse struct {
	ID             string  `json:"id"`
	PlanID         string  `json:"plan"`
	Cadence        string  `json:"cadence"`
	CouponID       *string `json:"coupon_id,omitempty"`
	BaseAmount     int64   `json:"base_amount"`
	DiscountAmount int64   `json:"discount_amount"`
	FinalAmount    int64   `json:"final_amount"`
	GatewayHandle  string  `json:"gateway_handle"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"created_at"`
}

func toOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		ID:             o.ID,
		PlanID:         o.PlanID,
		Cadence:        string(o.Cadence),
		CouponID:       o.CouponID,
		BaseAmount:     o.BaseAmount,
		DiscountAmount: o.DiscountAmount,
		FinalAmount:    o.FinalAmount,
		GatewayHandle:  o.GatewayHandle,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type subscriptionResponse struct {
	ID        string `json:"id"`
	PlanID    string `json:"plan"`
	Status    string `json:"status"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func toSubscriptionResponse(s *model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:        s.ID,
		PlanID:    s.PlanID,
		Status:    string(s.Status),
		StartDate: s.StartDate.UTC().Format(time.RFC3339),
		EndDate:   s.EndDate.UTC().Format(time.RFC3339),
	}
}

type couponResponse struct {
	ID         string  `json:"id"`
	Code       string  `json:"code"`
	Kind       string  `json:"kind"`
	Value      int64   `json:"value"`
	MaxUses    *int64  `json:"max_uses,omitempty"`
	UsedCount  int64   `json:"used_count"`
	ValidFrom  string  `json:"valid_from"`
	ValidUntil *string `json:"valid_until,omitempty"`
	IsActive   bool    `json:"is_active"`
}

func toCouponResponse(c *model.Coupon) couponResponse {
	out := couponResponse{
		ID:        c.ID,
		Code:      c.Code,
		Kind:      string(c.Kind),
		Value:     c.Value,
		MaxUses:   c.MaxUses,
		UsedCount: c.UsedCount,
		ValidFrom: c.ValidFrom.UTC().Format(time.RFC3339),
		IsActive:  c.IsActive,
	}
	if c.ValidUntil != nil {
		s := c.ValidUntil.UTC().Format(time.RFC3339)
		out.ValidUntil = &s
	}
	return out
}

// ===== billing =====

type purchaseRequest struct {
	Plan    string `json:"plan"`
	Cadence string `json:"cadence"`
	Coupon  string `json:"coupon"`
}

func purchaseHandler(billingUC usecase.BillingUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			writeError(w, domain.ErrUnauthenticated)
			return
		}

		var req purchaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}

		res, err := billingUC.CreateOrder(r.Context(), p.AccountID, req.Plan, model.BillingCadence(req.Cadence), req.Coupon)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			OrderID       string `json:"order_id"`
			GatewayHandle string `json:"gateway_handle"`
			RedirectURL   string `json:"redirect_url,omitempty"`
			AmountDue     int64  `json:"amount_due"`
			BaseAmount    int64  `json:"base_amount"`
			Discount      int64  `json:"discount_amount"`
		}{
			OrderID:       res.Order.ID,
			GatewayHandle: res.Handle,
			RedirectURL:   res.RedirectURL,
			AmountDue:     res.AmountDue,
			BaseAmount:    res.Order.BaseAmount,
			Discount:      res.Order.DiscountAmount,
		})
	}
}

type verifyRequest struct {
	GatewayPaymentID string `json:"gateway_payment_id"`
	GatewayHandle    string `json:"gateway_handle"`
	Signature        string `json:"signature"`
}

func verifyHandler(billingUC usecase.BillingUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			metrics.PaymentVerifyRequests.WithLabelValues("fail", "bad_json").Inc()
			writeError(w, domain.ErrInvalidArgument)
			return
		}

		sub, err := billingUC.VerifyPayment(r.Context(), req.GatewayPaymentID, req.GatewayHandle, req.Signature)
		if err != nil {
			metrics.PaymentVerifyRequests.WithLabelValues("fail", verifyFailReason(err)).Inc()
			metrics.PaymentVerifyDuration.WithLabelValues("fail").Observe(time.Since(start).Seconds())
			writeError(w, err)
			return
		}

		metrics.PaymentVerifyRequests.WithLabelValues("ok", "").Inc()
		metrics.PaymentVerifyDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
		writeJSON(w, http.StatusOK, struct {
			SubscriptionID string `json:"subscription_id"`
			Plan           string `json:"plan"`
			Status         string `json:"status"`
			EndDate        string `json:"end_date"`
		}{
			SubscriptionID: sub.ID,
			Plan:           sub.PlanID,
			Status:         string(sub.Status),
			EndDate:        sub.EndDate.UTC().Format(time.RFC3339),
		})
	}
}

func verifyFailReason(err error) string {
	switch _, kind := statusAndKind(err); kind {
	case "not_found":
		return "order_not_found"
	case "already_processed":
		return "already_processed"
	case "invalid_signature":
		return "bad_signature"
	case "internal":
		return "internal"
	default:
		return "unknown"
	}
}

type cancelRequest struct {
	GatewayHandle string `json:"gateway_handle"`
}

func cancelHandler(billingUC usecase.BillingUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			writeError(w, domain.ErrUnauthenticated)
			return
		}

		var req cancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GatewayHandle == "" {
			writeError(w, domain.ErrInvalidArgument)
			return
		}

		if err := billingUC.CancelSubscription(r.Context(), p.AccountID, p.Admin, req.GatewayHandle); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Status string `json:"status"`
		}{Status: "cancelled"})
	}
}

func previewCouponHandler(couponUC usecase.CouponUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		preview, err := couponUC.Preview(r.Context(), q.Get("plan"), model.BillingCadence(q.Get("cadence")), q.Get("code"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			CouponCode     string `json:"coupon_code"`
			OriginalAmount int64  `json:"original_amount"`
			DiscountAmount int64  `json:"discount_amount"`
			FinalAmount    int64  `json:"final_amount"`
		}{
			CouponCode:     preview.CouponCode,
			OriginalAmount: preview.OriginalAmount,
			DiscountAmount: preview.DiscountAmount,
			FinalAmount:    preview.FinalAmount,
		})
	}
}

func subscriptionHandler(billingUC usecase.BillingUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			writeError(w, domain.ErrUnauthenticated)
			return
		}
		sub, err := billingUC.ActiveSubscription(r.Context(), p.AccountID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSubscriptionResponse(sub))
	}
}

func ordersHandler(billingUC usecase.BillingUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			writeError(w, domain.ErrUnauthenticated)
			return
		}
		orders, err := billingUC.ListOrders(r.Context(), p.AccountID)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]orderResponse, 0, len(orders))
		for _, o := range orders {
			out = append(out, toOrderResponse(o))
		}
		writeJSON(w, http.StatusOK, struct {
			Data []orderResponse `json:"data"`
		}{Data: out})
	}
}

// ===== credits =====

type debitRequest struct {
	Amount int64 `json:"amount"`
}

func creditDebitHandler(creditUC usecase.CreditUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			writeError(w, domain.ErrUnauthenticated)
			return
		}

		req := debitRequest{Amount: 1}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, domain.ErrInvalidArgument)
				return
			}
		}

		if err := creditUC.Debit(r.Context(), p.AccountID, req.Amount); err != nil {
			writeError(w, err)
			return
		}

		balance, err := creditUC.Balance(r.Context(), p.AccountID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Debited int64 `json:"debited"`
			Balance int64 `json:"balance"`
		}{Debited: req.Amount, Balance: balance})
	}
}

func creditBalanceHandler(creditUC usecase.CreditUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			writeError(w, domain.ErrUnauthenticated)
			return
		}
		balance, err := creditUC.Balance(r.Context(), p.AccountID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Balance int64 `json:"balance"`
		}{Balance: balance})
	}
}

// ===== coupon admin CRUD =====

type couponCreateRequest struct {
	Code       string     `json:"code"`
	Kind       string     `json:"kind"`
	Value      int64      `json:"value"`
	MaxUses    *int64     `json:"max_uses"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
}

func couponCreateHandler(couponUC usecase.CouponUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req couponCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		validFrom := time.Now()
		if req.ValidFrom != nil {
			validFrom = *req.ValidFrom
		}
		c, err := couponUC.Create(r.Context(), req.Code, model.CouponKind(req.Kind), req.Value, req.MaxUses, validFrom, req.ValidUntil)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toCouponResponse(c))
	}
}

func couponListHandler(couponUC usecase.CouponUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coupons, err := couponUC.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]couponResponse, 0, len(coupons))
		for _, c := range coupons {
			out = append(out, toCouponResponse(c))
		}
		writeJSON(w, http.StatusOK, struct {
			Data []couponResponse `json:"data"`
		}{Data: out})
	}
}

func couponGetHandler(couponUC usecase.CouponUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := couponUC.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCouponResponse(c))
	}
}

type couponUpdateRequest struct {
	Value      *int64     `json:"value"`
	MaxUses    *int64     `json:"max_uses"`
	ValidUntil *time.Time `json:"valid_until"`
	IsActive   *bool      `json:"is_active"`
}

func couponUpdateHandler(couponUC usecase.CouponUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req couponUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		c, err := couponUC.Update(r.Context(), chi.URLParam(r, "id"), req.Value, req.MaxUses, req.ValidUntil, req.IsActive)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCouponResponse(c))
	}
}

func couponDeleteHandler(couponUC usecase.CouponUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := couponUC.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ===== admin stats =====

func statsHandler(statsUC usecase.StatsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activeByPlan, err := statsUC.ActiveByPlan(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		week, month, year, err := statsUC.Revenue(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			ActiveSubsByPlan map[string]int `json:"active_subs_by_plan"`
			Revenue          struct {
				Week  int64 `json:"week"`
				Month int64 `json:"month"`
				Year  int64 `json:"year"`
			} `json:"revenue"`
		}{
			ActiveSubsByPlan: activeByPlan,
			Revenue: struct {
				Week  int64 `json:"week"`
				Month int64 `json:"month"`
				Year  int64 `json:"year"`
			}{Week: week, Month: month, Year: year},
		})
	}
}
