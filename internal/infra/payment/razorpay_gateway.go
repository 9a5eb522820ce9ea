package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"xraymed-saas/internal/config"
	"xraymed-saas/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

// RazorpayGateway implements adapter.PaymentGateway using direct HTTP calls
// against the subscriptions API. Credentials go over HTTP basic auth.
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

func NewRazorpayGateway(cfg *config.GatewayConfig) *RazorpayGateway {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.razorpay.com/v1"
	}
	return &RazorpayGateway{
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

// subscriptionResponse represents the subscription object returned by the API.
type subscriptionResponse struct {
	ID       string `json:"id"`
	PlanID   string `json:"plan_id"`
	Status   string `json:"status"`
	ShortURL string `json:"short_url"`
	Error    *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (g *RazorpayGateway) CreateIntent(ctx context.Context, planRef string, amount int64, cadence string) (adapter.Intent, error) {
	requestData := map[string]interface{}{
		"plan_id":         planRef,
		"total_count":     1,
		"customer_notify": 1,
		"notes": map[string]interface{}{
			"cadence": cadence,
			"amount":  amount,
		},
	}

	var resp subscriptionResponse
	if err := g.do(ctx, http.MethodPost, "/subscriptions", requestData, &resp); err != nil {
		return adapter.Intent{}, err
	}
	if resp.ID == "" {
		return adapter.Intent{}, fmt.Errorf("razorpay: subscription id missing in response")
	}
	return adapter.Intent{Handle: resp.ID, RedirectURL: resp.ShortURL}, nil
}

func (g *RazorpayGateway) Fetch(ctx context.Context, handle string) (adapter.RemoteStatus, error) {
	var resp subscriptionResponse
	if err := g.do(ctx, http.MethodGet, "/subscriptions/"+handle, nil, &resp); err != nil {
		return adapter.RemoteStatus{}, err
	}
	return adapter.RemoteStatus{Handle: resp.ID, Status: resp.Status}, nil
}

func (g *RazorpayGateway) Cancel(ctx context.Context, handle string) (adapter.RemoteStatus, error) {
	requestData := map[string]interface{}{
		"cancel_at_cycle_end": 0,
	}
	var resp subscriptionResponse
	if err := g.do(ctx, http.MethodPost, "/subscriptions/"+handle+"/cancel", requestData, &resp); err != nil {
		return adapter.RemoteStatus{}, err
	}
	return adapter.RemoteStatus{Handle: resp.ID, Status: resp.Status}, nil
}

func (g *RazorpayGateway) do(ctx context.Context, method, path string, payload interface{}, out *subscriptionResponse) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request data: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(raw))
	}
	if out.Error != nil {
		return fmt.Errorf("razorpay error: code %s, description: %s", out.Error.Code, out.Error.Description)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("razorpay error: http %d, body: %s", resp.StatusCode, string(raw))
	}
	return nil
}
