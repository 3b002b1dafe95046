package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/keshav-const/promptlens-sub000/internal/config"
	"github.com/keshav-const/promptlens-sub000/internal/observability/tracing"
)

var (
	ErrProviderUnavailable = errors.New("provider_unavailable")
	ErrNotFound            = errors.New("provider_resource_not_found")
)

// Order is the provider's order resource, created at checkout time.
type Order struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

// Payment is the provider's payment resource.
type Payment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Amount  int64  `json:"amount"`
}

// Captured reports whether the payment has actually been collected.
func (p *Payment) Captured() bool {
	return p != nil && strings.EqualFold(p.Status, "captured")
}

// Client is the outbound surface of the payment provider used by the
// synchronous verification path. It is injected so tests and the webhook
// flow can substitute it without process-wide state.
type Client interface {
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
}

// HTTPClient talks to the provider REST API with basic auth and a short
// timeout. No retries: a transient failure surfaces to the caller as a
// verification failure and the client retries the checkout confirmation.
type HTTPClient struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
	log       *zap.Logger
}

func NewHTTPClient(cfg config.Config, log *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:   strings.TrimRight(cfg.PaymentAPIBaseURL, "/"),
		keyID:     cfg.PaymentKeyID,
		keySecret: cfg.PaymentKeySecret,
		http:      tracing.WrapHTTPClient(&http.Client{Timeout: cfg.PaymentAPITimeout}),
		log:       log.Named("payment.provider"),
	}
}

func (c *HTTPClient) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.get(ctx, "/orders/"+url.PathEscape(orderID), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *HTTPClient) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	if err := c.get(ctx, "/payments/"+url.PathEscape(paymentID), &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("provider call failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		c.log.Warn("provider call rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return nil
}
