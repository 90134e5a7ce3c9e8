// Package stripefeed implements paymentfeed.Feed over Stripe PaymentIntents.
// The agent's gateway access token is used as a restricted API key.
package stripefeed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/provider/paymentfeed"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

// Feed lists succeeded PaymentIntents created inside the query window.
type Feed struct {
	backends *stripe.Backends
	logger   *slog.Logger
}

// New creates a Feed. A non-empty BaseURL overrides the Stripe API host.
func New(cfg *config.PaymentFeed, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(1),
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(cfg.BaseURL)
	}
	return &Feed{
		backends: stripe.NewBackendsWithConfig(backendCfg),
		logger:   logger.With("provider", "stripe"),
	}
}

// SearchApproved implements paymentfeed.Feed.
func (f *Feed) SearchApproved(ctx context.Context, q paymentfeed.Query) ([]paymentfeed.Payment, error) {
	if q.AccessToken == "" {
		return nil, fmt.Errorf("stripe: missing access token")
	}
	client := stripe.NewClient(q.AccessToken, stripe.WithBackends(f.backends))
	params := &stripe.PaymentIntentListParams{
		CreatedRange: &stripe.RangeQueryParams{
			GreaterThanOrEqual: q.From.Unix(),
			LesserThanOrEqual:  q.To.Unix(),
		},
	}
	params.Limit = stripe.Int64(100)

	var out []paymentfeed.Payment
	for pi, err := range client.V1PaymentIntents.List(ctx, params) {
		if err != nil {
			return nil, fmt.Errorf("stripe: list payment intents: %w", err)
		}
		if pi.Status != stripe.PaymentIntentStatusSucceeded {
			continue
		}
		out = append(out, toPayment(pi))
	}
	f.logger.Debug("payment intents listed", "from", q.From, "to", q.To, "succeeded", len(out))
	return out, nil
}

func toPayment(pi *stripe.PaymentIntent) paymentfeed.Payment {
	received := pi.AmountReceived
	if received == 0 {
		received = pi.Amount
	}
	return paymentfeed.Payment{
		ID:         pi.ID,
		Amount:     decimal.New(received, -2),
		Status:     paymentfeed.PaymentApproved,
		ApprovedAt: time.Unix(pi.Created, 0).UTC(),
	}
}
