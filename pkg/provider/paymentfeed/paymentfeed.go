// Package paymentfeed defines the contract for querying the incoming payments
// received on an agent's payment gateway account.
package paymentfeed

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the status of an incoming payment.
type PaymentStatus string

const (
	// PaymentApproved indicates the funds were received.
	PaymentApproved PaymentStatus = "approved"
	// PaymentPending indicates the payment has not cleared yet.
	PaymentPending PaymentStatus = "pending"
	// PaymentRejected indicates the payment failed or was refunded.
	PaymentRejected PaymentStatus = "rejected"
)

// Payment is one incoming payment reported by a feed.
type Payment struct {
	ID         string
	Amount     decimal.Decimal
	Status     PaymentStatus
	ApprovedAt time.Time
}

// Query selects approved payments credited to the account behind AccessToken
// between From and To.
type Query struct {
	AccessToken string
	From        time.Time
	To          time.Time
}

// Feed is implemented by every payment gateway integration.
type Feed interface {
	// SearchApproved returns approved payments in the query window. Transport
	// and gateway failures are returned as errors and are retryable.
	SearchApproved(ctx context.Context, q Query) ([]Payment, error)
}

// FeedFunc adapts a function to Feed.
type FeedFunc func(ctx context.Context, q Query) ([]Payment, error)

func (f FeedFunc) SearchApproved(ctx context.Context, q Query) ([]Payment, error) {
	return f(ctx, q)
}
