package mockfeed

import (
	"context"
	"sync"
	"time"

	"github.com/amirasaad/chipload/pkg/provider/paymentfeed"
	"github.com/shopspring/decimal"
)

// Feed simulates a payment gateway for tests and local development.
//
// Payments are recorded per access token with Approve and returned by
// SearchApproved when they fall in the query window. FailNext makes the next
// search fail, to exercise transient feed errors.
type Feed struct {
	mu       sync.Mutex
	payments map[string][]paymentfeed.Payment
	failNext error
	calls    int
}

// New creates an empty Feed.
func New() *Feed {
	return &Feed{payments: make(map[string][]paymentfeed.Payment)}
}

// Approve records an approved payment received by the account behind token.
func (f *Feed) Approve(token, id string, amount decimal.Decimal, at time.Time) {
	f.add(token, paymentfeed.Payment{ID: id, Amount: amount, Status: paymentfeed.PaymentApproved, ApprovedAt: at})
}

// AddPayment records a payment with an arbitrary status.
func (f *Feed) AddPayment(token string, p paymentfeed.Payment) {
	f.add(token, p)
}

func (f *Feed) add(token string, p paymentfeed.Payment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[token] = append(f.payments[token], p)
}

// FailNext makes the next SearchApproved call return err.
func (f *Feed) FailNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = err
}

// Calls returns how many searches were served.
func (f *Feed) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// SearchApproved implements paymentfeed.Feed.
func (f *Feed) SearchApproved(ctx context.Context, q paymentfeed.Query) ([]paymentfeed.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.failNext; err != nil {
		f.failNext = nil
		return nil, err
	}
	var out []paymentfeed.Payment
	for _, p := range f.payments[q.AccessToken] {
		if p.Status != paymentfeed.PaymentApproved {
			continue
		}
		if p.ApprovedAt.Before(q.From) || p.ApprovedAt.After(q.To) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
