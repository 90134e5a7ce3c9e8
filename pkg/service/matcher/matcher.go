// Package matcher reconciles auto-verified deposits against the payments
// received on the agent's gateway account.
//
// A deposit routed to an agent with gateway verification gets an expected
// amount: the requested whole amount plus a random surcharge of 0.01 to 0.99.
// The player transfers exactly that value and the matcher later looks for an
// approved payment of the same amount. On a match the nominal amount is
// credited through the ledger, in the same unit as the status change.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/domain"
	"github.com/amirasaad/chipload/pkg/domain/events"
	"github.com/amirasaad/chipload/pkg/domain/transaction"
	"github.com/amirasaad/chipload/pkg/domain/user"
	"github.com/amirasaad/chipload/pkg/metrics"
	"github.com/amirasaad/chipload/pkg/provider/paymentfeed"
	"github.com/amirasaad/chipload/pkg/repository"
	"github.com/amirasaad/chipload/pkg/secret"
	"github.com/amirasaad/chipload/pkg/service/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Result is the outcome of one reconciliation attempt.
type Result struct {
	Status                     transaction.Status `json:"status"`
	ManualVerificationRequired bool               `json:"manual_verification_required"`
	PaymentID                  string             `json:"payment_id,omitempty"`
	// AlreadyProcessed is set when the transaction was settled before this
	// attempt. Such attempts also return domain.ErrAlreadyProcessed.
	AlreadyProcessed bool `json:"already_processed,omitempty"`
}

// Options tunes the feed query and the amount comparison.
type Options struct {
	LookbackSkew time.Duration
	Epsilon      decimal.Decimal
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// OptionsFromConfig reads the matcher section of the app config.
func OptionsFromConfig(cfg *config.Matcher) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{LookbackSkew: cfg.LookbackSkew, Epsilon: cfg.Epsilon}
}

// Service matches pending deposits against a payment feed.
type Service struct {
	uow     repository.UnitOfWork
	ledger  *ledger.Service
	feed    paymentfeed.Feed
	sealer  *secret.Sealer
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
	group   singleflight.Group
}

// NewService creates a matcher settling through l.
func NewService(deps config.Deps, l *ledger.Service, opts Options) *Service {
	if opts.LookbackSkew <= 0 {
		opts.LookbackSkew = 5 * time.Minute
	}
	if opts.Epsilon.IsZero() {
		opts.Epsilon = decimal.RequireFromString("0.001")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		uow:     deps.Uow,
		ledger:  l,
		feed:    deps.PaymentFeed,
		sealer:  deps.Sealer,
		opts:    opts,
		metrics: deps.Metrics,
		logger:  logger,
	}
}

// MatchAndSettle is the caller facing entry point. The owner, the assigned
// agent and admins may poll a transaction.
func (s *Service) MatchAndSettle(ctx context.Context, actor user.Actor, id uuid.UUID) (Result, error) {
	txn, err := s.uow.TransactionRepository().Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if !actor.CanView(txn.UserID, txn.AgentID) {
		return Result{}, domain.ErrForbidden
	}
	return s.Reconcile(ctx, id)
}

// Reconcile runs one match attempt. Concurrent attempts for the same id in
// this process share a single feed query.
//
// On a transaction that is no longer pending it writes nothing and returns
// domain.ErrAlreadyProcessed. For a COMPLETED transaction the Result still
// carries the status and payment id.
func (s *Service) Reconcile(ctx context.Context, id uuid.UUID) (Result, error) {
	v, err, _ := s.group.Do(id.String(), func() (any, error) {
		return s.reconcile(ctx, id)
	})
	res, _ := v.(Result)
	return res, err
}

func (s *Service) reconcile(ctx context.Context, id uuid.UUID) (Result, error) {
	logger := s.logger.With("handler", "Reconcile", "transaction_id", id)

	txn, err := s.uow.TransactionRepository().Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if txn.Status.IsFinal() {
		s.metrics.RecordMatch("already_" + strings.ToLower(string(txn.Status)))
		return settledResult(txn), domain.ErrAlreadyProcessed
	}

	expected := txn.ExpectedAmount()
	agent, err := s.agentOf(ctx, txn)
	if err != nil {
		return Result{}, err
	}
	if expected == nil || !agent.AutoVerification() {
		s.metrics.RecordMatch("manual")
		return Result{Status: txn.Status, ManualVerificationRequired: true}, nil
	}

	token, err := s.sealer.Open(agent.GatewayAccessToken)
	if err != nil {
		return Result{}, fmt.Errorf("open gateway token: %w", err)
	}
	now := s.opts.Now().UTC()
	started := time.Now()
	payments, err := s.feed.SearchApproved(ctx, paymentfeed.Query{
		AccessToken: token,
		From:        txn.CreatedAt.Add(-s.opts.LookbackSkew),
		To:          now,
	})
	s.metrics.ObserveFeed(time.Since(started), err)
	if err != nil {
		s.metrics.RecordMatch("feed_error")
		logger.Warn("payment feed query failed", "error", err)
		return Result{}, fmt.Errorf("%w: %w", domain.ErrExternalFeed, err)
	}

	payment, err := s.pick(ctx, txn.ID, expected.Decimal(), payments)
	if err != nil {
		return Result{}, err
	}
	if payment == nil {
		s.metrics.RecordMatch("no_match")
		logger.Debug("no matching payment yet", "expected", expected.String(), "candidates", len(payments))
		return Result{Status: transaction.StatusPending}, nil
	}

	settled, err := s.ledger.Finalize(ctx, txn.ID, transaction.StatusCompleted, ledger.FinalizeOptions{
		PaymentID: payment.ID,
		Source:    events.SourceMatcher,
	})
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		// The payment was bound to another transaction between pick and settle.
		s.metrics.RecordMatch("no_match")
		return Result{Status: transaction.StatusPending}, nil
	case errors.Is(err, domain.ErrAlreadyProcessed):
		s.metrics.RecordMatch("lost_race")
		logger.Info("transaction settled by another caller", "payment_id", payment.ID)
		if current, getErr := s.uow.TransactionRepository().Get(ctx, txn.ID); getErr == nil {
			return settledResult(current), err
		}
		return Result{AlreadyProcessed: true}, err
	case err != nil:
		return Result{}, err
	}
	s.metrics.RecordMatch("matched")
	logger.Info("payment matched", "payment_id", payment.ID, "expected", expected.String())
	return Result{Status: settled.Status, PaymentID: payment.ID}, nil
}

// settledResult describes a transaction some earlier call already settled.
func settledResult(txn *transaction.Transaction) Result {
	res := Result{Status: txn.Status, AlreadyProcessed: true}
	if txn.Status == transaction.StatusCompleted {
		res.PaymentID = deref(txn.GatewayPaymentID)
	}
	return res
}

func (s *Service) agentOf(ctx context.Context, txn *transaction.Transaction) (*user.User, error) {
	if txn.AgentID == nil {
		return nil, nil
	}
	agent, err := s.uow.UserRepository().Get(ctx, *txn.AgentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return agent, err
}

// pick returns the first approved payment within epsilon of expected that is
// not already bound to a different transaction.
func (s *Service) pick(
	ctx context.Context,
	txnID uuid.UUID,
	expected decimal.Decimal,
	payments []paymentfeed.Payment,
) (*paymentfeed.Payment, error) {
	txns := s.uow.TransactionRepository()
	for i := range payments {
		p := &payments[i]
		if p.Status != paymentfeed.PaymentApproved {
			continue
		}
		if p.Amount.Sub(expected).Abs().GreaterThan(s.opts.Epsilon) {
			continue
		}
		bound, err := txns.GetByPaymentID(ctx, p.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return p, nil
		case err != nil:
			return nil, err
		case bound.ID == txnID:
			return p, nil
		}
	}
	return nil, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
