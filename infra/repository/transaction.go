package repository

import (
	"context"
	"time"

	"github.com/amirasaad/chipload/pkg/domain/transaction"
	"github.com/amirasaad/chipload/pkg/money"
	repo "github.com/amirasaad/chipload/pkg/repository/transaction"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository using the provided *gorm.DB.
func NewTransactionRepository(db *gorm.DB) repo.Repository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, txn *transaction.Transaction) error {
	m := mapTransactionToModel(txn)
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

func (r *transactionRepository) Get(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	var m Transaction
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFoundAs(err, transaction.ErrTransactionNotFound)
	}
	return mapTransactionToDomain(&m), nil
}

func (r *transactionRepository) GetByPaymentID(
	ctx context.Context,
	paymentID string,
) (*transaction.Transaction, error) {
	var m Transaction
	if err := r.db.WithContext(ctx).
		Where("gateway_payment_id = ?", paymentID).
		First(&m).Error; err != nil {
		return nil, notFoundAs(err, transaction.ErrTransactionNotFound)
	}
	return mapTransactionToDomain(&m), nil
}

func (r *transactionRepository) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
) ([]*transaction.Transaction, error) {
	return r.find(r.db.WithContext(ctx).Where("user_id = ?", userID))
}

func (r *transactionRepository) ListByAgent(
	ctx context.Context,
	agentID uuid.UUID,
) ([]*transaction.Transaction, error) {
	return r.find(r.db.WithContext(ctx).Where("agent_id = ?", agentID))
}

func (r *transactionRepository) ListAll(
	ctx context.Context,
	page, pageSize int,
) ([]*transaction.Transaction, error) {
	if page < 1 {
		page = 1
	}
	return r.find(r.db.WithContext(ctx).Offset((page - 1) * pageSize).Limit(pageSize))
}

func (r *transactionRepository) ListPendingAutoVerified(
	ctx context.Context,
	since time.Time,
) ([]*transaction.Transaction, error) {
	var txs []Transaction
	if err := r.db.WithContext(ctx).
		Where("status = ? AND type = ?", string(transaction.StatusPending), string(transaction.TypeDeposit)).
		Where("expected_amount IS NOT NULL AND created_at >= ?", since.UTC()).
		Order("created_at").
		Find(&txs).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return mapTransactionsToDomain(txs), nil
}

func (r *transactionRepository) ExistsPendingExpected(
	ctx context.Context,
	agentID uuid.UUID,
	expected money.Amount,
) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Transaction{}).
		Where("agent_id = ? AND status = ? AND expected_amount = ?",
			agentID, string(transaction.StatusPending), int64(expected)).
		Count(&count).Error; err != nil {
		return false, MapGormErrorToDomain(err)
	}
	return count > 0, nil
}

// CompareAndSetStatus is a single conditional UPDATE. Exactly one of any
// number of concurrent callers observes true for a given row.
func (r *transactionRepository) CompareAndSetStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to transaction.Status,
	paymentID *string,
) (bool, error) {
	updates := map[string]any{
		"status":     string(to),
		"updated_at": time.Now().UTC(),
	}
	if paymentID != nil {
		updates["gateway_payment_id"] = *paymentID
	}
	res := r.db.WithContext(ctx).Model(&Transaction{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return false, MapGormErrorToDomain(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// DeleteByUser removes the transactions a user owns and unassigns the ones
// routed to them as agent.
func (r *transactionRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	return WrapError(func() error {
		db := r.db.WithContext(ctx)
		if err := db.Where("user_id = ?", userID).Delete(&Transaction{}).Error; err != nil {
			return err
		}
		return db.Model(&Transaction{}).
			Where("agent_id = ?", userID).
			Update("agent_id", nil).Error
	})
}

func (r *transactionRepository) find(q *gorm.DB) ([]*transaction.Transaction, error) {
	var txs []Transaction
	if err := q.Order("created_at DESC").Find(&txs).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return mapTransactionsToDomain(txs), nil
}

// --- Mappers ---

func mapTransactionToModel(txn *transaction.Transaction) Transaction {
	m := Transaction{
		ID:               txn.ID,
		UserID:           txn.UserID,
		AgentID:          txn.AgentID,
		Type:             string(txn.Type()),
		Amount:           int64(txn.Amount),
		Status:           string(txn.Status),
		OperationCode:    txn.OperationCode,
		GatewayPaymentID: txn.GatewayPaymentID,
		CreatedAt:        txn.CreatedAt,
		UpdatedAt:        txn.UpdatedAt,
	}
	switch d := txn.Details.(type) {
	case transaction.DepositDetails:
		if d.ExpectedAmount != nil {
			v := int64(*d.ExpectedAmount)
			m.ExpectedAmount = &v
		}
	case transaction.WithdrawDetails:
		m.DestinationCVU = d.Destination.CVU
		m.DestinationAlias = d.Destination.Alias
		m.DestinationBank = d.Destination.Bank
	}
	return m
}

func mapTransactionToDomain(m *Transaction) *transaction.Transaction {
	txn := &transaction.Transaction{
		ID:               m.ID,
		UserID:           m.UserID,
		AgentID:          m.AgentID,
		Amount:           money.Amount(m.Amount),
		Status:           transaction.Status(m.Status),
		OperationCode:    m.OperationCode,
		GatewayPaymentID: m.GatewayPaymentID,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if transaction.Type(m.Type) == transaction.TypeWithdraw {
		txn.Details = transaction.WithdrawDetails{Destination: transaction.WithdrawalDestination{
			CVU:   m.DestinationCVU,
			Alias: m.DestinationAlias,
			Bank:  m.DestinationBank,
		}}
		return txn
	}
	d := transaction.DepositDetails{}
	if m.ExpectedAmount != nil {
		v := money.Amount(*m.ExpectedAmount)
		d.ExpectedAmount = &v
	}
	txn.Details = d
	return txn
}

func mapTransactionsToDomain(txs []Transaction) []*transaction.Transaction {
	result := make([]*transaction.Transaction, 0, len(txs))
	for i := range txs {
		result = append(result, mapTransactionToDomain(&txs[i]))
	}
	return result
}
