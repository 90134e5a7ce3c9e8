package repository_test

import (
	"context"
	"testing"
	"time"

	infrarepo "github.com/amirasaad/chipload/infra/repository"
	"github.com/amirasaad/chipload/internal/database"
	"github.com/amirasaad/chipload/pkg/domain"
	"github.com/amirasaad/chipload/pkg/domain/destination"
	"github.com/amirasaad/chipload/pkg/domain/transaction"
	"github.com/amirasaad/chipload/pkg/domain/user"
	"github.com/amirasaad/chipload/pkg/money"
	"github.com/amirasaad/chipload/pkg/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type RepositorySuite struct {
	suite.Suite
	ctx    context.Context
	uow    *infrarepo.UoW
	agent  *user.User
	player *user.User
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.uow = infrarepo.NewUoW(database.MustOpen(s.T()))

	var err error
	s.agent, err = user.New("agent-1", user.RoleAgent, nil)
	s.Require().NoError(err)
	s.player, err = user.New("player-1", user.RolePlayer, &s.agent.ID)
	s.Require().NoError(err)

	users := s.uow.UserRepository()
	s.Require().NoError(users.Create(s.ctx, s.agent))
	s.Require().NoError(users.Create(s.ctx, s.player))
}

func (s *RepositorySuite) newDeposit(expected *money.Amount) *transaction.Transaction {
	txn, err := transaction.New(s.player.ID, &s.agent.ID, money.New(5000, 0),
		transaction.DepositDetails{ExpectedAmount: expected})
	s.Require().NoError(err)
	s.Require().NoError(s.uow.TransactionRepository().Create(s.ctx, txn))
	return txn
}

func (s *RepositorySuite) TestUser_GetAndDuplicate() {
	users := s.uow.UserRepository()

	got, err := users.Get(s.ctx, s.player.ID)
	s.Require().NoError(err)
	s.Equal("player-1", got.Username)
	s.Require().NotNil(got.ManagerID)
	s.Equal(s.agent.ID, *got.ManagerID)

	dup, _ := user.New("player-1", user.RolePlayer, nil)
	s.ErrorIs(users.Create(s.ctx, dup), domain.ErrAlreadyExists)

	_, err = users.Get(s.ctx, uuid.New())
	s.ErrorIs(err, user.ErrUserNotFound)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *RepositorySuite) TestUser_Balance() {
	users := s.uow.UserRepository()

	s.Require().NoError(users.AddBalance(s.ctx, s.player.ID, money.New(100, 0)))

	ok, err := users.SubtractBalanceIfSufficient(s.ctx, s.player.ID, money.New(150, 0))
	s.Require().NoError(err)
	s.False(ok)

	ok, err = users.SubtractBalanceIfSufficient(s.ctx, s.player.ID, money.New(60, 50))
	s.Require().NoError(err)
	s.True(ok)

	got, err := users.Get(s.ctx, s.player.ID)
	s.Require().NoError(err)
	s.Equal(money.New(39, 50), got.Balance)

	_, err = users.SubtractBalanceIfSufficient(s.ctx, uuid.New(), 1)
	s.ErrorIs(err, user.ErrUserNotFound)
	s.ErrorIs(users.AddBalance(s.ctx, uuid.New(), 1), user.ErrUserNotFound)
}

func (s *RepositorySuite) TestUser_ManagersAndGateway() {
	users := s.uow.UserRepository()

	managed, err := users.ListManaged(s.ctx, s.agent.ID)
	s.Require().NoError(err)
	s.Len(managed, 1)

	s.Require().NoError(users.UpdateGateway(s.ctx, s.agent.ID, "sealed", true))
	agent, err := users.Get(s.ctx, s.agent.ID)
	s.Require().NoError(err)
	s.True(agent.AutoVerification())

	s.Require().NoError(users.DetachManaged(s.ctx, s.agent.ID))
	player, err := users.Get(s.ctx, s.player.ID)
	s.Require().NoError(err)
	s.Nil(player.ManagerID)

	s.Require().NoError(users.UpdateManager(s.ctx, s.player.ID, &s.agent.ID))
	list, err := users.List(s.ctx, 1, 10)
	s.Require().NoError(err)
	s.Len(list, 2)
}

func (s *RepositorySuite) TestTransaction_RoundTripDetails() {
	expected := money.New(5000, 37)
	dep := s.newDeposit(&expected)

	wd, err := transaction.New(s.player.ID, &s.agent.ID, money.New(10, 0), transaction.WithdrawDetails{
		Destination: transaction.WithdrawalDestination{Alias: "player.mp", Bank: "Mercado Pago"},
	})
	s.Require().NoError(err)
	s.Require().NoError(s.uow.TransactionRepository().Create(s.ctx, wd))

	got, err := s.uow.TransactionRepository().Get(s.ctx, dep.ID)
	s.Require().NoError(err)
	s.Equal(transaction.TypeDeposit, got.Type())
	s.Require().NotNil(got.ExpectedAmount())
	s.Equal(expected, *got.ExpectedAmount())
	s.Equal(dep.OperationCode, got.OperationCode)

	got, err = s.uow.TransactionRepository().Get(s.ctx, wd.ID)
	s.Require().NoError(err)
	w, ok := got.Withdraw()
	s.Require().True(ok)
	s.Equal("player.mp", w.Destination.Alias)

	byUser, err := s.uow.TransactionRepository().ListByUser(s.ctx, s.player.ID)
	s.Require().NoError(err)
	s.Len(byUser, 2)

	byAgent, err := s.uow.TransactionRepository().ListByAgent(s.ctx, s.agent.ID)
	s.Require().NoError(err)
	s.Len(byAgent, 2)

	_, err = s.uow.TransactionRepository().Get(s.ctx, uuid.New())
	s.ErrorIs(err, transaction.ErrTransactionNotFound)
}

func (s *RepositorySuite) TestTransaction_CompareAndSetStatus() {
	txn := s.newDeposit(nil)
	txns := s.uow.TransactionRepository()
	paymentID := "mp-123"

	ok, err := txns.CompareAndSetStatus(s.ctx, txn.ID,
		transaction.StatusPending, transaction.StatusCompleted, &paymentID)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = txns.CompareAndSetStatus(s.ctx, txn.ID,
		transaction.StatusPending, transaction.StatusRejected, nil)
	s.Require().NoError(err)
	s.False(ok)

	got, err := txns.GetByPaymentID(s.ctx, paymentID)
	s.Require().NoError(err)
	s.Equal(txn.ID, got.ID)
	s.Equal(transaction.StatusCompleted, got.Status)

	other := s.newDeposit(nil)
	_, err = txns.CompareAndSetStatus(s.ctx, other.ID,
		transaction.StatusPending, transaction.StatusCompleted, &paymentID)
	s.ErrorIs(err, domain.ErrAlreadyExists)
}

func (s *RepositorySuite) TestTransaction_PendingExpectedQueries() {
	expected := money.New(5000, 42)
	txn := s.newDeposit(&expected)
	s.newDeposit(nil)
	txns := s.uow.TransactionRepository()

	exists, err := txns.ExistsPendingExpected(s.ctx, s.agent.ID, expected)
	s.Require().NoError(err)
	s.True(exists)

	exists, err = txns.ExistsPendingExpected(s.ctx, s.agent.ID, expected+1)
	s.Require().NoError(err)
	s.False(exists)

	pending, err := txns.ListPendingAutoVerified(s.ctx, time.Now().UTC().Add(-time.Hour))
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(txn.ID, pending[0].ID)

	pending, err = txns.ListPendingAutoVerified(s.ctx, time.Now().UTC().Add(time.Hour))
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *RepositorySuite) TestUoW_RollsBackStatusAndBalanceTogether() {
	txn := s.newDeposit(nil)

	err := s.uow.Do(s.ctx, func(uow repository.UnitOfWork) error {
		ok, err := uow.TransactionRepository().CompareAndSetStatus(s.ctx, txn.ID,
			transaction.StatusPending, transaction.StatusCompleted, nil)
		s.Require().NoError(err)
		s.Require().True(ok)
		if err := uow.UserRepository().AddBalance(s.ctx, s.player.ID, txn.Amount); err != nil {
			return err
		}
		return domain.ErrInsufficientBalance
	})
	s.Require().ErrorIs(err, domain.ErrInsufficientBalance)

	got, err := s.uow.TransactionRepository().Get(s.ctx, txn.ID)
	s.Require().NoError(err)
	s.Equal(transaction.StatusPending, got.Status)
	player, err := s.uow.UserRepository().Get(s.ctx, s.player.ID)
	s.Require().NoError(err)
	s.Equal(money.Amount(0), player.Balance)
}

func (s *RepositorySuite) TestDeleteCascade() {
	s.newDeposit(nil)
	err := s.uow.Do(s.ctx, func(uow repository.UnitOfWork) error {
		if err := uow.TransactionRepository().DeleteByUser(s.ctx, s.agent.ID); err != nil {
			return err
		}
		return uow.UserRepository().Delete(s.ctx, s.agent.ID)
	})
	s.Require().NoError(err)

	txns, err := s.uow.TransactionRepository().ListByUser(s.ctx, s.player.ID)
	s.Require().NoError(err)
	s.Require().Len(txns, 1)
	s.Nil(txns[0].AgentID)

	s.Require().NoError(s.uow.TransactionRepository().DeleteByUser(s.ctx, s.player.ID))
	txns, err = s.uow.TransactionRepository().ListByUser(s.ctx, s.player.ID)
	s.Require().NoError(err)
	s.Empty(txns)

	s.ErrorIs(s.uow.UserRepository().Delete(s.ctx, s.agent.ID), user.ErrUserNotFound)
}

func (s *RepositorySuite) TestDestinations() {
	dests := s.uow.DestinationRepository()
	active, err := destination.New("Banco Nación", "casino.pagos", "", true)
	s.Require().NoError(err)
	inactive, err := destination.New("Brubank", "", "0000003100000000000001", false)
	s.Require().NoError(err)
	s.Require().NoError(dests.Create(s.ctx, active))
	s.Require().NoError(dests.Create(s.ctx, inactive))

	list, err := dests.List(s.ctx, true)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(active.ID, list[0].ID)

	inactive.Active = true
	s.Require().NoError(dests.Update(s.ctx, inactive))
	list, err = dests.List(s.ctx, true)
	s.Require().NoError(err)
	s.Len(list, 2)

	s.Require().NoError(dests.Delete(s.ctx, active.ID))
	_, err = dests.Get(s.ctx, active.ID)
	s.ErrorIs(err, destination.ErrDestinationNotFound)
	s.ErrorIs(dests.Delete(s.ctx, active.ID), destination.ErrDestinationNotFound)
}
