package transaction_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/amirasaad/chipload/pkg/domain/user"
	"github.com/amirasaad/chipload/pkg/money"
	"github.com/amirasaad/chipload/pkg/service/matcher"
	"github.com/amirasaad/chipload/webapi/testutils"
	transactionweb "github.com/amirasaad/chipload/webapi/transaction"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

const gatewayToken = "APP_USR-e2e"

type TransactionTestSuite struct {
	testutils.E2ETestSuite
	agent       *user.User
	agentToken  string
	player      *user.User
	playerToken string
}

func (s *TransactionTestSuite) SetupTest() {
	s.E2ETestSuite.SetupTest()
	s.agent, s.agentToken = s.CreateUser("agent", user.RoleAgent, nil)
	s.player, s.playerToken = s.CreateUser("player", user.RolePlayer, &s.agent.ID)
}

func (s *TransactionTestSuite) create(body string) (*transactionweb.TransactionDTO, int) {
	resp := s.MakeRequest(fiber.MethodPost, "/transactions", body, s.playerToken)
	if resp.StatusCode != fiber.StatusCreated {
		defer resp.Body.Close() //nolint:errcheck
		return nil, resp.StatusCode
	}
	env := testutils.Decode[testutils.Envelope[*transactionweb.TransactionDTO]](&s.E2ETestSuite, resp)
	return env.Data, fiber.StatusCreated
}

func (s *TransactionTestSuite) TestCreateTransactionVariants() {
	s.Env.Fund(s.T(), s.player.ID, money.New(400, 0))

	testCases := []struct {
		desc       string
		body       string
		wantStatus int
	}{
		{"deposit", `{"amount":100,"type":"DEPOSIT"}`, fiber.StatusCreated},
		{"lower case type", `{"amount":"50.25","type":"deposit"}`, fiber.StatusCreated},
		{"withdrawal", `{"amount":100,"type":"WITHDRAW","withdrawalAlias":"player.mp"}`, fiber.StatusCreated},
		{"zero amount", `{"amount":0,"type":"DEPOSIT"}`, fiber.StatusBadRequest},
		{"negative amount", `{"amount":-5,"type":"DEPOSIT"}`, fiber.StatusBadRequest},
		{"too many decimals", `{"amount":1.005,"type":"DEPOSIT"}`, fiber.StatusBadRequest},
		{"unknown type", `{"amount":10,"type":"BONUS"}`, fiber.StatusBadRequest},
		{"missing type", `{"amount":10}`, fiber.StatusBadRequest},
		{"insufficient balance", `{"amount":500,"type":"WITHDRAW","withdrawalCvu":"0000003100010000000001"}`, fiber.StatusBadRequest},
		{"withdrawal without destination", `{"amount":10,"type":"WITHDRAW"}`, fiber.StatusCreated},
		{"insufficient balance without destination", `{"amount":500,"type":"WITHDRAW"}`, fiber.StatusBadRequest},
		{"malformed body", `{"amount":`, fiber.StatusBadRequest},
	}

	for _, tc := range testCases {
		s.Run(tc.desc, func() {
			_, status := s.create(tc.body)
			s.Equal(tc.wantStatus, status)
		})
	}
	s.Equal(money.New(400, 0), s.Env.Balance(s.T(), s.player.ID), "creation never moves balance")
}

func (s *TransactionTestSuite) TestCreateTransaction_Unauthenticated() {
	resp := s.MakeRequest(fiber.MethodPost, "/transactions", `{"amount":100,"type":"DEPOSIT"}`, "")
	defer resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)

	ghost := &user.User{ID: uuid.New(), Username: "ghost", Role: user.RolePlayer}
	resp = s.MakeRequest(fiber.MethodPost, "/transactions", `{"amount":100,"type":"DEPOSIT"}`, s.Token(ghost))
	defer resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusUnauthorized, resp.StatusCode)
}

func (s *TransactionTestSuite) TestCreateTransaction_NoAgentAssigned() {
	_, token := s.CreateUser("orphan", user.RolePlayer, nil)
	resp := s.MakeRequest(fiber.MethodPost, "/transactions", `{"amount":100,"type":"DEPOSIT"}`, token)
	problem := testutils.Decode[testutils.Problem](&s.E2ETestSuite, resp)
	s.Equal(fiber.StatusBadRequest, problem.Status)
	s.Equal("validation", problem.Class)
}

func (s *TransactionTestSuite) TestUpdateStatusVariants() {
	txn, status := s.create(`{"amount":100,"type":"DEPOSIT"}`)
	s.Require().Equal(fiber.StatusCreated, status)
	_, outsiderToken := s.CreateUser("outsider", user.RoleAgent, nil)
	path := "/transactions/" + txn.ID.String() + "/status"

	testCases := []struct {
		desc       string
		path       string
		body       string
		token      string
		wantStatus int
	}{
		{"player cannot settle", path, `{"status":"COMPLETED"}`, s.playerToken, fiber.StatusForbidden},
		{"other agent cannot settle", path, `{"status":"COMPLETED"}`, outsiderToken, fiber.StatusForbidden},
		{"invalid decision", path, `{"status":"PENDING"}`, s.agentToken, fiber.StatusBadRequest},
		{"unknown transaction", "/transactions/" + uuid.NewString() + "/status", `{"status":"COMPLETED"}`, s.agentToken, fiber.StatusBadRequest},
		{"invalid id", "/transactions/nope/status", `{"status":"COMPLETED"}`, s.agentToken, fiber.StatusBadRequest},
		{"assigned agent approves", path, `{"status":"COMPLETED"}`, s.agentToken, fiber.StatusOK},
		{"already processed", path, `{"status":"REJECTED"}`, s.agentToken, fiber.StatusBadRequest},
	}

	for _, tc := range testCases {
		s.Run(tc.desc, func() {
			resp := s.MakeRequest(fiber.MethodPut, tc.path, tc.body, tc.token)
			defer resp.Body.Close() //nolint:errcheck
			s.Equal(tc.wantStatus, resp.StatusCode)
		})
	}
	s.Equal(money.New(100, 0), s.Env.Balance(s.T(), s.player.ID))
}

func (s *TransactionTestSuite) TestWithdrawalScenario() {
	s.Env.Fund(s.T(), s.player.ID, money.New(400, 0))
	txn, status := s.create(`{"amount":100,"type":"WITHDRAW","withdrawalAlias":"player.mp","withdrawalBank":"Banco"}`)
	s.Require().Equal(fiber.StatusCreated, status)
	s.Require().NotNil(txn.Withdrawal)
	s.Equal("player.mp", txn.Withdrawal.Alias)
	s.Equal("PENDING", txn.Status)
	s.Equal(money.New(400, 0), s.Env.Balance(s.T(), s.player.ID))

	resp := s.MakeRequest(fiber.MethodPut, "/transactions/"+txn.ID.String()+"/status", `{"status":"COMPLETED"}`, s.agentToken)
	settled := testutils.Decode[testutils.Envelope[*transactionweb.TransactionDTO]](&s.E2ETestSuite, resp)
	s.Equal("COMPLETED", settled.Data.Status)
	s.Equal(money.New(300, 0), s.Env.Balance(s.T(), s.player.ID))
}

func (s *TransactionTestSuite) TestConcurrentSettlement() {
	s.Env.Fund(s.T(), s.player.ID, money.New(400, 0))
	txn, status := s.create(`{"amount":100,"type":"WITHDRAW","withdrawalAlias":"player.mp"}`)
	s.Require().Equal(fiber.StatusCreated, status)
	path := "/transactions/" + txn.ID.String() + "/status"

	var wg sync.WaitGroup
	codes := make([]int, 4)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := s.MakeRequest(fiber.MethodPut, path, `{"status":"COMPLETED"}`, s.agentToken)
			defer resp.Body.Close() //nolint:errcheck
			codes[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, code := range codes {
		if code == fiber.StatusOK {
			ok++
		} else {
			s.Equal(fiber.StatusBadRequest, code)
		}
	}
	s.Equal(1, ok)
	s.Equal(money.New(300, 0), s.Env.Balance(s.T(), s.player.ID))
}

func (s *TransactionTestSuite) TestVerifyPayment() {
	_, token := s.CreateUser("admin", user.RoleAdmin, nil)
	resp := s.MakeRequest(fiber.MethodPut, "/agent/gateway", `{"access_token":"`+gatewayToken+`","enabled":true}`, s.agentToken)
	resp.Body.Close() //nolint:errcheck
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)

	txn, status := s.create(`{"amount":5000,"type":"DEPOSIT"}`)
	s.Require().Equal(fiber.StatusCreated, status)
	s.Require().NotNil(txn.ExpectedAmount)
	s.Equal(money.New(5000, 0), txn.ExpectedAmount.Floor())
	path := "/transactions/" + txn.ID.String() + "/verify-payment"

	// Nothing paid yet.
	resp = s.MakeRequest(fiber.MethodPost, path, "", s.playerToken)
	pending := testutils.Decode[testutils.Envelope[matcher.Result]](&s.E2ETestSuite, resp)
	s.Equal("PENDING", string(pending.Data.Status))
	s.False(pending.Data.ManualVerificationRequired)

	// The gateway is down.
	s.Env.Feed.FailNext(fmt.Errorf("timeout"))
	resp = s.MakeRequest(fiber.MethodPost, path, "", s.playerToken)
	problem := testutils.Decode[testutils.Problem](&s.E2ETestSuite, resp)
	s.Equal(fiber.StatusServiceUnavailable, problem.Status)
	s.Equal("transient", problem.Class)

	s.Env.Feed.Approve(gatewayToken, "mp-1", txn.ExpectedAmount.Decimal(), time.Now())
	resp = s.MakeRequest(fiber.MethodPost, path, "", s.playerToken)
	done := testutils.Decode[testutils.Envelope[matcher.Result]](&s.E2ETestSuite, resp)
	s.Equal("COMPLETED", string(done.Data.Status))
	s.Equal("mp-1", done.Data.PaymentID)
	s.Equal(money.New(5000, 0), s.Env.Balance(s.T(), s.player.ID), "the surcharge is not credited")

	// Polling again is a no-op.
	resp = s.MakeRequest(fiber.MethodPost, path, "", token)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	again := testutils.Decode[testutils.Envelope[matcher.Result]](&s.E2ETestSuite, resp)
	s.Equal("COMPLETED", string(again.Data.Status))
	s.True(again.Data.AlreadyProcessed)
	s.Equal(money.New(5000, 0), s.Env.Balance(s.T(), s.player.ID))
}

func (s *TransactionTestSuite) TestVerifyPayment_ManualAgent() {
	txn, status := s.create(`{"amount":100,"type":"DEPOSIT"}`)
	s.Require().Equal(fiber.StatusCreated, status)
	s.Nil(txn.ExpectedAmount)

	resp := s.MakeRequest(fiber.MethodPost, "/transactions/"+txn.ID.String()+"/verify-payment", "", s.playerToken)
	result := testutils.Decode[testutils.Envelope[matcher.Result]](&s.E2ETestSuite, resp)
	s.Equal("PENDING", string(result.Data.Status))
	s.True(result.Data.ManualVerificationRequired)
	s.Zero(s.Env.Feed.Calls())
}

func (s *TransactionTestSuite) TestListAndGet() {
	txn, status := s.create(`{"amount":100,"type":"DEPOSIT"}`)
	s.Require().Equal(fiber.StatusCreated, status)
	_, otherToken := s.CreateUser("other", user.RolePlayer, &s.agent.ID)

	for _, token := range []string{s.playerToken, s.agentToken} {
		resp := s.MakeRequest(fiber.MethodGet, "/transactions", "", token)
		list := testutils.Decode[testutils.Envelope[[]*transactionweb.TransactionDTO]](&s.E2ETestSuite, resp)
		s.Require().Len(list.Data, 1)
		s.Equal(txn.ID, list.Data[0].ID)
		s.NotEmpty(list.Data[0].OperationCode)
	}

	resp := s.MakeRequest(fiber.MethodGet, "/transactions", "", otherToken)
	list := testutils.Decode[testutils.Envelope[[]*transactionweb.TransactionDTO]](&s.E2ETestSuite, resp)
	s.Empty(list.Data)

	resp = s.MakeRequest(fiber.MethodGet, "/transactions/"+txn.ID.String(), "", otherToken)
	resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusForbidden, resp.StatusCode)

	resp = s.MakeRequest(fiber.MethodGet, "/transactions/"+uuid.NewString(), "", s.playerToken)
	resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusNotFound, resp.StatusCode)
}

func TestTransactionTestSuite(t *testing.T) {
	suite.Run(t, new(TransactionTestSuite))
}
