package agent_test

import (
	"context"
	"testing"

	"github.com/amirasaad/chipload/pkg/domain/user"
	"github.com/amirasaad/chipload/webapi/testutils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/suite"
)

type AgentTestSuite struct {
	testutils.E2ETestSuite
}

func (s *AgentTestSuite) TestConfigureGatewayVariants() {
	agent, agentToken := s.CreateUser("agent", user.RoleAgent, nil)
	_, playerToken := s.CreateUser("player", user.RolePlayer, &agent.ID)

	testCases := []struct {
		desc       string
		body       string
		token      string
		wantStatus int
	}{
		{"player forbidden", `{"access_token":"APP_USR-1","enabled":true}`, playerToken, fiber.StatusForbidden},
		{"enable without token", `{"enabled":true}`, agentToken, fiber.StatusBadRequest},
		{"enable", `{"access_token":"APP_USR-1","enabled":true}`, agentToken, fiber.StatusOK},
		{"disable keeps token", `{"enabled":false}`, agentToken, fiber.StatusOK},
		{"re-enable with stored token", `{"enabled":true}`, agentToken, fiber.StatusOK},
	}

	for _, tc := range testCases {
		s.Run(tc.desc, func() {
			resp := s.MakeRequest(fiber.MethodPut, "/agent/gateway", tc.body, tc.token)
			defer resp.Body.Close() //nolint:errcheck
			s.Equal(tc.wantStatus, resp.StatusCode)
		})
	}

	u, err := s.Env.Uow.UserRepository().Get(context.Background(), agent.ID)
	s.Require().NoError(err)
	s.True(u.AutoVerification())
}

func (s *AgentTestSuite) TestPlayers() {
	agent, agentToken := s.CreateUser("agent", user.RoleAgent, nil)
	_, playerToken := s.CreateUser("player", user.RolePlayer, &agent.ID)
	s.CreateUser("stranger", user.RolePlayer, nil)

	resp := s.MakeRequest(fiber.MethodGet, "/agent/players", "", agentToken)
	players := testutils.Decode[testutils.Envelope[[]map[string]any]](&s.E2ETestSuite, resp)
	s.Require().Len(players.Data, 1)
	s.Equal("player", players.Data[0]["username"])
	s.NotContains(players.Data[0], "gateway_access_token")

	resp = s.MakeRequest(fiber.MethodGet, "/agent/players", "", playerToken)
	defer resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusForbidden, resp.StatusCode)
}

func TestAgentTestSuite(t *testing.T) {
	suite.Run(t, new(AgentTestSuite))
}
