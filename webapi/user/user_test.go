package user_test

import (
	"testing"

	"github.com/amirasaad/chipload/pkg/domain/user"
	"github.com/amirasaad/chipload/webapi/testutils"
	userweb "github.com/amirasaad/chipload/webapi/user"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type UserTestSuite struct {
	testutils.E2ETestSuite
	admin      *user.User
	adminToken string
}

func (s *UserTestSuite) SetupTest() {
	s.E2ETestSuite.SetupTest()
	s.admin, s.adminToken = s.CreateUser("admin", user.RoleAdmin, nil)
}

func (s *UserTestSuite) TestRegisterVariants() {
	_, playerToken := s.CreateUser("existing", user.RolePlayer, nil)

	testCases := []struct {
		desc       string
		body       string
		token      string
		wantStatus int
	}{
		{"player self registration", `{"username":"alice"}`, "", fiber.StatusCreated},
		{"duplicate username", `{"username":"alice"}`, "", fiber.StatusConflict},
		{"username too short", `{"username":"al"}`, "", fiber.StatusBadRequest},
		{"invalid body", `{"username":123}`, "", fiber.StatusBadRequest},
		{"agent without token", `{"username":"bob","role":"AGENT"}`, "", fiber.StatusForbidden},
		{"agent by player", `{"username":"bob","role":"AGENT"}`, playerToken, fiber.StatusForbidden},
		{"agent by admin", `{"username":"bob","role":"AGENT"}`, s.adminToken, fiber.StatusCreated},
		{"unknown role", `{"username":"carol","role":"ROOT"}`, s.adminToken, fiber.StatusBadRequest},
		{"bad token", `{"username":"dave"}`, "not-a-jwt", fiber.StatusUnauthorized},
	}

	for _, tc := range testCases {
		s.Run(tc.desc, func() {
			resp := s.MakeRequest(fiber.MethodPost, "/users", tc.body, tc.token)
			defer resp.Body.Close() //nolint:errcheck
			s.Equal(tc.wantStatus, resp.StatusCode)
		})
	}
}

func (s *UserTestSuite) TestMe() {
	player, token := s.CreateUser("player", user.RolePlayer, nil)
	s.Env.Fund(s.T(), player.ID, 12345)

	resp := s.MakeRequest(fiber.MethodGet, "/users/me", "", token)
	me := testutils.Decode[testutils.Envelope[userweb.UserDTO]](&s.E2ETestSuite, resp)
	s.Equal(player.ID, me.Data.ID)
	s.Equal(int64(12345), int64(me.Data.Balance))

	resp = s.MakeRequest(fiber.MethodGet, "/users/me", "", "")
	defer resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
}

func (s *UserTestSuite) TestAssignManager() {
	agent, agentToken := s.CreateUser("agent", user.RoleAgent, nil)
	player, _ := s.CreateUser("player", user.RolePlayer, nil)
	path := "/admin/users/" + player.ID.String() + "/manager"
	body := `{"manager_id":"` + agent.ID.String() + `"}`

	resp := s.MakeRequest(fiber.MethodPut, path, body, agentToken)
	resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusForbidden, resp.StatusCode)

	resp = s.MakeRequest(fiber.MethodPut, "/admin/users/"+uuid.NewString()+"/manager", body, s.adminToken)
	resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusNotFound, resp.StatusCode)

	resp = s.MakeRequest(fiber.MethodPut, path, body, s.adminToken)
	resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusOK, resp.StatusCode)

	resp = s.MakeRequest(fiber.MethodGet, "/agent/players", "", agentToken)
	players := testutils.Decode[testutils.Envelope[[]userweb.UserDTO]](&s.E2ETestSuite, resp)
	s.Require().Len(players.Data, 1)
	s.Equal(player.ID, players.Data[0].ID)
}

func (s *UserTestSuite) TestDelete() {
	player, playerToken := s.CreateUser("player", user.RolePlayer, nil)

	resp := s.MakeRequest(fiber.MethodDelete, "/admin/users/"+player.ID.String(), "", playerToken)
	resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusForbidden, resp.StatusCode)

	resp = s.MakeRequest(fiber.MethodDelete, "/admin/users/"+s.admin.ID.String(), "", s.adminToken)
	resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)

	resp = s.MakeRequest(fiber.MethodDelete, "/admin/users/"+player.ID.String(), "", s.adminToken)
	resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusNoContent, resp.StatusCode)

	// The deleted user's token no longer resolves.
	resp = s.MakeRequest(fiber.MethodGet, "/users/me", "", playerToken)
	resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusUnauthorized, resp.StatusCode)
}

func TestUserTestSuite(t *testing.T) {
	suite.Run(t, new(UserTestSuite))
}
