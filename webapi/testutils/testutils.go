// Package testutils provides the end-to-end suite the route tests build on.
package testutils

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/amirasaad/chipload/pkg/app"
	"github.com/amirasaad/chipload/pkg/domain/user"
	"github.com/amirasaad/chipload/pkg/testutils"
	"github.com/amirasaad/chipload/webapi"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

// E2ETestSuite runs requests against the full fiber app over an in-memory database.
type E2ETestSuite struct {
	suite.Suite
	Env   *testutils.Env
	App   *app.App
	Fiber *fiber.App
}

func (s *E2ETestSuite) SetupTest() {
	s.Env = testutils.NewEnv(s.T())
	a, err := app.New(s.Env.Deps())
	s.Require().NoError(err)
	s.App = a
	s.Fiber = webapi.SetupApp(a)
}

// MakeRequest runs one request. An empty token sends no Authorization header.
func (s *E2ETestSuite) MakeRequest(method, path, body, token string) *http.Response {
	return testutils.MakeRequest(s.T(), s.Fiber, method, path, body, token)
}

// CreateUser stores a user and returns it with a signed token.
func (s *E2ETestSuite) CreateUser(username string, role user.Role, managerID *uuid.UUID) (*user.User, string) {
	u := s.Env.CreateUser(s.T(), username, role, managerID)
	return u, s.Token(u)
}

// Token signs a token for u.
func (s *E2ETestSuite) Token(u *user.User) string {
	token, err := s.App.AuthService.GenerateToken(u)
	s.Require().NoError(err)
	return token
}

// Envelope mirrors common.Response with a typed payload.
type Envelope[T any] struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Problem mirrors common.ProblemDetails.
type Problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Class  string `json:"class"`
}

// Decode reads and closes the body of resp into v.
func Decode[T any](s *E2ETestSuite, resp *http.Response) T {
	defer resp.Body.Close() //nolint:errcheck
	var v T
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Require().NoError(json.Unmarshal(raw, &v), string(raw))
	return v
}
