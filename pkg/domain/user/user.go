package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirasaad/chipload/pkg/domain"
	"github.com/amirasaad/chipload/pkg/money"
	"github.com/google/uuid"
)

var (
	// ErrUserNotFound is returned when a user cannot be found in the
	// repository.
	ErrUserNotFound = fmt.Errorf("user %w", domain.ErrNotFound)
	// ErrInvalidRole is returned for a role outside ADMIN, AGENT and PLAYER.
	ErrInvalidRole = fmt.Errorf("%w: invalid role", domain.ErrValidation)
	// ErrUserUnauthorized is returned when the caller cannot be resolved.
	ErrUserUnauthorized = fmt.Errorf("user %w", domain.ErrUnauthorized)
)

// Role is the authorization role of a user.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleAgent  Role = "AGENT"
	RolePlayer Role = "PLAYER"
)

// ParseRole normalizes and validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleAgent, RolePlayer:
		return r, nil
	}
	return "", ErrInvalidRole
}

// CanManage reports whether users of this role may own players.
func (r Role) CanManage() bool {
	return r == RoleAdmin || r == RoleAgent
}

// User represents a user in the system.
type User struct {
	ID        uuid.UUID    `json:"id"`
	Username  string       `json:"username"`
	Role      Role         `json:"role"`
	Balance   money.Amount `json:"balance"`
	ManagerID *uuid.UUID   `json:"manager_id,omitempty"`
	// GatewayAccessToken is stored sealed and only meaningful for agents.
	GatewayAccessToken string    `json:"-"`
	GatewayEnabled     bool      `json:"gateway_enabled"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// New creates a user with a zero balance.
func New(username string, role Role, managerID *uuid.UUID) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username cannot be empty", domain.ErrValidation)
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &User{
		ID:        uuid.New(),
		Username:  username,
		Role:      role,
		ManagerID: managerID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// AutoVerification reports whether deposits settled by this user can be
// matched against the payment feed.
func (u *User) AutoVerification() bool {
	return u != nil && u.Role == RoleAgent && u.GatewayEnabled && u.GatewayAccessToken != ""
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// ActorOf returns the actor view of a user.
func ActorOf(u *User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanSettle reports whether the actor may decide a transaction assigned to agentID.
func (a Actor) CanSettle(agentID *uuid.UUID) bool {
	if a.IsAdmin() {
		return true
	}
	return a.Role == RoleAgent && agentID != nil && *agentID == a.ID
}

// CanView reports whether the actor may read a transaction owned by ownerID.
func (a Actor) CanView(ownerID uuid.UUID, agentID *uuid.UUID) bool {
	return a.ID == ownerID || a.CanSettle(agentID)
}
