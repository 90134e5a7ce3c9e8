package user

import (
	"time"

	"github.com/amirasaad/chipload/pkg/domain/user"
	"github.com/amirasaad/chipload/pkg/money"
	"github.com/google/uuid"
)

// RegisterRequest represents the request body for registering a user.
// Role defaults to PLAYER; other roles need an admin token.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Role     string `json:"role" validate:"omitempty,max=16"`
}

// AssignManagerRequest represents the request body for (re)assigning a player's agent.
// A null manager_id unassigns the player.
type AssignManagerRequest struct {
	ManagerID *uuid.UUID `json:"manager_id"`
}

// UserDTO is the wire shape of a user. Gateway credentials never leave the server.
type UserDTO struct {
	ID             uuid.UUID    `json:"id"`
	Username       string       `json:"username"`
	Role           user.Role    `json:"role"`
	Balance        money.Amount `json:"balance"`
	ManagerID      *uuid.UUID   `json:"manager_id,omitempty"`
	GatewayEnabled bool         `json:"gateway_enabled"`
	CreatedAt      time.Time    `json:"created_at"`
}

// ToUserDTO maps a domain user to its wire shape.
func ToUserDTO(u *user.User) *UserDTO {
	return &UserDTO{
		ID:             u.ID,
		Username:       u.Username,
		Role:           u.Role,
		Balance:        u.Balance,
		ManagerID:      u.ManagerID,
		GatewayEnabled: u.GatewayEnabled,
		CreatedAt:      u.CreatedAt,
	}
}

// ToUserDTOs maps a list of users.
func ToUserDTOs(users []*user.User) []*UserDTO {
	out := make([]*UserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, ToUserDTO(u))
	}
	return out
}
