// Package auth resolves the caller of a request from a verified JWT.
// Token verification itself is done by the HTTP middleware.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/domain"
	"github.com/amirasaad/chipload/pkg/domain/user"
	"github.com/amirasaad/chipload/pkg/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ClaimUserID carries the user id in every token.
const ClaimUserID = "user_id"

type Service struct {
	uow    repository.UnitOfWork
	cfg    *config.Jwt
	logger *slog.Logger
}

func New(uow repository.UnitOfWork, cfg *config.Jwt, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{uow: uow, cfg: cfg, logger: logger}
}

// UserIDFromToken extracts the user id claim of a verified token.
func UserIDFromToken(token *jwt.Token) (uuid.UUID, error) {
	if token == nil {
		return uuid.Nil, user.ErrUserUnauthorized
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, user.ErrUserUnauthorized
	}
	raw, ok := claims[ClaimUserID].(string)
	if !ok {
		return uuid.Nil, user.ErrUserUnauthorized
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, user.ErrUserUnauthorized
	}
	return id, nil
}

// Actor loads the user behind token. Tokens of deleted users are rejected.
func (s *Service) Actor(ctx context.Context, token *jwt.Token) (user.Actor, error) {
	log := s.logger.With("handler", "Actor")
	id, err := UserIDFromToken(token)
	if err != nil {
		log.Warn("token without a valid user id")
		return user.Actor{}, err
	}
	u, err := s.uow.UserRepository().Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("token for unknown user", "user_id", id)
			return user.Actor{}, user.ErrUserUnauthorized
		}
		return user.Actor{}, err
	}
	return user.ActorOf(u), nil
}

// GenerateToken signs a token for u. Used by operators and tests; end-user
// login happens outside this service.
func (s *Service) GenerateToken(u *user.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		ClaimUserID: u.ID.String(),
		"username":  u.Username,
		"role":      string(u.Role),
		"exp":       time.Now().Add(s.cfg.Expiry).Unix(),
	})
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		s.logger.Error("GenerateToken failed", "user_id", u.ID, "error", err)
		return "", err
	}
	return signed, nil
}
