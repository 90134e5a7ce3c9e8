package repository

import (
	"context"
	"time"

	"github.com/amirasaad/chipload/pkg/domain/user"
	"github.com/amirasaad/chipload/pkg/money"
	repo "github.com/amirasaad/chipload/pkg/repository/user"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository using the provided *gorm.DB.
func NewUserRepository(db *gorm.DB) repo.Repository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, u *user.User) error {
	m := mapUserToModel(u)
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var m User
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFoundAs(err, user.ErrUserNotFound)
	}
	return mapUserToDomain(&m), nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	var m User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&m).Error; err != nil {
		return nil, notFoundAs(err, user.ErrUserNotFound)
	}
	return mapUserToDomain(&m), nil
}

func (r *userRepository) List(ctx context.Context, page, pageSize int) ([]*user.User, error) {
	if page < 1 {
		page = 1
	}
	var users []User
	if err := r.db.WithContext(ctx).
		Order("created_at").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&users).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return mapUsersToDomain(users), nil
}

func (r *userRepository) ListManaged(ctx context.Context, managerID uuid.UUID) ([]*user.User, error) {
	var users []User
	if err := r.db.WithContext(ctx).
		Where("manager_id = ?", managerID).
		Order("created_at").
		Find(&users).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	return mapUsersToDomain(users), nil
}

func (r *userRepository) UpdateManager(ctx context.Context, id uuid.UUID, managerID *uuid.UUID) error {
	return r.update(ctx, id, map[string]any{"manager_id": managerID})
}

func (r *userRepository) DetachManaged(ctx context.Context, managerID uuid.UUID) error {
	return WrapError(func() error {
		return r.db.WithContext(ctx).Model(&User{}).
			Where("manager_id = ?", managerID).
			Updates(map[string]any{"manager_id": nil, "updated_at": time.Now().UTC()}).Error
	})
}

func (r *userRepository) UpdateGateway(ctx context.Context, id uuid.UUID, sealedToken string, enabled bool) error {
	return r.update(ctx, id, map[string]any{
		"gateway_access_token": sealedToken,
		"gateway_enabled":      enabled,
	})
}

func (r *userRepository) AddBalance(ctx context.Context, id uuid.UUID, amount money.Amount) error {
	return r.update(ctx, id, map[string]any{
		"balance": gorm.Expr("balance + ?", int64(amount)),
	})
}

func (r *userRepository) SubtractBalanceIfSufficient(
	ctx context.Context,
	id uuid.UUID,
	amount money.Amount,
) (bool, error) {
	res := r.db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND balance >= ?", id, int64(amount)).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", int64(amount)),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&User{}, "id = ?", id)
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// --- Mappers ---

func mapUserToModel(u *user.User) User {
	return User{
		ID:                 u.ID,
		Username:           u.Username,
		Role:               string(u.Role),
		Balance:            int64(u.Balance),
		ManagerID:          u.ManagerID,
		GatewayAccessToken: u.GatewayAccessToken,
		GatewayEnabled:     u.GatewayEnabled,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func mapUserToDomain(m *User) *user.User {
	return &user.User{
		ID:                 m.ID,
		Username:           m.Username,
		Role:               user.Role(m.Role),
		Balance:            money.Amount(m.Balance),
		ManagerID:          m.ManagerID,
		GatewayAccessToken: m.GatewayAccessToken,
		GatewayEnabled:     m.GatewayEnabled,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func mapUsersToDomain(users []User) []*user.User {
	result := make([]*user.User, 0, len(users))
	for i := range users {
		result = append(result, mapUserToDomain(&users[i]))
	}
	return result
}
