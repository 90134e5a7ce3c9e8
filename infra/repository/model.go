package repository

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user record in the database.
type User struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Username           string     `gorm:"uniqueIndex;not null;size:50"`
	Role               string     `gorm:"type:varchar(16);not null"`
	Balance            int64      `gorm:"not null;default:0"`
	ManagerID          *uuid.UUID `gorm:"type:uuid;index"`
	GatewayAccessToken string     `gorm:"type:text"`
	GatewayEnabled     bool       `gorm:"not null;default:false"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

// Transaction represents a persisted chip transaction. Deposit and withdrawal
// details share the row; only the columns of the row's type are populated.
type Transaction struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID  `gorm:"type:uuid;not null;index"`
	AgentID          *uuid.UUID `gorm:"type:uuid;index"`
	Type             string     `gorm:"type:varchar(16);not null"`
	Amount           int64      `gorm:"not null"`
	Status           string     `gorm:"type:varchar(16);not null;index"`
	OperationCode    string     `gorm:"type:varchar(32);not null;uniqueIndex"`
	GatewayPaymentID *string    `gorm:"type:varchar(64);uniqueIndex"`

	ExpectedAmount *int64

	DestinationCVU   string `gorm:"type:varchar(32)"`
	DestinationAlias string `gorm:"type:varchar(64)"`
	DestinationBank  string `gorm:"type:varchar(128)"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for the Transaction model.
func (Transaction) TableName() string {
	return "transactions"
}

// Destination is a payment destination shown to depositing players.
type Destination struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	BankName  string    `gorm:"type:varchar(128);not null"`
	Alias     string    `gorm:"type:varchar(64)"`
	CBU       string    `gorm:"column:cbu;type:varchar(22)"`
	Active    bool      `gorm:"not null;default:true;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for the Destination model.
func (Destination) TableName() string {
	return "payment_destinations"
}

// Models lists every persisted model, in dependency order.
func Models() []any {
	return []any{&User{}, &Transaction{}, &Destination{}}
}
