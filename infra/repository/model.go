package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Card represents a card record in the database. The plain card number is
// never stored.
type Card struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement"`
	NumberEncrypted string          `gorm:"not null"`
	NumberHash      string          `gorm:"size:64;uniqueIndex;not null"`
	LastFour        string          `gorm:"size:4;not null"`
	CustomerID      uint64          `gorm:"index;not null"`
	ExpiryDate      time.Time       `gorm:"index;not null"`
	Status          string          `gorm:"type:varchar(16);index;not null"`
	Balance         decimal.Decimal `gorm:"type:numeric(19,2);not null;default:0"`
	Currency        string          `gorm:"type:varchar(3);not null;default:'RUB'"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName specifies the table name for the Card model.
func (Card) TableName() string {
	return "cards"
}

// Transaction represents a persisted money movement.
type Transaction struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement"`
	Reference    string          `gorm:"type:varchar(36);uniqueIndex;not null"`
	Amount       decimal.Decimal `gorm:"type:numeric(19,2);not null"`
	Currency     string          `gorm:"type:varchar(3);not null"`
	Type         string          `gorm:"type:varchar(16);not null"`
	Status       string          `gorm:"type:varchar(16);not null"`
	SourceCardID uint64          `gorm:"index;not null"`
	TargetCardID *uint64         `gorm:"index"`
	CreatedAt    time.Time       `gorm:"index"`
}

// TableName specifies the table name for the Transaction model.
func (Transaction) TableName() string {
	return "transactions"
}

// Customer represents a customer record in the database.
type Customer struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"uniqueIndex;not null;size:255"`
	PasswordHash string `gorm:"not null"`
	Name         string `gorm:"not null;size:255"`
	Roles        string `gorm:"not null;size:64"`
	Enabled      bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName specifies the table name for the Customer model.
func (Customer) TableName() string {
	return "customers"
}

// Migrate creates or updates the schema from the models. PostgreSQL
// deployments use the versioned migrations package instead.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Customer{}, &Card{}, &Transaction{})
}
