// Package commands contains command DTOs passed from handlers to services.
package commands

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// CreateCard issues a new card to the customer with OwnerEmail. An empty
// Number asks the service to generate one; an empty Currency uses the
// configured default.
type CreateCard struct {
	Number     string    `validate:"omitempty,len=16,number"`
	OwnerEmail string    `validate:"required,email"`
	ExpiryDate time.Time `validate:"required"`
	Currency   string    `validate:"omitempty,len=3,alpha"`
}

// UpdateCard replaces the number and expiry date of the card with Number.
type UpdateCard struct {
	Number    string    `validate:"required,len=16,number"`
	NewNumber string    `validate:"required,len=16,number"`
	NewExpiry time.Time `validate:"required"`
}

// Transfer moves Amount from a card of the caller to any other card.
type Transfer struct {
	From     string `validate:"required,len=16,number"`
	To       string `validate:"required,len=16,number"`
	Amount   decimal.Decimal
	Currency string `validate:"required,len=3,alpha"`
}

// Withdraw takes Amount from the card with Number.
type Withdraw struct {
	Number   string `validate:"required,len=16,number"`
	Amount   decimal.Decimal
	Currency string `validate:"required,len=3,alpha"`
}

// Replenish adds Amount to the card with Number.
type Replenish struct {
	Number   string `validate:"required,len=16,number"`
	Amount   decimal.Decimal
	Currency string `validate:"required,len=3,alpha"`
}

// Register signs up a new customer.
type Register struct {
	Email    string `validate:"required,email,max=255"`
	Password string `validate:"required,min=8,max=72"`
	Name     string `validate:"required,max=255"`
}

// Login authenticates a customer.
type Login struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate checks cmd against its struct tags. Failures wrap
// domain.ErrValidation and name every offending field.
func Validate(cmd any) error {
	validateOnce.Do(func() { validate = validator.New() })
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, "; "))
}
