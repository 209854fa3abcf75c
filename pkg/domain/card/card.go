package card

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirasaad/bankcards/pkg/currency"
	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a card.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusBlocked Status = "BLOCKED"
	StatusExpired Status = "EXPIRED"
)

// ParseStatus parses a status name, case-insensitively.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusActive, StatusBlocked, StatusExpired:
		return st, true
	}
	return "", false
}

// Card is a bank card account. It is the aggregate root for balance changes:
// every debit and credit goes through its methods so the balance never drops
// below zero.
//
// Invariants:
//   - Balance >= 0.
//   - Balance carries the precision of Currency.
//   - A card belongs to exactly one customer for its whole lifetime.
type Card struct {
	ID         uint64
	Number     string
	CustomerID uint64
	ExpiryDate time.Time
	Status     Status
	Balance    decimal.Decimal
	Currency   currency.Code
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Builder provides a fluent API for constructing Card instances.
type Builder struct {
	id         uint64
	number     string
	customerID uint64
	expiry     time.Time
	status     Status
	balance    decimal.Decimal
	currency   currency.Code
	createdAt  time.Time
	updatedAt  time.Time
}

// New creates a Builder for a fresh card: ACTIVE, zero balance, default currency.
func New() *Builder {
	now := time.Now().UTC()
	return &Builder{
		status:    StatusActive,
		balance:   decimal.Zero,
		currency:  currency.DefaultCurrency,
		createdAt: now,
		updatedAt: now,
	}
}

func (b *Builder) WithID(id uint64) *Builder {
	b.id = id
	return b
}

func (b *Builder) WithNumber(number string) *Builder {
	b.number = number
	return b
}

func (b *Builder) WithCustomerID(id uint64) *Builder {
	b.customerID = id
	return b
}

func (b *Builder) WithExpiryDate(t time.Time) *Builder {
	b.expiry = t
	return b
}

func (b *Builder) WithStatus(s Status) *Builder {
	b.status = s
	return b
}

func (b *Builder) WithCurrency(c currency.Code) *Builder {
	b.currency = c
	return b
}

// WithBalance sets the balance. Only used when hydrating from a store or in tests.
func (b *Builder) WithBalance(balance decimal.Decimal) *Builder {
	b.balance = balance
	return b
}

func (b *Builder) WithCreatedAt(t time.Time) *Builder {
	b.createdAt = t
	return b
}

func (b *Builder) WithUpdatedAt(t time.Time) *Builder {
	b.updatedAt = t
	return b
}

// Build validates the invariants and returns the card.
func (b *Builder) Build() (*Card, error) {
	if err := ValidateNumber(b.number); err != nil {
		return nil, err
	}
	if b.customerID == 0 {
		return nil, fmt.Errorf("%w: card owner is required", domain.ErrValidation)
	}
	if b.expiry.IsZero() {
		return nil, fmt.Errorf("%w: expiry date is required", domain.ErrValidation)
	}
	if !currency.IsSupported(string(b.currency)) {
		return nil, fmt.Errorf("%w: unsupported currency %q", domain.ErrValidation, b.currency)
	}
	if _, ok := ParseStatus(string(b.status)); !ok {
		return nil, fmt.Errorf("%w: unknown card status %q", domain.ErrValidation, b.status)
	}
	if b.balance.IsNegative() {
		return nil, fmt.Errorf("%w: balance cannot be negative", domain.ErrValidation)
	}
	return &Card{
		ID:         b.id,
		Number:     b.number,
		CustomerID: b.customerID,
		ExpiryDate: b.expiry,
		Status:     b.status,
		Balance:    currency.Round(b.balance, b.currency),
		Currency:   b.currency,
		CreatedAt:  b.createdAt,
		UpdatedAt:  b.updatedAt,
	}, nil
}

// IsActive reports whether the card accepts balance operations.
func (c *Card) IsActive() bool {
	return c.Status == StatusActive
}

// OwnedBy reports whether customerID owns the card.
func (c *Card) OwnedBy(customerID uint64) bool {
	return c.CustomerID == customerID
}

// ValidateAmount checks that amount is positive, in the card currency and
// representable at the currency precision.
func (c *Card) ValidateAmount(amount decimal.Decimal, code currency.Code) error {
	if err := ValidateAmount(amount, code); err != nil {
		return err
	}
	if code != c.Currency {
		return fmt.Errorf("%w: currency %s does not match card currency %s", domain.ErrValidation, code, c.Currency)
	}
	return nil
}

// ValidateDebit checks every invariant a debit of amount must satisfy.
func (c *Card) ValidateDebit(amount decimal.Decimal, code currency.Code) error {
	if err := c.ValidateAmount(amount, code); err != nil {
		return err
	}
	if !c.IsActive() {
		return domain.ErrCardBlocked
	}
	if c.Balance.LessThan(amount) {
		return domain.ErrInsufficientFunds
	}
	return nil
}

// ValidateCredit checks every invariant a credit of amount must satisfy.
// Only ACTIVE cards accept credit.
func (c *Card) ValidateCredit(amount decimal.Decimal, code currency.Code) error {
	if err := c.ValidateAmount(amount, code); err != nil {
		return err
	}
	if !c.IsActive() {
		return domain.ErrCardBlocked
	}
	return nil
}

// ValidateTransfer ensures a transfer of amount from c to dest is valid.
func (c *Card) ValidateTransfer(dest *Card, amount decimal.Decimal, code currency.Code) error {
	if dest == nil {
		return domain.ErrCardNotFound
	}
	if c.ID == dest.ID {
		return fmt.Errorf("%w: cannot transfer to the same card", domain.ErrValidation)
	}
	if !c.IsActive() || !dest.IsActive() {
		return domain.ErrCardBlocked
	}
	if err := dest.ValidateAmount(amount, code); err != nil {
		return err
	}
	return c.ValidateDebit(amount, code)
}

// Debit removes amount from the balance.
func (c *Card) Debit(amount decimal.Decimal, code currency.Code) error {
	if err := c.ValidateDebit(amount, code); err != nil {
		return err
	}
	c.Balance = c.Balance.Sub(amount)
	c.touch()
	return nil
}

// Credit adds amount to the balance.
func (c *Card) Credit(amount decimal.Decimal, code currency.Code) error {
	if err := c.ValidateCredit(amount, code); err != nil {
		return err
	}
	c.Balance = c.Balance.Add(amount)
	c.touch()
	return nil
}

// Block moves the card to BLOCKED.
func (c *Card) Block() {
	c.Status = StatusBlocked
	c.touch()
}

// Activate moves the card to ACTIVE.
func (c *Card) Activate() {
	c.Status = StatusActive
	c.touch()
}

// Expire moves the card to EXPIRED.
func (c *Card) Expire() {
	c.Status = StatusExpired
	c.touch()
}

// Reissue replaces the number and expiry date.
func (c *Card) Reissue(number string, expiry time.Time) error {
	if err := ValidateNumber(number); err != nil {
		return err
	}
	c.Number = number
	c.ExpiryDate = expiry
	c.touch()
	return nil
}

func (c *Card) touch() {
	c.UpdatedAt = time.Now().UTC()
}

// ValidateAmount checks amount is strictly positive and fits the currency scale.
func ValidateAmount(amount decimal.Decimal, code currency.Code) error {
	if !currency.IsSupported(string(code)) {
		return fmt.Errorf("%w: unsupported currency %q", domain.ErrValidation, code)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if !currency.HasValidScale(amount, code) {
		return fmt.Errorf("%w: amount has too many decimal places for %s", domain.ErrValidation, code)
	}
	return nil
}

// ValidateExpiry checks the expiry date lies after now.
func ValidateExpiry(expiry, now time.Time) error {
	if !expiry.After(now) {
		return fmt.Errorf("%w: expiry date must be in the future", domain.ErrValidation)
	}
	return nil
}
