// Package transaction models the immutable record of a completed money movement.
package transaction

import (
	"fmt"
	"time"

	"github.com/amirasaad/bankcards/pkg/currency"
	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type is the kind of money movement.
type Type string

const (
	TypeCredit   Type = "CREDIT"
	TypeDebit    Type = "DEBIT"
	TypeTransfer Type = "TRANSFER"
)

// Status is the outcome recorded for a transaction.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Transaction is a record of one completed money movement. TargetCardID is set
// only for transfers.
type Transaction struct {
	ID           uint64
	Reference    uuid.UUID
	Amount       decimal.Decimal
	Currency     currency.Code
	Type         Type
	Status       Status
	SourceCardID uint64
	TargetCardID *uint64
	CreatedAt    time.Time
}

// NewCredit records money added to sourceCardID.
func NewCredit(sourceCardID uint64, amount decimal.Decimal, code currency.Code) (*Transaction, error) {
	return newTransaction(TypeCredit, sourceCardID, nil, amount, code)
}

// NewDebit records money taken from sourceCardID.
func NewDebit(sourceCardID uint64, amount decimal.Decimal, code currency.Code) (*Transaction, error) {
	return newTransaction(TypeDebit, sourceCardID, nil, amount, code)
}

// NewTransfer records money moved from sourceCardID to targetCardID.
func NewTransfer(sourceCardID, targetCardID uint64, amount decimal.Decimal, code currency.Code) (*Transaction, error) {
	return newTransaction(TypeTransfer, sourceCardID, &targetCardID, amount, code)
}

func newTransaction(
	typ Type,
	sourceCardID uint64,
	targetCardID *uint64,
	amount decimal.Decimal,
	code currency.Code,
) (*Transaction, error) {
	if sourceCardID == 0 {
		return nil, fmt.Errorf("%w: source card is required", domain.ErrValidation)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: transaction amount must be positive", domain.ErrValidation)
	}
	if typ == TypeTransfer && (targetCardID == nil || *targetCardID == 0) {
		return nil, fmt.Errorf("%w: transfer requires a target card", domain.ErrValidation)
	}
	return &Transaction{
		Reference:    uuid.New(),
		Amount:       amount,
		Currency:     code,
		Type:         typ,
		Status:       StatusSuccess,
		SourceCardID: sourceCardID,
		TargetCardID: targetCardID,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
