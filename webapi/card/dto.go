package card

import (
	"github.com/shopspring/decimal"
)

// CreateCardRequest is the body of an admin card creation. An empty card
// number asks the server to generate one.
type CreateCardRequest struct {
	CardNumber string `json:"card_number" validate:"omitempty,len=16,number"`
	OwnerEmail string `json:"owner_email" validate:"required,email"`
	ExpiryDate string `json:"expiry_date" validate:"required,datetime=2006-01-02"`
	Currency   string `json:"currency" validate:"omitempty,len=3,alpha"`
}

// UpdateCardRequest replaces the number and expiry date of a card.
type UpdateCardRequest struct {
	NewCardNumber string `json:"new_card_number" validate:"required,len=16,number"`
	NewExpiryDate string `json:"new_expiry_date" validate:"required,datetime=2006-01-02"`
}

// TransferRequest moves money from one of the caller's cards to another card.
type TransferRequest struct {
	FromCardNumber string          `json:"from_card_number" validate:"required,len=16,number"`
	ToCardNumber   string          `json:"to_card_number" validate:"required,len=16,number"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency" validate:"required,len=3,alpha"`
}

// AmountRequest is the body of a withdrawal or replenishment.
type AmountRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" validate:"required,len=3,alpha"`
}
