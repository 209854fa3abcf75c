package card

import (
	"fmt"
	"time"

	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/amirasaad/bankcards/pkg/domain/card"
	"github.com/amirasaad/bankcards/pkg/domain/transaction"
)

// DateLayout is the wire format of expiry dates.
const DateLayout = "2006-01-02"

// CardView is the outward representation of a card. The full card number
// never leaves the service.
type CardView struct {
	CardNumber     string `json:"card_number"`
	CardHolderName string `json:"card_holder_name"`
	ExpiryDate     string `json:"expiry_date"`
	Status         string `json:"status"`
	Balance        string `json:"balance"`
	Currency       string `json:"currency"`
}

// TransactionView is the outward representation of a transaction.
type TransactionView struct {
	Reference string    `json:"reference"`
	Type      string    `json:"type"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func newCardView(c *card.Card, holder string) CardView {
	return CardView{
		CardNumber:     card.Mask(c.Number),
		CardHolderName: holder,
		ExpiryDate:     c.ExpiryDate.UTC().Format(DateLayout),
		Status:         string(c.Status),
		Balance:        c.Balance.StringFixed(2),
		Currency:       string(c.Currency),
	}
}

func newTransactionView(tx *transaction.Transaction) TransactionView {
	return TransactionView{
		Reference: tx.Reference.String(),
		Type:      string(tx.Type),
		Amount:    tx.Amount.StringFixed(2),
		Currency:  string(tx.Currency),
		Status:    string(tx.Status),
		CreatedAt: tx.CreatedAt.UTC(),
	}
}

func domainValidation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}
