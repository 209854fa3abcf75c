package repository

import (
	"context"
	"time"

	"github.com/amirasaad/bankcards/pkg/domain/card"
	"github.com/amirasaad/bankcards/pkg/domain/customer"
	"github.com/amirasaad/bankcards/pkg/domain/transaction"
)

// CardRepository is the Card Store. Lookups return nil, nil when nothing
// matches; deciding whether that is an error is up to the caller.
type CardRepository interface {
	// FindByNumber loads a card without locking it.
	FindByNumber(ctx context.Context, number string) (*card.Card, error)
	// FindByNumberForUpdate loads a card and holds an exclusive row lock on it
	// until the enclosing unit of work ends. It fails with domain.ErrLockTimeout
	// when the lock cannot be acquired in time.
	FindByNumberForUpdate(ctx context.Context, number string) (*card.Card, error)
	// ListByCustomer pages through a customer's cards ordered by creation time,
	// optionally filtered by status.
	ListByCustomer(ctx context.Context, customerID uint64, status *card.Status, page PageRequest) (Page[*card.Card], error)
	// ListAll pages through every card ordered by creation time.
	ListAll(ctx context.Context, page PageRequest) (Page[*card.Card], error)
	// Create inserts c and assigns its ID.
	Create(ctx context.Context, c *card.Card) error
	// Save persists the mutable fields of an existing card.
	Save(ctx context.Context, c *card.Card) error
	// Delete hard-deletes a card together with the transactions it is the source of.
	Delete(ctx context.Context, id uint64) error
	// ExpireBefore marks cards whose expiry date is before date as EXPIRED and
	// returns how many changed.
	ExpireBefore(ctx context.Context, date time.Time) (int64, error)
}

// TransactionRepository is the append-only Transaction Log.
type TransactionRepository interface {
	// Append stores tx and assigns its ID.
	Append(ctx context.Context, tx *transaction.Transaction) (*transaction.Transaction, error)
	// ListByCard pages through the transactions a card took part in, ordered by
	// creation time.
	ListByCard(ctx context.Context, cardID uint64, page PageRequest) (Page[*transaction.Transaction], error)
}

// CustomerRepository resolves customers. The ledger only reads through it.
type CustomerRepository interface {
	FindByEmail(ctx context.Context, email string) (*customer.Customer, error)
	FindByID(ctx context.Context, id uint64) (*customer.Customer, error)
	Create(ctx context.Context, c *customer.Customer) error
}
