// Package card provides the ledger engine: card lifecycle and balance
// operations for administrators and card holders.
//
// Every mutating operation that takes an idempotency key runs at most once per
// key: a replay returns the stored result without touching the store. Balance
// changes lock the affected card rows for the whole unit of work, and a
// transfer locks both cards in card-number order so two opposite transfers
// can never deadlock.
package card

import (
	"context"
	"log/slog"
	"time"

	"github.com/amirasaad/bankcards/pkg/currency"
	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/amirasaad/bankcards/pkg/domain/card"
	"github.com/amirasaad/bankcards/pkg/domain/customer"
	"github.com/amirasaad/bankcards/pkg/idempotency"
	"github.com/amirasaad/bankcards/pkg/repository"
)

// Idempotency operation names. Client keys are scoped by these.
const (
	OpCreateCard   = "create_card"
	OpBlockCard    = "block_card"
	OpActivateCard = "activate_card"
	OpRequestBlock = "request_block"
	OpDeleteCard   = "delete_card"
	OpTransfer     = "transfer"
	OpWithdraw     = "withdraw"
	OpReplenish    = "replenish"
)

// Confirmation messages returned by status operations.
const (
	MsgCardBlocked      = "Card blocked"
	MsgCardActivated    = "Card activated successfully"
	MsgCardDeleted      = "Card deleted"
	MsgCardBlockedByYou = "Card has been blocked"
)

// Config holds the card defaults of the service.
type Config struct {
	DefaultCurrency currency.Code
	// NumberPrefix starts generated card numbers.
	NumberPrefix string
}

// Service is the ledger engine.
type Service struct {
	uow    repository.UnitOfWork
	guard  *idempotency.Guard
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service with the provided dependencies.
func NewService(
	uow repository.UnitOfWork,
	guard *idempotency.Guard,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = currency.DefaultCurrency
	}
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = "4000"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		uow:    uow,
		guard:  guard,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// repos bundles the repositories of one unit of work.
type repos struct {
	cards     repository.CardRepository
	txs       repository.TransactionRepository
	customers repository.CustomerRepository
}

func reposOf(uow repository.UnitOfWork) (repos, error) {
	var (
		r   repos
		err error
	)
	if r.cards, err = uow.CardRepository(); err != nil {
		return r, err
	}
	if r.txs, err = uow.TransactionRepository(); err != nil {
		return r, err
	}
	if r.customers, err = uow.CustomerRepository(); err != nil {
		return r, err
	}
	return r, nil
}

// lockCard loads and locks the card with number, failing ErrCardNotFound
// when it does not exist.
func lockCard(ctx context.Context, r repos, number string) (*card.Card, error) {
	c, err := r.cards.FindByNumberForUpdate(ctx, number)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrCardNotFound
	}
	return c, nil
}

func findCard(ctx context.Context, r repos, number string) (*card.Card, error) {
	c, err := r.cards.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrCardNotFound
	}
	return c, nil
}

// authorize checks that callerEmail owns c. An unknown caller owns nothing.
func authorize(ctx context.Context, r repos, c *card.Card, callerEmail string) (*customer.Customer, error) {
	caller, err := r.customers.FindByEmail(ctx, callerEmail)
	if err != nil {
		return nil, err
	}
	if caller == nil || !c.OwnedBy(caller.ID) {
		return nil, domain.ErrNoAccessToOtherData
	}
	return caller, nil
}

// holderName resolves the display name of the owner of c.
func holderName(ctx context.Context, r repos, c *card.Card) (string, error) {
	owner, err := r.customers.FindByID(ctx, c.CustomerID)
	if err != nil {
		return "", err
	}
	if owner == nil {
		return "", nil
	}
	return owner.Name, nil
}

func parseCurrency(code string) (currency.Code, error) {
	c, ok := currency.Parse(code)
	if !ok {
		return "", domainValidation("unsupported currency %q", code)
	}
	return c, nil
}
