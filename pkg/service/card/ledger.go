package card

import (
	"context"
	"fmt"

	"github.com/amirasaad/bankcards/pkg/commands"
	"github.com/amirasaad/bankcards/pkg/currency"
	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/amirasaad/bankcards/pkg/domain/card"
	"github.com/amirasaad/bankcards/pkg/domain/transaction"
	"github.com/amirasaad/bankcards/pkg/idempotency"
	"github.com/amirasaad/bankcards/pkg/repository"
	"github.com/shopspring/decimal"
)

// RequestBlock lets a card holder block their own card.
func (s *Service) RequestBlock(ctx context.Context, key, number, callerEmail string) (string, error) {
	logger := s.logger.With("card", card.Mask(number), "caller", callerEmail, "idempotency_key", key)
	logger.Info("RequestBlock started")

	if err := idempotency.ValidateKey(key); err != nil {
		return "", err
	}
	if err := card.ValidateNumber(number); err != nil {
		return "", err
	}

	result, err := idempotency.Execute(ctx, s.guard, OpRequestBlock, key, func(ctx context.Context) (string, error) {
		err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			r, err := reposOf(uow)
			if err != nil {
				return err
			}
			c, err := lockCard(ctx, r, number)
			if err != nil {
				return err
			}
			if _, err := authorize(ctx, r, c, callerEmail); err != nil {
				return err
			}
			if c.Status == card.StatusBlocked {
				return domain.ErrAlreadyBlocked
			}
			c.Block()
			return r.cards.Save(ctx, c)
		})
		if err != nil {
			return "", err
		}
		return MsgCardBlockedByYou, nil
	})
	if err != nil {
		logger.Error("RequestBlock failed", "error", err)
		return "", err
	}
	logger.Info("RequestBlock successful")
	return result, nil
}

// Transfer moves an amount from one card of the caller to another card.
// Both cards are locked in card-number order.
func (s *Service) Transfer(
	ctx context.Context,
	key string,
	cmd commands.Transfer,
	callerEmail string,
) (TransactionView, error) {
	logger := s.logger.With(
		"from", card.Mask(cmd.From),
		"to", card.Mask(cmd.To),
		"amount", cmd.Amount.String(),
		"currency", cmd.Currency,
		"caller", callerEmail,
		"idempotency_key", key,
	)
	logger.Info("Transfer started")

	if err := idempotency.ValidateKey(key); err != nil {
		return TransactionView{}, err
	}
	code, err := validateMovement(cmd, cmd.Amount, cmd.Currency)
	if err != nil {
		logger.Warn("Transfer failed: invalid command", "error", err)
		return TransactionView{}, err
	}
	if cmd.From == cmd.To {
		return TransactionView{}, domainValidation("cannot transfer to the same card")
	}

	view, err := idempotency.Execute(ctx, s.guard, OpTransfer, key, func(ctx context.Context) (TransactionView, error) {
		var view TransactionView
		err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			r, err := reposOf(uow)
			if err != nil {
				return err
			}
			first, second := cmd.From, cmd.To
			if second < first {
				first, second = second, first
			}
			locked := make(map[string]*card.Card, 2)
			for _, n := range []string{first, second} {
				if locked[n], err = lockCard(ctx, r, n); err != nil {
					return err
				}
			}
			from, to := locked[cmd.From], locked[cmd.To]
			if _, err := authorize(ctx, r, from, callerEmail); err != nil {
				return err
			}
			if err := from.ValidateTransfer(to, cmd.Amount, code); err != nil {
				return err
			}
			if err := from.Debit(cmd.Amount, code); err != nil {
				return err
			}
			if err := to.Credit(cmd.Amount, code); err != nil {
				return err
			}
			if err := r.cards.Save(ctx, from); err != nil {
				return err
			}
			if err := r.cards.Save(ctx, to); err != nil {
				return err
			}
			tx, err := transaction.NewTransfer(from.ID, to.ID, cmd.Amount, code)
			if err != nil {
				return err
			}
			if tx, err = r.txs.Append(ctx, tx); err != nil {
				return err
			}
			view = newTransactionView(tx)
			return nil
		})
		return view, err
	})
	if err != nil {
		logger.Error("Transfer failed", "error", err)
		return TransactionView{}, err
	}
	logger.Info("Transfer successful", "reference", view.Reference)
	return view, nil
}

// Withdraw takes an amount from a card of the caller.
func (s *Service) Withdraw(
	ctx context.Context,
	key string,
	cmd commands.Withdraw,
	callerEmail string,
) (TransactionView, error) {
	return s.move(ctx, "Withdraw", OpWithdraw, key, cmd, cmd.Number, cmd.Amount, cmd.Currency, callerEmail,
		func(c *card.Card, amount decimal.Decimal, code currency.Code) (*transaction.Transaction, error) {
			if err := c.Debit(amount, code); err != nil {
				return nil, err
			}
			return transaction.NewDebit(c.ID, amount, code)
		})
}

// Replenish adds an amount to a card of the caller. Only ACTIVE cards accept
// credit.
func (s *Service) Replenish(
	ctx context.Context,
	key string,
	cmd commands.Replenish,
	callerEmail string,
) (TransactionView, error) {
	return s.move(ctx, "Replenish", OpReplenish, key, cmd, cmd.Number, cmd.Amount, cmd.Currency, callerEmail,
		func(c *card.Card, amount decimal.Decimal, code currency.Code) (*transaction.Transaction, error) {
			if err := c.Credit(amount, code); err != nil {
				return nil, err
			}
			return transaction.NewCredit(c.ID, amount, code)
		})
}

// move runs a single-card balance change under a row lock.
func (s *Service) move(
	ctx context.Context,
	name, op, key string,
	cmd any,
	number string,
	amount decimal.Decimal,
	rawCurrency, callerEmail string,
	apply func(*card.Card, decimal.Decimal, currency.Code) (*transaction.Transaction, error),
) (TransactionView, error) {
	logger := s.logger.With(
		"card", card.Mask(number),
		"amount", amount.String(),
		"currency", rawCurrency,
		"caller", callerEmail,
		"idempotency_key", key,
	)
	logger.Info(name + " started")

	if err := idempotency.ValidateKey(key); err != nil {
		return TransactionView{}, err
	}
	code, err := validateMovement(cmd, amount, rawCurrency)
	if err != nil {
		logger.Warn(name+" failed: invalid command", "error", err)
		return TransactionView{}, err
	}

	view, err := idempotency.Execute(ctx, s.guard, op, key, func(ctx context.Context) (TransactionView, error) {
		var view TransactionView
		err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			r, err := reposOf(uow)
			if err != nil {
				return err
			}
			c, err := lockCard(ctx, r, number)
			if err != nil {
				return err
			}
			if _, err := authorize(ctx, r, c, callerEmail); err != nil {
				return err
			}
			tx, err := apply(c, amount, code)
			if err != nil {
				return err
			}
			if err := r.cards.Save(ctx, c); err != nil {
				return err
			}
			if tx, err = r.txs.Append(ctx, tx); err != nil {
				return err
			}
			view = newTransactionView(tx)
			return nil
		})
		return view, err
	})
	if err != nil {
		logger.Error(name+" failed", "error", err)
		return TransactionView{}, err
	}
	logger.Info(name+" successful", "reference", view.Reference)
	return view, nil
}

// validateMovement checks a balance command before any store access.
func validateMovement(cmd any, amount decimal.Decimal, rawCurrency string) (currency.Code, error) {
	if err := commands.Validate(cmd); err != nil {
		return "", err
	}
	code, err := parseCurrency(rawCurrency)
	if err != nil {
		return "", err
	}
	if err := card.ValidateAmount(amount, code); err != nil {
		return "", fmt.Errorf("amount: %w", err)
	}
	return code, nil
}
