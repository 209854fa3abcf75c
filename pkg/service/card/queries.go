package card

import (
	"context"

	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/amirasaad/bankcards/pkg/domain/card"
	"github.com/amirasaad/bankcards/pkg/domain/transaction"
	"github.com/amirasaad/bankcards/pkg/repository"
)

// GetCard returns the caller's card with number.
func (s *Service) GetCard(ctx context.Context, number, callerEmail string) (view CardView, err error) {
	if err = card.ValidateNumber(number); err != nil {
		return CardView{}, err
	}
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		r, err := reposOf(uow)
		if err != nil {
			return err
		}
		c, err := findCard(ctx, r, number)
		if err != nil {
			return err
		}
		owner, err := authorize(ctx, r, c, callerEmail)
		if err != nil {
			return err
		}
		view = newCardView(c, owner.Name)
		return nil
	})
	return view, err
}

// ListCards pages through the caller's cards, optionally filtered by status.
func (s *Service) ListCards(
	ctx context.Context,
	callerEmail string,
	status *card.Status,
	page repository.PageRequest,
) (repository.Page[CardView], error) {
	var out repository.Page[CardView]
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		r, err := reposOf(uow)
		if err != nil {
			return err
		}
		caller, err := r.customers.FindByEmail(ctx, callerEmail)
		if err != nil {
			return err
		}
		if caller == nil {
			return domain.ErrCustomerNotFound
		}
		cards, err := r.cards.ListByCustomer(ctx, caller.ID, status, page)
		if err != nil {
			return err
		}
		out = repository.MapPage(cards, func(c *card.Card) CardView {
			return newCardView(c, caller.Name)
		})
		return nil
	})
	if err != nil {
		s.logger.Error("ListCards failed", "caller", callerEmail, "error", err)
	}
	return out, err
}

// ListTransactions pages through the transactions of the caller's card.
func (s *Service) ListTransactions(
	ctx context.Context,
	number, callerEmail string,
	page repository.PageRequest,
) (repository.Page[TransactionView], error) {
	if err := card.ValidateNumber(number); err != nil {
		return repository.Page[TransactionView]{}, err
	}
	var out repository.Page[TransactionView]
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		r, err := reposOf(uow)
		if err != nil {
			return err
		}
		c, err := findCard(ctx, r, number)
		if err != nil {
			return err
		}
		if _, err := authorize(ctx, r, c, callerEmail); err != nil {
			return err
		}
		out, err = listTransactions(ctx, r, c, page)
		return err
	})
	return out, err
}

func listTransactions(
	ctx context.Context,
	r repos,
	c *card.Card,
	page repository.PageRequest,
) (repository.Page[TransactionView], error) {
	txs, err := r.txs.ListByCard(ctx, c.ID, page)
	if err != nil {
		return repository.Page[TransactionView]{}, err
	}
	return repository.MapPage(txs, func(tx *transaction.Transaction) TransactionView {
		return newTransactionView(tx)
	}), nil
}
