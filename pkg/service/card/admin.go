package card

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirasaad/bankcards/pkg/commands"
	"github.com/amirasaad/bankcards/pkg/currency"
	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/amirasaad/bankcards/pkg/domain/card"
	"github.com/amirasaad/bankcards/pkg/idempotency"
	"github.com/amirasaad/bankcards/pkg/repository"
)

// maxNumberAttempts bounds retries when a generated number is already taken.
const maxNumberAttempts = 5

// CreateCard issues a card with zero balance to the customer with
// cmd.OwnerEmail.
func (s *Service) CreateCard(ctx context.Context, key string, cmd commands.CreateCard) (CardView, error) {
	logger := s.logger.With("owner", cmd.OwnerEmail, "idempotency_key", key)
	logger.Info("CreateCard started")

	if err := idempotency.ValidateKey(key); err != nil {
		return CardView{}, err
	}
	if err := commands.Validate(cmd); err != nil {
		logger.Warn("CreateCard failed: invalid command", "error", err)
		return CardView{}, err
	}
	code := s.cfg.DefaultCurrency
	if cmd.Currency != "" {
		var err error
		if code, err = parseCurrency(cmd.Currency); err != nil {
			return CardView{}, err
		}
	}
	if err := card.ValidateExpiry(cmd.ExpiryDate, s.now()); err != nil {
		return CardView{}, err
	}

	view, err := idempotency.Execute(ctx, s.guard, OpCreateCard, key, func(ctx context.Context) (CardView, error) {
		number := cmd.Number
		for attempt := 0; ; attempt++ {
			if number == "" {
				var err error
				if number, err = card.GenerateNumber(s.cfg.NumberPrefix); err != nil {
					return CardView{}, err
				}
			}
			view, err := s.createCard(ctx, number, code, cmd)
			// A generated number may collide; draw another one.
			if errors.Is(err, domain.ErrCardAlreadyExists) && cmd.Number == "" && attempt < maxNumberAttempts {
				number = ""
				continue
			}
			return view, err
		}
	})
	if err != nil {
		logger.Error("CreateCard failed", "error", err)
		return CardView{}, err
	}
	logger.Info("CreateCard successful", "card", view.CardNumber)
	return view, nil
}

func (s *Service) createCard(
	ctx context.Context,
	number string,
	code currency.Code,
	cmd commands.CreateCard,
) (view CardView, err error) {
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		r, err := reposOf(uow)
		if err != nil {
			return err
		}
		existing, err := r.cards.FindByNumber(ctx, number)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrCardAlreadyExists
		}
		owner, err := r.customers.FindByEmail(ctx, cmd.OwnerEmail)
		if err != nil {
			return err
		}
		if owner == nil {
			return domain.ErrCustomerNotFound
		}
		c, err := card.New().
			WithNumber(number).
			WithCustomerID(owner.ID).
			WithExpiryDate(cmd.ExpiryDate.UTC()).
			WithCurrency(code).
			Build()
		if err != nil {
			return err
		}
		if err := r.cards.Create(ctx, c); err != nil {
			return err
		}
		view = newCardView(c, owner.Name)
		return nil
	})
	return view, err
}

// UpdateCard replaces the number and expiry date of a card. It is not
// idempotency gated: applying the same update twice yields the same state.
func (s *Service) UpdateCard(ctx context.Context, cmd commands.UpdateCard) (view CardView, err error) {
	logger := s.logger.With("card", card.Mask(cmd.Number))
	logger.Info("UpdateCard started")

	if err = commands.Validate(cmd); err != nil {
		logger.Warn("UpdateCard failed: invalid command", "error", err)
		return CardView{}, err
	}
	if err = card.ValidateExpiry(cmd.NewExpiry, s.now()); err != nil {
		return CardView{}, err
	}

	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		r, err := reposOf(uow)
		if err != nil {
			return err
		}
		c, err := lockCard(ctx, r, cmd.Number)
		if err != nil {
			return err
		}
		if cmd.NewNumber != cmd.Number {
			other, err := r.cards.FindByNumber(ctx, cmd.NewNumber)
			if err != nil {
				return err
			}
			if other != nil && other.ID != c.ID {
				return domain.ErrCardAlreadyExists
			}
		}
		if err := c.Reissue(cmd.NewNumber, cmd.NewExpiry.UTC()); err != nil {
			return err
		}
		if err := r.cards.Save(ctx, c); err != nil {
			return err
		}
		holder, err := holderName(ctx, r, c)
		if err != nil {
			return err
		}
		view = newCardView(c, holder)
		return nil
	})
	if err != nil {
		logger.Error("UpdateCard failed", "error", err)
		return CardView{}, err
	}
	logger.Info("UpdateCard successful", "new_card", view.CardNumber)
	return view, nil
}

// BlockCard sets the card to BLOCKED regardless of its current status.
func (s *Service) BlockCard(ctx context.Context, key, number string) (string, error) {
	return s.setStatus(ctx, "BlockCard", OpBlockCard, key, number, MsgCardBlocked, (*card.Card).Block)
}

// ActivateCard sets the card to ACTIVE regardless of its current status.
func (s *Service) ActivateCard(ctx context.Context, key, number string) (string, error) {
	return s.setStatus(ctx, "ActivateCard", OpActivateCard, key, number, MsgCardActivated, (*card.Card).Activate)
}

func (s *Service) setStatus(
	ctx context.Context,
	name, op, key, number, msg string,
	apply func(*card.Card),
) (string, error) {
	logger := s.logger.With("card", card.Mask(number), "idempotency_key", key)
	logger.Info(name + " started")

	if err := idempotency.ValidateKey(key); err != nil {
		return "", err
	}
	if err := card.ValidateNumber(number); err != nil {
		return "", err
	}

	result, err := idempotency.Execute(ctx, s.guard, op, key, func(ctx context.Context) (string, error) {
		err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			r, err := reposOf(uow)
			if err != nil {
				return err
			}
			c, err := lockCard(ctx, r, number)
			if err != nil {
				return err
			}
			apply(c)
			return r.cards.Save(ctx, c)
		})
		if err != nil {
			return "", err
		}
		return msg, nil
	})
	if err != nil {
		logger.Error(name+" failed", "error", err)
		return "", err
	}
	logger.Info(name + " successful")
	return result, nil
}

// DeleteCard removes a card and the transactions it is the source of.
func (s *Service) DeleteCard(ctx context.Context, key, number string) (string, error) {
	logger := s.logger.With("card", card.Mask(number), "idempotency_key", key)
	logger.Info("DeleteCard started")

	if err := idempotency.ValidateKey(key); err != nil {
		return "", err
	}
	if err := card.ValidateNumber(number); err != nil {
		return "", err
	}

	result, err := idempotency.Execute(ctx, s.guard, OpDeleteCard, key, func(ctx context.Context) (string, error) {
		err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
			r, err := reposOf(uow)
			if err != nil {
				return err
			}
			c, err := lockCard(ctx, r, number)
			if err != nil {
				return err
			}
			return r.cards.Delete(ctx, c.ID)
		})
		if err != nil {
			return "", err
		}
		return MsgCardDeleted, nil
	})
	if err != nil {
		logger.Error("DeleteCard failed", "error", err)
		return "", err
	}
	logger.Info("DeleteCard successful")
	return result, nil
}

// ListAllCards pages through every card in the system.
func (s *Service) ListAllCards(ctx context.Context, page repository.PageRequest) (repository.Page[CardView], error) {
	var out repository.Page[CardView]
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		r, err := reposOf(uow)
		if err != nil {
			return err
		}
		cards, err := r.cards.ListAll(ctx, page)
		if err != nil {
			return err
		}
		names := make(map[uint64]string)
		for _, c := range cards.Items {
			if _, ok := names[c.CustomerID]; ok {
				continue
			}
			if names[c.CustomerID], err = holderName(ctx, r, c); err != nil {
				return err
			}
		}
		out = repository.MapPage(cards, func(c *card.Card) CardView {
			return newCardView(c, names[c.CustomerID])
		})
		return nil
	})
	if err != nil {
		s.logger.Error("ListAllCards failed", "error", err)
	}
	return out, err
}

// CardTransactions pages through the transactions of any card.
func (s *Service) CardTransactions(
	ctx context.Context,
	number string,
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
		out, err = listTransactions(ctx, r, c, page)
		return err
	})
	return out, err
}

// ExpireCards marks every card whose expiry date is before now as EXPIRED.
func (s *Service) ExpireCards(ctx context.Context, now time.Time) (int64, error) {
	logger := s.logger.With("before", now.UTC().Format(time.RFC3339))
	logger.Info("ExpireCards started")
	var n int64
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		cards, err := uow.CardRepository()
		if err != nil {
			return err
		}
		n, err = cards.ExpireBefore(ctx, now.UTC())
		return err
	})
	if err != nil {
		logger.Error("ExpireCards failed", "error", err)
		return 0, fmt.Errorf("expire cards: %w", err)
	}
	logger.Info("ExpireCards successful", "expired", n)
	return n, nil
}
