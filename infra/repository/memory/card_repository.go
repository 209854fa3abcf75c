package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/amirasaad/bankcards/pkg/domain/card"
	"github.com/amirasaad/bankcards/pkg/repository"
)

type cardRepository struct {
	store *Store
	tx    *txState
}

func (r *cardRepository) FindByNumber(_ context.Context, number string) (*card.Card, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.get(number), nil
}

// get returns a copy of the card with number. Callers hold store.mu.
func (r *cardRepository) get(number string) *card.Card {
	id, ok := r.store.cardIDByNumber(r.tx, number)
	if !ok {
		return nil
	}
	c, ok := r.store.visibleCards(r.tx)[id]
	if !ok {
		return nil
	}
	return &c
}

func (r *cardRepository) FindByNumberForUpdate(ctx context.Context, number string) (*card.Card, error) {
	r.store.mu.Lock()
	id, ok := r.store.cardIDByNumber(r.tx, number)
	r.store.mu.Unlock()
	if !ok {
		return nil, nil
	}

	if r.tx != nil && !r.tx.holds(id) {
		if err := r.store.lock(ctx, id); err != nil {
			return nil, err
		}
		r.tx.held = append(r.tx.held, id)
	}

	// Reload: the card may have changed while waiting for the lock.
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.get(number), nil
}

func (r *cardRepository) ListByCustomer(
	_ context.Context,
	customerID uint64,
	status *card.Status,
	page repository.PageRequest,
) (repository.Page[*card.Card], error) {
	return r.list(page, func(c *card.Card) bool {
		return c.CustomerID == customerID && (status == nil || c.Status == *status)
	}), nil
}

func (r *cardRepository) ListAll(_ context.Context, page repository.PageRequest) (repository.Page[*card.Card], error) {
	return r.list(page, func(*card.Card) bool { return true }), nil
}

func (r *cardRepository) list(page repository.PageRequest, keep func(*card.Card) bool) repository.Page[*card.Card] {
	page = page.Normalize()
	r.store.mu.Lock()
	var matched []*card.Card
	for _, c := range r.store.visibleCards(r.tx) {
		if keep(&c) {
			matched = append(matched, &c)
		}
	}
	r.store.mu.Unlock()

	slices.SortFunc(matched, compareCards)
	total := int64(len(matched))
	start := min(page.Offset(), len(matched))
	end := min(start+page.Size, len(matched))
	return repository.NewPage(matched[start:end], page, total)
}

func compareCards(a, b *card.Card) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

func (r *cardRepository) Create(_ context.Context, c *card.Card) error {
	return write(r.store, r.tx, func(t *txState) error {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		if _, taken := r.store.cardIDByNumber(t, c.Number); taken {
			return domain.ErrCardAlreadyExists
		}
		r.store.nextCard++
		c.ID = r.store.nextCard
		t.cards[c.ID] = *c
		return nil
	})
}

func (r *cardRepository) Save(_ context.Context, c *card.Card) error {
	return write(r.store, r.tx, func(t *txState) error {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		if _, ok := r.store.visibleCards(t)[c.ID]; !ok {
			return domain.ErrCardNotFound
		}
		if owner, taken := r.store.cardIDByNumber(t, c.Number); taken && owner != c.ID {
			return domain.ErrCardAlreadyExists
		}
		t.cards[c.ID] = *c
		return nil
	})
}

func (r *cardRepository) Delete(_ context.Context, id uint64) error {
	return write(r.store, r.tx, func(t *txState) error {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		if _, ok := r.store.visibleCards(t)[id]; !ok {
			return domain.ErrCardNotFound
		}
		delete(t.cards, id)
		t.deleted[id] = true
		return nil
	})
}

// ExpireBefore takes the row lock of every matching card, in card number
// order, before staging the change.
func (r *cardRepository) ExpireBefore(ctx context.Context, date time.Time) (int64, error) {
	t := r.tx
	if t == nil {
		t = newTxState()
		defer func() { r.store.unlock(t.held) }()
	}
	expiring := func(c card.Card) bool {
		return c.Status != card.StatusExpired && c.ExpiryDate.Before(date)
	}

	r.store.mu.Lock()
	var due []card.Card
	for _, c := range r.store.visibleCards(t) {
		if expiring(c) {
			due = append(due, c)
		}
	}
	r.store.mu.Unlock()
	slices.SortFunc(due, func(a, b card.Card) int { return strings.Compare(a.Number, b.Number) })

	for _, c := range due {
		if t.holds(c.ID) {
			continue
		}
		if err := r.store.lock(ctx, c.ID); err != nil {
			return 0, err
		}
		t.held = append(t.held, c.ID)
	}

	var n int64
	r.store.mu.Lock()
	visible := r.store.visibleCards(t)
	for _, d := range due {
		// Reload: the card may have changed while waiting for the lock.
		c, ok := visible[d.ID]
		if !ok || !expiring(c) {
			continue
		}
		c.Expire()
		t.cards[c.ID] = c
		n++
	}
	r.store.mu.Unlock()

	if r.tx == nil {
		if err := r.store.commit(t); err != nil {
			return 0, err
		}
	}
	return n, nil
}
