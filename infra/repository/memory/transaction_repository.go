package memory

import (
	"context"
	"slices"

	"github.com/amirasaad/bankcards/pkg/domain/transaction"
	"github.com/amirasaad/bankcards/pkg/repository"
)

type transactionRepository struct {
	store *Store
	tx    *txState
}

func (r *transactionRepository) Append(
	_ context.Context,
	tx *transaction.Transaction,
) (*transaction.Transaction, error) {
	err := write(r.store, r.tx, func(t *txState) error {
		r.store.mu.Lock()
		r.store.nextTx++
		tx.ID = r.store.nextTx
		r.store.mu.Unlock()
		t.txs = append(t.txs, *cloneTransaction(*tx))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *transactionRepository) ListByCard(
	_ context.Context,
	cardID uint64,
	page repository.PageRequest,
) (repository.Page[*transaction.Transaction], error) {
	page = page.Normalize()

	r.store.mu.Lock()
	all := slices.Clone(r.store.txs)
	r.store.mu.Unlock()
	if r.tx != nil {
		all = append(all, r.tx.txs...)
	}

	var matched []*transaction.Transaction
	for _, tx := range all {
		if tx.SourceCardID == cardID || (tx.TargetCardID != nil && *tx.TargetCardID == cardID) {
			matched = append(matched, cloneTransaction(tx))
		}
	}
	slices.SortStableFunc(matched, func(a, b *transaction.Transaction) int {
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
	})

	total := int64(len(matched))
	start := min(page.Offset(), len(matched))
	end := min(start+page.Size, len(matched))
	return repository.NewPage(matched[start:end], page, total), nil
}
