// Package memory is an in-process implementation of the repository contracts.
// Writes made inside UoW.Do are staged and applied atomically when fn
// succeeds; row locks are per card and bounded by the store lock timeout.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/amirasaad/bankcards/pkg/domain/card"
	"github.com/amirasaad/bankcards/pkg/domain/customer"
	"github.com/amirasaad/bankcards/pkg/domain/transaction"
)

// DefaultLockTimeout is used when NewStore gets a non-positive timeout.
const DefaultLockTimeout = 5 * time.Second

// Store holds committed state shared by every UoW created over it.
type Store struct {
	mu          sync.Mutex
	cards       map[uint64]card.Card
	numbers     map[string]uint64
	txs         []transaction.Transaction
	customers   map[uint64]customer.Customer
	emails      map[string]uint64
	nextCard    uint64
	nextTx      uint64
	nextCust    uint64
	locks       map[uint64]chan struct{}
	lockTimeout time.Duration
}

// NewStore creates an empty store.
func NewStore(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{
		cards:       make(map[uint64]card.Card),
		numbers:     make(map[string]uint64),
		customers:   make(map[uint64]customer.Customer),
		emails:      make(map[string]uint64),
		locks:       make(map[uint64]chan struct{}),
		lockTimeout: lockTimeout,
	}
}

// txState is the write set of one unit of work.
type txState struct {
	cards     map[uint64]card.Card
	deleted   map[uint64]bool
	txs       []transaction.Transaction
	customers map[uint64]customer.Customer
	held      []uint64
}

func newTxState() *txState {
	return &txState{
		cards:     make(map[uint64]card.Card),
		deleted:   make(map[uint64]bool),
		customers: make(map[uint64]customer.Customer),
	}
}

func (t *txState) holds(id uint64) bool {
	return slices.Contains(t.held, id)
}

// lock waits for the row lock of card id.
func (s *Store) lock(ctx context.Context, id uint64) error {
	s.mu.Lock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	s.mu.Unlock()

	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return nil
	case <-timer.C:
		return domain.ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) unlock(ids []uint64) {
	for _, id := range ids {
		s.mu.Lock()
		ch := s.locks[id]
		s.mu.Unlock()
		<-ch
	}
}

// commit applies t to the committed state, or changes nothing when a
// uniqueness check fails.
func (s *Store) commit(t *txState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range t.cards {
		if owner, ok := s.numbers[c.Number]; ok && owner != id && !t.deleted[owner] {
			if staged, moved := t.cards[owner]; !moved || staged.Number == c.Number {
				return domain.ErrCardAlreadyExists
			}
		}
	}
	for id, c := range t.customers {
		if owner, ok := s.emails[c.Email]; ok && owner != id {
			return domain.ErrCustomerAlreadyExists
		}
	}

	for id := range t.cards {
		if old, ok := s.cards[id]; ok && s.numbers[old.Number] == id {
			delete(s.numbers, old.Number)
		}
	}
	for id, c := range t.cards {
		s.cards[id] = c
		s.numbers[c.Number] = id
	}
	for id, c := range t.customers {
		s.customers[id] = c
		s.emails[c.Email] = id
	}
	s.txs = append(s.txs, t.txs...)

	for id := range t.deleted {
		if c, ok := s.cards[id]; ok {
			if s.numbers[c.Number] == id {
				delete(s.numbers, c.Number)
			}
			delete(s.cards, id)
		}
		kept := s.txs[:0]
		for _, tx := range s.txs {
			if tx.SourceCardID == id {
				continue
			}
			if tx.TargetCardID != nil && *tx.TargetCardID == id {
				tx.TargetCardID = nil
			}
			kept = append(kept, tx)
		}
		s.txs = kept
	}
	return nil
}

// visibleCards returns committed cards overlaid with t's staged writes.
// Callers hold s.mu.
func (s *Store) visibleCards(t *txState) map[uint64]card.Card {
	out := make(map[uint64]card.Card, len(s.cards))
	for id, c := range s.cards {
		out[id] = c
	}
	if t == nil {
		return out
	}
	for id, c := range t.cards {
		out[id] = c
	}
	for id := range t.deleted {
		delete(out, id)
	}
	return out
}

// cardIDByNumber resolves number in the view of t. Callers hold s.mu.
func (s *Store) cardIDByNumber(t *txState, number string) (uint64, bool) {
	if t != nil {
		for id, c := range t.cards {
			if c.Number == number && !t.deleted[id] {
				return id, true
			}
		}
	}
	id, ok := s.numbers[number]
	if !ok {
		return 0, false
	}
	if t != nil {
		if t.deleted[id] {
			return 0, false
		}
		if staged, ok := t.cards[id]; ok && staged.Number != number {
			return 0, false
		}
	}
	return id, true
}

func cloneCustomer(c customer.Customer) *customer.Customer {
	c.Roles = slices.Clone(c.Roles)
	return &c
}

func cloneTransaction(tx transaction.Transaction) *transaction.Transaction {
	if tx.TargetCardID != nil {
		target := *tx.TargetCardID
		tx.TargetCardID = &target
	}
	return &tx
}
