package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/amirasaad/bankcards/pkg/idempotency"
)

// MemoryIdempotencyStore implements idempotency.Store in process memory.
// It is used for tests and single-instance development setups.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]idempotency.Record
	ttl     time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryIdempotencyStore creates an in-memory store keeping results for ttl.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	c := &MemoryIdempotencyStore{
		records: make(map[string]idempotency.Record),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	// Start cleanup goroutine
	go c.cleanup(5 * time.Minute)

	return c
}

// Has implements idempotency.Store.
func (c *MemoryIdempotencyStore) Has(_ context.Context, key string) (bool, error) {
	if err := idempotency.ValidateKey(key); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.live(key)
	return ok, nil
}

// Get implements idempotency.Store.
func (c *MemoryIdempotencyStore) Get(_ context.Context, key string, out any) (bool, error) {
	if err := idempotency.ValidateKey(key); err != nil {
		return false, err
	}
	c.mu.Lock()
	rec, ok := c.live(key)
	c.mu.Unlock()
	if !ok || rec.State != idempotency.StateDone {
		return false, nil
	}
	if err := json.Unmarshal(rec.Payload, out); err != nil {
		return false, err
	}
	return true, nil
}

// Put implements idempotency.Store.
func (c *MemoryIdempotencyStore) Put(_ context.Context, key, owner string, result any) error {
	if err := idempotency.ValidateKey(key); err != nil {
		return err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.records[key]; ok && !rec.Replaceable(owner, now) {
		return idempotency.ErrClaimLost
	}
	c.records[key] = idempotency.Record{
		State:     idempotency.StateDone,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}
	return nil
}

// Claim implements idempotency.Store.
func (c *MemoryIdempotencyStore) Claim(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if err := idempotency.ValidateKey(key); err != nil {
		return false, err
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.live(key); ok {
		return false, nil
	}
	c.records[key] = idempotency.Record{
		State:     idempotency.StatePending,
		Owner:     owner,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return true, nil
}

// Release implements idempotency.Store.
func (c *MemoryIdempotencyStore) Release(_ context.Context, key, owner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.records[key]; ok && rec.State == idempotency.StatePending && rec.Owner == owner {
		delete(c.records, key)
	}
	return nil
}

// Close stops the cleanup goroutine.
func (c *MemoryIdempotencyStore) Close() {
	c.once.Do(func() { close(c.stop) })
}

// live returns the record for key unless it expired. Callers hold c.mu.
func (c *MemoryIdempotencyStore) live(key string) (idempotency.Record, bool) {
	rec, ok := c.records[key]
	if !ok {
		return rec, false
	}
	if rec.Expired(c.now()) {
		delete(c.records, key)
		return rec, false
	}
	return rec, true
}

// cleanup removes expired records
func (c *MemoryIdempotencyStore) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for key, rec := range c.records {
				if rec.Expired(now) {
					delete(c.records, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
