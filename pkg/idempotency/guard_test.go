package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapStore is a minimal Store. Claims expire; results do not.
type mapStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func newMapStore() *mapStore {
	return &mapStore{records: map[string]Record{}}
}

// live returns the unexpired record for key. Callers hold m.mu.
func (m *mapStore) live(key string) (Record, bool) {
	rec, ok := m.records[key]
	if ok && rec.Expired(time.Now()) {
		delete(m.records, key)
		return rec, false
	}
	return rec, ok
}

func (m *mapStore) Has(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok, nil
}

func (m *mapStore) Get(_ context.Context, key string, out any) (bool, error) {
	m.mu.Lock()
	rec, ok := m.live(key)
	m.mu.Unlock()
	if !ok || rec.State != StateDone {
		return false, nil
	}
	return true, json.Unmarshal(rec.Payload, out)
}

func (m *mapStore) Put(_ context.Context, key, owner string, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[key]; ok && !rec.Replaceable(owner, time.Now()) {
		return ErrClaimLost
	}
	m.records[key] = Record{State: StateDone, Payload: payload}
	return nil
}

func (m *mapStore) Claim(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.records[key] = Record{State: StatePending, Owner: owner, ExpiresAt: time.Now().Add(ttl)}
	return true, nil
}

func (m *mapStore) Release(_ context.Context, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[key]; ok && rec.State == StatePending && rec.Owner == owner {
		delete(m.records, key)
	}
	return nil
}

type receipt struct {
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
}

func TestExecute_BlankKey(t *testing.T) {
	g := NewGuard(newMapStore(), 0, nil)
	calls := 0
	_, err := Execute(context.Background(), g, "withdraw", "   ", func(context.Context) (receipt, error) {
		calls++
		return receipt{}, nil
	})
	assert.ErrorIs(t, err, domain.ErrInvalidIdempotencyKey)
	assert.Zero(t, calls)
}

func TestExecute_ReplaysStoredResult(t *testing.T) {
	g := NewGuard(newMapStore(), 0, nil)
	ctx := context.Background()
	calls := 0
	fn := func(context.Context) (receipt, error) {
		calls++
		return receipt{Reference: "r1", Amount: "100.00"}, nil
	}

	first, err := Execute(ctx, g, "replenish", "k1", fn)
	require.NoError(t, err)
	second, err := Execute(ctx, g, "replenish", "k1", fn)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestExecute_KeysAreScopedByOperation(t *testing.T) {
	g := NewGuard(newMapStore(), 0, nil)
	ctx := context.Background()
	calls := 0
	fn := func(context.Context) (receipt, error) {
		calls++
		return receipt{}, nil
	}

	_, err := Execute(ctx, g, "withdraw", "same", fn)
	require.NoError(t, err)
	_, err = Execute(ctx, g, "replenish", "same", fn)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestExecute_FailureIsNotStored(t *testing.T) {
	store := newMapStore()
	g := NewGuard(store, 0, nil)
	ctx := context.Background()

	_, err := Execute(ctx, g, "withdraw", "k", func(context.Context) (receipt, error) {
		return receipt{}, domain.ErrInsufficientFunds
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	has, err := store.Has(ctx, Key("withdraw", "k"))
	require.NoError(t, err)
	assert.False(t, has, "failed attempt must release its claim")

	got, err := Execute(ctx, g, "withdraw", "k", func(context.Context) (receipt, error) {
		return receipt{Reference: "retry"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "retry", got.Reference)
}

func TestExecute_ClaimedElsewhere(t *testing.T) {
	store := newMapStore()
	g := NewGuard(store, 0, nil)
	ctx := context.Background()

	ok, err := store.Claim(ctx, Key("transfer", "k"), "other", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	calls := 0
	_, err = Execute(ctx, g, "transfer", "k", func(context.Context) (receipt, error) {
		calls++
		return receipt{}, nil
	})
	assert.ErrorIs(t, err, domain.ErrRequestInProgress)
	assert.True(t, domain.IsRetryable(err))
	assert.Zero(t, calls)
}

func TestExecute_ConcurrentSameKeyRunsOnce(t *testing.T) {
	g := NewGuard(newMapStore(), 0, nil)
	ctx := context.Background()
	var calls atomic.Int32

	const n = 16
	results := make([]receipt, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = Execute(ctx, g, "transfer", "dup", func(context.Context) (receipt, error) {
				calls.Add(1)
				time.Sleep(20 * time.Millisecond)
				return receipt{Reference: "only-once"}, nil
			})
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "only-once", results[i].Reference)
	}
}

func TestExecute_StoreErrorSurfaces(t *testing.T) {
	g := NewGuard(failingStore{newMapStore()}, 0, nil)
	_, err := Execute(context.Background(), g, "withdraw", "k", func(context.Context) (receipt, error) {
		return receipt{}, nil
	})
	assert.Error(t, err)
}

func TestExecute_ClaimOutlivesOperation(t *testing.T) {
	store := newMapStore()
	first := NewGuard(store, 50*time.Millisecond, nil)
	second := NewGuard(store, 50*time.Millisecond, nil)
	ctx := context.Background()

	var committed atomic.Int32
	slow := func(ctx context.Context) (receipt, error) {
		select {
		case <-time.After(150 * time.Millisecond):
			committed.Add(1)
			return receipt{Reference: "slow"}, nil
		case <-ctx.Done():
			return receipt{}, ctx.Err()
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := Execute(ctx, first, "transfer", "k", slow)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := Execute(ctx, second, "transfer", "k", slow)
	assert.ErrorIs(t, err, domain.ErrRequestInProgress)

	err = <-done
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.Zero(t, committed.Load(), "operation must stop when its claim expires")

	got, err := Execute(ctx, second, "transfer", "k", func(context.Context) (receipt, error) {
		committed.Add(1)
		return receipt{Reference: "retry"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "retry", got.Reference)
	assert.Equal(t, int32(1), committed.Load())
}

func TestExecute_CallerCancelDoesNotFailOthers(t *testing.T) {
	g := NewGuard(newMapStore(), time.Second, nil)
	var calls atomic.Int32
	started := make(chan struct{})
	finish := make(chan struct{})
	fn := func(context.Context) (receipt, error) {
		calls.Add(1)
		close(started)
		<-finish
		return receipt{Reference: "shared"}, nil
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := Execute(cancelCtx, g, "withdraw", "k", fn)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		r   receipt
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		r, err := Execute(context.Background(), g, "withdraw", "k", fn)
		second <- outcome{r, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(finish)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "shared", got.r.Reference)
	assert.Equal(t, int32(1), calls.Load())
}

type failingStore struct{ *mapStore }

func (failingStore) Get(context.Context, string, any) (bool, error) {
	return false, errors.New("store down")
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey("abc"))
	assert.ErrorIs(t, ValidateKey(""), domain.ErrInvalidIdempotencyKey)
	long := make([]byte, MaxKeyLength+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, ValidateKey(string(long)), domain.ErrInvalidIdempotencyKey)
	assert.Equal(t, "transfer:abc", Key("transfer", " abc "))
}
