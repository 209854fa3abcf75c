// Package idempotency deduplicates retried client requests.
//
// A Store keeps one record per key for a fixed TTL. Guard drives the
// claim-check-execute-store protocol on top of it: the first request for a key
// atomically claims it, runs the operation and stores the result; later
// requests with the same key get the stored result back without running the
// operation again.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirasaad/bankcards/pkg/domain"
)

const (
	// DefaultTTL is how long a completed result is kept.
	DefaultTTL = time.Hour
	// DefaultClaimTTL bounds how long an unfinished claim blocks a key.
	DefaultClaimTTL = 30 * time.Second
	// MaxKeyLength is the longest client key accepted.
	MaxKeyLength = 255
)

// ErrClaimLost is returned by Put when the key no longer holds the caller's
// claim.
var ErrClaimLost = errors.New("idempotency claim lost")

// State is the lifecycle of a stored record.
type State string

const (
	// StatePending marks a key claimed by a request that has not finished.
	StatePending State = "pending"
	// StateDone marks a key whose result is stored.
	StateDone State = "done"
)

// Record is what a Store keeps under a key.
type Record struct {
	State     State           `json:"state"`
	Owner     string          `json:"owner,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at now.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Store is a time-bounded key to result store.
type Store interface {
	// Has reports whether a live record (pending or done) exists for key.
	Has(ctx context.Context, key string) (bool, error)
	// Get decodes the stored result for key into out. It reports false when
	// the key is absent, expired or still pending.
	Get(ctx context.Context, key string, out any) (bool, error)
	// Put stores result under key with the store TTL. It replaces the claim
	// held by owner, or writes a fresh record when the claim has expired.
	// A key held by another owner or already done yields ErrClaimLost.
	Put(ctx context.Context, key, owner string, result any) error
	// Claim atomically marks key as pending for ttl on behalf of owner. Only
	// the first caller for a key that has no live record gets true.
	Claim(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Release drops the pending claim of owner so the key can be retried.
	// Completed records and claims of other owners are left alone.
	Release(ctx context.Context, key, owner string) error
}

// Replaceable reports whether owner may overwrite rec with a result.
func (r Record) Replaceable(owner string, now time.Time) bool {
	if r.Expired(now) {
		return true
	}
	return r.State == StatePending && r.Owner == owner
}

// ValidateKey rejects blank or oversized client keys.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return domain.ErrInvalidIdempotencyKey
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: key longer than %d characters", domain.ErrInvalidIdempotencyKey, MaxKeyLength)
	}
	return nil
}

// Key namespaces a client key by operation so the same client key used for
// two different operations never collides.
func Key(operation, key string) string {
	return operation + ":" + strings.TrimSpace(key)
}
