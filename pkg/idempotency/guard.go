package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Guard runs operations at most once per idempotency key.
type Guard struct {
	store    Store
	claimTTL time.Duration
	inflight singleflight.Group
	logger   *slog.Logger
}

// NewGuard creates a Guard over store. A zero claimTTL uses DefaultClaimTTL.
func NewGuard(store Store, claimTTL time.Duration, logger *slog.Logger) *Guard {
	if claimTTL <= 0 {
		claimTTL = DefaultClaimTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{store: store, claimTTL: claimTTL, logger: logger}
}

// Execute returns the stored result for (operation, key) if there is one.
// Otherwise it claims the key, runs fn and stores its result. A failing fn
// releases the claim and nothing is stored, so a retry runs fn again.
//
// Concurrent calls for the same key in this process share one execution.
// A call that finds the key claimed by another process fails with
// domain.ErrRequestInProgress. fn runs detached from the cancellation of any
// single caller and is bounded by the claim TTL, so the claim never expires
// while fn is still running.
func Execute[T any](
	ctx context.Context,
	g *Guard,
	operation, key string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	if err := ValidateKey(key); err != nil {
		return zero, err
	}
	stored := Key(operation, key)
	log := g.logger.With("operation", operation, "idempotency_key", key)

	ch := g.inflight.DoChan(stored, func() (any, error) {
		return run(context.WithoutCancel(ctx), g, stored, log, fn)
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Shared {
			log.Debug("🔁 [SHARED] Result shared with concurrent request")
		}
		return res.Val.(T), nil
	}
}

func run[T any](
	ctx context.Context,
	g *Guard,
	stored string,
	log *slog.Logger,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T

	var cached T
	hit, err := g.store.Get(ctx, stored, &cached)
	if err != nil {
		return zero, fmt.Errorf("idempotency lookup: %w", err)
	}
	if hit {
		log.Info("🔁 [SKIP] Returning stored result")
		return cached, nil
	}

	owner := uuid.NewString()
	deadline := time.Now().Add(g.claimTTL)
	claimed, err := g.store.Claim(ctx, stored, owner, g.claimTTL)
	if err != nil {
		return zero, fmt.Errorf("idempotency claim: %w", err)
	}
	if !claimed {
		// The other claimant may have finished between Get and Claim.
		if hit, err = g.store.Get(ctx, stored, &cached); err != nil {
			return zero, fmt.Errorf("idempotency lookup: %w", err)
		}
		if hit {
			log.Info("🔁 [SKIP] Returning stored result")
			return cached, nil
		}
		log.Warn("Idempotency key is claimed by another request")
		return zero, domain.ErrRequestInProgress
	}

	fnCtx, cancel := context.WithDeadline(ctx, deadline)
	result, err := fn(fnCtx)
	expired := errors.Is(fnCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		if expired && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: claim expired: %w", domain.ErrLockTimeout, err)
		}
		if relErr := g.store.Release(ctx, stored, owner); relErr != nil {
			log.Error("Failed to release idempotency claim", "error", relErr)
		}
		return zero, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		log.Error("Failed to encode result", "error", err)
		return result, nil
	}
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		log.Error("Failed to decode result", "error", err)
		out = result
	}
	// The operation already committed, so a failed write is logged rather than
	// returned. The claim stays until it expires.
	if err := g.store.Put(ctx, stored, owner, json.RawMessage(payload)); err != nil {
		log.Error("Failed to store idempotent result", "error", err)
	}
	return out, nil
}
