package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"plain", ErrInsufficientFunds, KindInsufficientFunds},
		{"wrapped", fmt.Errorf("%w: 4000", ErrCardNotFound), KindCardNotFound},
		{"validation", fmt.Errorf("%w: amount must be positive", ErrValidation), KindValidation},
		{"foreign", errors.New("boom"), KindInternal},
		{"nil", nil, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("locking card: %w", ErrLockTimeout)))
	assert.True(t, IsRetryable(ErrRequestInProgress))
	assert.False(t, IsRetryable(ErrInsufficientFunds))
	assert.False(t, IsRetryable(nil))
}
