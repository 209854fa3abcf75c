package transaction

import (
	"testing"

	"github.com/amirasaad/bankcards/pkg/currency"
	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransfer(t *testing.T) {
	tx, err := NewTransfer(1, 2, decimal.NewFromInt(50), currency.RUB)
	require.NoError(t, err)
	assert.Equal(t, TypeTransfer, tx.Type)
	assert.Equal(t, StatusSuccess, tx.Status)
	assert.Equal(t, uint64(1), tx.SourceCardID)
	require.NotNil(t, tx.TargetCardID)
	assert.Equal(t, uint64(2), *tx.TargetCardID)
	assert.NotEqual(t, uuid.Nil, tx.Reference)

	_, err = NewTransfer(1, 0, decimal.NewFromInt(50), currency.RUB)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNewCreditAndDebit(t *testing.T) {
	credit, err := NewCredit(1, decimal.NewFromInt(10), currency.USD)
	require.NoError(t, err)
	assert.Equal(t, TypeCredit, credit.Type)
	assert.Nil(t, credit.TargetCardID)

	debit, err := NewDebit(1, decimal.NewFromInt(10), currency.USD)
	require.NoError(t, err)
	assert.Equal(t, TypeDebit, debit.Type)

	_, err = NewDebit(1, decimal.Zero, currency.USD)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = NewCredit(0, decimal.NewFromInt(1), currency.USD)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
