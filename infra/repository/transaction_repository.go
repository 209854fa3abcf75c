package repository

import (
	"context"
	"fmt"

	"github.com/amirasaad/bankcards/pkg/currency"
	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/amirasaad/bankcards/pkg/domain/transaction"
	"github.com/amirasaad/bankcards/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates the transaction log over db.
func NewTransactionRepository(db *gorm.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Append(
	ctx context.Context,
	tx *transaction.Transaction,
) (*transaction.Transaction, error) {
	m := Transaction{
		Reference:    tx.Reference.String(),
		Amount:       tx.Amount,
		Currency:     string(tx.Currency),
		Type:         string(tx.Type),
		Status:       string(tx.Status),
		SourceCardID: tx.SourceCardID,
		TargetCardID: tx.TargetCardID,
		CreatedAt:    tx.CreatedAt.UTC(),
	}
	err := WrapError(domain.ErrValidation, func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
	if err != nil {
		return nil, err
	}
	tx.ID = m.ID
	return tx, nil
}

func (r *transactionRepository) ListByCard(
	ctx context.Context,
	cardID uint64,
	page repository.PageRequest,
) (repository.Page[*transaction.Transaction], error) {
	page = page.Normalize()
	q := r.db.WithContext(ctx).Model(&Transaction{}).
		Where("source_card_id = ? OR target_card_id = ?", cardID, cardID).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return repository.Page[*transaction.Transaction]{}, err
	}
	var models []Transaction
	err := q.Order("created_at asc, id asc").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&models).Error
	if err != nil {
		return repository.Page[*transaction.Transaction]{}, err
	}
	txs := make([]*transaction.Transaction, 0, len(models))
	for i := range models {
		tx, err := mapTransactionToDomain(&models[i])
		if err != nil {
			return repository.Page[*transaction.Transaction]{}, err
		}
		txs = append(txs, tx)
	}
	return repository.NewPage(txs, page, total), nil
}

func mapTransactionToDomain(m *Transaction) (*transaction.Transaction, error) {
	ref, err := uuid.Parse(m.Reference)
	if err != nil {
		return nil, fmt.Errorf("transaction %d: invalid reference %q: %w", m.ID, m.Reference, err)
	}
	return &transaction.Transaction{
		ID:           m.ID,
		Reference:    ref,
		Amount:       currency.Round(m.Amount, currency.Code(m.Currency)),
		Currency:     currency.Code(m.Currency),
		Type:         transaction.Type(m.Type),
		Status:       transaction.Status(m.Status),
		SourceCardID: m.SourceCardID,
		TargetCardID: m.TargetCardID,
		CreatedAt:    m.CreatedAt.UTC(),
	}, nil
}
