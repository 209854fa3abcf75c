package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirasaad/bankcards/infra"
	"github.com/amirasaad/bankcards/pkg/currency"
	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/amirasaad/bankcards/pkg/domain/card"
	"github.com/amirasaad/bankcards/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type cardRepository struct {
	db     *gorm.DB
	cipher *NumberCipher
}

// NewCardRepository creates a card store over db.
func NewCardRepository(db *gorm.DB, cipher *NumberCipher) repository.CardRepository {
	return &cardRepository{db: db, cipher: cipher}
}

func (r *cardRepository) FindByNumber(ctx context.Context, number string) (*card.Card, error) {
	return r.find(r.db.WithContext(ctx), number)
}

// FindByNumberForUpdate takes a row lock on Postgres. SQLite serializes whole
// write transactions, which gives the same exclusion.
func (r *cardRepository) FindByNumberForUpdate(ctx context.Context, number string) (*card.Card, error) {
	q := r.db.WithContext(ctx)
	if infra.IsPostgres(r.db) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.find(q, number)
}

func (r *cardRepository) find(q *gorm.DB, number string) (*card.Card, error) {
	var m Card
	err := q.Where("number_hash = ?", r.cipher.Index(number)).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, MapGormErrorToDomain(err, domain.ErrCardAlreadyExists)
	}
	return r.toDomain(&m)
}

func (r *cardRepository) ListByCustomer(
	ctx context.Context,
	customerID uint64,
	status *card.Status,
	page repository.PageRequest,
) (repository.Page[*card.Card], error) {
	q := r.db.WithContext(ctx).Model(&Card{}).Where("customer_id = ?", customerID)
	if status != nil {
		q = q.Where("status = ?", string(*status))
	}
	return r.list(q, page)
}

func (r *cardRepository) ListAll(ctx context.Context, page repository.PageRequest) (repository.Page[*card.Card], error) {
	return r.list(r.db.WithContext(ctx).Model(&Card{}), page)
}

func (r *cardRepository) list(q *gorm.DB, page repository.PageRequest) (repository.Page[*card.Card], error) {
	page = page.Normalize()
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return repository.Page[*card.Card]{}, err
	}
	var models []Card
	err := q.Order("created_at asc, id asc").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&models).Error
	if err != nil {
		return repository.Page[*card.Card]{}, err
	}
	cards := make([]*card.Card, 0, len(models))
	for i := range models {
		c, err := r.toDomain(&models[i])
		if err != nil {
			return repository.Page[*card.Card]{}, err
		}
		cards = append(cards, c)
	}
	return repository.NewPage(cards, page, total), nil
}

func (r *cardRepository) Create(ctx context.Context, c *card.Card) error {
	m, err := r.toModel(c)
	if err != nil {
		return err
	}
	err = WrapError(domain.ErrCardAlreadyExists, func() error {
		return r.db.WithContext(ctx).Create(m).Error
	})
	if err != nil {
		return err
	}
	c.ID = m.ID
	return nil
}

func (r *cardRepository) Save(ctx context.Context, c *card.Card) error {
	m, err := r.toModel(c)
	if err != nil {
		return err
	}
	return WrapError(domain.ErrCardAlreadyExists, func() error {
		res := r.db.WithContext(ctx).Model(&Card{}).Where("id = ?", c.ID).Updates(map[string]any{
			"number_encrypted": m.NumberEncrypted,
			"number_hash":      m.NumberHash,
			"last_four":        m.LastFour,
			"expiry_date":      m.ExpiryDate,
			"status":           m.Status,
			"balance":          m.Balance,
			"currency":         m.Currency,
			"updated_at":       m.UpdatedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrCardNotFound
		}
		return nil
	})
}

// Delete removes the card, the transactions it is the source of, and clears
// references to it as a transfer target.
func (r *cardRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_card_id = ?", id).Delete(&Transaction{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&Transaction{}).
			Where("target_card_id = ?", id).
			Update("target_card_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&Card{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrCardNotFound
		}
		return nil
	})
}

func (r *cardRepository) ExpireBefore(ctx context.Context, date time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Card{}).
		Where("expiry_date < ? AND status <> ?", date.UTC(), string(card.StatusExpired)).
		Updates(map[string]any{
			"status":     string(card.StatusExpired),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *cardRepository) toModel(c *card.Card) (*Card, error) {
	enc, err := r.cipher.Encrypt(c.Number)
	if err != nil {
		return nil, err
	}
	return &Card{
		ID:              c.ID,
		NumberEncrypted: enc,
		NumberHash:      r.cipher.Index(c.Number),
		LastFour:        card.LastFour(c.Number),
		CustomerID:      c.CustomerID,
		ExpiryDate:      c.ExpiryDate.UTC(),
		Status:          string(c.Status),
		Balance:         c.Balance,
		Currency:        string(c.Currency),
		CreatedAt:       c.CreatedAt.UTC(),
		UpdatedAt:       c.UpdatedAt.UTC(),
	}, nil
}

func (r *cardRepository) toDomain(m *Card) (*card.Card, error) {
	number, err := r.cipher.Decrypt(m.NumberEncrypted)
	if err != nil {
		return nil, fmt.Errorf("card %d: %w", m.ID, err)
	}
	return card.New().
		WithID(m.ID).
		WithNumber(number).
		WithCustomerID(m.CustomerID).
		WithExpiryDate(m.ExpiryDate.UTC()).
		WithStatus(card.Status(m.Status)).
		WithBalance(m.Balance).
		WithCurrency(currency.Code(m.Currency)).
		WithCreatedAt(m.CreatedAt.UTC()).
		WithUpdatedAt(m.UpdatedAt.UTC()).
		Build()
}
