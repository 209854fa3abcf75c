package repository

import (
	"context"
	"errors"

	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/amirasaad/bankcards/pkg/domain/customer"
	"github.com/amirasaad/bankcards/pkg/repository"
	"gorm.io/gorm"
)

type customerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository creates a customer repository over db.
func NewCustomerRepository(db *gorm.DB) repository.CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) FindByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	return r.findOne(r.db.WithContext(ctx).Where("email = ?", customer.NormalizeEmail(email)))
}

func (r *customerRepository) FindByID(ctx context.Context, id uint64) (*customer.Customer, error) {
	return r.findOne(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *customerRepository) findOne(q *gorm.DB) (*customer.Customer, error) {
	var m Customer
	err := q.Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer.Customer{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Name:         m.Name,
		Roles:        customer.ParseRoles(m.Roles),
		Enabled:      m.Enabled,
		CreatedAt:    m.CreatedAt.UTC(),
	}, nil
}

func (r *customerRepository) Create(ctx context.Context, c *customer.Customer) error {
	m := Customer{
		Email:        customer.NormalizeEmail(c.Email),
		PasswordHash: c.PasswordHash,
		Name:         c.Name,
		Roles:        customer.RolesString(c.Roles),
		Enabled:      c.Enabled,
		CreatedAt:    c.CreatedAt.UTC(),
	}
	err := WrapError(domain.ErrCustomerAlreadyExists, func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
	if err != nil {
		return err
	}
	c.ID = m.ID
	return nil
}
