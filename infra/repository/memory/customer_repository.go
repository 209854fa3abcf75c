package memory

import (
	"context"

	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/amirasaad/bankcards/pkg/domain/customer"
)

type customerRepository struct {
	store *Store
	tx    *txState
}

func (r *customerRepository) FindByEmail(_ context.Context, email string) (*customer.Customer, error) {
	email = customer.NormalizeEmail(email)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.tx != nil {
		for _, c := range r.tx.customers {
			if c.Email == email {
				return cloneCustomer(c), nil
			}
		}
	}
	id, ok := r.store.emails[email]
	if !ok {
		return nil, nil
	}
	return cloneCustomer(r.store.customers[id]), nil
}

func (r *customerRepository) FindByID(_ context.Context, id uint64) (*customer.Customer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.tx != nil {
		if c, ok := r.tx.customers[id]; ok {
			return cloneCustomer(c), nil
		}
	}
	c, ok := r.store.customers[id]
	if !ok {
		return nil, nil
	}
	return cloneCustomer(c), nil
}

func (r *customerRepository) Create(_ context.Context, c *customer.Customer) error {
	return write(r.store, r.tx, func(t *txState) error {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
		email := customer.NormalizeEmail(c.Email)
		if _, taken := r.store.emails[email]; taken {
			return domain.ErrCustomerAlreadyExists
		}
		for _, staged := range t.customers {
			if staged.Email == email {
				return domain.ErrCustomerAlreadyExists
			}
		}
		r.store.nextCust++
		c.ID = r.store.nextCust
		c.Email = email
		t.customers[c.ID] = *cloneCustomer(*c)
		return nil
	})
}
