// Package customer models registered users of the card service. The ledger
// only ever reads customers.
package customer

import (
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/amirasaad/bankcards/pkg/domain"
)

// Role grants access to a set of routes.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Customer is a registered user that owns zero or more cards.
type Customer struct {
	ID           uint64
	Email        string
	PasswordHash string
	Name         string
	Roles        []Role
	Enabled      bool
	CreatedAt    time.Time
}

// New validates and builds a customer with the given roles.
func New(email, passwordHash, name string, roles ...Role) (*Customer, error) {
	email = NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email %q", domain.ErrValidation, email)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if passwordHash == "" {
		return nil, fmt.Errorf("%w: password is required", domain.ErrValidation)
	}
	if len(roles) == 0 {
		roles = []Role{RoleUser}
	}
	return &Customer{
		Email:        email,
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(name),
		Roles:        roles,
		Enabled:      true,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// HasRole reports whether the customer holds role.
func (c *Customer) HasRole(role Role) bool {
	return slices.Contains(c.Roles, role)
}

// NormalizeEmail lower-cases and trims an email for comparison and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RolesString joins roles for storage.
func RolesString(roles []Role) string {
	parts := make([]string, 0, len(roles))
	for _, r := range roles {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ",")
}

// ParseRoles splits a stored role list.
func ParseRoles(s string) []Role {
	var roles []Role
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			roles = append(roles, Role(strings.ToUpper(p)))
		}
	}
	return roles
}
