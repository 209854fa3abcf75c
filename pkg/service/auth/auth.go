// Package auth registers and authenticates customers and issues the JWTs the
// HTTP layer uses to identify callers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/bankcards/pkg/commands"
	"github.com/amirasaad/bankcards/pkg/config"
	"github.com/amirasaad/bankcards/pkg/domain"
	"github.com/amirasaad/bankcards/pkg/domain/customer"
	"github.com/amirasaad/bankcards/pkg/repository"
	"github.com/amirasaad/bankcards/pkg/utils"
	"github.com/golang-jwt/jwt/v5"
)

// dummyHash is compared against when the email is unknown so that a failed
// lookup costs as much as a wrong password.
const dummyHash = "$2a$10$7zFqzDbD3RrlkMTczbXG9OWZ0FLOXjIxXzSZ.QZxkVXjXcx7QZQiC"

// Service registers customers and issues tokens.
type Service struct {
	uow    repository.UnitOfWork
	cfg    *config.Jwt
	logger *slog.Logger
	now    func() time.Time
}

// New creates an auth Service signing tokens with cfg.
func New(uow repository.UnitOfWork, cfg *config.Jwt, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{uow: uow, cfg: cfg, logger: logger, now: time.Now}
}

// Register creates a customer with the USER role.
func (s *Service) Register(ctx context.Context, cmd commands.Register) (*customer.Customer, error) {
	return s.create(ctx, "Register", cmd, customer.RoleUser)
}

// CreateAdmin creates a customer holding both roles. It is used to bootstrap
// the first administrator from the command line.
func (s *Service) CreateAdmin(ctx context.Context, cmd commands.Register) (*customer.Customer, error) {
	return s.create(ctx, "CreateAdmin", cmd, customer.RoleUser, customer.RoleAdmin)
}

func (s *Service) create(
	ctx context.Context,
	name string,
	cmd commands.Register,
	roles ...customer.Role,
) (c *customer.Customer, err error) {
	log := s.logger.With("email", cmd.Email)
	log.Info(name + " started")

	if err = commands.Validate(cmd); err != nil {
		log.Warn(name+" failed: invalid command", "error", err)
		return nil, err
	}
	hash, err := utils.HashPassword(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if c, err = customer.New(cmd.Email, hash, cmd.Name, roles...); err != nil {
		return nil, err
	}
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.CustomerRepository()
		if err != nil {
			return err
		}
		existing, err := repo.FindByEmail(ctx, c.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrCustomerAlreadyExists
		}
		return repo.Create(ctx, c)
	})
	if err != nil {
		log.Error(name+" failed", "error", err)
		return nil, err
	}
	log.Info(name+" successful", "customer_id", c.ID)
	return c, nil
}

// Login checks the credentials and returns the customer they belong to.
func (s *Service) Login(ctx context.Context, cmd commands.Login) (c *customer.Customer, err error) {
	log := s.logger.With("email", cmd.Email)
	log.Debug("Login called")

	if err = commands.Validate(cmd); err != nil {
		return nil, err
	}
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo, err := uow.CustomerRepository()
		if err != nil {
			return err
		}
		c, err = repo.FindByEmail(ctx, cmd.Email)
		return err
	})
	if err != nil {
		log.Error("Login failed", "error", err)
		return nil, err
	}
	if c == nil {
		_ = utils.CheckPasswordHash(cmd.Password, dummyHash)
		log.Warn("Login failed", "error", domain.ErrInvalidCredentials)
		return nil, domain.ErrInvalidCredentials
	}
	if !c.Enabled || !utils.CheckPasswordHash(cmd.Password, c.PasswordHash) {
		log.Warn("Login failed", "error", domain.ErrInvalidCredentials)
		return nil, domain.ErrInvalidCredentials
	}
	log.Info("Login successful", "customer_id", c.ID)
	return c, nil
}

// Claims are the JWT claims issued for a customer. The subject is the
// customer's email.
type Claims struct {
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for c.
func (s *Service) GenerateToken(c *customer.Customer) (string, error) {
	log := s.logger.With("customer_id", c.ID)
	now := s.now()
	roles := make([]string, 0, len(c.Roles))
	for _, r := range c.Roles {
		roles = append(roles, string(r))
	}
	claims := Claims{
		Name:  c.Name,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Email,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.Expiry)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		log.Error("GenerateToken failed", "error", err)
		return "", err
	}
	log.Debug("GenerateToken successful")
	return token, nil
}

// ParseToken verifies a token issued by GenerateToken and returns its caller.
func (s *Service) ParseToken(tokenString string) (Caller, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
	}
	return CallerFromToken(token)
}

// Caller is the authenticated identity of a request.
type Caller struct {
	Email string
	Roles []customer.Role
}

// IsAdmin reports whether the caller holds the ADMIN role.
func (c Caller) IsAdmin() bool {
	for _, r := range c.Roles {
		if r == customer.RoleAdmin {
			return true
		}
	}
	return false
}

// CallerFromToken extracts the caller from a verified token. It accepts both
// typed Claims and the map claims produced by generic middleware.
func CallerFromToken(token *jwt.Token) (Caller, error) {
	if token == nil || !token.Valid {
		return Caller{}, domain.ErrInvalidCredentials
	}
	switch claims := token.Claims.(type) {
	case *Claims:
		return newCaller(claims.Subject, claims.Roles)
	case jwt.MapClaims:
		sub, err := claims.GetSubject()
		if err != nil {
			return Caller{}, fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
		}
		var roles []string
		if raw, ok := claims["roles"].([]any); ok {
			for _, r := range raw {
				if s, ok := r.(string); ok {
					roles = append(roles, s)
				}
			}
		}
		return newCaller(sub, roles)
	default:
		return Caller{}, errors.New("unsupported token claims")
	}
}

func newCaller(subject string, roles []string) (Caller, error) {
	email := customer.NormalizeEmail(subject)
	if email == "" {
		return Caller{}, fmt.Errorf("%w: token has no subject", domain.ErrInvalidCredentials)
	}
	c := Caller{Email: email}
	for _, r := range roles {
		c.Roles = append(c.Roles, customer.Role(r))
	}
	return c, nil
}
