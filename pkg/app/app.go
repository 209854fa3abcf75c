// Package app wires the services of the card ledger from its dependencies.
package app

import (
	"errors"
	"log/slog"

	"github.com/amirasaad/bankcards/pkg/config"
	"github.com/amirasaad/bankcards/pkg/currency"
	"github.com/amirasaad/bankcards/pkg/idempotency"
	"github.com/amirasaad/bankcards/pkg/repository"
	"github.com/amirasaad/bankcards/pkg/service/auth"
	"github.com/amirasaad/bankcards/pkg/service/card"
)

// Deps contains the infrastructure the services are built from.
type Deps struct {
	Uow         repository.UnitOfWork
	Idempotency idempotency.Store
	Logger      *slog.Logger
	// Closers release resources in reverse order on shutdown.
	Closers []func() error
}

// Close runs the registered closers, newest first.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.Closers) - 1; i >= 0; i-- {
		if err := d.Closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.Closers = nil
	return errors.Join(errs...)
}

type App struct {
	Deps        *Deps
	Config      *config.App
	AuthService *auth.Service
	CardService *card.Service
}

func New(deps *Deps, cfg *config.App) *App {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	guard := idempotency.NewGuard(deps.Idempotency, cfg.Idempotency.ClaimTTL, logger)
	code, _ := currency.Parse(cfg.Card.DefaultCurrency)
	return &App{
		Deps:        deps,
		Config:      cfg,
		AuthService: auth.New(deps.Uow, cfg.Auth.Jwt, logger),
		CardService: card.NewService(deps.Uow, guard, card.Config{
			DefaultCurrency: code,
			NumberPrefix:    cfg.Card.NumberPrefix,
		}, logger),
	}
}
