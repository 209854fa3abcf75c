package repository

import (
	"context"
)

// UnitOfWork defines the transaction boundary and the repositories bound to it.
//
// Repositories obtained from the UnitOfWork passed to Do share one database
// transaction, so card mutations and transaction log appends commit or roll
// back together. Row locks taken inside Do are released when it returns.
type UnitOfWork interface {
	// Do executes fn within a transaction boundary. If fn returns an error the
	// transaction is rolled back.
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error

	CardRepository() (CardRepository, error)
	TransactionRepository() (TransactionRepository, error)
	CustomerRepository() (CustomerRepository, error)
}
