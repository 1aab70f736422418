package services

import (
	"context"

	"notimo/internal/core"
)

// Backend is the storage surface the service depends on. Every adapter
// under internal/source and internal/storage satisfies it.
//
//go:generate mockgen -destination=mocks/mock_services.go -source=interface.go
type Backend interface {
	ListTransactions(ctx context.Context, module core.Module) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, d core.Draft) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	ListCategories(ctx context.Context, position core.Position) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
}

// Publisher sends ledger events; *amqp.Client satisfies it.
type Publisher interface {
	PublishViewChanged(ctx context.Context, module core.Module, filter string, totals core.Totals, visible int, version uint64) error
	PublishTransactionDeleted(ctx context.Context, module core.Module, id string) error
}
