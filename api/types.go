package api

import (
	"context"

	"taskcart-api/domain"
	"taskcart-api/store"
)

// Board abstracts the state container for handlers.
type Board interface {
	Get() store.State
	Subscribe(fn func(store.State)) func()

	AddTask(ctx context.Context, t domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, bool, error)
	DeleteTask(ctx context.Context, id string) (bool, error)
	Drop(ctx context.Context, activeID string, target domain.DropTarget) (bool, error)

	AddToCart(ctx context.Context, item domain.CartLine) error
	IncrementCartItem(ctx context.Context, id int) error
	DecrementCartItem(ctx context.Context, id int) error
	RemoveCartItem(ctx context.Context, id int) error
	ClearCart(ctx context.Context) error
}

// Catalog abstracts catalog reads for handlers.
type Catalog interface {
	Products(ctx context.Context) (domain.ProductsPage, error)
	Refresh(ctx context.Context) (domain.ProductsPage, error)
}

// ThemeStore persists the color-scheme preference.
type ThemeStore interface {
	LoadTheme(ctx context.Context) (domain.Theme, bool, error)
	SaveTheme(ctx context.Context, theme domain.Theme) error
	ClearTheme(ctx context.Context) error
}

// Deduper prevents reprocessing of repeated mutation requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, key string) (bool, error)
	// Remove deletes a previously added key, used when the mutation fails so
	// the client may retry with the same key.
	Remove(ctx context.Context, key string) error
}
