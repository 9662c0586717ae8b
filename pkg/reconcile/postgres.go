package reconcile

import (
	"context"

	"github.com/tendant/bizora/pkg/repository"
)

type postgresStore struct {
	store *repository.Store
}

// NewPostgresStore adapts the repository store to Store.
func NewPostgresStore(store *repository.Store) Store {
	return &postgresStore{store: store}
}

func (s *postgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.store.InTx(ctx, func(tx *repository.Tx) error {
		return fn(tx)
	})
}
