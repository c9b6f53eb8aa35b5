package docstore

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Vector-Search-Engine/pkg/postgres"
)

// Open builds the store cfg selects. db is only used by the postgres driver
// and may be nil otherwise.
func Open(ctx context.Context, cfg config.DocstoreConfig, db *postgres.Client) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemory(), nil
	case "badger":
		return NewBadger(BadgerOptions{Dir: cfg.Dir})
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("docstore driver postgres needs a postgres client")
		}
		store := NewPostgres(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown docstore driver %q", cfg.Driver)
	}
}
