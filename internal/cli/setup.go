package cli

import (
	"context"
	"fmt"

	"github.com/NaN-tic/csvimport/internal/core"
	"github.com/NaN-tic/csvimport/internal/profilefile"
	"github.com/NaN-tic/csvimport/internal/store"
	"github.com/NaN-tic/csvimport/internal/store/memory"
	"github.com/NaN-tic/csvimport/internal/store/postgres"
)

// loadProfile reads and validates a profile definition file.
func loadProfile(path string) (*core.Profile, error) {
	profile, err := profilefile.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", path, err)
	}
	return profile, nil
}

// buildStore opens the record store selected by the --store flag. The
// returned func releases the backing connections.
func buildStore(ctx context.Context, schema *store.Schema) (core.RecordStore, func(), error) {
	switch storeName {
	case "memory":
		return memory.New(schema), func() {}, nil
	case "postgres":
		if dbURL == "" {
			return nil, nil, fmt.Errorf("--db-url (or DATABASE_URL) is required for the postgres store")
		}
		pool, err := postgres.Connect(ctx, dbURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to record store: %w", err)
		}
		return postgres.New(pool, schema), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q, want memory or postgres", storeName)
	}
}
