package storage

import (
	"context"
	"fmt"

	"github.com/cmsconsultores/cmsweb/internal/database"
)

// Open builds the driver named by cfg.Driver. dbCfg is only used by the postgres driver.
func Open(ctx context.Context, cfg Config, dbCfg database.Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverMinIO:
		return NewMinIOStore(cfg)
	case DriverPostgres:
		db, err := database.NewDB(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		s := NewPostgresStore(db.Pool)
		s.closer = db.Close
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
