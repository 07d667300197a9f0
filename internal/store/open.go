package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadhunter/internal/config"
)

// Open returns the store selected by cfg.Driver. SQL stores are migrated
// before they are returned.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "", config.DriverMemory:
		return NewMemory(), nil
	case config.DriverSQLite:
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "leadhunter.db"
		}
		st, err = NewSQLite(dsn)
	case config.DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres requires a database url")
		}
		st, err = NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: int32(cfg.MaxConns)})
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "store: migrate")
	}
	return st, nil
}
