package store

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

//go:embed migrations
var migrations embed.FS

// migrate applies every pending migration under dir to db.
func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string) error {
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return eris.Wrapf(err, "store: migrations %s", dir)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return eris.Wrap(err, "store: create migration provider")
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return eris.Wrap(err, "store: apply migrations")
	}
	for _, r := range results {
		zap.L().Info("store: migration applied",
			zap.String("dialect", string(dialect)),
			zap.Int64("version", r.Source.Version),
			zap.Duration("duration", r.Duration),
		)
	}
	return nil
}
