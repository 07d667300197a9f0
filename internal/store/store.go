// Package store persists leads with their notes and audits. The memory,
// SQLite and Postgres implementations share one contract.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadhunter/internal/model"
)

// ErrDuplicate is returned by Insert when the id or the (source, external_id)
// pair is already stored.
var ErrDuplicate = eris.New("store: duplicate business")

// Store defines the persistence interface for leads.
type Store interface {
	// Businesses
	Get(ctx context.Context, id string) (*model.Business, error)
	List(ctx context.Context) ([]*model.Business, error)
	Insert(ctx context.Context, b *model.Business) error
	InsertMany(ctx context.Context, bs []*model.Business) (int, error)
	Update(ctx context.Context, b *model.Business) error
	Delete(ctx context.Context, id string) error

	// Notes
	AddNote(ctx context.Context, note model.Note) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func notFound(id string) error {
	return &model.NotFoundError{Entity: "business", ID: id}
}

func externalKey(b *model.Business) string {
	if b.ExternalID == "" {
		return ""
	}
	return string(b.Source) + "|" + b.ExternalID
}
