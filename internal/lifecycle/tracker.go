// Package lifecycle moves leads through the sales pipeline. It owns status
// transitions, the last-contact timestamp, notes, and score refinement after
// an audit.
package lifecycle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/scorer"
	"github.com/sells-group/leadhunter/internal/store"
)

// Tracker applies lifecycle mutations on top of a Store. Mutations are
// serialized so derived fields always have one writer.
type Tracker struct {
	store store.Store
	now   func() time.Time
	newID func() string

	mu sync.Mutex
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithIDFunc overrides note id generation.
func WithIDFunc(f func() string) Option {
	return func(t *Tracker) { t.newID = f }
}

// New creates a Tracker over s.
func New(s store.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Store returns the underlying repository.
func (t *Tracker) Store() store.Store {
	return t.store
}

// Create validates and stores a new lead. Missing timestamps and status are
// filled in.
func (t *Tracker) Create(ctx context.Context, b *model.Business) error {
	if b.Status == "" {
		b.Status = model.StatusNew
	}
	if err := b.Validate(); err != nil {
		return err
	}
	now := t.now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
	if b.ID == "" {
		b.ID = t.newID()
	}
	if err := t.store.Insert(ctx, b); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return err
		}
		return eris.Wrapf(err, "lifecycle: create %s", b.ID)
	}
	return nil
}

// Get returns a lead with its notes newest first.
func (t *Tracker) Get(ctx context.Context, id string) (*model.Business, error) {
	b, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Notes = model.NotesNewestFirst(b.Notes)
	return b, nil
}

// List returns every lead in insertion order with notes newest first.
func (t *Tracker) List(ctx context.Context) ([]*model.Business, error) {
	items, err := t.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range items {
		b.Notes = model.NotesNewestFirst(b.Notes)
	}
	return items, nil
}

// Delete removes a lead with its notes and audit.
func (t *Tracker) Delete(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Delete(ctx, id)
}

// Transition moves a lead to status. Any status may follow any other.
// Entering contacted, meeting or proposal stamps the last-contact time.
func (t *Tracker) Transition(ctx context.Context, id string, status model.Status) (*model.Business, error) {
	if !status.Valid() {
		return nil, &model.ValidationError{Field: "status", Reason: "unknown status " + string(status)}
	}
	return t.mutate(ctx, id, func(b *model.Business, now time.Time) error {
		from := b.Status
		b.Status = status
		if status.CountsAsContact() {
			b.LastContactedAt = &now
		}
		zap.L().Debug("lifecycle: transition",
			zap.String("business_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(status)),
		)
		return nil
	})
}

// AddNote appends an immutable note to a lead and returns it.
func (t *Tracker) AddNote(ctx context.Context, id, content string) (model.Note, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Note{}, &model.ValidationError{Field: "content", Reason: "must not be empty"}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	note := model.Note{
		ID:         t.newID(),
		BusinessID: id,
		Content:    content,
		CreatedAt:  t.now(),
	}
	if err := t.store.AddNote(ctx, note); err != nil {
		if model.IsNotFound(err) {
			return model.Note{}, err
		}
		return model.Note{}, eris.Wrapf(err, "lifecycle: add note to %s", id)
	}
	return note, nil
}

// AttachAudit stores audit as the lead's current audit and refines the
// prospect score from it when the lead has a website.
func (t *Tracker) AttachAudit(ctx context.Context, id string, audit *model.QualityAudit) (*model.Business, error) {
	if audit == nil {
		return nil, &model.ValidationError{Field: "audit", Reason: "must not be nil"}
	}
	return t.mutate(ctx, id, func(b *model.Business, now time.Time) error {
		a := audit.Clone()
		a.BusinessID = b.ID
		if a.AuditedAt.IsZero() {
			a.AuditedAt = now
		}
		a.ComputeOverall()
		b.Audit = a
		before := b.ProspectScore()
		if b.HasWebsite() {
			b.Rescore()
		}
		zap.L().Debug("lifecycle: audit attached",
			zap.String("business_id", id),
			zap.Int("score_before", before),
			zap.Int("score_after", b.ProspectScore()),
		)
		return nil
	})
}

// SetWebsite records or clears a lead's website. Clearing it drops the audit
// and restores the siteless score. Adding one to a siteless lead resets the
// score to the neutral base until the site is audited.
func (t *Tracker) SetWebsite(ctx context.Context, id string, website *string) (*model.Business, error) {
	return t.mutate(ctx, id, func(b *model.Business, _ time.Time) error {
		had := b.HasWebsite()
		b.Website = website
		switch {
		case website == nil:
			b.Audit = nil
			b.Rescore()
		case !had:
			b.Audit = nil
			b.SetProspectScore(scorer.BaseScore)
		case b.Audit != nil && b.Audit.URL != *website:
			b.Audit = nil
			b.SetProspectScore(scorer.BaseScore)
		}
		return nil
	})
}

// Edit applies fn to a lead's contact fields and saves it when the result
// is still valid. Status, website and audit have dedicated operations.
func (t *Tracker) Edit(ctx context.Context, id string, fn func(*model.Business)) (*model.Business, error) {
	return t.mutate(ctx, id, func(b *model.Business, _ time.Time) error {
		keep := b.Clone()
		fn(b)
		b.ID, b.CreatedAt, b.Notes = keep.ID, keep.CreatedAt, keep.Notes
		b.Status, b.LastContactedAt = keep.Status, keep.LastContactedAt
		b.Website, b.Audit = keep.Website, keep.Audit
		b.SetProspectScore(keep.ProspectScore())
		return b.Validate()
	})
}

// mutate loads a lead, applies fn, touches UpdatedAt and writes it back.
func (t *Tracker) mutate(ctx context.Context, id string, fn func(*model.Business, time.Time) error) (*model.Business, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, err := t.store.Get(ctx, id)
	if err != nil {
		if model.IsNotFound(err) {
			return nil, err
		}
		return nil, eris.Wrapf(err, "lifecycle: load %s", id)
	}

	now := t.now()
	if err := fn(b, now); err != nil {
		return nil, err
	}
	b.UpdatedAt = now

	if err := t.store.Update(ctx, b); err != nil {
		if model.IsNotFound(err) {
			return nil, err
		}
		return nil, eris.Wrapf(err, "lifecycle: save %s", id)
	}
	b.Notes = model.NotesNewestFirst(b.Notes)
	return b, nil
}
