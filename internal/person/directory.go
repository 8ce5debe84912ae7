package person

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rfidaccess/internal/apperr"
	"rfidaccess/internal/trimester"
)

// PaymentChecker answers whether a person paid for a trimester.
type PaymentChecker interface {
	HasPaid(ctx context.Context, personID int64, t trimester.Trimester) (bool, error)
}

// Directory resolves badges to enriched persons and fronts the person CRUD operations.
type Directory struct {
	repo     *Repository
	payments PaymentChecker
	logger   *zap.Logger
	now      func() time.Time
}

// NewDirectory wires a directory. payments must not be nil.
func NewDirectory(repo *Repository, payments PaymentChecker, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{repo: repo, payments: payments, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// ResolveByBadge returns nil, nil for an unknown badge.
func (d *Directory) ResolveByBadge(ctx context.Context, badge string) (*Enriched, error) {
	p, err := d.repo.FindByBadge(ctx, badge)
	if err != nil || p == nil {
		return nil, err
	}
	e, err := d.Enrich(ctx, *p)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ResolveByID returns nil, nil for an unknown id.
func (d *Directory) ResolveByID(ctx context.Context, id int64) (*Enriched, error) {
	p, err := d.repo.FindByID(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	e, err := d.Enrich(ctx, *p)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Enrich attaches the paid flags. Students get one ledger lookup per trimester, run concurrently;
// everyone else is paid for all three without touching the ledger.
func (d *Directory) Enrich(ctx context.Context, p Person) (Enriched, error) {
	e := Enriched{Person: p}
	if p.Category != Student {
		e.Trimester1Paid, e.Trimester2Paid, e.Trimester3Paid = true, true, true
		return e, nil
	}

	var paid [len(trimester.All)]bool
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range trimester.All {
		g.Go(func() error {
			ok, err := d.payments.HasPaid(gctx, p.ID, t)
			if err != nil {
				return fmt.Errorf("payment lookup for %s -> %w", t, err)
			}
			paid[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Enriched{}, err
	}
	for i, t := range trimester.All {
		e.setPaid(t, paid[i])
	}
	return e, nil
}

func (d *Directory) enrichAll(ctx context.Context, persons []Person) ([]Enriched, error) {
	out := make([]Enriched, 0, len(persons))
	for _, p := range persons {
		e, err := d.Enrich(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Create validates and registers a person.
func (d *Directory) Create(ctx context.Context, in CreateInput) (Enriched, error) {
	if err := in.Validate(); err != nil {
		return Enriched{}, err
	}
	p, err := d.repo.Insert(ctx, in, d.now())
	if err != nil {
		return Enriched{}, err
	}
	d.logger.Info("person created", zap.Int64("person_id", p.ID), zap.String("type", string(p.Category)))
	return d.Enrich(ctx, p)
}

// Update applies a partial update. Unknown ids are NotFound.
func (d *Directory) Update(ctx context.Context, id int64, in UpdateInput) (Enriched, error) {
	if id <= 0 {
		return Enriched{}, apperr.InvalidField("id", "invalid id")
	}
	if err := in.Validate(); err != nil {
		return Enriched{}, err
	}
	p, err := d.repo.Update(ctx, id, in, d.now())
	if err != nil {
		return Enriched{}, err
	}
	if p == nil {
		return Enriched{}, apperr.NotFound("person not found")
	}
	d.logger.Info("person updated", zap.Int64("person_id", p.ID))
	return d.Enrich(ctx, *p)
}

// Get is ResolveByID with NotFound for unknown ids.
func (d *Directory) Get(ctx context.Context, id int64) (Enriched, error) {
	if id <= 0 {
		return Enriched{}, apperr.InvalidField("id", "invalid id")
	}
	e, err := d.ResolveByID(ctx, id)
	if err != nil {
		return Enriched{}, err
	}
	if e == nil {
		return Enriched{}, apperr.NotFound("person not found")
	}
	return *e, nil
}

// Remove deletes a person. Payment links go with it; attendance history stays.
func (d *Directory) Remove(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.InvalidField("id", "invalid id")
	}
	ok, err := d.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("person not found")
	}
	d.logger.Info("person deleted", zap.Int64("person_id", id))
	return nil
}

// List returns every person, optionally of one category, enriched.
func (d *Directory) List(ctx context.Context, category string) ([]Enriched, error) {
	c, err := optionalCategory(category)
	if err != nil {
		return nil, err
	}
	persons, err := d.repo.List(ctx, c)
	if err != nil {
		return nil, err
	}
	return d.enrichAll(ctx, persons)
}

// Search needs at least two characters and returns at most SearchLimit persons.
func (d *Directory) Search(ctx context.Context, q, category string) ([]Enriched, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < 2 {
		return nil, apperr.InvalidField("q", "search must contain at least 2 characters")
	}
	c, err := optionalCategory(category)
	if err != nil {
		return nil, err
	}
	persons, err := d.repo.Search(ctx, q, c)
	if err != nil {
		return nil, err
	}
	return d.enrichAll(ctx, persons)
}

func optionalCategory(s string) (Category, error) {
	if s == "" {
		return "", nil
	}
	return ParseCategory(s)
}
