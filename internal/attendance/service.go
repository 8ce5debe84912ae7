// Package attendance is the append-only log of scan outcomes.
package attendance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rfidaccess/internal/apperr"
)

type Action string

const (
	In  Action = "in"
	Out Action = "out"
)

// ParseAction accepts "in" and "out"; an empty string defaults to In.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case "":
		return In, nil
	case In, Out:
		return Action(s), nil
	}
	return "", apperr.InvalidField("action", `action must be "in" or "out"`)
}

type Outcome string

const (
	Success Outcome = "success"
	Failed  Outcome = "failed"
)

// OutcomeOf maps an access decision to the logged status.
func OutcomeOf(granted bool) Outcome {
	if granted {
		return Success
	}
	return Failed
}

// Record is one immutable log row.
type Record struct {
	ID         int64     `json:"id"`
	PersonID   int64     `json:"person_id"`
	Action     Action    `json:"action"`
	Outcome    Outcome   `json:"status"`
	OccurredAt time.Time `json:"timestamp"`
}

// Entry is a Record joined with the person it refers to, if that person still exists.
type Entry struct {
	Record
	PersonName string `json:"person_name,omitempty"`
	PersonType string `json:"person_type,omitempty"`
	BadgeID    string `json:"badge_id,omitempty"`
}

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Filter narrows List. From is inclusive, To exclusive.
type Filter struct {
	From     *time.Time
	To       *time.Time
	Outcome  Outcome
	Action   Action
	PersonID int64
	Limit    int
	Offset   int
}

func (f *Filter) normalize() error {
	if f.Outcome != "" && f.Outcome != Success && f.Outcome != Failed {
		return apperr.InvalidField("status", `status must be "success" or "failed"`)
	}
	if f.Action != "" && f.Action != In && f.Action != Out {
		return apperr.InvalidField("action", `action must be "in" or "out"`)
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		f.From, f.To = f.To, f.From
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return nil
}

// Recorder writes scan outcomes. There is deliberately no update or delete.
type Recorder struct {
	repo   *Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder creates a recorder stamping rows with the wall clock in UTC.
func NewRecorder(repo *Repository, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the timestamp source.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record appends one row and returns its id. Storage failures are returned as is; no retry.
func (r *Recorder) Record(ctx context.Context, personID int64, action Action, outcome Outcome) (Record, error) {
	if personID <= 0 {
		return Record{}, apperr.InvalidField("person_id", "person_id is required")
	}
	if action != In && action != Out {
		return Record{}, apperr.InvalidField("action", fmt.Sprintf("invalid action %q", action))
	}
	if outcome != Success && outcome != Failed {
		return Record{}, apperr.InvalidField("status", fmt.Sprintf("invalid status %q", outcome))
	}
	rec := Record{PersonID: personID, Action: action, Outcome: outcome, OccurredAt: r.now().UTC()}
	id, err := r.repo.Insert(ctx, rec)
	if err != nil {
		r.logger.Error("attendance insert failed", zap.Int64("person_id", personID), zap.Error(err))
		return Record{}, err
	}
	rec.ID = id
	return rec, nil
}

// List returns the log filtered by f, newest first.
func (r *Recorder) List(ctx context.Context, f Filter) ([]Entry, error) {
	if err := f.normalize(); err != nil {
		return nil, err
	}
	return r.repo.List(ctx, f)
}
