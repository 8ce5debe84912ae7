// Package scan runs one badge scan end to end: resolve the holder, decide, log, report.
package scan

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"rfidaccess/internal/access"
	"rfidaccess/internal/apperr"
	"rfidaccess/internal/attendance"
	"rfidaccess/internal/person"
	"rfidaccess/internal/trimester"
)

const unrecognizedBadge = "Unrecognized badge"

// Resolver looks badges up in the person directory. Unknown badges yield nil, nil.
type Resolver interface {
	ResolveByBadge(ctx context.Context, badge string) (*person.Enriched, error)
}

// Recorder appends to the attendance log.
type Recorder interface {
	Record(ctx context.Context, personID int64, action attendance.Action, outcome attendance.Outcome) (attendance.Record, error)
}

// Publisher receives an Event after each logged scan.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Observer is told about every finished scan, including failed ones.
type Observer interface {
	ObserveScan(outcome string, category string, elapsed time.Duration)
}

// Request is the raw input from a reader.
type Request struct {
	BadgeID string `json:"badge_id"`
	Action  string `json:"action"`
}

// Result is returned for every scan that is not rejected outright.
type Result struct {
	Success          bool                `json:"success"`
	AccessGranted    bool                `json:"access_granted"`
	Person           *person.Enriched    `json:"person"`
	Message          string              `json:"message"`
	Timestamp        string              `json:"timestamp"`
	CurrentTrimester trimester.Trimester `json:"current_trimester,omitempty"`
	Action           attendance.Action   `json:"action,omitempty"`
	AttendanceID     int64               `json:"attendance_id,omitempty"`
}

// Service orchestrates scans. Collaborators are injected; storage is never reached directly.
type Service struct {
	persons   Resolver
	recorder  Recorder
	calendar  trimester.Calendar
	publisher Publisher
	observer  Observer
	logger    *zap.Logger
}

type Option func(*Service)

// WithPublisher forwards logged scans to p. Publish errors are logged and ignored.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

func WithObserver(o Observer) Option { return func(s *Service) { s.observer = o } }

func NewService(persons Resolver, recorder Recorder, calendar trimester.Calendar, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{persons: persons, recorder: recorder, calendar: calendar, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan handles one badge read. Malformed input is rejected before any lookup; an unknown badge
// is a successful result without a log row; a known badge always produces exactly one log row.
// Any failure after resolution is returned and no result is reported.
func (s *Service) Scan(ctx context.Context, req Request) (res Result, err error) {
	started := time.Now()
	category := ""
	defer func() {
		if s.observer != nil {
			s.observer.ObserveScan(outcomeLabel(res, err), category, time.Since(started))
		}
	}()

	badge := strings.TrimSpace(req.BadgeID)
	if badge == "" {
		return Result{}, apperr.InvalidField("badge_id", "invalid or missing badge id")
	}
	action, err := attendance.ParseAction(req.Action)
	if err != nil {
		return Result{}, err
	}

	p, err := s.persons.ResolveByBadge(ctx, badge)
	if err != nil {
		s.logger.Error("badge resolution failed", zap.String("badge_id", badge), zap.Error(err))
		return Result{}, err
	}
	now := s.calendar.Today()
	if p == nil {
		s.logger.Info("unrecognized badge", zap.String("badge_id", badge))
		return Result{
			Success:   true,
			Message:   unrecognizedBadge,
			Timestamp: now.UTC().Format(time.RFC3339),
		}, nil
	}
	category = string(p.Category)

	current := trimester.Of(now)
	decision, err := access.Decide(*p, current)
	if err != nil {
		s.logger.Error("access decision failed",
			zap.Int64("person_id", p.ID), zap.String("type", category), zap.Error(err))
		return Result{}, err
	}

	rec, err := s.recorder.Record(ctx, p.ID, action, attendance.OutcomeOf(decision.Granted))
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("badge scanned",
		zap.Int64("person_id", p.ID),
		zap.String("type", category),
		zap.String("action", string(action)),
		zap.Int("trimester", int(current)),
		zap.Bool("granted", decision.Granted))

	if s.publisher != nil {
		evt := newEvent(*p, rec, current, decision.Granted)
		if perr := s.publisher.Publish(ctx, evt); perr != nil {
			s.logger.Warn("scan event publish failed", zap.String("event_id", evt.ID), zap.Error(perr))
		}
	}

	return Result{
		Success:          true,
		AccessGranted:    decision.Granted,
		Person:           p,
		Message:          decision.Reason,
		Timestamp:        rec.OccurredAt.UTC().Format(time.RFC3339),
		CurrentTrimester: current,
		Action:           action,
		AttendanceID:     rec.ID,
	}, nil
}

func outcomeLabel(res Result, err error) string {
	switch {
	case err != nil:
		return "error"
	case res.Person == nil:
		return "unknown"
	case res.AccessGranted:
		return "granted"
	}
	return "denied"
}
