// Package worker consumes scan events and keeps the presence board current.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"rfidaccess/internal/queue"
	"rfidaccess/internal/scan"
)

const (
	ResultApplied = "applied"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

type Board interface {
	Apply(ctx context.Context, personID int64, action string, granted bool, at time.Time) error
}

type Observer interface {
	EventProcessed(result string)
}

type Processor struct {
	board    Board
	observer Observer
	logger   *zap.Logger
}

// New builds a Processor. observer may be nil.
func New(board Board, observer Observer, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{board: board, observer: observer, logger: logger}
}

// Run consumes q until ctx ends or the queue closes.
func (p *Processor) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	p.logger.Info("worker started")
	for msg := range messages {
		p.Handle(ctx, msg)
	}
	p.logger.Info("worker stopped")
	return nil
}

// Handle processes one message and returns its result label.
// Failed events are logged and dropped; the attendance log stays authoritative.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) string {
	result := p.handle(ctx, msg)
	if p.observer != nil {
		p.observer.EventProcessed(result)
	}
	return result
}

func (p *Processor) handle(ctx context.Context, msg queue.Message) string {
	if msg.Type != scan.MessageType {
		p.logger.Debug("ignoring message", zap.String("type", msg.Type))
		return ResultSkipped
	}
	evt, err := scan.DecodeEvent(msg)
	if err != nil {
		p.logger.Warn("bad scan event", zap.Error(err))
		return ResultFailed
	}
	if !evt.Granted {
		return ResultSkipped
	}
	if err := p.board.Apply(ctx, evt.PersonID, string(evt.Action), evt.Granted, evt.OccurredAt); err != nil {
		p.logger.Error("presence update failed",
			zap.String("event_id", evt.ID), zap.Int64("person_id", evt.PersonID), zap.Error(err))
		return ResultFailed
	}
	p.logger.Debug("presence updated",
		zap.String("event_id", evt.ID), zap.Int64("person_id", evt.PersonID), zap.String("action", string(evt.Action)))
	return ResultApplied
}
