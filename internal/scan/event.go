package scan

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"rfidaccess/internal/attendance"
	"rfidaccess/internal/person"
	"rfidaccess/internal/queue"
	"rfidaccess/internal/trimester"
)

// MessageType tags scan events on the queue.
const MessageType = "scan"

// Event describes one logged scan for downstream consumers.
type Event struct {
	ID           string              `json:"id"`
	AttendanceID int64               `json:"attendance_id"`
	PersonID     int64               `json:"person_id"`
	BadgeID      string              `json:"badge_id"`
	Category     person.Category     `json:"type"`
	Action       attendance.Action   `json:"action"`
	Granted      bool                `json:"granted"`
	Trimester    trimester.Trimester `json:"trimester"`
	OccurredAt   time.Time           `json:"occurred_at"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newEventID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

func newEvent(p person.Enriched, rec attendance.Record, t trimester.Trimester, granted bool) Event {
	return Event{
		ID:           newEventID(rec.OccurredAt),
		AttendanceID: rec.ID,
		PersonID:     p.ID,
		BadgeID:      p.BadgeID,
		Category:     p.Category,
		Action:       rec.Action,
		Granted:      granted,
		Trimester:    t,
		OccurredAt:   rec.OccurredAt,
	}
}

// QueuePublisher puts events on a queue as JSON.
type QueuePublisher struct {
	Queue queue.Queue
}

func (p QueuePublisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal scan event -> %w", err)
	}
	return p.Queue.Publish(ctx, queue.Message{Type: MessageType, Body: body})
}

// DecodeEvent parses a queue message produced by QueuePublisher.
func DecodeEvent(msg queue.Message) (Event, error) {
	if msg.Type != MessageType {
		return Event{}, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	var evt Event
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return Event{}, fmt.Errorf("decode scan event -> %w", err)
	}
	return evt, nil
}
