package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rfidaccess/internal/apperr"
	"rfidaccess/internal/store"
	"rfidaccess/internal/store/storetest"
)

func setupTestRecorder(t *testing.T) (*Recorder, *store.DB, *time.Time) {
	t.Helper()
	db := storetest.New(t)
	now := time.Date(2026, time.April, 14, 8, 30, 0, 0, time.UTC)
	r := NewRecorder(NewRepository(db.Client), zap.NewNop()).WithClock(func() time.Time { return now })
	return r, db, &now
}

func insertPerson(t *testing.T, db *store.DB, badge string) int64 {
	t.Helper()
	var id int64
	now := time.Now().UTC()
	require.NoError(t, db.Client.QueryRowContext(context.Background(), `
		INSERT INTO persons (badge_id, type, surname, given_name, created_at, updated_at)
		VALUES ($1, 'student', 'Doe', 'Jane', $2, $2) RETURNING id
	`, badge, now).Scan(&id))
	return id
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("")
	require.NoError(t, err)
	assert.Equal(t, In, a)
	a, err = ParseAction("out")
	require.NoError(t, err)
	assert.Equal(t, Out, a)
	_, err = ParseAction("IN")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
}

func TestRecord_AppendsRow(t *testing.T) {
	ctx := context.Background()
	r, db, now := setupTestRecorder(t)
	pid := insertPerson(t, db, "A1")

	first, err := r.Record(ctx, pid, In, Failed)
	require.NoError(t, err)
	second, err := r.Record(ctx, pid, Out, Success)
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, *now, first.OccurredAt)

	entries, err := r.List(ctx, Filter{PersonID: pid})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, "Doe Jane", entries[0].PersonName)
	assert.Equal(t, "A1", entries[0].BadgeID)
	assert.Equal(t, Failed, entries[1].Outcome)
	assert.True(t, now.Equal(entries[1].OccurredAt))
}

func TestRecord_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	r, db, _ := setupTestRecorder(t)

	_, err := r.Record(ctx, 0, In, Success)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
	_, err = r.Record(ctx, 1, "sideways", Success)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
	_, err = r.Record(ctx, 1, In, "maybe")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))

	var n int
	require.NoError(t, db.Client.QueryRow(`SELECT COUNT(*) FROM attendance`).Scan(&n))
	assert.Zero(t, n)
}

func TestRecord_StorageFailure(t *testing.T) {
	r, db, _ := setupTestRecorder(t)
	require.NoError(t, db.Close())

	_, err := r.Record(context.Background(), 1, In, Success)
	assert.True(t, apperr.HasCode(err, apperr.CodeStorageUnavailable))
}

func TestList_Filters(t *testing.T) {
	ctx := context.Background()
	r, db, now := setupTestRecorder(t)
	a := insertPerson(t, db, "A1")
	b := insertPerson(t, db, "B2")

	day := *now
	_, err := r.Record(ctx, a, In, Success)
	require.NoError(t, err)
	*now = day.Add(24 * time.Hour)
	_, err = r.Record(ctx, b, In, Failed)
	require.NoError(t, err)
	_, err = r.Record(ctx, a, Out, Success)
	require.NoError(t, err)

	failed, err := r.List(ctx, Filter{Outcome: Failed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, b, failed[0].PersonID)

	exits, err := r.List(ctx, Filter{Action: Out})
	require.NoError(t, err)
	require.Len(t, exits, 1)

	from := time.Date(2026, time.April, 14, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	firstDay, err := r.List(ctx, Filter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, firstDay, 1)
	assert.Equal(t, a, firstDay[0].PersonID)

	// reversed bounds are swapped
	swapped, err := r.List(ctx, Filter{From: &to, To: &from})
	require.NoError(t, err)
	assert.Len(t, swapped, 1)

	paged, err := r.List(ctx, Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)

	_, err = r.List(ctx, Filter{Outcome: "meh"})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
}

func TestList_SurvivesPersonDeletion(t *testing.T) {
	ctx := context.Background()
	r, db, _ := setupTestRecorder(t)
	pid := insertPerson(t, db, "A1")
	_, err := r.Record(ctx, pid, In, Success)
	require.NoError(t, err)

	_, err = db.Client.ExecContext(ctx, `DELETE FROM persons WHERE id = $1`, pid)
	require.NoError(t, err)

	entries, err := r.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, pid, entries[0].PersonID)
	assert.Empty(t, entries[0].PersonName)
}
