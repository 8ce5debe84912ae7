package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rfidaccess/internal/store"
)

// Repository persists the attendance log. It only ever inserts.
type Repository struct {
	db store.DBTX
}

// NewRepository creates a repo.
func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

// Insert appends one record and returns its id.
func (r *Repository) Insert(ctx context.Context, rec Record) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance (person_id, action, status, occurred_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, rec.PersonID, string(rec.Action), string(rec.Outcome), rec.OccurredAt).Scan(&id)
	if err != nil {
		return 0, store.ClassifyErr("insert attendance", err)
	}
	return id, nil
}

// List returns log entries matching f, newest first. Entries of deleted persons are kept
// with empty person fields.
func (r *Repository) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `
		SELECT a.id, a.person_id, a.action, a.status, a.occurred_at,
		       p.surname, p.given_name, p.type, p.badge_id
		FROM attendance a
		LEFT JOIN persons p ON a.person_id = p.id`
	args := []any{}
	clauses := []string{}
	if f.From != nil {
		clauses = append(clauses, "a.occurred_at >= $"+itoa(len(args)+1))
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		clauses = append(clauses, "a.occurred_at < $"+itoa(len(args)+1))
		args = append(args, f.To.UTC())
	}
	if f.Outcome != "" {
		clauses = append(clauses, "a.status = $"+itoa(len(args)+1))
		args = append(args, string(f.Outcome))
	}
	if f.Action != "" {
		clauses = append(clauses, "a.action = $"+itoa(len(args)+1))
		args = append(args, string(f.Action))
	}
	if f.PersonID > 0 {
		clauses = append(clauses, "a.person_id = $"+itoa(len(args)+1))
		args = append(args, f.PersonID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + joinClauses(clauses, " AND ")
	}
	query += " ORDER BY a.occurred_at DESC, a.id DESC LIMIT $" + itoa(len(args)+1) + " OFFSET $" + itoa(len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.ClassifyErr("list attendance", err)
	}
	defer rows.Close()
	res := []Entry{}
	for rows.Next() {
		var e Entry
		var surname, given, category, badge sql.NullString
		var occurred time.Time
		if err := rows.Scan(&e.ID, &e.PersonID, &e.Action, &e.Outcome, &occurred, &surname, &given, &category, &badge); err != nil {
			return nil, store.ClassifyErr("list attendance", err)
		}
		e.OccurredAt = occurred.UTC()
		if surname.Valid {
			e.PersonName = surname.String + " " + given.String
			e.PersonType = category.String
			e.BadgeID = badge.String
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.ClassifyErr("list attendance", err)
	}
	return res, nil
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
