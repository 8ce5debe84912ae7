package person

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"rfidaccess/internal/store"
)

const personColumns = `id, badge_id, type, surname, given_name, photo, created_at, updated_at`

// SearchLimit caps Search results.
const SearchLimit = 50

// Repository persists persons.
type Repository struct {
	db store.DBTX
}

// NewRepository creates a repo.
func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner) (Person, error) {
	var p Person
	var photo sql.NullString
	if err := row.Scan(&p.ID, &p.BadgeID, &p.Category, &p.Surname, &p.GivenName, &photo, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Person{}, err
	}
	if photo.Valid {
		p.Photo = &photo.String
	}
	return p, nil
}

func (r *Repository) findOne(ctx context.Context, op, where string, arg any) (*Person, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM persons WHERE `+where, arg)
	p, err := scanPerson(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, store.ClassifyErr(op, err)
	}
	return &p, nil
}

// FindByBadge returns nil, nil when no person carries badge.
func (r *Repository) FindByBadge(ctx context.Context, badge string) (*Person, error) {
	return r.findOne(ctx, "find person by badge", "badge_id = $1", badge)
}

// FindByID returns nil, nil when id is unknown.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Person, error) {
	return r.findOne(ctx, "find person by id", "id = $1", id)
}

// Insert writes a validated CreateInput.
func (r *Repository) Insert(ctx context.Context, in CreateInput, now time.Time) (Person, error) {
	p := Person{
		BadgeID:   in.BadgeID,
		Category:  in.Category,
		Surname:   in.Surname,
		GivenName: in.GivenName,
		Photo:     in.Photo,
		CreatedAt: now,
		UpdatedAt: now,
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO persons (badge_id, type, surname, given_name, photo, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, p.BadgeID, string(p.Category), p.Surname, p.GivenName, p.Photo, now, now)
	if err := row.Scan(&p.ID); err != nil {
		return Person{}, store.ClassifyErr("insert person", err)
	}
	return p, nil
}

// Update applies the non-nil fields of in. It returns nil, nil when id is unknown.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput, now time.Time) (*Person, error) {
	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}
	if in.BadgeID != nil {
		add("badge_id", *in.BadgeID)
	}
	if in.Category != nil {
		add("type", string(*in.Category))
	}
	if in.Surname != nil {
		add("surname", *in.Surname)
	}
	if in.GivenName != nil {
		add("given_name", *in.GivenName)
	}
	if in.Photo != nil {
		add("photo", normalizePhoto(in.Photo))
	}
	add("updated_at", now)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx,
		`UPDATE persons SET `+strings.Join(sets, ", ")+` WHERE id = $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, store.ClassifyErr("update person", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, nil
	}
	return r.FindByID(ctx, id)
}

// Delete removes the person; payment links cascade. It reports whether a row existed.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return false, store.ClassifyErr("delete person", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, store.ClassifyErr("delete person", err)
	}
	return n > 0, nil
}

// List returns persons ordered by name, optionally restricted to one category.
func (r *Repository) List(ctx context.Context, category Category) ([]Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons`
	args := []any{}
	if category != "" {
		query += ` WHERE type = $1`
		args = append(args, string(category))
	}
	query += ` ORDER BY surname, given_name, id`
	return r.query(ctx, "list persons", query, args...)
}

// Search matches q against surname, given name and badge case-insensitively,
// or the exact id when q is numeric.
func (r *Repository) Search(ctx context.Context, q string, category Category) ([]Person, error) {
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	args := []any{pattern}
	clauses := []string{
		`LOWER(surname) LIKE $1 ESCAPE '\'`,
		`LOWER(given_name) LIKE $1 ESCAPE '\'`,
		`LOWER(badge_id) LIKE $1 ESCAPE '\'`,
	}
	if id, err := strconv.ParseInt(q, 10, 64); err == nil {
		args = append(args, id)
		clauses = append(clauses, `id = $`+strconv.Itoa(len(args)))
	}
	query := `SELECT ` + personColumns + ` FROM persons WHERE (` + strings.Join(clauses, " OR ") + `)`
	if category != "" {
		args = append(args, string(category))
		query += ` AND type = $` + strconv.Itoa(len(args))
	}
	args = append(args, SearchLimit)
	query += ` ORDER BY surname, given_name, id LIMIT $` + strconv.Itoa(len(args))
	return r.query(ctx, "search persons", query, args...)
}

func (r *Repository) query(ctx context.Context, op, query string, args ...any) ([]Person, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.ClassifyErr(op, err)
	}
	defer rows.Close()
	res := []Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, store.ClassifyErr(op, err)
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, store.ClassifyErr(op, err)
	}
	return res, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
