package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// schema is shared by both drivers; {{PK}} and {{TS}} are replaced per dialect.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS persons (
		id          {{PK}},
		badge_id    TEXT NOT NULL,
		type        TEXT NOT NULL CHECK (type IN ('student', 'teacher', 'staff', 'visitor')),
		surname     TEXT NOT NULL,
		given_name  TEXT NOT NULL,
		photo       TEXT NULL,
		created_at  {{TS}} NOT NULL,
		updated_at  {{TS}} NOT NULL,
		CONSTRAINT uq_persons_badge_id UNIQUE (badge_id),
		CONSTRAINT uq_persons_photo UNIQUE (photo)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_persons_type ON persons (type)`,
	`CREATE INDEX IF NOT EXISTS idx_persons_names ON persons (surname, given_name)`,

	// person_id carries no foreign key: attendance outlives the person it refers to.
	`CREATE TABLE IF NOT EXISTS attendance (
		id           {{PK}},
		person_id    BIGINT NOT NULL,
		action       TEXT NOT NULL CHECK (action IN ('in', 'out')),
		status       TEXT NOT NULL CHECK (status IN ('success', 'failed')),
		occurred_at  {{TS}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_person ON attendance (person_id)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_occurred ON attendance (occurred_at)`,

	`CREATE TABLE IF NOT EXISTS payments (
		id           {{PK}},
		amount       NUMERIC(12,2) NOT NULL CHECK (amount > 0),
		method       TEXT NOT NULL CHECK (method IN ('cash', 'card', 'bank_transfer')),
		occurred_at  {{TS}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS student_payments (
		id          {{PK}},
		student_id  BIGINT NOT NULL REFERENCES persons (id) ON DELETE CASCADE,
		payment_id  BIGINT NOT NULL REFERENCES payments (id),
		trimester   SMALLINT NOT NULL CHECK (trimester IN (1, 2, 3)),
		CONSTRAINT uq_student_payments_student_trimester UNIQUE (student_id, trimester)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_student_payments_payment ON student_payments (payment_id)`,

	`CREATE TABLE IF NOT EXISTS devices (
		device_id   TEXT PRIMARY KEY,
		created_at  {{TS}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id          {{PK}},
		device_id   TEXT NOT NULL REFERENCES devices (device_id) ON DELETE CASCADE,
		token       TEXT NOT NULL,
		expires_at  {{TS}} NOT NULL,
		revoked     BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_token ON refresh_tokens (token)`,
}

func dialect(driver string) *strings.Replacer {
	if driver == DriverSQLite {
		// DATETIME is the declared type go-sqlite3 recognises when scanning into time.Time.
		return strings.NewReplacer("{{PK}}", "INTEGER PRIMARY KEY AUTOINCREMENT", "{{TS}}", "DATETIME")
	}
	return strings.NewReplacer("{{PK}}", "BIGSERIAL PRIMARY KEY", "{{TS}}", "TIMESTAMPTZ")
}

// Migrate creates every table idempotently.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	r := dialect(driver)
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("migrate statement %d -> %w", i, err)
		}
	}
	return nil
}

// Migrate runs the schema against d.
func (d *DB) Migrate(ctx context.Context) error {
	return Migrate(ctx, d.Client, d.Driver)
}
