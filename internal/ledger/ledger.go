// Package ledger records tuition payments and answers per-trimester payment questions.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rfidaccess/internal/apperr"
	"rfidaccess/internal/store"
	"rfidaccess/internal/trimester"
)

type Method string

const (
	Cash         Method = "cash"
	Card         Method = "card"
	BankTransfer Method = "bank_transfer"
)

// maxAmount is the largest value NUMERIC(12,2) holds.
var maxAmount = decimal.RequireFromString("9999999999.99")

// Payment is a standalone financial record.
type Payment struct {
	ID         int64           `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     Method          `json:"payment_method"`
	OccurredAt time.Time       `json:"payment_date"`
}

// StudentPayment links a payment to one (student, trimester).
type StudentPayment struct {
	ID        int64               `json:"id"`
	StudentID int64               `json:"student_id"`
	PaymentID int64               `json:"payment_id"`
	Trimester trimester.Trimester `json:"trimester"`
}

// Registration is what Register writes.
type Registration struct {
	Payment        Payment        `json:"payment"`
	StudentPayment StudentPayment `json:"student_payment"`
}

// Entry is one row of a student's payment history.
type Entry struct {
	ID         int64               `json:"id"`
	StudentID  int64               `json:"student_id"`
	Trimester  trimester.Trimester `json:"trimester"`
	PaymentID  int64               `json:"payment_id"`
	Amount     decimal.Decimal     `json:"amount"`
	Method     Method              `json:"payment_method"`
	OccurredAt time.Time           `json:"payment_date"`
}

type RegisterInput struct {
	StudentID int64           `json:"student_id"`
	Trimester int             `json:"trimester"`
	Amount    decimal.Decimal `json:"amount"`
	Method    Method          `json:"payment_method"`
}

func (in *RegisterInput) Validate() error {
	in.Amount = in.Amount.Round(2)
	err := validation.ValidateStruct(in,
		validation.Field(&in.StudentID, validation.Required, validation.Min(int64(1))),
		validation.Field(&in.Trimester, validation.Required, validation.In(1, 2, 3).Error("allowed values are 1, 2, 3")),
		validation.Field(&in.Amount, validation.By(validAmount)),
		validation.Field(&in.Method, validation.Required, validation.In(Cash, Card, BankTransfer).Error("allowed values are cash, card, bank_transfer")),
	)
	return apperr.FromValidation(err)
}

func validAmount(v any) error {
	d, _ := v.(decimal.Decimal)
	if !d.IsPositive() {
		return errors.New("must be greater than 0")
	}
	if d.GreaterThan(maxAmount) {
		return errors.New("is too large")
	}
	return nil
}

// Ledger reads and writes payments.
type Ledger struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

func New(db *sql.DB, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// HasPaid reports whether a payment link exists for (personID, t).
func (l *Ledger) HasPaid(ctx context.Context, personID int64, t trimester.Trimester) (bool, error) {
	if !t.Valid() {
		return false, apperr.InvalidField("trimester", fmt.Sprintf("invalid trimester %d", int(t)))
	}
	return hasPaid(ctx, l.db, personID, t)
}

func hasPaid(ctx context.Context, q store.DBTX, personID int64, t trimester.Trimester) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `
		SELECT 1 FROM student_payments WHERE student_id = $1 AND trimester = $2 LIMIT 1
	`, personID, int(t)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Storage("payment lookup", err)
	}
	return true, nil
}

// Register records a payment for a student and trimester in one transaction.
// The unique (student_id, trimester) constraint is the authoritative duplicate guard;
// the pre-check only rejects the common case early.
func (l *Ledger) Register(ctx context.Context, in RegisterInput) (Registration, error) {
	if err := in.Validate(); err != nil {
		return Registration{}, err
	}
	t := trimester.Trimester(in.Trimester)

	var reg Registration
	err := store.RunInTx(ctx, l.db, nil, func(ctx context.Context, tx store.DBTX) error {
		if err := requireStudent(ctx, tx, in.StudentID); err != nil {
			return err
		}
		paid, err := hasPaid(ctx, tx, in.StudentID, t)
		if err != nil {
			return err
		}
		if paid {
			return duplicate(t)
		}
		reg, err = insertRegistration(ctx, tx, in, l.now())
		return err
	})
	if err != nil {
		if apperr.HasCode(err, apperr.CodeConflict) {
			l.logger.Warn("duplicate payment rejected", zap.Int64("student_id", in.StudentID), zap.Int("trimester", in.Trimester))
			return Registration{}, duplicate(t)
		}
		return Registration{}, store.ClassifyErr("register payment", err)
	}
	l.logger.Info("payment registered",
		zap.Int64("student_id", in.StudentID),
		zap.Int("trimester", in.Trimester),
		zap.String("amount", reg.Payment.Amount.StringFixed(2)),
		zap.String("method", string(in.Method)))
	return reg, nil
}

func duplicate(t trimester.Trimester) error {
	return apperr.Conflict("trimester", fmt.Sprintf("payment for trimester %d already exists", int(t)))
}

func requireStudent(ctx context.Context, q store.DBTX, id int64) error {
	var category string
	err := q.QueryRowContext(ctx, `SELECT type FROM persons WHERE id = $1`, id).Scan(&category)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && category != "student") {
		return apperr.NotFound("student not found")
	}
	if err != nil {
		return apperr.Storage("student lookup", err)
	}
	return nil
}

func insertRegistration(ctx context.Context, tx store.DBTX, in RegisterInput, now time.Time) (Registration, error) {
	reg := Registration{
		Payment: Payment{Amount: in.Amount, Method: in.Method, OccurredAt: now},
		StudentPayment: StudentPayment{
			StudentID: in.StudentID,
			Trimester: trimester.Trimester(in.Trimester),
		},
	}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO payments (amount, method, occurred_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, in.Amount.StringFixed(2), string(in.Method), now).Scan(&reg.Payment.ID)
	if err != nil {
		return Registration{}, store.ClassifyErr("insert payment", err)
	}
	reg.StudentPayment.PaymentID = reg.Payment.ID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO student_payments (student_id, payment_id, trimester)
		VALUES ($1, $2, $3)
		RETURNING id
	`, in.StudentID, reg.Payment.ID, in.Trimester).Scan(&reg.StudentPayment.ID)
	if err != nil {
		return Registration{}, store.ClassifyErr("link payment", err)
	}
	return reg, nil
}

// ListForStudent returns a student's payments ordered by trimester.
func (l *Ledger) ListForStudent(ctx context.Context, studentID int64) ([]Entry, error) {
	if studentID <= 0 {
		return nil, apperr.InvalidField("student_id", "student_id is required")
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT sp.id, sp.student_id, sp.trimester, p.id, p.amount, p.method, p.occurred_at
		FROM student_payments sp
		JOIN payments p ON sp.payment_id = p.id
		WHERE sp.student_id = $1
		ORDER BY sp.trimester
	`, studentID)
	if err != nil {
		return nil, apperr.Storage("list payments", err)
	}
	defer rows.Close()
	res := []Entry{}
	for rows.Next() {
		var e Entry
		var method string
		if err := rows.Scan(&e.ID, &e.StudentID, &e.Trimester, &e.PaymentID, &e.Amount, &method, &e.OccurredAt); err != nil {
			return nil, apperr.Storage("list payments", err)
		}
		e.Method = Method(method)
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list payments", err)
	}
	return res, nil
}
