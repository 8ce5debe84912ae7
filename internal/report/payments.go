package report

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"rfidaccess/internal/store"
	"rfidaccess/internal/trimester"
)

// Payments groups the payments made in rng by trimester and method and lists them.
// Payments whose student was deleted no longer carry a link and are not listed here.
func (s *Service) Payments(ctx context.Context, rng Range) (PaymentsReport, error) {
	from, to := rng.Bounds()
	rows, err := s.db.QueryContext(ctx, `
		SELECT sp.student_id, per.surname, per.given_name, sp.trimester, p.amount, p.method, p.occurred_at
		FROM student_payments sp
		JOIN payments p ON sp.payment_id = p.id
		JOIN persons per ON sp.student_id = per.id
		WHERE p.occurred_at >= $1 AND p.occurred_at < $2
		ORDER BY p.occurred_at DESC, p.id DESC
	`, from, to)
	if err != nil {
		return PaymentsReport{}, store.ClassifyErr("payments report", err)
	}
	defer rows.Close()

	rep := PaymentsReport{Header: s.header(KindPayments, rng), Summary: []PaymentGroup{}, Details: []PaymentDetail{}}
	type groupKey struct {
		t      trimester.Trimester
		method string
	}
	groups := map[groupKey]*PaymentGroup{}
	students := map[groupKey]map[int64]bool{}
	for rows.Next() {
		var studentID int64
		var d PaymentDetail
		if err := rows.Scan(&studentID, &d.Surname, &d.GivenName, &d.Trimester, &d.Amount, &d.Method, &d.OccurredAt); err != nil {
			return PaymentsReport{}, store.ClassifyErr("payments report", err)
		}
		d.OccurredAt = d.OccurredAt.UTC()
		rep.Details = append(rep.Details, d)

		k := groupKey{d.Trimester, d.Method}
		g := groups[k]
		if g == nil {
			g = &PaymentGroup{Trimester: d.Trimester, Method: d.Method, TotalAmount: decimal.Zero}
			groups[k] = g
			students[k] = map[int64]bool{}
		}
		g.PaymentCount++
		g.TotalAmount = g.TotalAmount.Add(d.Amount)
		students[k][studentID] = true
	}
	if err := rows.Err(); err != nil {
		return PaymentsReport{}, store.ClassifyErr("payments report", err)
	}
	for k, g := range groups {
		g.StudentsPaid = len(students[k])
		rep.Summary = append(rep.Summary, *g)
	}
	sort.Slice(rep.Summary, func(i, j int) bool {
		a, b := rep.Summary[i], rep.Summary[j]
		if a.Trimester != b.Trimester {
			return a.Trimester < b.Trimester
		}
		return a.Method < b.Method
	})
	return rep, nil
}

// Summary reports overall scan and payment totals for rng. Payments orphaned by a
// student deletion still count here.
func (s *Service) Summary(ctx context.Context, rng Range) (SummaryReport, error) {
	from, to := rng.Bounds()
	scans, err := s.scans(ctx, from, to)
	if err != nil {
		return SummaryReport{}, err
	}
	rep := SummaryReport{Header: s.header(KindSummary, rng)}
	unique := map[int64]bool{}
	for _, r := range scans {
		rep.Attendance.TotalScans++
		if r.Status == "success" {
			rep.Attendance.Successful++
		} else {
			rep.Attendance.Failed++
		}
		unique[r.PersonID] = true
	}
	rep.Attendance.UniquePersons = len(unique)
	rep.Attendance.SuccessRate = percent(rep.Attendance.Successful, rep.Attendance.TotalScans)

	amounts, err := s.db.QueryContext(ctx, `
		SELECT amount FROM payments WHERE occurred_at >= $1 AND occurred_at < $2
	`, from, to)
	if err != nil {
		return SummaryReport{}, store.ClassifyErr("summary payments", err)
	}
	defer amounts.Close()
	rep.Payments.TotalAmount = decimal.Zero
	for amounts.Next() {
		var a decimal.Decimal
		if err := amounts.Scan(&a); err != nil {
			return SummaryReport{}, store.ClassifyErr("summary payments", err)
		}
		rep.Payments.TotalPayments++
		rep.Payments.TotalAmount = rep.Payments.TotalAmount.Add(a)
	}
	return rep, store.ClassifyErr("summary payments", amounts.Err())
}

// Build dispatches on kind.
func (s *Service) Build(ctx context.Context, kind Kind, rng Range) (any, error) {
	switch kind {
	case KindPayments:
		return s.Payments(ctx, rng)
	case KindSummary:
		return s.Summary(ctx, rng)
	default:
		return s.Attendance(ctx, rng)
	}
}

