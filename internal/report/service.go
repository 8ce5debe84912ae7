package report

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"go.uber.org/zap"

	"rfidaccess/internal/store"
	"rfidaccess/internal/trimester"
)

const (
	topLimit    = 10
	recentLimit = 20
)

// Service reads from the shared store; it never writes.
type Service struct {
	db       store.DBTX
	calendar trimester.Calendar
	logger   *zap.Logger
}

func NewService(db store.DBTX, calendar trimester.Calendar, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, calendar: calendar, logger: logger}
}

// Today is the current instant in the reporting time zone.
func (s *Service) Today() time.Time { return s.calendar.Today() }

// scanRow is one attendance row with the person it refers to, if still present.
type scanRow struct {
	ID         int64
	PersonID   int64
	Action     string
	Status     string
	OccurredAt time.Time
	Surname    sql.NullString
	GivenName  sql.NullString
	Type       sql.NullString
}

func (s *Service) scans(ctx context.Context, from, to time.Time) ([]scanRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.person_id, a.action, a.status, a.occurred_at, p.surname, p.given_name, p.type
		FROM attendance a
		LEFT JOIN persons p ON a.person_id = p.id
		WHERE a.occurred_at >= $1 AND a.occurred_at < $2
		ORDER BY a.occurred_at, a.id
	`, from, to)
	if err != nil {
		return nil, store.ClassifyErr("load scans", err)
	}
	defer rows.Close()
	var out []scanRow
	for rows.Next() {
		var r scanRow
		if err := rows.Scan(&r.ID, &r.PersonID, &r.Action, &r.Status, &r.OccurredAt, &r.Surname, &r.GivenName, &r.Type); err != nil {
			return nil, store.ClassifyErr("load scans", err)
		}
		out = append(out, r)
	}
	return out, store.ClassifyErr("load scans", rows.Err())
}

func (s *Service) day(t time.Time) string {
	loc := s.calendar.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}

// Stats builds the dashboard for rng.
func (s *Service) Stats(ctx context.Context, rng Range) (Stats, error) {
	from, to := rng.Bounds()
	st := Stats{
		Range:            RangeInfo{Start: rng.Start.Format(dateLayout), End: rng.End.Format(dateLayout), Days: rng.Days()},
		AttendanceByType: []TypeCounts{},
	}

	general, err := s.general(ctx)
	if err != nil {
		return Stats{}, err
	}
	st.General = general

	scans, err := s.scans(ctx, from, to)
	if err != nil {
		return Stats{}, err
	}
	byType := map[string]*TypeCounts{}
	byDay := map[string]*Counts{}
	for _, r := range scans {
		st.AttendanceSummary.add(r.Action, r.Status)
		d := s.day(r.OccurredAt)
		if byDay[d] == nil {
			byDay[d] = &Counts{}
		}
		byDay[d].add(r.Action, r.Status)
		if !r.Type.Valid {
			continue
		}
		tc := byType[r.Type.String]
		if tc == nil {
			tc = &TypeCounts{Type: r.Type.String}
			byType[r.Type.String] = tc
		}
		tc.Count++
		if r.Status == "success" {
			tc.Success++
		} else {
			tc.Failed++
		}
	}
	for _, tc := range byType {
		st.AttendanceByType = append(st.AttendanceByType, *tc)
	}
	sort.Slice(st.AttendanceByType, func(i, j int) bool { return st.AttendanceByType[i].Type < st.AttendanceByType[j].Type })

	for d := rng.Start; !d.After(rng.End); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		p := TrendPoint{Date: key}
		if c := byDay[key]; c != nil {
			p.Counts = *c
		}
		st.AttendanceTrend = append(st.AttendanceTrend, p)
	}

	today := s.calendar.Today()
	if st.Payments, err = s.paymentStats(ctx, trimester.Of(today)); err != nil {
		return Stats{}, err
	}
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	if st.TopAttendance, err = s.top(ctx, monthStart.UTC(), monthStart.AddDate(0, 1, 0).UTC()); err != nil {
		return Stats{}, err
	}
	if st.RecentActivity, err = s.recent(ctx); err != nil {
		return Stats{}, err
	}
	s.logger.Debug("statistics generated", zap.String("range", rng.String()))
	return st, nil
}

func (s *Service) general(ctx context.Context) (General, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM persons GROUP BY type`)
	if err != nil {
		return General{}, store.ClassifyErr("count persons", err)
	}
	defer rows.Close()
	var g General
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return General{}, store.ClassifyErr("count persons", err)
		}
		g.TotalPersons += n
		switch typ {
		case "student":
			g.TotalStudents = n
		case "teacher":
			g.TotalTeachers = n
		case "staff":
			g.TotalStaff = n
		case "visitor":
			g.TotalVisitors = n
		}
	}
	return g, store.ClassifyErr("count persons", rows.Err())
}

func (s *Service) paymentStats(ctx context.Context, t trimester.Trimester) (PaymentStats, error) {
	ps := PaymentStats{CurrentTrimester: t}
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons WHERE type = 'student'`).Scan(&ps.TotalStudents)
	if err != nil {
		return PaymentStats{}, store.ClassifyErr("count students", err)
	}
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT sp.student_id)
		FROM student_payments sp
		JOIN persons p ON p.id = sp.student_id
		WHERE p.type = 'student' AND sp.trimester = $1
	`, int(t)).Scan(&ps.StudentsPaid)
	if err != nil {
		return PaymentStats{}, store.ClassifyErr("count paid students", err)
	}
	ps.StudentsUnpaid = ps.TotalStudents - ps.StudentsPaid
	ps.PaymentRate = percent(ps.StudentsPaid, ps.TotalStudents)
	return ps, nil
}

func (s *Service) top(ctx context.Context, from, to time.Time) ([]TopAttendee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.surname, p.given_name, p.type, COUNT(*) AS attendance_count
		FROM attendance a
		JOIN persons p ON a.person_id = p.id
		WHERE a.occurred_at >= $1 AND a.occurred_at < $2
		GROUP BY p.id, p.surname, p.given_name, p.type
		ORDER BY attendance_count DESC, p.id
		LIMIT $3
	`, from, to, topLimit)
	if err != nil {
		return nil, store.ClassifyErr("top attendance", err)
	}
	defer rows.Close()
	out := []TopAttendee{}
	for rows.Next() {
		var a TopAttendee
		if err := rows.Scan(&a.ID, &a.Surname, &a.GivenName, &a.Type, &a.AttendanceCount); err != nil {
			return nil, store.ClassifyErr("top attendance", err)
		}
		out = append(out, a)
	}
	return out, store.ClassifyErr("top attendance", rows.Err())
}

func (s *Service) recent(ctx context.Context) ([]Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.action, a.status, a.occurred_at, p.surname, p.given_name, p.type
		FROM attendance a
		JOIN persons p ON a.person_id = p.id
		ORDER BY a.occurred_at DESC, a.id DESC
		LIMIT $1
	`, recentLimit)
	if err != nil {
		return nil, store.ClassifyErr("recent activity", err)
	}
	defer rows.Close()
	out := []Activity{}
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.Action, &a.Status, &a.OccurredAt, &a.Surname, &a.GivenName, &a.Type); err != nil {
			return nil, store.ClassifyErr("recent activity", err)
		}
		a.OccurredAt = a.OccurredAt.UTC()
		out = append(out, a)
	}
	return out, store.ClassifyErr("recent activity", rows.Err())
}

func (s *Service) header(kind Kind, rng Range) Header {
	return Header{
		Type:        kind,
		StartDate:   rng.Start.Format(dateLayout),
		EndDate:     rng.End.Format(dateLayout),
		GeneratedAt: s.calendar.Today().UTC(),
	}
}

// Attendance reports scans per day and per person over rng.
func (s *Service) Attendance(ctx context.Context, rng Range) (AttendanceReport, error) {
	from, to := rng.Bounds()
	scans, err := s.scans(ctx, from, to)
	if err != nil {
		return AttendanceReport{}, err
	}
	rep := AttendanceReport{Header: s.header(KindAttendance, rng), DailySummary: []DailySummary{}, PersonSummary: []PersonSummary{}}

	daily := map[string]*DailySummary{}
	var days []string
	persons := map[int64]*PersonSummary{}
	for _, r := range scans {
		d := s.day(r.OccurredAt)
		ds := daily[d]
		if ds == nil {
			ds = &DailySummary{Date: d}
			daily[d] = ds
			days = append(days, d)
		}
		var c Counts
		c.add(r.Action, r.Status)
		ds.TotalScans++
		ds.Successful += c.Success
		ds.Failed += c.Failed
		ds.Entries += c.Entries
		ds.Exits += c.Exits

		if !r.Type.Valid {
			continue
		}
		ps := persons[r.PersonID]
		if ps == nil {
			ps = &PersonSummary{ID: r.PersonID, Surname: r.Surname.String, GivenName: r.GivenName.String, Type: r.Type.String, FirstScan: r.OccurredAt.UTC()}
			persons[r.PersonID] = ps
		}
		ps.TotalScans++
		ps.SuccessfulScans += c.Success
		ps.Entries += c.Entries
		ps.LastScan = r.OccurredAt.UTC()
	}
	// scans arrive in time order, so days is already sorted
	for _, d := range days {
		rep.DailySummary = append(rep.DailySummary, *daily[d])
	}
	for _, ps := range persons {
		rep.PersonSummary = append(rep.PersonSummary, *ps)
	}
	sort.Slice(rep.PersonSummary, func(i, j int) bool {
		a, b := rep.PersonSummary[i], rep.PersonSummary[j]
		if a.TotalScans != b.TotalScans {
			return a.TotalScans > b.TotalScans
		}
		return a.ID < b.ID
	})
	return rep, nil
}
