// Package report computes dashboard statistics and period reports over the attendance log
// and the payment ledger.
package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"rfidaccess/internal/apperr"
	"rfidaccess/internal/trimester"
)

const dateLayout = "2006-01-02"

// Range is an inclusive span of calendar days in a given location.
type Range struct {
	Start time.Time
	End   time.Time
}

// ParseRange reads two YYYY-MM-DD dates. Empty values default to today; reversed bounds are swapped.
func ParseRange(start, end string, today time.Time) (Range, error) {
	loc := today.Location()
	parse := func(field, v string) (time.Time, error) {
		if v == "" {
			return time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc), nil
		}
		d, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return time.Time{}, apperr.InvalidField(field, field+" must use YYYY-MM-DD format")
		}
		return d, nil
	}
	s, err := parse("start_date", start)
	if err != nil {
		return Range{}, err
	}
	e, err := parse("end_date", end)
	if err != nil {
		return Range{}, err
	}
	if s.After(e) {
		s, e = e, s
	}
	return Range{Start: s, End: e}, nil
}

// RequireRange is ParseRange for callers where both dates are mandatory.
func RequireRange(start, end string, today time.Time) (Range, error) {
	if start == "" || end == "" {
		return Range{}, apperr.Invalid("start_date and end_date are required (format: YYYY-MM-DD)")
	}
	return ParseRange(start, end, today)
}

// Bounds returns the half-open UTC interval covering the range.
func (r Range) Bounds() (time.Time, time.Time) {
	return r.Start.UTC(), r.End.AddDate(0, 0, 1).UTC()
}

// Days counts the calendar days in the range.
func (r Range) Days() int {
	n := 0
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

func (r Range) String() string {
	return r.Start.Format(dateLayout) + "_" + r.End.Format(dateLayout)
}

func percent(part, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", float64(part)/float64(total)*100)
}

// ── dashboard statistics ──

type RangeInfo struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}

type General struct {
	TotalPersons  int `json:"total_persons"`
	TotalStudents int `json:"total_students"`
	TotalTeachers int `json:"total_teachers"`
	TotalStaff    int `json:"total_staff"`
	TotalVisitors int `json:"total_visitors"`
}

// Counts aggregates a set of scans.
type Counts struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Entries int `json:"entries"`
	Exits   int `json:"exits"`
}

func (c *Counts) add(action, status string) {
	c.Total++
	if status == "success" {
		c.Success++
	} else {
		c.Failed++
	}
	if action == "in" {
		c.Entries++
	} else {
		c.Exits++
	}
}

type TypeCounts struct {
	Type    string `json:"type"`
	Count   int    `json:"count"`
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
}

type PaymentStats struct {
	CurrentTrimester trimester.Trimester `json:"current_trimester"`
	TotalStudents    int                 `json:"total_students"`
	StudentsPaid     int                 `json:"students_paid"`
	StudentsUnpaid   int                 `json:"students_unpaid"`
	PaymentRate      string              `json:"payment_rate"`
}

type TopAttendee struct {
	ID              int64  `json:"id"`
	Surname         string `json:"surname"`
	GivenName       string `json:"given_name"`
	Type            string `json:"type"`
	AttendanceCount int    `json:"attendance_count"`
}

type Activity struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"timestamp"`
	Surname    string    `json:"surname"`
	GivenName  string    `json:"given_name"`
	Type       string    `json:"type"`
}

type TrendPoint struct {
	Date string `json:"date"`
	Counts
}

type Stats struct {
	Range             RangeInfo     `json:"range"`
	General           General       `json:"general"`
	AttendanceSummary Counts        `json:"attendance_summary"`
	AttendanceByType  []TypeCounts  `json:"attendance_by_type"`
	Payments          PaymentStats  `json:"payments"`
	TopAttendance     []TopAttendee `json:"top_attendance"`
	RecentActivity    []Activity    `json:"recent_activity"`
	AttendanceTrend   []TrendPoint  `json:"attendance_trend"`
}

// ── period reports ──

type Kind string

const (
	KindAttendance Kind = "attendance"
	KindPayments   Kind = "payments"
	KindSummary    Kind = "summary"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "":
		return KindAttendance, nil
	case KindAttendance, KindPayments, KindSummary:
		return Kind(s), nil
	}
	return "", apperr.InvalidField("type", "invalid report type. Use: attendance, payments, or summary")
}

type Header struct {
	Type        Kind      `json:"type"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	GeneratedAt time.Time `json:"generated_at"`
}

type DailySummary struct {
	Date       string `json:"date"`
	TotalScans int    `json:"total_scans"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	Entries    int    `json:"entries"`
	Exits      int    `json:"exits"`
}

type PersonSummary struct {
	ID              int64     `json:"id"`
	Surname         string    `json:"surname"`
	GivenName       string    `json:"given_name"`
	Type            string    `json:"type"`
	TotalScans      int       `json:"total_scans"`
	SuccessfulScans int       `json:"successful_scans"`
	Entries         int       `json:"entries"`
	FirstScan       time.Time `json:"first_scan"`
	LastScan        time.Time `json:"last_scan"`
}

type AttendanceReport struct {
	Header
	DailySummary  []DailySummary  `json:"daily_summary"`
	PersonSummary []PersonSummary `json:"person_summary"`
}

type PaymentGroup struct {
	Trimester    trimester.Trimester `json:"trimester"`
	Method       string              `json:"payment_method"`
	StudentsPaid int                 `json:"students_paid"`
	TotalAmount  decimal.Decimal     `json:"total_amount"`
	PaymentCount int                 `json:"payment_count"`
}

type PaymentDetail struct {
	Surname    string              `json:"surname"`
	GivenName  string              `json:"given_name"`
	Trimester  trimester.Trimester `json:"trimester"`
	Amount     decimal.Decimal     `json:"amount"`
	Method     string              `json:"payment_method"`
	OccurredAt time.Time           `json:"payment_date"`
}

type PaymentsReport struct {
	Header
	Summary []PaymentGroup  `json:"summary"`
	Details []PaymentDetail `json:"details"`
}

type SummaryAttendance struct {
	TotalScans    int    `json:"total_scans"`
	Successful    int    `json:"successful"`
	Failed        int    `json:"failed"`
	UniquePersons int    `json:"unique_persons"`
	SuccessRate   string `json:"success_rate"`
}

type SummaryPayments struct {
	TotalPayments int             `json:"total_payments"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

type SummaryReport struct {
	Header
	Attendance SummaryAttendance `json:"attendance"`
	Payments   SummaryPayments   `json:"payments"`
}
