package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfidaccess/internal/apperr"
	"rfidaccess/internal/attendance"
	"rfidaccess/internal/auth"
	"rfidaccess/internal/ledger"
	"rfidaccess/internal/person"
	"rfidaccess/internal/presence"
	"rfidaccess/internal/report"
	"rfidaccess/internal/scan"
)

// ---------- fakes ----------

type fakeScans struct {
	got scan.Request
	res scan.Result
	err error
}

func (f *fakeScans) Scan(_ context.Context, req scan.Request) (scan.Result, error) {
	f.got = req
	return f.res, f.err
}

type fakePayments struct {
	in      ledger.RegisterInput
	reg     ledger.Registration
	entries []ledger.Entry
	err     error
}

func (f *fakePayments) Register(_ context.Context, in ledger.RegisterInput) (ledger.Registration, error) {
	f.in = in
	return f.reg, f.err
}

func (f *fakePayments) ListForStudent(context.Context, int64) ([]ledger.Entry, error) {
	return f.entries, f.err
}

type fakePersons struct {
	person    person.Enriched
	list      []person.Enriched
	err       error
	removedID int64
	category  string
}

func (f *fakePersons) Create(context.Context, person.CreateInput) (person.Enriched, error) {
	return f.person, f.err
}
func (f *fakePersons) Get(context.Context, int64) (person.Enriched, error) { return f.person, f.err }
func (f *fakePersons) Update(context.Context, int64, person.UpdateInput) (person.Enriched, error) {
	return f.person, f.err
}
func (f *fakePersons) Remove(_ context.Context, id int64) error {
	f.removedID = id
	return f.err
}
func (f *fakePersons) List(_ context.Context, category string) ([]person.Enriched, error) {
	f.category = category
	return f.list, f.err
}
func (f *fakePersons) Search(_ context.Context, _ string, category string) ([]person.Enriched, error) {
	f.category = category
	return f.list, f.err
}

type fakeAttendance struct {
	filter attendance.Filter
	err    error
}

func (f *fakeAttendance) List(_ context.Context, filter attendance.Filter) ([]attendance.Entry, error) {
	f.filter = filter
	return nil, f.err
}

type fakeReports struct {
	today time.Time
	rng   report.Range
	kind  report.Kind
}

func (f *fakeReports) Today() time.Time { return f.today }
func (f *fakeReports) Stats(_ context.Context, rng report.Range) (report.Stats, error) {
	f.rng = rng
	return report.Stats{}, nil
}
func (f *fakeReports) Attendance(_ context.Context, rng report.Range) (report.AttendanceReport, error) {
	f.rng = rng
	return report.AttendanceReport{}, nil
}
func (f *fakeReports) Build(_ context.Context, kind report.Kind, rng report.Range) (any, error) {
	f.kind, f.rng = kind, rng
	return gin.H{"kind": kind}, nil
}

type fakePresence struct{ entries []presence.Entry }

func (f fakePresence) OnSite(context.Context) ([]presence.Entry, error) { return f.entries, nil }

type fakeDevices struct{ registered string }

func (f *fakeDevices) Register(_ context.Context, id string) (auth.TokenPair, error) {
	f.registered = id
	return auth.TokenPair{AccessToken: "a", RefreshToken: "r"}, nil
}
func (f *fakeDevices) Refresh(context.Context, string) (auth.TokenPair, error) {
	return auth.TokenPair{}, apperr.InvalidField("refresh_token", "invalid refresh token")
}

type fakeObserver struct{ methods []string }

func (f *fakeObserver) PaymentRegistered(m string) { f.methods = append(f.methods, m) }

// ---------- harness ----------

type env struct {
	scans      *fakeScans
	payments   *fakePayments
	persons    *fakePersons
	attendance *fakeAttendance
	reports    *fakeReports
	devices    *fakeDevices
	observer   *fakeObserver
	router     *gin.Engine
}

func newEnv(t *testing.T, mutate ...func(*Deps)) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	e := &env{
		scans:      &fakeScans{},
		payments:   &fakePayments{},
		persons:    &fakePersons{},
		attendance: &fakeAttendance{},
		reports:    &fakeReports{today: time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)},
		devices:    &fakeDevices{},
		observer:   &fakeObserver{},
	}
	d := Deps{
		Scans:      e.scans,
		Payments:   e.payments,
		Persons:    e.persons,
		Attendance: e.attendance,
		Reports:    e.reports,
		Devices:    e.devices,
		Observer:   e.observer,
	}
	for _, m := range mutate {
		m(&d)
	}
	e.router = gin.New()
	RegisterRoutes(e.router.Group("/v1"), d)
	return e
}

func (e *env) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// ---------- tests ----------

func TestScan(t *testing.T) {
	t.Run("unknown badge is a 200", func(t *testing.T) {
		e := newEnv(t)
		e.scans.res = scan.Result{Success: true, Message: "Unrecognized badge"}

		rec := e.do(http.MethodPost, "/v1/scan", `{"badge_id":"ZZ"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"person":null`)
		assert.Equal(t, "ZZ", e.scans.got.BadgeID)
	})

	t.Run("rfid_uuid alias", func(t *testing.T) {
		e := newEnv(t)
		e.do(http.MethodPost, "/v1/scan", `{"rfid_uuid":"A1","action":"out"}`)
		assert.Equal(t, scan.Request{BadgeID: "A1", Action: "out"}, e.scans.got)
	})

	t.Run("invalid input maps to 400 with field", func(t *testing.T) {
		e := newEnv(t)
		e.scans.err = apperr.InvalidField("badge_id", "invalid or missing badge id")

		rec := e.do(http.MethodPost, "/v1/scan", `{"badge_id":""}`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "INVALID_ARGUMENT", body.Error.Code)
		assert.Equal(t, "badge_id", body.Error.Field)
	})

	t.Run("malformed json", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodPost, "/v1/scan", `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("storage failure hides cause", func(t *testing.T) {
		e := newEnv(t)
		e.scans.err = apperr.Storage("attendance write failed", errors.New("disk full at /var/lib"))

		rec := e.do(http.MethodPost, "/v1/scan", `{"badge_id":"A1"}`)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.NotContains(t, rec.Body.String(), "disk full")
	})

	t.Run("plain error is a 500", func(t *testing.T) {
		e := newEnv(t)
		e.scans.err = errors.New("boom")
		rec := e.do(http.MethodPost, "/v1/scan", `{"badge_id":"A1"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "INTERNAL", decodeError(t, rec).Error.Code)
	})

	t.Run("guard runs before scan", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		scans := &fakeScans{}
		r := gin.New()
		RegisterRoutes(r.Group("/v1"), Deps{Scans: scans}, func(c *gin.Context) {
			c.AbortWithStatus(http.StatusUnauthorized)
		})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/scan", strings.NewReader(`{"badge_id":"A1"}`)))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, scans.got.BadgeID)
	})
}

func TestPayments(t *testing.T) {
	t.Run("register", func(t *testing.T) {
		e := newEnv(t)
		e.payments.reg = ledger.Registration{Payment: ledger.Payment{ID: 1, Method: ledger.Cash}}

		rec := e.do(http.MethodPost, "/v1/payments", `{"student_id":7,"trimester":2,"amount":"500","payment_method":"cash"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, int64(7), e.payments.in.StudentID)
		assert.Equal(t, 2, e.payments.in.Trimester)
		assert.True(t, decimal.NewFromInt(500).Equal(e.payments.in.Amount))
		assert.Equal(t, []string{"cash"}, e.observer.methods)
	})

	t.Run("duplicate is a conflict", func(t *testing.T) {
		e := newEnv(t)
		e.payments.err = apperr.Conflict("trimester", "payment already registered for trimester 2")

		rec := e.do(http.MethodPost, "/v1/payments", `{"student_id":7,"trimester":2,"amount":500,"payment_method":"cash"}`)

		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "trimester", decodeError(t, rec).Error.Field)
		assert.Empty(t, e.observer.methods)
	})

	t.Run("list requires student_id", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodGet, "/v1/payments", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "student_id", decodeError(t, rec).Error.Field)
	})

	t.Run("empty list renders as array", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodGet, "/v1/payments?student_id=3", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func TestPersons(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		e := newEnv(t)
		e.persons.person = person.Enriched{Person: person.Person{ID: 4, BadgeID: "B1"}}
		rec := e.do(http.MethodPost, "/v1/persons", `{"badge_id":"B1","type":"staff","surname":"Doe","given_name":"Jo"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodGet, "/v1/persons/abc", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not found", func(t *testing.T) {
		e := newEnv(t)
		e.persons.err = apperr.NotFound("person not found")
		rec := e.do(http.MethodGet, "/v1/persons/9", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodDelete, "/v1/persons/12", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(12), e.persons.removedID)
	})

	t.Run("list passes type filter", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodGet, "/v1/persons?type=student", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
		assert.Equal(t, "student", e.persons.category)
	})

	t.Run("badge conflict on update", func(t *testing.T) {
		e := newEnv(t)
		e.persons.err = apperr.Conflict("badge_id", "badge already assigned")
		rec := e.do(http.MethodPut, "/v1/persons/1", `{"badge_id":"X"}`)
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "badge_id", decodeError(t, rec).Error.Field)
	})
}

func TestListAttendance(t *testing.T) {
	t.Run("single date becomes a one-day window", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodGet, "/v1/attendance?date=2025-04-02&status=failed&personId=5", "")

		require.Equal(t, http.StatusOK, rec.Code)
		f := e.attendance.filter
		require.NotNil(t, f.From)
		require.NotNil(t, f.To)
		assert.Equal(t, time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), *f.From)
		assert.Equal(t, time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC), *f.To)
		assert.Equal(t, attendance.Failed, f.Outcome)
		assert.Equal(t, int64(5), f.PersonID)
		assert.Equal(t, attendance.DefaultLimit, f.Limit)
	})

	t.Run("no dates lists everything", func(t *testing.T) {
		e := newEnv(t)
		e.do(http.MethodGet, "/v1/attendance", "")
		assert.Nil(t, e.attendance.filter.From)
		assert.Nil(t, e.attendance.filter.To)
	})

	t.Run("bad limit", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodGet, "/v1/attendance?limit=ten", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "limit", decodeError(t, rec).Error.Field)
	})

	t.Run("bad date", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodGet, "/v1/attendance?start_date=04/02/2025", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStatsDefaultsToToday(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC), e.reports.rng.Start)
	assert.Equal(t, e.reports.rng.Start, e.reports.rng.End)
}

func TestReport(t *testing.T) {
	t.Run("range is required", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodGet, "/v1/reports?type=payments", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("json", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodGet, "/v1/reports?type=summary&start_date=2025-04-01&end_date=2025-04-30", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, report.KindSummary, e.reports.kind)
	})

	t.Run("unknown type", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodGet, "/v1/reports?type=weekly&start_date=2025-04-01&end_date=2025-04-30", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("xlsx only for attendance", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodGet, "/v1/reports?type=payments&format=xlsx&start_date=2025-04-01&end_date=2025-04-30", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "format", decodeError(t, rec).Error.Field)
	})

	t.Run("xlsx download", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodGet, "/v1/reports?format=xlsx&start_date=2025-04-01&end_date=2025-04-30", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
		assert.NotZero(t, rec.Body.Len())
	})
}

func TestPresence(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodGet, "/v1/presence", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("lists on-site persons", func(t *testing.T) {
		since := time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC)
		e := newEnv(t, func(d *Deps) {
			d.Presence = fakePresence{entries: []presence.Entry{{PersonID: 3, Since: since}}}
		})
		rec := e.do(http.MethodGet, "/v1/presence", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"count":1,"on_site":[{"person_id":3,"since":"2025-04-10T08:00:00Z"}]}`, rec.Body.String())
	})
}

func TestDevices(t *testing.T) {
	t.Run("register requires device id", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodPost, "/v1/devices/register", `{}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "device_id", decodeError(t, rec).Error.Field)
	})

	t.Run("register", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodPost, "/v1/devices/register", `{"device_id":"gate-1"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "gate-1", e.devices.registered)
	})

	t.Run("refresh with bad token", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(http.MethodPost, "/v1/devices/refresh", `{"refresh_token":"nope"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
