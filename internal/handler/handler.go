// Package handler exposes the services over HTTP. Handlers only parse input and shape output.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rfidaccess/internal/apperr"
	"rfidaccess/internal/attendance"
	"rfidaccess/internal/auth"
	"rfidaccess/internal/ledger"
	"rfidaccess/internal/person"
	"rfidaccess/internal/presence"
	"rfidaccess/internal/report"
	"rfidaccess/internal/scan"
)

type ScanService interface {
	Scan(ctx context.Context, req scan.Request) (scan.Result, error)
}

type PaymentService interface {
	Register(ctx context.Context, in ledger.RegisterInput) (ledger.Registration, error)
	ListForStudent(ctx context.Context, studentID int64) ([]ledger.Entry, error)
}

type PersonService interface {
	Create(ctx context.Context, in person.CreateInput) (person.Enriched, error)
	Get(ctx context.Context, id int64) (person.Enriched, error)
	Update(ctx context.Context, id int64, in person.UpdateInput) (person.Enriched, error)
	Remove(ctx context.Context, id int64) error
	List(ctx context.Context, category string) ([]person.Enriched, error)
	Search(ctx context.Context, q, category string) ([]person.Enriched, error)
}

type AttendanceService interface {
	List(ctx context.Context, f attendance.Filter) ([]attendance.Entry, error)
}

type ReportService interface {
	Today() time.Time
	Stats(ctx context.Context, rng report.Range) (report.Stats, error)
	Attendance(ctx context.Context, rng report.Range) (report.AttendanceReport, error)
	Build(ctx context.Context, kind report.Kind, rng report.Range) (any, error)
}

type PresenceService interface {
	OnSite(ctx context.Context) ([]presence.Entry, error)
}

type DeviceService interface {
	Register(ctx context.Context, deviceID string) (auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
}

// PaymentObserver is told about each registered payment.
type PaymentObserver interface {
	PaymentRegistered(method string)
}

// Deps bundles the services behind the routes. Presence and Observer may be nil.
type Deps struct {
	Scans      ScanService
	Payments   PaymentService
	Persons    PersonService
	Attendance AttendanceService
	Reports    ReportService
	Presence   PresenceService
	Devices    DeviceService
	Observer   PaymentObserver
	Logger     *zap.Logger
}

type Handler struct {
	Deps
}

// RegisterRoutes mounts every endpoint on r. scanGuard, when given, protects the scan endpoint.
func RegisterRoutes(r gin.IRouter, d Deps, scanGuard ...gin.HandlerFunc) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	h := &Handler{Deps: d}

	r.POST("/scan", append(scanGuard, h.Scan)...)

	r.POST("/payments", h.RegisterPayment)
	r.GET("/payments", h.ListPayments)

	r.GET("/persons", h.ListPersons)
	r.POST("/persons", h.CreatePerson)
	r.GET("/persons/:id", h.GetPerson)
	r.PUT("/persons/:id", h.UpdatePerson)
	r.DELETE("/persons/:id", h.DeletePerson)
	r.GET("/search", h.Search)

	r.GET("/attendance", h.ListAttendance)
	r.GET("/stats", h.Stats)
	r.GET("/reports", h.Report)
	r.GET("/presence", h.ListPresence)

	r.POST("/devices/register", h.RegisterDevice)
	r.POST("/devices/refresh", h.RefreshDevice)
}

// ---------- errors ----------

func errorBody(code apperr.Code, msg, field string) gin.H {
	body := gin.H{"code": code, "message": msg}
	if field != "" {
		body["field"] = field
	}
	return gin.H{"error": body}
}

func (h *Handler) fail(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		h.Logger.Error("unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", "internal server error", ""))
		return
	}
	status := apperr.HTTPStatus(err)
	if status >= 500 {
		h.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.String("code", string(appErr.Code)), zap.Error(err))
		// storage details stay in the log
		c.JSON(status, errorBody(appErr.Code, appErr.Message, ""))
		return
	}
	c.JSON(status, errorBody(appErr.Code, appErr.Message, appErr.Field))
}

func badJSON(c *gin.Context) {
	c.JSON(http.StatusBadRequest, errorBody(apperr.CodeInvalidArgument, "invalid json body", ""))
}

// ---------- helpers ----------

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidField("id", "invalid id")
	}
	return id, nil
}

// query returns the first non-empty value among keys; the dashboard sends both snake and camel case.
func query(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(c.Query(k)); v != "" {
			return v
		}
	}
	return ""
}

func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.InvalidField(key, key+" must be an integer")
	}
	return n, nil
}
