package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rfidaccess/internal/apperr"
	"rfidaccess/internal/attendance"
	"rfidaccess/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// dateRange reads start_date/end_date, falling back to a single date for both ends.
func (h *Handler) dateRange(c *gin.Context) (report.Range, error) {
	start := query(c, "start_date", "startDate")
	end := query(c, "end_date", "endDate")
	if day := query(c, "date"); day != "" && start == "" && end == "" {
		start, end = day, day
	}
	return report.ParseRange(start, end, h.Reports.Today())
}

func (h *Handler) ListAttendance(c *gin.Context) {
	f := attendance.Filter{
		Outcome: attendance.Outcome(query(c, "status")),
		Action:  attendance.Action(query(c, "action")),
	}
	var err error
	if f.Limit, err = intQuery(c, "limit", attendance.DefaultLimit); err != nil {
		h.fail(c, err)
		return
	}
	if f.Offset, err = intQuery(c, "offset", 0); err != nil {
		h.fail(c, err)
		return
	}
	if pid := query(c, "person_id", "personId"); pid != "" {
		id, err := strconv.ParseInt(pid, 10, 64)
		if err != nil || id <= 0 {
			h.fail(c, apperr.InvalidField("person_id", "invalid person_id"))
			return
		}
		f.PersonID = id
	}
	// Without any date parameter the full log is listed.
	if query(c, "date", "start_date", "startDate", "end_date", "endDate") != "" {
		rng, err := h.dateRange(c)
		if err != nil {
			h.fail(c, err)
			return
		}
		from, to := rng.Bounds()
		f.From, f.To = &from, &to
	}

	entries, err := h.Attendance.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(entries))
}

func (h *Handler) Stats(c *gin.Context) {
	rng, err := h.dateRange(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	stats, err := h.Reports.Stats(c.Request.Context(), rng)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Report builds an attendance, payments or summary report. format=xlsx downloads attendance as a workbook.
func (h *Handler) Report(c *gin.Context) {
	kind, err := report.ParseKind(c.Query("type"))
	if err != nil {
		h.fail(c, err)
		return
	}
	rng, err := report.RequireRange(query(c, "start_date", "startDate"), query(c, "end_date", "endDate"), h.Reports.Today())
	if err != nil {
		h.fail(c, err)
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "json":
	case "xlsx":
		if kind != report.KindAttendance {
			h.fail(c, apperr.InvalidField("format", "xlsx export is only available for attendance reports"))
			return
		}
		h.exportAttendance(c, rng)
		return
	default:
		h.fail(c, apperr.InvalidField("format", `format must be "json" or "xlsx"`))
		return
	}

	rep, err := h.Reports.Build(c.Request.Context(), kind, rng)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) exportAttendance(c *gin.Context, rng report.Range) {
	rep, err := h.Reports.Attendance(c.Request.Context(), rng)
	if err != nil {
		h.fail(c, err)
		return
	}
	buf, name, err := report.ExportAttendance(rep)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handler) ListPresence(c *gin.Context) {
	if h.Presence == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody(apperr.CodeStorageUnavailable, "presence tracking is disabled", ""))
		return
	}
	entries, err := h.Presence.OnSite(c.Request.Context())
	if err != nil {
		h.fail(c, apperr.Storage("presence board unavailable", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "on_site": nonNil(entries)})
}
