package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rfidaccess/internal/apperr"
	"rfidaccess/internal/ledger"
)

func (h *Handler) RegisterPayment(c *gin.Context) {
	var in ledger.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badJSON(c)
		return
	}
	reg, err := h.Payments.Register(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.Observer != nil {
		h.Observer.PaymentRegistered(string(reg.Payment.Method))
	}
	c.JSON(http.StatusCreated, reg)
}

func (h *Handler) ListPayments(c *gin.Context) {
	raw := query(c, "student_id", "studentId")
	if raw == "" {
		h.fail(c, apperr.InvalidField("student_id", "student_id is required"))
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.fail(c, apperr.InvalidField("student_id", "invalid student_id"))
		return
	}
	entries, err := h.Payments.ListForStudent(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(entries))
}
