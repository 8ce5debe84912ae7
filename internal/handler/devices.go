package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"

	"rfidaccess/internal/apperr"
)

type registerDeviceRequest struct {
	DeviceID string `json:"device_id"`
}

func (r registerDeviceRequest) Validate() error {
	return apperr.FromValidation(validation.ValidateStruct(&r,
		validation.Field(&r.DeviceID, validation.Required, validation.Length(1, 128)),
	))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r refreshRequest) Validate() error {
	return apperr.FromValidation(validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	))
}

func (h *Handler) RegisterDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(c, err)
		return
	}
	pair, err := h.Devices.Register(c.Request.Context(), req.DeviceID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *Handler) RefreshDevice(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(c, err)
		return
	}
	pair, err := h.Devices.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}
