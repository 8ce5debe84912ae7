package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rfidaccess/internal/scan"
)

// scanRequest accepts rfid_uuid as an alias of badge_id for older reader firmware.
type scanRequest struct {
	BadgeID  string `json:"badge_id"`
	RFIDUUID string `json:"rfid_uuid"`
	Action   string `json:"action"`
}

func (h *Handler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	badge := req.BadgeID
	if badge == "" {
		badge = req.RFIDUUID
	}
	res, err := h.Scans.Scan(c.Request.Context(), scan.Request{BadgeID: badge, Action: req.Action})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
