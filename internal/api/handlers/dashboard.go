package handlers

import (
	"net/http"

	"studybuddy/internal/models"
	"studybuddy/internal/studytime"

	"github.com/gin-gonic/gin"
)

func (h *Handler) HandleDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.peekSession(c).Dashboard())
}

// HandleAnalytics reports the total study time of the session.
func (h *Handler) HandleAnalytics(c *gin.Context) {
	var total int64
	if h.Tracker != nil {
		var err error
		total, err = h.Tracker.Total(c.Request.Context(), c.GetString(SessionIDKey))
		if err != nil {
			h.respondError(c, err, "Failed to load study time.")
			return
		}
	}
	c.JSON(http.StatusOK, models.AnalyticsResponse{
		TotalStudyTime:          total,
		TotalStudyTimeFormatted: studytime.FormatDuration(total),
	})
}
