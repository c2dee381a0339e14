package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) getAlerts(c *gin.Context) {
	alerts, err := s.store.ListAlerts(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (s *Server) markAlertRead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	existing, err := s.store.GetAlert(ctx, id)
	if !s.checkOwner(c, "Alert", existing.UserID, err) {
		return
	}

	alert, err := s.store.MarkAlertRead(ctx, id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Alert not found"})
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

// dashboardResponse is the dashboard summary plus the user's alerts.
type dashboardResponse struct {
	DashboardSummary
	Alerts []Alert `json:"alerts"`
}

// getDashboard returns the dashboard summary for the current user
func (s *Server) getDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)

	summary, err := s.dashboard.Summarize(ctx, user.ID, s.now())
	if err != nil {
		s.internalError(c, err)
		return
	}
	alerts, err := s.store.ListAlerts(ctx, user.ID)
	if err != nil {
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, dashboardResponse{DashboardSummary: summary, Alerts: alerts})
}
