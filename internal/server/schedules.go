package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/leadflow/outreach/internal/store"
	"github.com/leadflow/outreach/pkg/schema"
)

// CronPlanner computes occurrence times for cron expressions. Satisfied by
// the scheduler so the server never parses cron syntax itself.
type CronPlanner interface {
	CalculateNextRun(cronExpr string, from time.Time) (time.Time, error)
}

type createScheduleRequest struct {
	WorkflowID     string `json:"workflow_id"`
	LeadID         string `json:"lead_id"`
	CronExpression string `json:"cron_expression"`
	Disabled       bool   `json:"disabled,omitempty"`
}

func (s *Server) handleCreateSchedule(c echo.Context) error {
	var req createScheduleRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, schema.NewError(schema.ErrCodeValidation, "malformed request body"))
	}
	if req.WorkflowID == "" || req.LeadID == "" || req.CronExpression == "" {
		return writeError(c, schema.NewError(schema.ErrCodeValidation,
			"workflow_id, lead_id and cron_expression are required"))
	}

	ctx := c.Request().Context()
	if _, err := s.store.GetTemplate(ctx, req.WorkflowID); err != nil {
		return writeError(c, err)
	}

	next, err := s.planner.CalculateNextRun(req.CronExpression, time.Now().UTC())
	if err != nil {
		return writeError(c, schema.NewErrorf(schema.ErrCodeValidation,
			"invalid cron expression %q", req.CronExpression).WithCause(err))
	}

	job := &store.ScheduledJob{
		ID:             uuid.NewString(),
		WorkflowID:     req.WorkflowID,
		LeadID:         req.LeadID,
		CronExpression: req.CronExpression,
		Enabled:        !req.Disabled,
		NextRunAt:      &next,
	}
	if err := s.store.CreateScheduledJob(ctx, job); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, job)
}

func (s *Server) handleListSchedules(c echo.Context) error {
	jobs, err := s.store.ListScheduledJobs(c.Request().Context(), store.ScheduledJobFilter{
		LeadID: c.QueryParam("lead_id"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, jobs)
}

func (s *Server) handleDeleteSchedule(c echo.Context) error {
	if err := s.store.DeleteScheduledJob(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
