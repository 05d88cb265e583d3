package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/leadflow/outreach/internal/store"
	"github.com/leadflow/outreach/pkg/schema"
)

type startRunRequest struct {
	WorkflowID string         `json:"workflow_id"`
	LeadID     string         `json:"lead_id"`
	Context    map[string]any `json:"context,omitempty"`
}

type runResponse struct {
	RunID            string           `json:"run_id"`
	WorkflowID       string           `json:"workflow_id"`
	LeadID           string           `json:"lead_id"`
	Status           schema.RunStatus `json:"status"`
	CurrentStepIndex int              `json:"current_step_index"`
	LastError        string           `json:"last_error,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func toRunResponse(run *store.WorkflowRun) runResponse {
	return runResponse{
		RunID:            run.ID,
		WorkflowID:       run.WorkflowID,
		LeadID:           run.LeadID,
		Status:           run.Status,
		CurrentStepIndex: run.CurrentStepIndex,
		LastError:        run.LastError,
		CreatedAt:        run.CreatedAt,
		UpdatedAt:        run.UpdatedAt,
	}
}

func (s *Server) handleStartRun(c echo.Context) error {
	var req startRunRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, schema.NewError(schema.ErrCodeValidation, "malformed request body"))
	}
	if req.WorkflowID == "" || req.LeadID == "" {
		return writeError(c, schema.NewError(schema.ErrCodeValidation, "workflow_id and lead_id are required"))
	}

	run, err := s.coordinator.StartRun(c.Request().Context(), req.WorkflowID, req.LeadID, req.Context)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toRunResponse(run))
}

func (s *Server) handleGetRun(c echo.Context) error {
	run, err := s.coordinator.GetRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toRunResponse(run))
}

func (s *Server) handleListRuns(c echo.Context) error {
	filter := store.RunFilter{
		WorkflowID: c.QueryParam("workflow_id"),
		LeadID:     c.QueryParam("lead_id"),
	}
	if raw := c.QueryParam("status"); raw != "" {
		status := schema.RunStatus(raw)
		if _, ok := schema.ValidRunTransitions[status]; !ok {
			return writeError(c, schema.NewErrorf(schema.ErrCodeValidation, "unknown run status %q", raw))
		}
		filter.Status = &status
	}

	runs, err := s.coordinator.ListRuns(c.Request().Context(), filter)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleCancelRun(c echo.Context) error {
	run, err := s.coordinator.CancelRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toRunResponse(run))
}

func (s *Server) handleRunEvents(c echo.Context) error {
	ctx := c.Request().Context()
	// A missing run must 404 rather than answer an empty log.
	if _, err := s.coordinator.GetRun(ctx, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	events, err := s.store.GetEvents(ctx, c.Param("id"), 0)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, events)
}

func (s *Server) handleListTemplates(c echo.Context) error {
	templates, err := s.store.ListTemplates(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, templates)
}

func (s *Server) handleStoreTemplate(c echo.Context) error {
	var tpl store.WorkflowTemplate
	if err := c.Bind(&tpl); err != nil {
		return writeError(c, schema.NewError(schema.ErrCodeValidation, "malformed template body"))
	}
	if tpl.ID == "" || tpl.Name == "" {
		return writeError(c, schema.NewError(schema.ErrCodeValidation, "id and name are required"))
	}
	if tpl.Definition.Trigger == "" {
		tpl.Definition.Trigger = schema.TriggerManual
	}
	if err := s.validator.ValidateDefinition(&tpl.Definition); err != nil {
		return writeError(c, err)
	}

	if err := s.store.StoreTemplate(c.Request().Context(), &tpl); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, tpl)
}

func (s *Server) handleLeadInteractions(c echo.Context) error {
	interactions, err := s.store.ListInteractions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, interactions)
}
