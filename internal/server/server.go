// Package server is the HTTP boundary: the orchestrator API and the
// telephony provider webhooks. Handlers validate and delegate; the engine
// owns all state.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/leadflow/outreach/internal/call"
	"github.com/leadflow/outreach/internal/engine"
	"github.com/leadflow/outreach/internal/store"
	"github.com/leadflow/outreach/internal/validation"
	"github.com/leadflow/outreach/pkg/schema"
)

// Config holds the server's boundary settings.
type Config struct {
	ListenAddr string
	PublicURL  string // externally visible base URL, used for signature checks
	AuthToken  string // telephony shared secret
}

// Server wires the HTTP routes to the engine.
type Server struct {
	echo        *echo.Echo
	cfg         Config
	coordinator *engine.Coordinator
	tracker     *call.Tracker
	store       store.Store
	validator   *validation.WorkflowValidator
	planner     CronPlanner
	logger      *slog.Logger
}

// New creates the server and registers all routes.
func New(cfg Config, coordinator *engine.Coordinator, tracker *call.Tracker, st store.Store, validator *validation.WorkflowValidator, planner CronPlanner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogMethod: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	}))

	s := &Server{
		echo:        e,
		cfg:         cfg,
		coordinator: coordinator,
		tracker:     tracker,
		store:       st,
		validator:   validator,
		planner:     planner,
		logger:      logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.handleHealth)

	hooks := s.echo.Group("/webhooks/voice")
	hooks.POST("/status", s.handleVoiceStatus)
	hooks.POST("/incoming", s.handleVoiceIncoming)
	hooks.POST("/response", s.handleVoiceResponse)

	api := s.echo.Group("/api")
	api.POST("/runs", s.handleStartRun)
	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleGetRun)
	api.POST("/runs/:id/cancel", s.handleCancelRun)
	api.GET("/runs/:id/events", s.handleRunEvents)
	api.GET("/templates", s.handleListTemplates)
	api.POST("/templates", s.handleStoreTemplate)
	api.GET("/leads/:id/interactions", s.handleLeadInteractions)
	api.POST("/schedules", s.handleCreateSchedule)
	api.GET("/schedules", s.handleListSchedules)
	api.DELETE("/schedules/:id", s.handleDeleteSchedule)
}

// Start begins serving. Blocks until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("addr", s.cfg.ListenAddr))
	return s.echo.Start(s.cfg.ListenAddr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// errorBody is the JSON error envelope for API responses.
type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(c echo.Context, err error) error {
	var oe *schema.OutreachError
	if !errors.As(err, &oe) {
		return c.JSON(http.StatusInternalServerError, errorBody{
			Code: "INTERNAL", Message: "internal error",
		})
	}

	status := http.StatusInternalServerError
	switch oe.Code {
	case schema.ErrCodeValidation:
		status = http.StatusBadRequest
	case schema.ErrCodeAuth:
		status = http.StatusUnauthorized
	case schema.ErrCodeNotFound:
		status = http.StatusNotFound
	case schema.ErrCodeConflict:
		status = http.StatusConflict
	case schema.ErrCodeInvalidTransition:
		status = http.StatusConflict
	}
	return c.JSON(status, errorBody{Code: oe.Code, Message: oe.Message, Details: oe.Details})
}
