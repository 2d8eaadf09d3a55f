// Package http provides the HTTP command surface for conductord.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/relayforge/conductord/internal/coordinator"
	"github.com/relayforge/conductord/internal/orchestrator"
	"github.com/relayforge/conductord/internal/registry"
	"github.com/relayforge/conductord/internal/workflow"
)

// Server exposes the orchestrator's operations over HTTP.
type Server struct {
	echo   *echo.Echo
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server bound to the orchestrator.
func NewServer(orch *orchestrator.Orchestrator, logger *zap.Logger, cfg *Config) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9270,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		orch:   orch,
		logger: logger,
		config: cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/agents", s.handleListAgents)
	v1.POST("/agents/select", s.handleSelectAgents)
	v1.POST("/mode/activate", s.handleActivateMode)
	v1.POST("/handoff", s.handleHandoff)
	v1.POST("/refresh", s.handleRefresh)
	v1.GET("/progress", s.handleProgress)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Agents int    `json:"agents"`
}

// AgentResponse is one entry of the GET /api/v1/agents response.
type AgentResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Priority    int      `json:"priority"`
	State       string   `json:"state"`
	Tasks       []string `json:"tasks,omitempty"`
	HandoffFrom []string `json:"handoff_from,omitempty"`
	HandoffTo   []string `json:"handoff_to,omitempty"`
	Validations []string `json:"validations,omitempty"`
}

// SelectAgentsRequest is the request body for POST /api/v1/agents/select.
type SelectAgentsRequest struct {
	Agents []string `json:"agents"`
}

// ActivateModeRequest is the request body for POST /api/v1/mode/activate.
type ActivateModeRequest struct {
	Mode    string                 `json:"mode"`
	Project ProjectAnalysisRequest `json:"project"`
}

// ProjectAnalysisRequest carries the project analysis a mode run operates on.
type ProjectAnalysisRequest struct {
	Name         string        `json:"name"`
	Root         string        `json:"root,omitempty"`
	Summary      string        `json:"summary,omitempty"`
	PendingTasks []StepRequest `json:"pending_tasks,omitempty"`
}

// StepRequest is one pending task for continuous execution.
type StepRequest struct {
	AgentID string `json:"agent_id"`
	TaskID  string `json:"task_id"`
}

// HandoffRequest is the request body for POST /api/v1/handoff.
type HandoffRequest struct {
	FromAgent string `json:"from_agent"`
	ToAgent   string `json:"to_agent"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Agents: s.orch.Registry().Len(),
	})
}

// handleListAgents returns the registered agents in file order.
func (s *Server) handleListAgents(c echo.Context) error {
	descs := s.orch.Registry().List()
	agents := make([]AgentResponse, 0, len(descs))
	for _, d := range descs {
		agents = append(agents, AgentResponse{
			ID:          d.ID,
			Title:       d.Title,
			Name:        d.Name,
			Description: d.Description,
			Priority:    d.Priority,
			State:       string(s.orch.Coordinator().StateOf(d.ID)),
			Tasks:       d.Tasks,
			HandoffFrom: d.HandoffFrom,
			HandoffTo:   d.HandoffTo,
			Validations: d.Validations,
		})
	}
	return c.JSON(http.StatusOK, agents)
}

// handleSelectAgents records an explicit agent selection.
func (s *Server) handleSelectAgents(c echo.Context) error {
	var req SelectAgentsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Agents) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "agents field is required")
	}

	if err := s.orch.SelectAgents(c.Request().Context(), req.Agents); err != nil {
		if errors.Is(err, registry.ErrUnknownAgent) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// handleActivateMode runs a mode workflow to completion and returns the
// result. A halted run returns the partial result with 409.
func (s *Server) handleActivateMode(c echo.Context) error {
	var req ActivateModeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Mode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "mode field is required")
	}

	analysis := workflow.ProjectAnalysis{
		Name:    req.Project.Name,
		Root:    req.Project.Root,
		Summary: req.Project.Summary,
	}
	for _, t := range req.Project.PendingTasks {
		analysis.PendingTasks = append(analysis.PendingTasks, workflow.Step{
			AgentID: t.AgentID,
			TaskID:  t.TaskID,
		})
	}

	result, err := s.orch.ActivateMode(c.Request().Context(), req.Mode, analysis)
	if err != nil {
		if errors.Is(err, workflow.ErrUnknownMode) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		var stepErr *workflow.StepError
		if errors.As(err, &stepErr) && result != nil {
			// Partial progress travels with the error.
			return c.JSON(http.StatusConflict, map[string]any{
				"error":  stepErr.Error(),
				"result": result,
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// handleHandoff transfers active status between two agents.
func (s *Server) handleHandoff(c echo.Context) error {
	var req HandoffRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.FromAgent == "" || req.ToAgent == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "from_agent and to_agent fields are required")
	}

	record, err := s.orch.PerformHandoff(c.Request().Context(), req.FromAgent, req.ToAgent)
	if err != nil {
		switch {
		case errors.Is(err, coordinator.ErrUnknownAgent):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, coordinator.ErrIllegalHandoff):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, coordinator.ErrValidationFailed):
			// The record carries which stage failed; the swap may stand.
			return c.JSON(http.StatusConflict, map[string]any{
				"error":  err.Error(),
				"record": record,
			})
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, record)
}

// handleRefresh re-reads the agent definition file into the registry.
func (s *Server) handleRefresh(c echo.Context) error {
	if err := s.orch.RefreshAnalysis(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"agents": s.orch.Registry().Len()})
}

// handleProgress returns the most recent workflow progress event.
func (s *Server) handleProgress(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.ShowProgress())
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
