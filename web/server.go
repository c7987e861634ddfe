// Package web is the thin HTTP surface: it turns inbound requests into
// Scheduler and Registry calls and exposes a read-only status endpoint.
package web

import (
	"conference-bot/contract"
	"conference-bot/domain"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

const (
	leaveTimeout  = 30 * time.Second
	recentLimit   = 20
	dateLayoutAlt = "2006-01-02T15:04"
)

var validate = validator.New()

// ScheduleRequest mirrors the frontend payload: everything nested under
// "data", with the trigger date and the conversation id.
type ScheduleRequest struct {
	Data ScheduleData `json:"data" validate:"required"`
}

type ScheduleData struct {
	Date string `json:"date" validate:"required"`
	Conv string `json:"conv" validate:"required"`
}

type LeaveRequest struct {
	Data LeaveData `json:"data" validate:"required"`
}

type LeaveData struct {
	Conv string `json:"conv" validate:"required"`
}

type Server struct {
	log       *slog.Logger
	echo      *echo.Echo
	scheduler contract.IScheduler
	registry  contract.IRegistry
	journal   contract.OutcomeJournal
	creds     domain.Credentials
	startedAt time.Time
}

func NewServer(log *slog.Logger, scheduler contract.IScheduler, registry contract.IRegistry,
	journal contract.OutcomeJournal, creds domain.Credentials) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		log:       log,
		echo:      e,
		scheduler: scheduler,
		registry:  registry,
		journal:   journal,
		creds:     creds,
		startedAt: time.Now().UTC(),
	}

	e.POST("/schedule", s.handleSchedule)
	e.POST("/leave", s.handleLeave)
	e.GET("/system", s.handleSystem)
	return s
}

// handleSchedule registers a one-shot conference start. Fire-and-forget: a
// valid request is acknowledged immediately, a failed start later is only
// observable in the logs and the outcome journal.
func (s *Server) handleSchedule(c echo.Context) error {
	var req ScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	at, err := parseDate(req.Data.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unparseable date: "+req.Data.Date)
	}

	s.log.Info("POST /schedule", "convId", req.Data.Conv, "at", at)
	s.scheduler.Schedule(at, domain.ConversationID(req.Data.Conv))
	return c.NoContent(http.StatusOK)
}

// handleLeave requests leaving a conversation's live call. Also
// fire-and-forget: the out-of-band leave runs detached from the request.
func (s *Server) handleLeave(c echo.Context) error {
	var req LeaveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	convID := domain.ConversationID(req.Data.Conv)
	s.log.Info("POST /leave", "convId", convID)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
		defer cancel()
		if err := s.registry.Leave(ctx, convID); err != nil {
			s.log.Error("Out-of-band leave failed", "convId", convID, "error", err)
		}
	}()

	return c.NoContent(http.StatusOK)
}

type systemResponse struct {
	System         string                 `json:"system"`
	Domain         string                 `json:"domain"`
	ClientID       string                 `json:"clientId"`
	LiveSessions   int                    `json:"liveSessions"`
	UptimeSeconds  int64                  `json:"uptimeSeconds"`
	RecentOutcomes []domain.OutcomeRecord `json:"recentOutcomes,omitempty"`
}

// handleSystem identifies the active identity and environment, plus a short
// history of completed sessions.
func (s *Server) handleSystem(c echo.Context) error {
	resp := systemResponse{
		System:        s.creds.System,
		Domain:        s.creds.Domain,
		ClientID:      s.creds.ClientID,
		LiveSessions:  s.registry.Active(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	if s.journal != nil {
		records, err := s.journal.Recent(recentLimit)
		if err != nil {
			s.log.Warn("Failed to read outcome journal", "error", err)
		} else {
			resp.RecentOutcomes = records
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func parseDate(raw string) (time.Time, error) {
	if at, err := time.Parse(time.RFC3339, raw); err == nil {
		return at, nil
	}
	// The frontend's datetime-local input omits zone and seconds.
	return time.ParseInLocation(dateLayoutAlt, raw, time.Local)
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
