// Package api exposes the call broker over HTTP: the client-facing
// call/SMS/session endpoints and the provider-facing webhook
// endpoints.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/birddigital/spoofcall/internal/config"
	"github.com/birddigital/spoofcall/pkg/messaging"
	"github.com/birddigital/spoofcall/pkg/telephony"
	"github.com/birddigital/spoofcall/pkg/twilio"
)

// RecordingLister is the provider capability behind the recordings
// endpoint. Satisfied by *twilio.Client.
type RecordingLister interface {
	ListRecordings(ctx context.Context, callSID string) ([]twilio.Recording, error)
}

// Server keeps the HTTP dependencies together.
type Server struct {
	Echo *echo.Echo

	cfg          config.Server
	orchestrator *telephony.Orchestrator
	messenger    *messaging.Service
	recordings   RecordingLister
	log          zerolog.Logger
}

// NewServer builds the echo instance with middleware and routes
// registered.
func NewServer(cfg config.Server, orch *telephony.Orchestrator, messenger *messaging.Service, recordings RecordingLister, log zerolog.Logger) *Server {
	s := &Server{
		Echo:         echo.New(),
		cfg:          cfg,
		orchestrator: orch,
		messenger:    messenger,
		recordings:   recordings,
		log:          log.With().Str("component", "api").Logger(),
	}

	e := s.Echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(requestLogger(s.log))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.Echo

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	g := e.Group("/api/spoof")
	g.POST("/call", s.postCall, perMinuteLimiter(s.cfg.CallRatePerMinute))
	g.POST("/sms", s.postSMS, perMinuteLimiter(s.cfg.SMSRatePerMinute))
	g.GET("/session/:sessionID", s.getSession)
	g.POST("/session/:sessionID/end", s.postEndSession)
	g.GET("/recordings/:callSID", s.getRecordings)

	wh := g.Group("/webhook")
	wh.POST("/voice", s.webhookVoice)
	wh.POST("/status", s.webhookStatus)
	wh.POST("/recording", s.webhookRecording)
	wh.POST("/conference/:conferenceName", s.webhookConference)
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	return s.Echo.Start(s.cfg.ListenAddr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

// perMinuteLimiter bounds a route to n requests per minute per
// client IP.
func perMinuteLimiter(perMinute float64) echo.MiddlewareFunc {
	return middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:  rate.Limit(perMinute / 60.0),
			Burst: int(perMinute),
		},
	))
}

// requestLogger threads a request-scoped logger through the request
// context, so handlers and the orchestrator can pick it up with
// zerolog.Ctx.
func requestLogger(base zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			l := base.With().
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Logger()
			c.SetRequest(req.WithContext(l.WithContext(req.Context())))
			return next(c)
		}
	}
}
