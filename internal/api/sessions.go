package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/birddigital/spoofcall/pkg/telephony"
)

type sessionResponse struct {
	Success bool               `json:"success"`
	Session telephony.Snapshot `json:"session"`
}

// getSession is the polling endpoint: a read-only snapshot of the
// most recently applied state, or 404 for unknown (including already
// evicted) sessions.
func (s *Server) getSession(c echo.Context) error {
	snap, err := s.orchestrator.GetSession(c.Param("sessionID"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResponse{Success: true, Session: snap})
}

// postEndSession force-ends a session. Upstream termination failure
// is not a client-visible error; local state is authoritative.
func (s *Server) postEndSession(c echo.Context) error {
	if err := s.orchestrator.EndSession(c.Request().Context(), c.Param("sessionID")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Call session ended",
	})
}
