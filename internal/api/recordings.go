package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/birddigital/spoofcall/pkg/twilio"
)

type recordingsResponse struct {
	Success    bool               `json:"success"`
	Recordings []twilio.Recording `json:"recordings"`
}

// getRecordings lists the provider-side recordings of a call.
func (s *Server) getRecordings(c echo.Context) error {
	ctx := c.Request().Context()
	callSID := c.Param("callSID")

	recs, err := s.recordings.ListRecordings(ctx, callSID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("call_sid", callSID).Msg("recordings lookup failed")
		return failJSON(c, http.StatusBadGateway, "Failed to fetch recordings")
	}

	if recs == nil {
		recs = []twilio.Recording{}
	}
	return c.JSON(http.StatusOK, recordingsResponse{Success: true, Recordings: recs})
}
