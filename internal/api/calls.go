package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/birddigital/spoofcall/pkg/telephony"
)

type voiceModulation struct {
	Voice    string `json:"voice"`
	Language string `json:"language"`
}

type callRequest struct {
	To            string           `json:"to"`
	SpoofNumber   string           `json:"spoofNumber"`
	Message       string           `json:"message"`
	Record        bool             `json:"record"`
	UseConference bool             `json:"useConference"`
	Modulation    *voiceModulation `json:"voiceModulation"`
}

type callResponse struct {
	Success     bool   `json:"success"`
	SessionID   string `json:"sessionId"`
	CallID      string `json:"callId"`
	SpoofNumber string `json:"spoofNumber"`
	Message     string `json:"message"`
}

// postCall creates a session and places the outbound spoofed call.
// Duplicate submissions create independent sessions; there is no
// dedup by design.
func (s *Server) postCall(c echo.Context) error {
	ctx := c.Request().Context()

	var body callRequest
	if err := c.Bind(&body); err != nil {
		return failJSON(c, http.StatusBadRequest, "malformed request body")
	}

	opts := telephony.Options{
		Message:       body.Message,
		Record:        body.Record,
		UseConference: body.UseConference,
	}
	if body.Modulation != nil {
		opts.Voice = body.Modulation.Voice
		opts.Language = body.Modulation.Language
	}

	snap, err := s.orchestrator.CreateSession(ctx, body.To, body.SpoofNumber, opts)
	if err != nil {
		return writeError(c, err)
	}

	zerolog.Ctx(ctx).Info().
		Str("session_id", snap.SessionID).
		Str("to", snap.TargetNumber).
		Str("spoof_number", snap.SpoofNumber).
		Str("ip", c.RealIP()).
		Msg("spoof call request processed")

	return c.JSON(http.StatusOK, callResponse{
		Success:     true,
		SessionID:   snap.SessionID,
		CallID:      snap.ProviderCallID,
		SpoofNumber: snap.SpoofNumber,
		Message:     "Spoof call initiated successfully",
	})
}
