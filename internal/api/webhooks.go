package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/birddigital/spoofcall/pkg/telephony"
	"github.com/birddigital/spoofcall/pkg/twiml"
)

// Provider webhooks. These handlers always answer 2xx: the provider
// retries aggressively on anything else and has no use for our
// internal errors. Voice and conference callbacks must carry a valid
// control document in the body or the live call drops.

const contentTypeXML = "text/xml"

// webhookVoice answers the provider's request for call instructions.
// The outbound call carries its control document inline, so this
// endpoint only needs a hold prompt while the call is still ringing.
func (s *Server) webhookVoice(c echo.Context) error {
	ctx := c.Request().Context()
	callSID := c.FormValue("CallSid")
	status := c.FormValue("CallStatus")

	zerolog.Ctx(ctx).Info().
		Str("call_sid", callSID).
		Str("status", status).
		Str("from", c.FormValue("From")).
		Str("to", c.FormValue("To")).
		Msg("voice webhook received")

	if kind, ok := telephony.ClassifyCallStatus(status); ok {
		s.orchestrator.ApplyEvent(ctx, telephony.Event{CallSID: callSID, Kind: kind})
	}

	doc := twiml.Empty()
	if status == "ringing" {
		doc = twiml.Prompt("Please hold while we connect your call.", twiml.VoiceAlice, "")
	}
	return c.Blob(http.StatusOK, contentTypeXML, []byte(doc))
}

// webhookStatus records call progress events.
func (s *Server) webhookStatus(c echo.Context) error {
	ctx := c.Request().Context()
	callSID := c.FormValue("CallSid")
	status := c.FormValue("CallStatus")

	zerolog.Ctx(ctx).Info().
		Str("call_sid", callSID).
		Str("status", status).
		Str("duration", c.FormValue("CallDuration")).
		Msg("call status update")

	if kind, ok := telephony.ClassifyCallStatus(status); ok {
		s.orchestrator.ApplyEvent(ctx, telephony.Event{CallSID: callSID, Kind: kind})
	}
	return c.String(http.StatusOK, "OK")
}

// webhookRecording attaches a completed recording to its session.
func (s *Server) webhookRecording(c echo.Context) error {
	ctx := c.Request().Context()
	callSID := c.FormValue("CallSid")
	recordingSID := c.FormValue("RecordingSid")
	duration, _ := strconv.Atoi(c.FormValue("RecordingDuration"))

	zerolog.Ctx(ctx).Info().
		Str("call_sid", callSID).
		Str("recording_sid", recordingSID).
		Msg("recording completed")

	s.orchestrator.ApplyEvent(ctx, telephony.Event{
		CallSID:           callSID,
		Kind:              telephony.EventRecordingAvailable,
		RecordingSID:      recordingSID,
		RecordingURL:      c.FormValue("RecordingUrl"),
		RecordingDuration: duration,
	})
	return c.String(http.StatusOK, "OK")
}

// webhookConference answers control requests for conference legs.
// The provider may probe before the session exists; the orchestrator
// returns a generic join document in that case.
func (s *Server) webhookConference(c echo.Context) error {
	name := c.Param("conferenceName")
	doc := s.orchestrator.ConferenceDocument(name)
	return c.Blob(http.StatusOK, contentTypeXML, []byte(doc))
}
