package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/birddigital/spoofcall/pkg/phone"
)

const maxSMSBodyLen = 1600

type smsRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
	From string `json:"from"`
}

type smsResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
	Message   string `json:"message"`
}

// postSMS sends a spoofed-sender SMS.
func (s *Server) postSMS(c echo.Context) error {
	ctx := c.Request().Context()

	var body smsRequest
	if err := c.Bind(&body); err != nil {
		return failJSON(c, http.StatusBadRequest, "malformed request body")
	}
	if !phone.Valid(body.To) {
		return failJSON(c, http.StatusBadRequest, "invalid recipient number")
	}
	if body.From != "" && !phone.Valid(body.From) {
		return failJSON(c, http.StatusBadRequest, "invalid sender number")
	}
	if len(body.Body) == 0 || len(body.Body) > maxSMSBodyLen {
		return failJSON(c, http.StatusBadRequest, "SMS body must be between 1 and 1600 characters")
	}

	msg, err := s.messenger.Send(ctx, body.To, body.From, body.Body)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("to", body.To).Msg("SMS send failed")
		return failJSON(c, http.StatusBadGateway, "Failed to send SMS")
	}

	zerolog.Ctx(ctx).Info().
		Str("message_id", msg.SID).
		Str("to", msg.To).
		Str("from", msg.From).
		Str("ip", c.RealIP()).
		Msg("spoof SMS sent")

	return c.JSON(http.StatusOK, smsResponse{
		Success:   true,
		MessageID: msg.SID,
		Message:   "SMS sent successfully",
	})
}
