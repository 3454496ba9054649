package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/birddigital/spoofcall/pkg/telephony"
)

// errorResponse is the failure envelope shared by every client-facing
// endpoint. Messages are generic for anything above a validation
// error; the detail stays in the server logs.
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func failJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, errorResponse{Success: false, Message: message})
}

// writeError maps orchestrator errors to HTTP statuses.
func writeError(c echo.Context, err error) error {
	var verr *telephony.ValidationError
	switch {
	case errors.As(err, &verr):
		return failJSON(c, http.StatusBadRequest, verr.Error())
	case errors.Is(err, telephony.ErrNotFound):
		return failJSON(c, http.StatusNotFound, "Session not found")
	case errors.Is(err, telephony.ErrUpstreamTimeout):
		return failJSON(c, http.StatusGatewayTimeout, "Telephony provider timed out")
	case errors.Is(err, telephony.ErrUpstream):
		return failJSON(c, http.StatusBadGateway, "Telephony provider rejected the request")
	default:
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("unhandled error")
		return failJSON(c, http.StatusInternalServerError, "Internal server error")
	}
}
