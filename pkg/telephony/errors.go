package telephony

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors surfaced by orchestrator operations. Callers map
// these to transport-level statuses; the detailed cause stays in the
// server logs.
var (
	// ErrNotFound means no session with the given identifier exists.
	// A removed session and one that never existed are not
	// distinguishable.
	ErrNotFound = errors.New("session not found")

	// ErrUpstream means the outbound-call capability reported a
	// failure.
	ErrUpstream = errors.New("provider request failed")

	// ErrUpstreamTimeout means the outbound-call capability did not
	// answer within the configured bound. Distinct from ErrUpstream
	// so a local timeout is tellable from an explicit provider error.
	ErrUpstreamTimeout = errors.New("provider request timed out")
)

// ValidationError rejects a request before any session is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
