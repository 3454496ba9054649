package telephony

// Event is one provider webhook, already reduced to the fields the
// orchestrator needs. Exactly one of CallSID/Conference carries the
// correlation key.
type Event struct {
	CallSID    string
	Conference string
	Kind       EventKind

	// Recording fields, set for EventRecordingAvailable.
	RecordingSID      string
	RecordingURL      string
	RecordingDuration int
}

// ClassifyCallStatus maps a provider callback status to an event
// kind. Unmapped statuses (queued, initiated, unknown values) return
// false: the webhook is acknowledged but drives no transition.
func ClassifyCallStatus(status string) (EventKind, bool) {
	switch status {
	case "ringing":
		return EventRinging, true
	case "in-progress", "answered":
		return EventInProgress, true
	case "completed":
		return EventCompleted, true
	case "failed", "error", "busy", "no-answer", "canceled":
		return EventFailed, true
	default:
		return "", false
	}
}
