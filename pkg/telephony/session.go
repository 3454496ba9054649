// Package telephony implements the call session lifecycle: creating
// sessions for outbound spoofed calls, tracking their state across
// asynchronous provider webhooks, and answering client polling and
// termination requests.
package telephony

import (
	"sync"
	"time"
)

// ============================================
// STATUS STATE MACHINE
// ============================================

// Status is the lifecycle state of a call session.
type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusEnded      Status = "ended"
)

// Terminal reports whether no further transitions are accepted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusEnded
}

// EventKind classifies a provider webhook.
type EventKind string

const (
	EventRinging            EventKind = "ringing"
	EventInProgress         EventKind = "in-progress"
	EventCompleted          EventKind = "completed"
	EventFailed             EventKind = "failed"
	EventRecordingAvailable EventKind = "recording-available"
)

// next returns the status after ev and whether that edge exists.
// Terminal states absorb everything. Events with no edge from the
// current state (for example in-progress arriving before ringing)
// are no-ops rather than errors: provider delivery is at-least-once
// and unordered.
func next(cur Status, ev EventKind) (Status, bool) {
	if cur.Terminal() {
		return cur, false
	}
	switch ev {
	case EventRinging:
		if cur == StatusInitiated {
			return StatusRinging, true
		}
	case EventInProgress:
		if cur == StatusRinging {
			return StatusInProgress, true
		}
	case EventCompleted:
		return StatusCompleted, true
	case EventFailed:
		return StatusFailed, true
	}
	return cur, false
}

// ============================================
// SESSION
// ============================================

// VoiceModulation is the voice persona configuration chosen at
// session creation. Immutable afterwards.
type VoiceModulation struct {
	Voice    string `json:"voice"`
	Language string `json:"language"`
}

// RecordingRef is one recording attached to a session, in arrival
// order of the provider's recording-complete webhooks.
type RecordingRef struct {
	SID        string    `json:"sid"`
	URL        string    `json:"url"`
	DurationS  int       `json:"durationSeconds,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Session is the local record of one outbound spoofed call. All
// fields except Status, Recordings and updatedAt are immutable after
// creation; mutation goes through the methods below, which serialize
// on the per-session lock.
type Session struct {
	ID             string
	TargetNumber   string
	SpoofNumber    string
	ProviderCallID string
	ConferenceName string // empty unless conference mode was requested
	Greeting       string
	Record         bool
	Modulation     VoiceModulation
	StartTime      time.Time

	mu         sync.RWMutex
	status     Status
	recordings []RecordingRef
	updatedAt  time.Time
}

// ConferenceNameFor derives the conference room name for a session.
// The derivation is deterministic so the conference-join webhook can
// be correlated back to the session without a secondary index.
func ConferenceNameFor(sessionID string) string {
	return "spoof-conf-" + sessionID
}

// sessionIDForConference is the inverse of ConferenceNameFor.
func sessionIDForConference(name string) (string, bool) {
	const prefix = "spoof-conf-"
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return "", false
	}
	return name[len(prefix):], true
}

// apply advances the status along the transition table. It returns
// the status after the event and whether anything changed.
func (s *Session) apply(ev EventKind, now time.Time) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	to, ok := next(s.status, ev)
	if !ok {
		return s.status, false
	}
	s.status = to
	s.updatedAt = now
	return to, true
}

// appendRecording adds a recording reference. Recordings are never
// reordered or removed, regardless of session status.
func (s *Session) appendRecording(ref RecordingRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordings = append(s.recordings, ref)
	s.updatedAt = ref.ReceivedAt
}

// end forces the status to ended from any non-terminal state. It
// reports whether the session was still live (i.e. upstream
// termination is worth attempting).
func (s *Session) end(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return false
	}
	s.status = StatusEnded
	s.updatedAt = now
	return true
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// ============================================
// SNAPSHOT
// ============================================

// Snapshot is the read-only projection served to polling clients.
type Snapshot struct {
	SessionID      string          `json:"sessionId"`
	Status         Status          `json:"status"`
	TargetNumber   string          `json:"targetNumber"`
	SpoofNumber    string          `json:"spoofNumber"`
	StartTime      time.Time       `json:"startTime"`
	ConferenceName string          `json:"conferenceName,omitempty"`
	ProviderCallID string          `json:"callId,omitempty"`
	Modulation     VoiceModulation `json:"voiceModulation"`
	Recordings     []RecordingRef  `json:"recordings,omitempty"`
}

// Snapshot copies the session under the read lock, so concurrent
// transitions never produce a partially-updated view.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]RecordingRef, len(s.recordings))
	copy(recs, s.recordings)

	return Snapshot{
		SessionID:      s.ID,
		Status:         s.status,
		TargetNumber:   s.TargetNumber,
		SpoofNumber:    s.SpoofNumber,
		StartTime:      s.StartTime,
		ConferenceName: s.ConferenceName,
		ProviderCallID: s.ProviderCallID,
		Modulation:     s.Modulation,
		Recordings:     recs,
	}
}

// age metadata for the eviction sweep.
func (s *Session) sweepState() (Status, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.updatedAt
}
