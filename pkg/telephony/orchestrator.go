package telephony

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/birddigital/spoofcall/pkg/phone"
	"github.com/birddigital/spoofcall/pkg/twilio"
	"github.com/birddigital/spoofcall/pkg/twiml"
)

// maxGreetingLen bounds the custom greeting a client may supply.
const maxGreetingLen = 500

// Provider is the outbound-call capability the orchestrator depends
// on. Satisfied by *twilio.Client.
type Provider interface {
	PlaceCall(ctx context.Context, req twilio.CallRequest) (*twilio.Call, error)
	TerminateCall(ctx context.Context, callSID string) error
}

// CDRSink receives call detail records as sessions are created and
// mutated. Sinks are best-effort: failures are logged and never
// block call flow, since the in-memory store stays authoritative.
type CDRSink interface {
	SessionCreated(ctx context.Context, snap Snapshot) error
	SessionUpdated(ctx context.Context, snap Snapshot) error
}

// Options are the client-chosen parameters for a new session.
type Options struct {
	Message       string
	Record        bool
	UseConference bool
	Voice         string
	Language      string
}

// Config wires an Orchestrator.
type Config struct {
	// WebhookBase is the externally reachable prefix for provider
	// callbacks, e.g. "https://host/api/spoof/webhook".
	WebhookBase string

	// UpstreamTimeout bounds every provider request. Zero means 30s.
	UpstreamTimeout time.Duration
}

// Orchestrator is the call lifecycle manager. It is the only writer
// of session state: client handlers call CreateSession/EndSession,
// the webhook router calls ApplyEvent, and polling reads go through
// GetSession.
type Orchestrator struct {
	store    *Store
	provider Provider
	cdr      CDRSink // may be nil
	cfg      Config
	log      zerolog.Logger
}

// NewOrchestrator creates the lifecycle manager. cdr may be nil when
// no record sink is configured.
func NewOrchestrator(store *Store, provider Provider, cdr CDRSink, cfg Config, log zerolog.Logger) *Orchestrator {
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 30 * time.Second
	}
	cfg.WebhookBase = strings.TrimSuffix(cfg.WebhookBase, "/")
	return &Orchestrator{
		store:    store,
		provider: provider,
		cdr:      cdr,
		cfg:      cfg,
		log:      log.With().Str("component", "orchestrator").Logger(),
	}
}

// ============================================
// SESSION CREATION
// ============================================

// CreateSession validates the request, places the outbound call and
// persists the session in initiated state. On any capability failure
// no session is persisted and the error carries the upstream cause.
//
// Duplicate client submissions are not deduplicated: each call
// creates an independent session. That matches the upstream client
// contract, which retries by design.
func (o *Orchestrator) CreateSession(ctx context.Context, target, spoof string, opts Options) (Snapshot, error) {
	if !phone.Valid(target) {
		return Snapshot{}, invalidField("to", "not a dialable phone number")
	}
	if !phone.Valid(spoof) {
		return Snapshot{}, invalidField("spoofNumber", "not a dialable phone number")
	}
	if len(opts.Message) > maxGreetingLen {
		return Snapshot{}, invalidField("message", "exceeds 500 characters")
	}
	if opts.Voice != "" && !twiml.KnownVoice(opts.Voice) {
		return Snapshot{}, invalidField("voiceModulation.voice", "unknown voice persona")
	}
	if opts.Language != "" && (len(opts.Language) < 2 || len(opts.Language) > 10) {
		return Snapshot{}, invalidField("voiceModulation.language", "must be 2-10 characters")
	}

	sessionID := uuid.New().String()
	now := time.Now()

	conference := ""
	if opts.UseConference {
		conference = ConferenceNameFor(sessionID)
	}

	greeting := opts.Message
	if greeting == "" {
		greeting = twiml.DefaultGreeting
	}
	modulation := VoiceModulation{Voice: opts.Voice, Language: opts.Language}
	if modulation.Voice == "" {
		modulation.Voice = twiml.DefaultVoice
	}
	if modulation.Language == "" {
		modulation.Language = twiml.DefaultLanguage
	}

	doc := twiml.Call(twiml.CallParams{
		Greeting:          greeting,
		Voice:             modulation.Voice,
		Language:          modulation.Language,
		Target:            target,
		ConferenceName:    conference,
		CallerID:          spoof,
		Record:            opts.Record,
		RecordingCallback: o.cfg.WebhookBase + "/recording",
	})

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.UpstreamTimeout)
	defer cancel()

	call, err := o.provider.PlaceCall(callCtx, twilio.CallRequest{
		From:                    spoof,
		To:                      target,
		TwiML:                   doc,
		StatusCallback:          o.cfg.WebhookBase + "/status",
		Record:                  opts.Record,
		RecordingStatusCallback: o.cfg.WebhookBase + "/recording",
	})
	if err != nil {
		o.log.Error().Err(err).
			Str("session_id", sessionID).
			Str("to", target).
			Str("from", spoof).
			Msg("outbound call placement failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return Snapshot{}, errors.Wrap(ErrUpstreamTimeout, err.Error())
		}
		return Snapshot{}, errors.Wrap(ErrUpstream, err.Error())
	}

	sess := &Session{
		ID:             sessionID,
		TargetNumber:   target,
		SpoofNumber:    spoof,
		ProviderCallID: call.SID,
		ConferenceName: conference,
		Greeting:       greeting,
		Record:         opts.Record,
		Modulation:     modulation,
		StartTime:      now,
		status:         StatusInitiated,
		updatedAt:      now,
	}

	if err := o.store.Put(sess); err != nil {
		// uuid collisions do not happen in practice; this guards the
		// store invariant all the same.
		return Snapshot{}, errors.Wrap(err, "persist session")
	}

	snap := sess.Snapshot()
	o.recordCreate(ctx, snap)

	o.log.Info().
		Str("session_id", sessionID).
		Str("call_sid", call.SID).
		Str("to", target).
		Str("from", spoof).
		Bool("conference", opts.UseConference).
		Bool("record", opts.Record).
		Msg("spoof call session created")

	return snap, nil
}

// ============================================
// WEBHOOK TRANSITIONS
// ============================================

// ApplyEvent applies one provider webhook to the matching session.
// Unknown correlation keys are logged and dropped without error:
// webhooks routinely arrive for sessions already ended or evicted,
// and the provider expects a 2xx acknowledgment regardless.
func (o *Orchestrator) ApplyEvent(ctx context.Context, ev Event) {
	sess, ok := o.lookup(ev)
	if !ok {
		o.log.Info().
			Str("call_sid", ev.CallSID).
			Str("conference", ev.Conference).
			Str("event", string(ev.Kind)).
			Msg("webhook for unknown session dropped")
		return
	}

	now := time.Now()

	if ev.Kind == EventRecordingAvailable {
		sess.appendRecording(RecordingRef{
			SID:        ev.RecordingSID,
			URL:        ev.RecordingURL,
			DurationS:  ev.RecordingDuration,
			ReceivedAt: now,
		})
		o.recordUpdate(ctx, sess.Snapshot())
		o.log.Info().
			Str("session_id", sess.ID).
			Str("recording_sid", ev.RecordingSID).
			Msg("recording attached to session")
		return
	}

	to, changed := sess.apply(ev.Kind, now)
	if !changed {
		o.log.Debug().
			Str("session_id", sess.ID).
			Str("event", string(ev.Kind)).
			Str("status", string(to)).
			Msg("event ignored (terminal or no edge)")
		return
	}

	o.recordUpdate(ctx, sess.Snapshot())
	o.log.Info().
		Str("session_id", sess.ID).
		Str("event", string(ev.Kind)).
		Str("status", string(to)).
		Msg("session transitioned")
}

func (o *Orchestrator) lookup(ev Event) (*Session, bool) {
	if ev.CallSID != "" {
		return o.store.ByCallSID(ev.CallSID)
	}
	if ev.Conference != "" {
		return o.store.ByConference(ev.Conference)
	}
	return nil, false
}

// ============================================
// QUERIES & TERMINATION
// ============================================

// GetSession returns the current snapshot or ErrNotFound. It never
// mutates.
func (o *Orchestrator) GetSession(sessionID string) (Snapshot, error) {
	sess, ok := o.store.Get(sessionID)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return sess.Snapshot(), nil
}

// EndSession forces a session to ended and best-effort terminates
// the upstream call. Upstream termination failure is logged, not
// surfaced: local state is authoritative for the client view.
// Ending a session that already reached a terminal state succeeds
// without changing it.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) error {
	sess, ok := o.store.Get(sessionID)
	if !ok {
		return ErrNotFound
	}

	if !sess.end(time.Now()) {
		return nil // already terminal, nothing to tear down
	}

	o.recordUpdate(ctx, sess.Snapshot())
	o.log.Info().
		Str("session_id", sessionID).
		Str("call_sid", sess.ProviderCallID).
		Msg("session ended by client")

	termCtx, cancel := context.WithTimeout(ctx, o.cfg.UpstreamTimeout)
	defer cancel()
	if err := o.provider.TerminateCall(termCtx, sess.ProviderCallID); err != nil {
		o.log.Error().Err(err).
			Str("session_id", sessionID).
			Str("call_sid", sess.ProviderCallID).
			Msg("upstream call termination failed")
	}
	return nil
}

// ============================================
// CONFERENCE CONTROL DOCUMENTS
// ============================================

// ConferenceDocument builds the control document for a conference
// leg. The provider may probe before the session record exists (or
// after it was evicted); a generic join document is returned in that
// case, since every control request must get a valid response or the
// call drops.
func (o *Orchestrator) ConferenceDocument(conferenceName string) string {
	const welcome = "You are now being connected to the conference."

	params := twiml.CallParams{
		Greeting:          welcome,
		ConferenceName:    conferenceName,
		Record:            true,
		RecordingCallback: o.cfg.WebhookBase + "/recording",
	}

	if sess, ok := o.store.ByConference(conferenceName); ok {
		params.Voice = sess.Modulation.Voice
		params.Language = sess.Modulation.Language
		params.Record = sess.Record
	} else {
		o.log.Debug().
			Str("conference", conferenceName).
			Msg("conference control request without session, generic document returned")
	}

	return twiml.Call(params)
}

// ============================================
// CDR
// ============================================

func (o *Orchestrator) recordCreate(ctx context.Context, snap Snapshot) {
	if o.cdr == nil {
		return
	}
	if err := o.cdr.SessionCreated(ctx, snap); err != nil {
		o.log.Error().Err(err).Str("session_id", snap.SessionID).Msg("cdr insert failed")
	}
}

func (o *Orchestrator) recordUpdate(ctx context.Context, snap Snapshot) {
	if o.cdr == nil {
		return
	}
	if err := o.cdr.SessionUpdated(ctx, snap); err != nil {
		o.log.Error().Err(err).Str("session_id", snap.SessionID).Msg("cdr update failed")
	}
}
