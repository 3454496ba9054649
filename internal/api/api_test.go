package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birddigital/spoofcall/internal/config"
	"github.com/birddigital/spoofcall/pkg/messaging"
	"github.com/birddigital/spoofcall/pkg/telephony"
	"github.com/birddigital/spoofcall/pkg/twilio"
)

// fakeTelco fakes the provider for calls, SMS and recordings.
type fakeTelco struct {
	placeErr   error
	terminated []string
	recordings []twilio.Recording
	recErr     error
}

func (f *fakeTelco) PlaceCall(_ context.Context, req twilio.CallRequest) (*twilio.Call, error) {
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	return &twilio.Call{SID: "CA-test", From: req.From, To: req.To, Status: "queued"}, nil
}

func (f *fakeTelco) TerminateCall(_ context.Context, callSID string) error {
	f.terminated = append(f.terminated, callSID)
	return nil
}

func (f *fakeTelco) SendMessage(_ context.Context, req twilio.MessageRequest) (*twilio.Message, error) {
	return &twilio.Message{SID: "SM-test", From: req.From, To: req.To, Body: req.Body}, nil
}

func (f *fakeTelco) ListRecordings(_ context.Context, callSID string) ([]twilio.Recording, error) {
	if f.recErr != nil {
		return nil, f.recErr
	}
	return f.recordings, nil
}

func newTestServer(t *testing.T, telco *fakeTelco) *Server {
	t.Helper()
	cfg := config.Server{
		ListenAddr:        ":0",
		WebhookBaseURL:    "https://example.com/api/spoof/webhook",
		DefaultCallerID:   "+15550001111",
		UpstreamTimeout:   time.Second,
		CallRatePerMinute: 10000, // out of the way for tests
		SMSRatePerMinute:  10000,
	}
	store := telephony.NewStore(telephony.StoreConfig{}, zerolog.Nop())
	orch := telephony.NewOrchestrator(store, telco, nil, telephony.Config{
		WebhookBase:     cfg.WebhookBaseURL,
		UpstreamTimeout: cfg.UpstreamTimeout,
	}, zerolog.Nop())
	messenger := messaging.NewService(telco, cfg.DefaultCallerID)
	return NewServer(cfg, orch, messenger, telco, zerolog.Nop())
}

func doJSON(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echoHeaderContentType, "application/json")
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func doForm(s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echoHeaderContentType, "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func createSession(t *testing.T, s *Server, body string) callResponse {
	t.Helper()
	rec := doJSON(s, http.MethodPost, "/api/spoof/call", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out callResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.True(t, out.Success)
	require.NotEmpty(t, out.SessionID)
	return out
}

func TestPostCallAndPoll(t *testing.T) {
	s := newTestServer(t, &fakeTelco{})

	out := createSession(t, s, `{"to":"+15551234567","spoofNumber":"+15559876543","message":"hi there","record":true}`)
	assert.Equal(t, "CA-test", out.CallID)
	assert.Equal(t, "+15559876543", out.SpoofNumber)

	rec := doJSON(s, http.MethodGet, "/api/spoof/session/"+out.SessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var sr sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sr))
	assert.True(t, sr.Success)
	assert.Equal(t, telephony.StatusInitiated, sr.Session.Status)
	assert.Equal(t, "+15551234567", sr.Session.TargetNumber)
}

func TestPostCallValidation(t *testing.T) {
	s := newTestServer(t, &fakeTelco{})

	rec := doJSON(s, http.MethodPost, "/api/spoof/call", `{"to":"not-a-number","spoofNumber":"+15559876543"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var out errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.False(t, out.Success)

	// Nothing was created: any session lookup is a 404.
	rec = doJSON(s, http.MethodGet, "/api/spoof/session/whatever", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostCallUpstreamFailure(t *testing.T) {
	s := newTestServer(t, &fakeTelco{placeErr: errors.New("account suspended: code 20005")})

	rec := doJSON(s, http.MethodPost, "/api/spoof/call", `{"to":"+15551234567","spoofNumber":"+15559876543"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// The upstream detail never reaches the client.
	assert.NotContains(t, rec.Body.String(), "20005")
}

func TestSessionLifecycleOverWebhooks(t *testing.T) {
	s := newTestServer(t, &fakeTelco{})
	out := createSession(t, s, `{"to":"+15551234567","spoofNumber":"+15559876543"}`)

	// Provider reports ringing, then completed.
	rec := doForm(s, "/api/spoof/webhook/status", url.Values{"CallSid": {out.CallID}, "CallStatus": {"ringing"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doForm(s, "/api/spoof/webhook/status", url.Values{"CallSid": {out.CallID}, "CallStatus": {"completed"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	var sr sessionResponse
	rec = doJSON(s, http.MethodGet, "/api/spoof/session/"+out.SessionID, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sr))
	assert.Equal(t, telephony.StatusCompleted, sr.Session.Status)

	// A late failure report does not move a completed session.
	doForm(s, "/api/spoof/webhook/status", url.Values{"CallSid": {out.CallID}, "CallStatus": {"failed"}})
	rec = doJSON(s, http.MethodGet, "/api/spoof/session/"+out.SessionID, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sr))
	assert.Equal(t, telephony.StatusCompleted, sr.Session.Status)
}

func TestWebhookUnknownSessionStillAcknowledged(t *testing.T) {
	s := newTestServer(t, &fakeTelco{})

	rec := doForm(s, "/api/spoof/webhook/status", url.Values{"CallSid": {"CA-ghost"}, "CallStatus": {"completed"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doForm(s, "/api/spoof/webhook/recording", url.Values{"CallSid": {"CA-ghost"}, "RecordingSid": {"RE-ghost"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Even with a completely empty payload.
	rec = doForm(s, "/api/spoof/webhook/status", url.Values{})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookVoiceReturnsControlDocument(t *testing.T) {
	s := newTestServer(t, &fakeTelco{})

	rec := doForm(s, "/api/spoof/webhook/voice", url.Values{"CallSid": {"CA-x"}, "CallStatus": {"ringing"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echoHeaderContentType), "text/xml")
	assert.Contains(t, rec.Body.String(), "<Response>")
	assert.Contains(t, rec.Body.String(), "Please hold")

	// Non-ringing callbacks still get a valid (empty) document.
	rec = doForm(s, "/api/spoof/webhook/voice", url.Values{"CallSid": {"CA-x"}, "CallStatus": {"in-progress"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Response")
}

func TestWebhookRecordingAppends(t *testing.T) {
	s := newTestServer(t, &fakeTelco{})
	out := createSession(t, s, `{"to":"+15551234567","spoofNumber":"+15559876543","record":true}`)

	doForm(s, "/api/spoof/webhook/recording", url.Values{
		"CallSid": {out.CallID}, "RecordingSid": {"RE1"}, "RecordingUrl": {"https://r/1"}, "RecordingDuration": {"42"},
	})
	doForm(s, "/api/spoof/webhook/recording", url.Values{
		"CallSid": {out.CallID}, "RecordingSid": {"RE2"}, "RecordingUrl": {"https://r/2"},
	})

	var sr sessionResponse
	rec := doJSON(s, http.MethodGet, "/api/spoof/session/"+out.SessionID, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sr))
	require.Len(t, sr.Session.Recordings, 2)
	assert.Equal(t, "RE1", sr.Session.Recordings[0].SID)
	assert.Equal(t, 42, sr.Session.Recordings[0].DurationS)
	assert.Equal(t, "RE2", sr.Session.Recordings[1].SID)
}

func TestWebhookConferenceAlwaysAnswers(t *testing.T) {
	s := newTestServer(t, &fakeTelco{})

	rec := doForm(s, "/api/spoof/webhook/conference/spoof-conf-unknown", url.Values{})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "spoof-conf-unknown")
	assert.Contains(t, rec.Body.String(), "Conference")
}

func TestEndSession(t *testing.T) {
	telco := &fakeTelco{}
	s := newTestServer(t, telco)
	out := createSession(t, s, `{"to":"+15551234567","spoofNumber":"+15559876543"}`)

	rec := doJSON(s, http.MethodPost, "/api/spoof/session/"+out.SessionID+"/end", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{out.CallID}, telco.terminated)

	var sr sessionResponse
	rec = doJSON(s, http.MethodGet, "/api/spoof/session/"+out.SessionID, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sr))
	assert.Equal(t, telephony.StatusEnded, sr.Session.Status)

	rec = doJSON(s, http.MethodPost, "/api/spoof/session/nope/end", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostSMS(t *testing.T) {
	s := newTestServer(t, &fakeTelco{})

	rec := doJSON(s, http.MethodPost, "/api/spoof/sms", `{"to":"+15551234567","body":"hello","from":"+15559876543"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out smsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Equal(t, "SM-test", out.MessageID)

	rec = doJSON(s, http.MethodPost, "/api/spoof/sms", `{"to":"bad","body":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(s, http.MethodPost, "/api/spoof/sms", `{"to":"+15551234567","body":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRecordings(t *testing.T) {
	telco := &fakeTelco{recordings: []twilio.Recording{{SID: "RE1", CallSID: "CA1"}}}
	s := newTestServer(t, telco)

	rec := doJSON(s, http.MethodGet, "/api/spoof/recordings/CA1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out recordingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Recordings, 1)
	assert.Equal(t, "RE1", out.Recordings[0].SID)

	telco.recErr = errors.New("boom")
	rec = doJSON(s, http.MethodGet, "/api/spoof/recordings/CA1", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &fakeTelco{})
	rec := doJSON(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
