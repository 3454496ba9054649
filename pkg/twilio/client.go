// Package twilio is a minimal REST client for the upstream telephony
// provider: outbound calls, call termination, SMS and recording
// lookups. It speaks the 2010-04-01 form-encoded API directly rather
// than pulling in the provider SDK.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const defaultBaseURL = "https://api.twilio.com/2010-04-01"

// Client is an authenticated API client. Safe for concurrent use.
type Client struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API host. Used by the
// tests and by regional deployments.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a provider API client.
func NewClient(accountSID, authToken string, opts ...Option) *Client {
	c := &Client{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ============================================
// RESOURCE TYPES
// ============================================

// Call is the provider's view of a call resource.
type Call struct {
	SID       string `json:"sid"`
	From      string `json:"from"`
	To        string `json:"to"`
	Status    string `json:"status"`
	Direction string `json:"direction"`
	Duration  string `json:"duration"`
	Price     string `json:"price,omitempty"`
}

// Message is the provider's view of an SMS resource.
type Message struct {
	SID       string `json:"sid"`
	From      string `json:"from"`
	To        string `json:"to"`
	Body      string `json:"body"`
	Status    string `json:"status"`
	Direction string `json:"direction"`
	Price     string `json:"price,omitempty"`
}

// Recording is one entry of a call's recording list.
type Recording struct {
	SID      string `json:"sid"`
	CallSID  string `json:"call_sid"`
	Duration string `json:"duration"`
	URI      string `json:"uri"`
	Status   string `json:"status"`
}

// CallRequest describes an outbound call to place.
type CallRequest struct {
	From string
	To   string

	// TwiML carries the control document inline. When empty, URL is
	// sent instead and the provider fetches instructions from it.
	TwiML string
	URL   string

	StatusCallback          string
	Record                  bool
	RecordingStatusCallback string
	RingTimeout             int // seconds, 0 means provider default
}

// MessageRequest describes an outbound SMS.
type MessageRequest struct {
	From string
	To   string
	Body string
}

// ============================================
// CALL OPERATIONS
// ============================================

// PlaceCall initiates an outbound call and returns the provider call
// resource, whose SID correlates all later webhooks.
func (c *Client) PlaceCall(ctx context.Context, req CallRequest) (*Call, error) {
	form := url.Values{}
	form.Set("From", req.From)
	form.Set("To", req.To)

	if req.TwiML != "" {
		form.Set("Twiml", req.TwiML)
	} else {
		form.Set("Url", req.URL)
		form.Set("Method", "POST")
	}

	if req.StatusCallback != "" {
		form.Set("StatusCallback", req.StatusCallback)
		form.Set("StatusCallbackEvent", "initiated ringing answered completed")
		form.Set("StatusCallbackMethod", "POST")
	}

	if req.Record {
		form.Set("Record", "true")
		if req.RecordingStatusCallback != "" {
			form.Set("RecordingStatusCallback", req.RecordingStatusCallback)
		}
	}

	if req.RingTimeout > 0 {
		form.Set("Timeout", fmt.Sprintf("%d", req.RingTimeout))
	}

	var call Call
	path := fmt.Sprintf("/Accounts/%s/Calls.json", c.accountSID)
	if err := c.postForm(ctx, path, form, &call); err != nil {
		return nil, errors.Wrap(err, "place call")
	}
	return &call, nil
}

// TerminateCall hangs up an in-flight call.
func (c *Client) TerminateCall(ctx context.Context, callSID string) error {
	form := url.Values{}
	form.Set("Status", "completed")

	path := fmt.Sprintf("/Accounts/%s/Calls/%s.json", c.accountSID, callSID)
	if err := c.postForm(ctx, path, form, nil); err != nil {
		return errors.Wrapf(err, "terminate call %s", callSID)
	}
	return nil
}

// SendMessage sends an SMS.
func (c *Client) SendMessage(ctx context.Context, req MessageRequest) (*Message, error) {
	form := url.Values{}
	form.Set("From", req.From)
	form.Set("To", req.To)
	form.Set("Body", req.Body)

	var msg Message
	path := fmt.Sprintf("/Accounts/%s/Messages.json", c.accountSID)
	if err := c.postForm(ctx, path, form, &msg); err != nil {
		return nil, errors.Wrap(err, "send message")
	}
	return &msg, nil
}

// ListRecordings returns the recordings attached to a call.
func (c *Client) ListRecordings(ctx context.Context, callSID string) ([]Recording, error) {
	path := fmt.Sprintf("/Accounts/%s/Calls/%s/Recordings.json", c.accountSID, callSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	var list struct {
		Recordings []Recording `json:"recordings"`
	}
	if err := c.execute(req, &list); err != nil {
		return nil, errors.Wrapf(err, "list recordings for %s", callSID)
	}
	return list.Recordings, nil
}

// ============================================
// TRANSPORT
// ============================================

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	if c.accountSID == "" || c.authToken == "" {
		return errors.New("provider credentials not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	return c.execute(req, out)
}

func (c *Client) execute(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider API error (%d): %s", e.Status, e.Body)
}
