// Package messaging sends SMS with a caller-chosen sender ID through
// the telephony provider.
package messaging

import (
	"context"

	"github.com/pkg/errors"

	"github.com/birddigital/spoofcall/pkg/phone"
	"github.com/birddigital/spoofcall/pkg/twilio"
)

// Body length bounds enforced by the provider for concatenated SMS.
const (
	minBodyLen = 1
	maxBodyLen = 1600
)

// Sender is the provider capability this service depends on.
// Satisfied by *twilio.Client.
type Sender interface {
	SendMessage(ctx context.Context, req twilio.MessageRequest) (*twilio.Message, error)
}

// Service handles spoofed-sender SMS.
type Service struct {
	client      Sender
	defaultFrom string
}

// NewService creates a message service. defaultFrom is used when a
// request does not name an explicit sender.
func NewService(client Sender, defaultFrom string) *Service {
	return &Service{
		client:      client,
		defaultFrom: defaultFrom,
	}
}

// Send validates and sends a single message. An empty from falls
// back to the configured default sender.
func (s *Service) Send(ctx context.Context, to, from, body string) (*twilio.Message, error) {
	if from == "" {
		from = s.defaultFrom
	}
	if !phone.Valid(to) {
		return nil, errors.New("invalid recipient number")
	}
	if !phone.Valid(from) {
		return nil, errors.New("invalid sender number")
	}
	if len(body) < minBodyLen || len(body) > maxBodyLen {
		return nil, errors.Errorf("message body must be between %d and %d characters", minBodyLen, maxBodyLen)
	}

	msg, err := s.client.SendMessage(ctx, twilio.MessageRequest{From: from, To: to, Body: body})
	if err != nil {
		return nil, errors.Wrap(err, "send SMS")
	}
	return msg, nil
}

// Broadcast sends the same message to multiple recipients, skipping
// over per-recipient failures and reporting them alongside the
// successes.
func (s *Service) Broadcast(ctx context.Context, from string, recipients []string, body string) ([]*twilio.Message, []error) {
	var messages []*twilio.Message
	var errs []error

	for _, to := range recipients {
		msg, err := s.Send(ctx, to, from, body)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "failed to send to %s", to))
			continue
		}
		messages = append(messages, msg)
	}

	return messages, errs
}
