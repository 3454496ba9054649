// Package config derives the server configuration from the process
// environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Server holds everything the service needs at startup.
type Server struct {
	ListenAddr string

	// Provider credentials.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioBaseURL    string // override for tests/regional hosts, empty means default

	// WebhookBaseURL is the externally reachable prefix the provider
	// calls back on, e.g. "https://host/api/spoof/webhook".
	WebhookBaseURL string

	// DefaultCallerID is the fallback SMS sender.
	DefaultCallerID string

	// DatabaseURL enables the call-detail-record sink when set.
	DatabaseURL string

	SessionTTL      time.Duration
	TerminalLinger  time.Duration
	SweepInterval   time.Duration
	UpstreamTimeout time.Duration

	// Per-client request ceilings (requests/minute) on the call and
	// SMS endpoints.
	CallRatePerMinute float64
	SMSRatePerMinute  float64
}

// ServerConfigFromEnv reads the configuration from the environment,
// filling sane defaults for everything optional. Credentials are not
// validated here; the server refuses to start without them.
func ServerConfigFromEnv() Server {
	return Server{
		ListenAddr:        getEnv("SPOOFCALL_LISTEN_ADDR", ":8080"),
		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioBaseURL:     getEnv("TWILIO_BASE_URL", ""),
		WebhookBaseURL:    getEnv("SPOOF_WEBHOOK_BASE_URL", "http://localhost:8080/api/spoof/webhook"),
		DefaultCallerID:   getEnv("DEFAULT_CALLER_ID", ""),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		SessionTTL:        getEnvDuration("SESSION_TTL", time.Hour),
		TerminalLinger:    getEnvDuration("TERMINAL_LINGER", 10*time.Minute),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", time.Minute),
		UpstreamTimeout:   getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		CallRatePerMinute: getEnvFloat("CALL_RATE_PER_MINUTE", 10),
		SMSRatePerMinute:  getEnvFloat("SMS_RATE_PER_MINUTE", 20),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
