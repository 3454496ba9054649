// Command spoofcall runs the call broker service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/birddigital/spoofcall/internal/api"
	"github.com/birddigital/spoofcall/internal/cdr"
	"github.com/birddigital/spoofcall/internal/config"
	"github.com/birddigital/spoofcall/pkg/messaging"
	"github.com/birddigital/spoofcall/pkg/telephony"
	"github.com/birddigital/spoofcall/pkg/twilio"
)

func main() {
	root := &cobra.Command{
		Use:   "spoofcall",
		Short: "Telephony broker for spoofed outbound calls and SMS",
	}
	root.AddCommand(serveCmd(), envCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func envCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the effective configuration as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.ServerConfigFromEnv()
			cfg.TwilioAuthToken = "" // never print credentials
			out, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
			logger := log.With().Str("service", "spoofcall").Logger()

			cfg := config.ServerConfigFromEnv()
			if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
				return fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN must be set")
			}

			return serve(cfg, logger)
		},
	}
}

func serve(cfg config.Server, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var clientOpts []twilio.Option
	if cfg.TwilioBaseURL != "" {
		clientOpts = append(clientOpts, twilio.WithBaseURL(cfg.TwilioBaseURL))
	}
	client := twilio.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, clientOpts...)

	var sink telephony.CDRSink
	if cfg.DatabaseURL != "" {
		records, err := cdr.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect CDR store: %w", err)
		}
		defer records.Close()
		sink = records
		logger.Info().Msg("call detail records enabled")
	}

	store := telephony.NewStore(telephony.StoreConfig{
		SessionTTL:     cfg.SessionTTL,
		TerminalLinger: cfg.TerminalLinger,
		SweepInterval:  cfg.SweepInterval,
	}, logger)
	store.StartSweeper(ctx)

	orch := telephony.NewOrchestrator(store, client, sink, telephony.Config{
		WebhookBase:     cfg.WebhookBaseURL,
		UpstreamTimeout: cfg.UpstreamTimeout,
	}, logger)

	messenger := messaging.NewService(client, cfg.DefaultCallerID)
	server := api.NewServer(cfg, orch, messenger, client, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("server starting")
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
