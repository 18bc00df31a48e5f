package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gradebook/apiserver/internal/events"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Domain event utilities",
}

// tailCmd prints every event published on EVENTS_CHANNEL as a JSON line.
var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Streams domain events from the configured broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.MQ.Backend == "" {
			return errors.New("MQ_BACKEND is not set")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		bus, err := events.Open(ctx, cfg.MQ, log)
		if err != nil {
			return err
		}
		defer bus.Close()

		out := json.NewEncoder(cmd.OutOrStdout())
		err = bus.Tail(ctx, func(evt events.Event) {
			_ = out.Encode(evt)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tail %s: %w", cfg.MQ.Channel, err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(tailCmd)
}
