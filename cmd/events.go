/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/reckon-app/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the user lifecycle event stream",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Subscribe to user events and log each one until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.Events)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("EVENTS_BACKEND is none; nothing to tail")
		}
		defer broker.Close()

		log.Info(ctx, "tailing user events", "backend", cfg.Events.Backend, "topic", cfg.Events.Topic)
		err = broker.Subscribe(ctx, cfg.Events.Topic, func(ctx context.Context, msg mq.Message) error {
			evt, err := mq.DecodeUserEvent(msg)
			if err != nil {
				log.Warn(ctx, "skipping undecodable message", "message_id", msg.ID, "error", err)
				return nil
			}
			log.Info(ctx, "user event",
				"event_id", evt.ID,
				"type", evt.Type,
				"user_id", evt.UserID,
				"email", evt.Email,
				"occurred_at", evt.OccurredAt,
			)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
