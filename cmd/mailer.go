/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/reviewdb/apiserver/config"
	"github.com/reviewdb/apiserver/internal/mailer"
	"github.com/reviewdb/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// mailerCmd represents the mailer command. It drains the confirmation-email
// queue the API publishes to and delivers codes over SMTP.
var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Runs the confirmation-email worker",
	Long: `Runs the confirmation-email worker. Usage:

	apiserver mailer
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := mq.OpenBackend(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open mail backend: %w", err)
		}
		defer backend.Close()

		sender := mailer.NewSMTPSender(cfg.Mailer, logger)
		consumer := mailer.NewConsumer(sender, logger)

		if err := consumer.Run(ctx, backend, cfg.Mailer.Queue); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mailerCmd)
}
