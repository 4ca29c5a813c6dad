/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/tech-e/apiserver/internal/handlers"
	"github.com/tech-e/apiserver/internal/mail"
	"github.com/tech-e/apiserver/internal/mq"
	"go.uber.org/zap"
)

// mailerCmd consumes the mail queue and delivers over SMTP.
var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Run the outbound mail worker",
	Long: `Consumes queued mail (MAIL_QUEUE on MQ_BACKEND) and sends it through
the configured SMTP relay. Failed sends are redelivered by the broker.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		broker, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			if errors.Is(err, mq.ErrDisabled) {
				return errors.New("mailer requires MQ_BACKEND to be rabbitmq or pubsub")
			}
			return err
		}
		defer broker.Close()

		sender, err := mail.NewSMTPSender(cfg.Mail)
		if err != nil {
			return err
		}

		worker := mail.NewWorker(sender, logger, handlers.ObserveMail("send"))
		err = worker.Run(cmd.Context(), broker, cfg.Mail.Queue)
		if errors.Is(err, context.Canceled) {
			logger.Info("Mailer worker stopped")
			return nil
		}
		if err != nil {
			logger.Error("Mailer worker failed", zap.Error(err))
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(mailerCmd)
}
