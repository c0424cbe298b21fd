// Package main provides the geomail agent: the long-running daemon that
// reconciles interrupted runs on boot, re-arms schedules, and executes due
// workflows and geofence notifications.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/geomail/geomail/pkg/cmd"
	"github.com/geomail/geomail/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "geomail-agent",
		EnableShellCompletion: true,
		Usage:                 "Run the workflow execution agent",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Storage URL for persistence (file://path or memory://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for pairing offsets and cooldowns (in-memory if empty)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "account-email",
				Usage:   "Authenticated mail account address",
				Sources: cli.EnvVars("ACCOUNT_EMAIL"),
			},
			&cli.StringFlag{
				Name:    "account-name",
				Usage:   "Display name of the mail account",
				Sources: cli.EnvVars("ACCOUNT_NAME"),
			},
			&cli.StringFlag{
				Name:    "imap-host",
				Usage:   "IMAP server host",
				Sources: cli.EnvVars("IMAP_HOST"),
			},
			&cli.IntFlag{
				Name:    "imap-port",
				Usage:   "IMAP server port",
				Value:   993,
				Sources: cli.EnvVars("IMAP_PORT"),
			},
			&cli.StringFlag{
				Name:    "smtp-host",
				Usage:   "SMTP server host",
				Sources: cli.EnvVars("SMTP_HOST"),
			},
			&cli.IntFlag{
				Name:    "smtp-port",
				Usage:   "SMTP server port",
				Value:   587,
				Sources: cli.EnvVars("SMTP_PORT"),
			},
			&cli.StringFlag{
				Name:    "mail-password",
				Usage:   "Mail account password or app token",
				Sources: cli.EnvVars("MAIL_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "summarizer-url",
				Usage:   "Chat-completions endpoint for summarization",
				Sources: cli.EnvVars("SUMMARIZER_URL"),
			},
			&cli.StringFlag{
				Name:    "summarizer-api-key",
				Usage:   "API key for the summarization endpoint",
				Sources: cli.EnvVars("SUMMARIZER_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "telegram-bot-token",
				Usage:   "Telegram bot token for deep-link destinations",
				Sources: cli.EnvVars("TELEGRAM_BOT_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "telegram-bot-name",
				Usage:   "Telegram bot username used in deep links",
				Sources: cli.EnvVars("TELEGRAM_BOT_NAME"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("geomail-agent")
			logger.InfoContext(ctx, "Initializing Geomail Agent")

			persistence := cmd.NewPersistence(command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			agent, err := NewAgent(ctx, command, persistence, eventBus, logger)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to build agent", "error", err)

				return err
			}

			if err := agent.Start(ctx); err != nil && ctx.Err() == nil {
				logger.ErrorContext(ctx, "Agent stopped with error", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
