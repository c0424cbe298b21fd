// Package main provides the geomail API server.
package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/geomail/geomail/pkg/cmd"
	"github.com/geomail/geomail/pkg/log"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "geomail-api",
		Usage:                 "Create and manage workflows and geofence alerts",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Storage URL for persistence (file://path or memory://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for pairing offsets (in-memory if empty)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "telegram-bot-token",
				Usage:   "Telegram bot token for deep-link pairing",
				Sources: cli.EnvVars("TELEGRAM_BOT_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "telegram-bot-name",
				Usage:   "Telegram bot username used in deep links",
				Sources: cli.EnvVars("TELEGRAM_BOT_NAME"),
			},
			&cli.DurationFlag{
				Name:    "pairing-poll-interval",
				Usage:   "Delay between Telegram update polls during pairing",
				Value:   time.Second,
				Sources: cli.EnvVars("PAIRING_POLL_INTERVAL"),
			},
			&cli.IntFlag{
				Name:    "pairing-poll-attempts",
				Usage:   "Number of polls before an unclaimed pairing token lapses",
				Value:   60,
				Sources: cli.EnvVars("PAIRING_POLL_ATTEMPTS"),
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

			logger.InfoContext(ctx, "Initializing Geomail API")

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

			api, err := NewAPI(ctx, command, persistence, eventBus, logger)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to build API", "error", err)

				return err
			}

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
