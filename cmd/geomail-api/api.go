package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	cli "github.com/urfave/cli/v3"

	pkgcmd "github.com/geomail/geomail/pkg/cmd"
	"github.com/geomail/geomail/pkg/eventbus"
	"github.com/geomail/geomail/pkg/persistence"
	"github.com/geomail/geomail/pkg/persistence/memory"
	redisstore "github.com/geomail/geomail/pkg/persistence/redis"
	"github.com/geomail/geomail/pkg/scheduler"
	"github.com/geomail/geomail/pkg/telegram"
	"github.com/geomail/geomail/pkg/web"
	"github.com/geomail/geomail/pkg/workflow"
)

type API struct {
	handlers *web.APIHandlers
	logger   *slog.Logger
}

func NewAPI(ctx context.Context, command *cli.Command, p persistence.Persistence, bus eventbus.EventBus, logger *slog.Logger) (*API, error) {
	repository := workflow.NewRepository(p)
	reg := pkgcmd.NewRegistry(logger)

	var pairingState persistence.PairingStateStore

	if redisURL := command.String("redis-url"); redisURL != "" {
		store, err := redisstore.NewStore(ctx, redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		pairingState = store
	} else {
		pairingState = memory.NewPairingStateStore()
	}

	telegramClient := telegram.NewClient(
		command.String("telegram-bot-token"),
		command.String("telegram-bot-name"),
	)

	pairing := telegram.NewPairing(
		telegramClient,
		p.WorkflowRepository(),
		pairingState,
		telegram.PairingConfig{
			PollInterval: command.Duration("pairing-poll-interval"),
			MaxAttempts:  command.Int("pairing-poll-attempts"),
		},
		logger,
	)

	// The API arms schedules; the agent's poll loop fires them.
	armer := scheduler.NewScheduler(repository, bus, logger)

	handlers := web.NewAPIHandlers(
		repository,
		p.AlertRepository(),
		armer,
		pairing,
		bus,
		reg,
		validator.New(validator.WithRequiredStructEnabled()),
		logger,
	)

	return &API{handlers: handlers, logger: logger}, nil
}

func (a *API) Start(port int) error {
	app := web.NewApp(a.handlers)

	return app.Listen(":" + strconv.Itoa(port))
}
