package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/geomail/geomail/pkg/account"
	pkgcmd "github.com/geomail/geomail/pkg/cmd"
	"github.com/geomail/geomail/pkg/eventbus"
	"github.com/geomail/geomail/pkg/events"
	"github.com/geomail/geomail/pkg/geofence"
	"github.com/geomail/geomail/pkg/mail"
	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/notify"
	"github.com/geomail/geomail/pkg/otelhelper"
	"github.com/geomail/geomail/pkg/persistence"
	"github.com/geomail/geomail/pkg/persistence/memory"
	redisstore "github.com/geomail/geomail/pkg/persistence/redis"
	"github.com/geomail/geomail/pkg/scheduler"
	"github.com/geomail/geomail/pkg/summarize"
	"github.com/geomail/geomail/pkg/telegram"
	"github.com/geomail/geomail/pkg/workflow"
)

// Agent wires the scheduler, runner, reconciler, and geofence fanout into
// one process.
type Agent struct {
	repository *workflow.Repository
	runner     *workflow.Runner
	reconciler *workflow.Reconciler
	scheduler  *scheduler.Scheduler
	fanout     *geofence.Fanout
	bus        eventbus.EventBus
	logger     *slog.Logger
}

func NewAgent(ctx context.Context, command *cli.Command, p persistence.Persistence, bus eventbus.EventBus, logger *slog.Logger) (*Agent, error) {
	repository := workflow.NewRepository(p)
	reg := pkgcmd.NewRegistry(logger)

	tracer, err := otelhelper.NewTracer(ctx, "geomail-agent")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	mailClient := mail.NewIMAPClient(mail.Config{
		IMAPHost: command.String("imap-host"),
		IMAPPort: command.Int("imap-port"),
		SMTPHost: command.String("smtp-host"),
		SMTPPort: command.Int("smtp-port"),
		Username: command.String("account-email"),
		Password: command.String("mail-password"),
	})

	summarizer := summarize.NewHTTPSummarizer(
		command.String("summarizer-url"),
		command.String("summarizer-api-key"),
	)

	telegramClient := telegram.NewClient(
		command.String("telegram-bot-token"),
		command.String("telegram-bot-name"),
	)

	notifiers := notify.NewDispatcher()
	notifiers.Register(models.DestinationDeeplink, notify.NewTelegramNotifier(telegramClient))
	notifiers.Register(models.DestinationGmail, notify.NewGmailNotifier(mailClient, command.String("account-email")))

	var cooldowns persistence.CooldownStore

	if redisURL := command.String("redis-url"); redisURL != "" {
		store, err := redisstore.NewStore(ctx, redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		cooldowns = store
	} else {
		cooldowns = memory.NewCooldownStore()
	}

	sched := scheduler.NewScheduler(repository, bus, logger)

	runner := workflow.NewRunner(workflow.RunnerConfig{
		Repository: repository,
		Registry:   reg,
		Accounts:   account.NewStaticProvider(command.String("account-email"), command.String("account-name")),
		Mail:       mailClient,
		Summarizer: summarizer,
		Notifiers:  notifiers,
		Armer:      sched,
		Bus:        bus,
		Tracer:     tracer,
		Logger:     logger,
	})

	fanout := geofence.NewFanout(p.AlertRepository(), cooldowns, notifiers, logger)

	return &Agent{
		repository: repository,
		runner:     runner,
		reconciler: workflow.NewReconciler(repository, logger),
		scheduler:  sched,
		fanout:     fanout,
		bus:        bus,
		logger:     logger,
	}, nil
}

// Start performs boot recovery, subscribes to the bus, and runs the
// scheduler until a shutdown signal arrives.
func (a *Agent) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settled, err := a.reconciler.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("boot reconcile failed: %w", err)
	}

	if settled > 0 {
		a.logger.InfoContext(ctx, "Settled interrupted workflows", "count", settled)
	}

	if err := a.scheduler.BootRescan(ctx); err != nil {
		return fmt.Errorf("boot rescan failed: %w", err)
	}

	if err := a.bus.Handle(events.WorkflowDueEvent, a.handleWorkflowDue); err != nil {
		return err
	}

	if err := a.bus.Handle(events.GeofenceTransitionEvent, a.handleGeofenceTransition); err != nil {
		return err
	}

	if err := a.bus.Subscribe(ctx); err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "Geomail Agent started")

	err = a.scheduler.Start(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// handleWorkflowDue executes the due workflow in its own goroutine so a long
// run cannot block other due events. The runner's guard drops overlapping
// attempts for the same id.
func (a *Agent) handleWorkflowDue(ctx context.Context, event any) error {
	due, ok := event.(*events.WorkflowDue)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	go func() {
		err := a.runner.Execute(context.WithoutCancel(ctx), due.WorkflowID)
		if err != nil && !errors.Is(err, workflow.ErrAlreadyRunning) {
			a.logger.ErrorContext(ctx, "Workflow execution failed",
				"workflow_id", due.WorkflowID,
				"error", err)
		}
	}()

	return nil
}

func (a *Agent) handleGeofenceTransition(ctx context.Context, event any) error {
	transition, ok := event.(*events.GeofenceTransition)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	return a.fanout.HandleTransition(ctx, models.TransitionEvent{
		AlertID:    transition.AlertID,
		Transition: transition.Transition,
		Latitude:   transition.Latitude,
		Longitude:  transition.Longitude,
		RadiusM:    transition.RadiusM,
		Manual:     transition.Manual,
		OccurredAt: transition.Timestamp,
	})
}
