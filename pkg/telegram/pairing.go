package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/persistence"
)

// PairingConfig exposes the polling heuristics as configuration. The
// defaults match the original handshake: one call per second, up to a
// minute.
type PairingConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
}

// DefaultPairingConfig returns the stock polling settings.
func DefaultPairingConfig() PairingConfig {
	return PairingConfig{
		PollInterval: 1 * time.Second,
		MaxAttempts:  60,
	}
}

// ConnectedFunc is invoked when a pairing attempt resolves a chat.
type ConnectedFunc func(ctx context.Context, workflowID, chatID, username string)

// Pairing runs the deep-link handshake: mint a token, hand out a bot deep
// link, then watch the bot update feed for the matching /start payload.
type Pairing struct {
	client    *Client
	workflows persistence.WorkflowRepository
	state     persistence.PairingStateStore
	config    PairingConfig
	logger    *slog.Logger
}

// NewPairing creates a pairing manager.
func NewPairing(
	client *Client,
	workflows persistence.WorkflowRepository,
	state persistence.PairingStateStore,
	config PairingConfig,
	logger *slog.Logger,
) *Pairing {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPairingConfig().PollInterval
	}

	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultPairingConfig().MaxAttempts
	}

	return &Pairing{
		client:    client,
		workflows: workflows,
		state:     state,
		config:    config,
		logger:    logger.With("module", "telegram_pairing"),
	}
}

// Begin mints a pairing token for the workflow, persists it, and returns the
// deep-link URL to hand to the share sheet.
func (p *Pairing) Begin(ctx context.Context, workflowID string) (string, error) {
	workflow, err := p.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return "", fmt.Errorf("failed to load workflow for pairing: %w", err)
	}

	token := uuid.New().String()

	workflow.Telegram.Token = token
	workflow.Telegram.Status = models.TelegramWaiting
	workflow.Telegram.ChatID = ""
	workflow.Telegram.Username = ""

	if err := p.workflows.Save(ctx, workflow); err != nil {
		return "", fmt.Errorf("failed to persist pairing token: %w", err)
	}

	return p.client.DeepLink(token), nil
}

// Poll watches the update feed until the workflow's token shows up in a
// "/start <token>" message or the attempt budget is spent. HTTP failures are
// logged and the loop continues. The advancing offset is persisted so a
// restart never reprocesses old updates.
func (p *Pairing) Poll(ctx context.Context, workflowID string, onConnected ConnectedFunc) error {
	workflow, err := p.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to load workflow for pairing poll: %w", err)
	}

	token := workflow.Telegram.Token
	if token == "" || workflow.Telegram.Status != models.TelegramWaiting {
		return fmt.Errorf("workflow %s has no pending pairing", workflowID)
	}

	logger := p.logger.With("workflow_id", workflowID)

	for attempt := 0; attempt < p.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.config.PollInterval):
			}
		}

		offset, err := p.state.UpdateOffset(ctx)
		if err != nil {
			logger.Warn("Failed to read update offset", "error", err)

			continue
		}

		updates, err := p.client.GetUpdates(ctx, offset+1)
		if err != nil {
			logger.Warn("getUpdates failed, retrying", "error", err)

			continue
		}

		for _, update := range updates {
			if update.UpdateID > offset {
				offset = update.UpdateID
			}

			if update.Message == nil {
				continue
			}

			if !matchesStartToken(update.Message.Text, token) {
				continue
			}

			chatID := FormatChatID(update.Message.Chat.ID)

			username := ""
			if update.Message.From != nil {
				username = update.Message.From.Username
			}

			if err := p.state.SetUpdateOffset(ctx, offset); err != nil {
				logger.Warn("Failed to persist update offset", "error", err)
			}

			if err := p.complete(ctx, workflowID, chatID, username); err != nil {
				return err
			}

			logger.Info("Pairing connected", "chat_id", chatID, "username", username)

			if onConnected != nil {
				onConnected(ctx, workflowID, chatID, username)
			}

			return nil
		}

		if err := p.state.SetUpdateOffset(ctx, offset); err != nil {
			logger.Warn("Failed to persist update offset", "error", err)
		}
	}

	// No match inside the window: the workflow stays in waiting status and
	// the caller may retry.
	logger.Info("Pairing window elapsed without a match")

	return nil
}

// Disconnect clears the stored chat binding and token.
func (p *Pairing) Disconnect(ctx context.Context, workflowID string) error {
	workflow, err := p.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to load workflow for disconnect: %w", err)
	}

	workflow.Telegram = models.TelegramLink{Status: models.TelegramNotConnected}

	if err := p.workflows.Save(ctx, workflow); err != nil {
		return fmt.Errorf("failed to persist disconnect: %w", err)
	}

	return nil
}

func (p *Pairing) complete(ctx context.Context, workflowID, chatID, username string) error {
	workflow, err := p.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to reload workflow: %w", err)
	}

	workflow.Telegram.ChatID = chatID
	workflow.Telegram.Username = username
	workflow.Telegram.Status = models.TelegramConnected

	if err := p.workflows.Save(ctx, workflow); err != nil {
		return fmt.Errorf("failed to persist pairing result: %w", err)
	}

	return nil
}

func matchesStartToken(text, token string) bool {
	return strings.TrimSpace(text) == "/start "+token
}
