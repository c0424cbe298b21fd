// Package geofence fans geofence boundary crossings out to notification
// channels, applying a per-alert cooldown so a device bouncing on a boundary
// does not flood the destination.
package geofence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/notify"
	"github.com/geomail/geomail/pkg/persistence"
)

// DefaultCooldown is the suppression window when an alert does not configure
// its own.
const DefaultCooldown = 2 * time.Minute

// Fanout delivers transition notifications for persisted alerts.
type Fanout struct {
	alerts    persistence.AlertRepository
	cooldowns persistence.CooldownStore
	notifiers *notify.Dispatcher
	logger    *slog.Logger
}

func NewFanout(alerts persistence.AlertRepository, cooldowns persistence.CooldownStore, notifiers *notify.Dispatcher, logger *slog.Logger) *Fanout {
	return &Fanout{
		alerts:    alerts,
		cooldowns: cooldowns,
		notifiers: notifiers,
		logger:    logger.With("module", "geofence_fanout"),
	}
}

// HandleTransition processes one boundary crossing. Suppressed and filtered
// transitions return nil; only delivery and lookup failures surface.
func (f *Fanout) HandleTransition(ctx context.Context, event models.TransitionEvent) error {
	logger := f.logger.With("alert_id", event.AlertID, "transition", string(event.Transition))

	alert, err := f.alerts.GetByID(ctx, event.AlertID)
	if err != nil {
		return fmt.Errorf("failed to load alert %s: %w", event.AlertID, err)
	}

	if !alert.Enabled {
		logger.InfoContext(ctx, "Skipping transition for disabled alert")

		return nil
	}

	if !alert.Notifies(event.Transition) {
		logger.InfoContext(ctx, "Alert does not react to this transition kind")

		return nil
	}

	// Manual triggers echo back through the transition source within the
	// cooldown window, so the same window also dedupes them.
	window := DefaultCooldown
	if alert.Cooldown > 0 {
		window = time.Duration(alert.Cooldown) * time.Millisecond
	}

	acquired, err := f.cooldowns.TryAcquire(ctx, cooldownKey(alert.ID, event.Transition), window)
	if err != nil {
		return fmt.Errorf("failed to check cooldown for alert %s: %w", alert.ID, err)
	}

	if !acquired {
		logger.InfoContext(ctx, "Suppressing transition inside cooldown window")

		return nil
	}

	destination, err := alertDestination(alert)
	if err != nil {
		return fmt.Errorf("cannot notify for alert %s: %w", alert.ID, err)
	}

	notifier, err := f.notifiers.For(alert.Channel)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Geofence %s: %s", transitionVerb(event.Transition), alert.Name)
	content := fmt.Sprintf("Location (%.5f, %.5f) crossed the %.0fm boundary of %q at %s.",
		event.Latitude, event.Longitude, alert.RadiusM, alert.Name,
		event.OccurredAt.Format(time.RFC3339))

	if err := notifier.Send(ctx, destination, subject, content); err != nil {
		return fmt.Errorf("failed to deliver geofence notification: %w", err)
	}

	logger.InfoContext(ctx, "Delivered geofence notification", "channel", string(alert.Channel))

	return nil
}

func cooldownKey(alertID string, kind models.TransitionType) string {
	return "geofence:" + alertID + ":" + string(kind)
}

func alertDestination(alert *models.GeofenceAlert) (string, error) {
	switch alert.Channel {
	case models.DestinationDeeplink:
		if alert.DestinationChatID != "" {
			return alert.DestinationChatID, nil
		}
	case models.DestinationGmail:
		if alert.DestinationEmail != "" {
			return alert.DestinationEmail, nil
		}
	}

	return "", notify.ErrDestinationNotSpecified
}

func transitionVerb(kind models.TransitionType) string {
	if kind == models.TransitionExit {
		return "exit"
	}

	return "entry"
}
