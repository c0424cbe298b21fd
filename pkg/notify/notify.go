// Package notify provides the delivery channel adapters shared by workflow
// steps and geofence alerting, behind one Send contract.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/geomail/geomail/pkg/mail"
	"github.com/geomail/geomail/pkg/models"
	"github.com/geomail/geomail/pkg/telegram"
)

// ErrDestinationNotSpecified means neither the step nor the workflow carries
// a usable destination.
var ErrDestinationNotSpecified = errors.New("destination not specified")

// ErrTelegramNotLinked means a deeplink destination was requested before the
// pairing handshake completed.
var ErrTelegramNotLinked = errors.New("telegram chat not linked")

// Notifier delivers content to a channel-specific destination.
type Notifier interface {
	Send(ctx context.Context, destination, subject, content string) error
}

// TelegramNotifier sends through the Bot API. Subject and content are merged
// since Telegram has no subject line.
type TelegramNotifier struct {
	client *telegram.Client
}

func NewTelegramNotifier(client *telegram.Client) *TelegramNotifier {
	return &TelegramNotifier{client: client}
}

func (n *TelegramNotifier) Send(ctx context.Context, destination, subject, content string) error {
	text := content
	if subject != "" {
		text = subject + "\n\n" + content
	}

	return n.client.SendMessage(ctx, destination, text)
}

// GmailNotifier sends through the mail collaborator.
type GmailNotifier struct {
	client mail.Client
	from   string
}

func NewGmailNotifier(client mail.Client, from string) *GmailNotifier {
	return &GmailNotifier{client: client, from: from}
}

func (n *GmailNotifier) Send(ctx context.Context, destination, subject, content string) error {
	_, err := n.client.Send(ctx, mail.OutgoingMessage{
		From:    n.from,
		To:      []string{destination},
		Subject: subject,
		Body:    content,
	})

	return err
}

// Dispatcher picks the notifier for a destination type.
type Dispatcher struct {
	notifiers map[models.DestinationType]Notifier
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{notifiers: make(map[models.DestinationType]Notifier)}
}

func (d *Dispatcher) Register(kind models.DestinationType, notifier Notifier) {
	d.notifiers[kind] = notifier
}

// For returns the notifier registered for the destination type.
func (d *Dispatcher) For(kind models.DestinationType) (Notifier, error) {
	notifier, ok := d.notifiers[kind]
	if !ok {
		return nil, fmt.Errorf("no notifier registered for destination type %q", kind)
	}

	return notifier, nil
}

// ResolveDestination applies the fallback rule shared by the forward and
// batch-summary steps: a blank step destination falls back to the workflow's
// persisted destination for the effective type. A deeplink destination
// requires a completed pairing.
func ResolveDestination(stepDestination string, stepType models.DestinationType, workflow *models.Workflow) (string, models.DestinationType, error) {
	kind := stepType
	if kind == "" {
		kind = workflow.DestinationType
	}

	if kind == "" {
		kind = models.DestinationGmail
	}

	if stepDestination != "" {
		return stepDestination, kind, nil
	}

	switch kind {
	case models.DestinationDeeplink:
		if workflow.Telegram.Status == models.TelegramConnected && workflow.Telegram.ChatID != "" {
			return workflow.Telegram.ChatID, kind, nil
		}

		if workflow.DestinationChatID != "" {
			return workflow.DestinationChatID, kind, nil
		}

		if workflow.Telegram.Token != "" || workflow.Telegram.Status == models.TelegramWaiting {
			return "", kind, ErrTelegramNotLinked
		}

		return "", kind, ErrDestinationNotSpecified
	case models.DestinationGmail:
		if workflow.DestinationEmail != "" {
			return workflow.DestinationEmail, kind, nil
		}

		return "", kind, ErrDestinationNotSpecified
	default:
		return "", kind, ErrDestinationNotSpecified
	}
}
