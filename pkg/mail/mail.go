// Package mail provides the mail collaborator used by workflow steps: list
// recent messages from a label, fetch a single message, and send.
package mail

import (
	"context"
	"time"
)

// MessageRef is a lightweight handle to a stored message.
type MessageRef struct {
	ID      string    `json:"id"`
	Subject string    `json:"subject"`
	From    string    `json:"from"`
	Date    time.Time `json:"date"`
}

// Message is a fully fetched message.
type Message struct {
	ID      string    `json:"id"`
	Subject string    `json:"subject"`
	From    string    `json:"from"`
	To      []string  `json:"to,omitempty"`
	Body    string    `json:"body,omitempty"`
	Date    time.Time `json:"date"`
}

// OutgoingMessage is a message to be sent through the provider.
type OutgoingMessage struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Client is the mail provider contract. Implementations bound every call by
// the supplied context.
type Client interface {
	// ListRecent returns up to max refs from the given label, newest last.
	ListRecent(ctx context.Context, label string, max int) ([]MessageRef, error)

	// Get fetches a single message by id.
	Get(ctx context.Context, id string) (*Message, error)

	// Send delivers the message and returns the provider's message id.
	Send(ctx context.Context, message OutgoingMessage) (string, error)
}
