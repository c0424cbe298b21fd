package mail

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/charset"
)

func init() {
	imap.CharsetReader = charset.Reader
}

const (
	singleFetchTimeout = 15 * time.Second
	listTimeout        = 30 * time.Second
	idleReconnectAfter = 5 * time.Minute
)

// imapSession is the subset of the IMAP connection the client drives.
// *client.Client satisfies it; tests substitute a fake.
type imapSession interface {
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Logout() error
}

// IMAPClient talks IMAP for retrieval and SMTP for delivery. Gmail is the
// primary target but any TLS IMAP/SMTP pair works.
//
// The IMAP session is stateful (Select changes the active mailbox), so one
// mutex serializes every command on it. Concurrent workflow runs sharing the
// client queue here instead of interleaving commands on the wire.
type IMAPClient struct {
	smtpHost string
	smtpPort int
	imapHost string
	imapPort int
	username string
	password string

	mu           sync.Mutex
	dial         func() (imapSession, error)
	session      imapSession
	lastActivity time.Time
}

// Config carries the connection settings for an IMAPClient.
type Config struct {
	SMTPHost string
	SMTPPort int
	IMAPHost string
	IMAPPort int
	Username string
	Password string
}

// NewIMAPClient creates a client; connections are established lazily.
func NewIMAPClient(cfg Config) *IMAPClient {
	c := &IMAPClient{
		smtpHost:     cfg.SMTPHost,
		smtpPort:     cfg.SMTPPort,
		imapHost:     cfg.IMAPHost,
		imapPort:     cfg.IMAPPort,
		username:     cfg.Username,
		password:     cfg.Password,
		lastActivity: time.Now(),
	}
	c.dial = c.dialTLS

	return c
}

func (c *IMAPClient) dialTLS() (imapSession, error) {
	imapAddr := fmt.Sprintf("%s:%d", c.imapHost, c.imapPort)

	conn, err := client.DialTLS(imapAddr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := conn.Login(c.username, c.password); err != nil {
		_ = conn.Logout()

		return nil, fmt.Errorf("IMAP authentication failed: %w", err)
	}

	return conn, nil
}

// ensureConnected is called with c.mu held.
func (c *IMAPClient) ensureConnected() error {
	if c.session != nil && time.Since(c.lastActivity) <= idleReconnectAfter {
		return nil
	}

	c.closeSession()

	session, err := c.dial()
	if err != nil {
		return err
	}

	c.session = session
	c.lastActivity = time.Now()

	return nil
}

// closeSession is called with c.mu held.
func (c *IMAPClient) closeSession() {
	if c.session != nil {
		_ = c.session.Logout()
		c.session = nil
	}
}

// Close logs out of the IMAP session.
func (c *IMAPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error

	if c.session != nil {
		err = c.session.Logout()
		c.session = nil
	}

	return err
}

// ListRecent returns up to max message refs from the given mailbox.
func (c *IMAPClient) ListRecent(ctx context.Context, label string, max int) ([]MessageRef, error) {
	type result struct {
		refs []MessageRef
		err  error
	}

	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	done := make(chan result, 1)

	go func() {
		refs, err := c.listRecent(label, max)
		done <- result{refs: refs, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("mailbox listing timed out: %w", ctx.Err())
	case res := <-done:
		return res.refs, res.err
	}
}

func (c *IMAPClient) listRecent(label string, max int) ([]MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	if label == "" {
		label = "INBOX"
	}

	mbox, err := c.session.Select(label, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", label, err)
	}

	if mbox.Messages == 0 {
		return []MessageRef{}, nil
	}

	from := uint32(1)
	if mbox.Messages > uint32(max) {
		from = mbox.Messages - uint32(max) + 1
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, mbox.Messages)

	messages := make(chan *imap.Message, 10)
	fetchDone := make(chan error, 1)
	session := c.session

	go func() {
		fetchDone <- session.Fetch(seqSet, []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid}, messages)
	}()

	var refs []MessageRef
	for msg := range messages {
		if msg.Envelope == nil {
			continue
		}

		ref := MessageRef{
			ID:      strconv.FormatUint(uint64(msg.Uid), 10),
			Subject: msg.Envelope.Subject,
			Date:    msg.Envelope.Date,
		}
		if len(msg.Envelope.From) > 0 {
			ref.From = formatAddress(msg.Envelope.From[0])
		}

		refs = append(refs, ref)
	}

	if err := <-fetchDone; err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	c.lastActivity = time.Now()

	return refs, nil
}

// Get fetches a single message body by uid.
func (c *IMAPClient) Get(ctx context.Context, id string) (*Message, error) {
	type result struct {
		msg *Message
		err error
	}

	ctx, cancel := context.WithTimeout(ctx, singleFetchTimeout)
	defer cancel()

	done := make(chan result, 1)

	go func() {
		msg, err := c.get(id)
		done <- result{msg: msg, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("message fetch timed out: %w", ctx.Err())
	case res := <-done:
		return res.msg, res.err
	}
}

func (c *IMAPClient) get(id string) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid message id %q: %w", id, err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uint32(uid))

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	fetchDone := make(chan error, 1)
	session := c.session

	go func() {
		fetchDone <- session.UidFetch(seqSet, items, messages)
	}()

	var fetched *Message

	for msg := range messages {
		m := &Message{ID: id}
		if msg.Envelope != nil {
			m.Subject = msg.Envelope.Subject
			m.Date = msg.Envelope.Date

			if len(msg.Envelope.From) > 0 {
				m.From = formatAddress(msg.Envelope.From[0])
			}

			for _, addr := range msg.Envelope.To {
				m.To = append(m.To, formatAddress(addr))
			}
		}

		if body := msg.GetBody(section); body != nil {
			var buf bytes.Buffer
			if _, err := buf.ReadFrom(body); err == nil {
				m.Body = buf.String()
			}
		}

		fetched = m
	}

	if err := <-fetchDone; err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	if fetched == nil {
		return nil, fmt.Errorf("message %s not found", id)
	}

	c.lastActivity = time.Now()

	return fetched, nil
}

// Send delivers the message over SMTP. Gmail requires TLS from the start, so
// delivery goes through smtp.SendMail rather than a held connection.
func (c *IMAPClient) Send(ctx context.Context, message OutgoingMessage) (string, error) {
	from := message.From
	if from == "" {
		from = c.username
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(message.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", message.Subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "\r\n%s", message.Body)

	auth := smtp.PlainAuth("", c.username, c.password, c.smtpHost)
	smtpAddr := fmt.Sprintf("%s:%d", c.smtpHost, c.smtpPort)

	done := make(chan error, 1)

	go func() {
		done <- smtp.SendMail(smtpAddr, auth, from, message.To, buf.Bytes())
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("send timed out: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("failed to send message: %w", err)
		}
	}

	return fmt.Sprintf("smtp-%d", time.Now().UnixNano()), nil
}

func formatAddress(addr *imap.Address) string {
	if addr.PersonalName != "" {
		return fmt.Sprintf("%s <%s@%s>", addr.PersonalName, addr.MailboxName, addr.HostName)
	}

	return fmt.Sprintf("%s@%s", addr.MailboxName, addr.HostName)
}
