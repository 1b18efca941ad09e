// Package imapapi implements api.NotificationAPI on top of an IMAP mailbox.
//
// Every message in the configured mailbox is one notification. The
// notification fields travel in headers:
//
//	X-Notification-Type  notification type (required)
//	X-School-Id          school scope key
//	X-School-Name        display name of the school
//	X-Student-Name       student the notice concerns
//	X-Notification-Icon  presentation hint
//
// The Subject is the title and the text/plain part the description. The
// \Seen flag is the read flag. Archiving moves the message to the archive
// mailbox.
package imapapi

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/nhle/evaldash/internal/api"
	"github.com/nhle/evaldash/internal/model"
)

// Client wraps go-imap v2 for reading and flagging notification messages.
// Each call opens its own connection.
type Client struct {
	host           string
	port           string
	username       string
	password       string
	tls            bool
	mailbox        string
	archiveMailbox string
	logger         *zap.Logger
}

// NewClient creates a Client from cfg. password comes from the keyring.
func NewClient(cfg model.IMAPConfig, password string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	mailbox := cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &Client{
		host:           cfg.Host,
		port:           cfg.Port,
		username:       cfg.Username,
		password:       password,
		tls:            cfg.TLS,
		mailbox:        mailbox,
		archiveMailbox: cfg.ArchiveMailbox,
		logger:         logger,
	}
}

// connect dials, authenticates and selects the notification mailbox. The
// caller must Logout the returned client.
func (c *Client) connect(_ context.Context) (*imapclient.Client, *imap.SelectData, error) {
	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error
	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, nil, &api.AuthError{
			Backend: model.BackendIMAP,
			Message: fmt.Sprintf("authentication failed for %s: %v", c.username, err),
		}
	}

	sel, err := client.Select(c.mailbox, nil).Wait()
	if err != nil {
		_ = client.Logout().Wait()
		return nil, nil, fmt.Errorf("selecting %s: %w", c.mailbox, err)
	}

	return client, sel, nil
}

// FetchNotifications reads every message in the mailbox. Messages that
// cannot be parsed are skipped and logged; messages with an unknown type
// are passed through for the store to reject.
func (c *Client) FetchNotifications(
	ctx context.Context,
	_ api.UserScope,
) ([]api.RawNotification, error) {
	client, sel, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if sel.NumMessages == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	seqSet := imap.SeqSet{}
	seqSet.AddRange(1, sel.NumMessages)

	fetchCmd := client.Fetch(seqSet, fetchOpts)
	defer fetchCmd.Close()

	var out []api.RawNotification
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			c.logger.Warn("skipping unreadable message", zap.Error(err))
			continue
		}

		raw := buf.FindBodySection(bodySection)
		n, err := parseMessage(raw)
		if err != nil {
			c.logger.Warn("skipping message",
				zap.Uint32("uid", uint32(buf.UID)),
				zap.Error(err))
			continue
		}

		n.ID = formatID(sel.UIDValidity, buf.UID)
		n.Read = slices.Contains(buf.Flags, imap.FlagSeen)
		if n.Timestamp.IsZero() && buf.Envelope != nil {
			n.Timestamp = buf.Envelope.Date
		}
		if n.Title == "" && buf.Envelope != nil {
			n.Title = buf.Envelope.Subject
		}
		out = append(out, n)
	}

	if err := fetchCmd.Close(); err != nil {
		return out, fmt.Errorf("fetching messages: %w", err)
	}

	return out, nil
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.setSeen(ctx, []string{id}, true)
}

func (c *Client) MarkUnread(ctx context.Context, id string) error {
	return c.setSeen(ctx, []string{id}, false)
}

func (c *Client) MarkAllRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.setSeen(ctx, ids, true)
}

// Archive moves the message to the archive mailbox. Without an archive
// mailbox the message is flagged \Deleted instead.
func (c *Client) Archive(ctx context.Context, id string) error {
	client, sel, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	uidSet, err := uidSetFor(sel.UIDValidity, []string{id})
	if err != nil {
		return err
	}

	if c.archiveMailbox != "" {
		if _, err := client.Move(uidSet, c.archiveMailbox).Wait(); err != nil {
			return fmt.Errorf("moving %s to %s: %w", id, c.archiveMailbox, err)
		}
		return nil
	}

	return client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil).Close()
}

func (c *Client) setSeen(ctx context.Context, ids []string, seen bool) error {
	client, sel, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	uidSet, err := uidSetFor(sel.UIDValidity, ids)
	if err != nil {
		return err
	}

	op := imap.StoreFlagsAdd
	if !seen {
		op = imap.StoreFlagsDel
	}

	if err := client.Store(uidSet, &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil).Close(); err != nil {
		return fmt.Errorf("storing \\Seen on %s: %w", strings.Join(ids, ","), err)
	}
	return nil
}

// formatID encodes the mailbox UIDVALIDITY with the message UID so ids
// from a rebuilt mailbox are never mistaken for current ones.
func formatID(validity uint32, uid imap.UID) string {
	return fmt.Sprintf("%d.%d", validity, uint32(uid))
}

func parseID(id string) (uint32, imap.UID, error) {
	v, u, ok := strings.Cut(id, ".")
	if !ok {
		return 0, 0, fmt.Errorf("malformed notification id %q", id)
	}
	validity, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed notification id %q: %w", id, err)
	}
	uid, err := strconv.ParseUint(u, 10, 32)
	if err != nil || uid == 0 {
		return 0, 0, fmt.Errorf("malformed notification id %q", id)
	}
	return uint32(validity), imap.UID(uid), nil
}

// uidSetFor converts ids into a UID set, rejecting ids minted under a
// different UIDVALIDITY.
func uidSetFor(validity uint32, ids []string) (imap.UIDSet, error) {
	uids := make([]imap.UID, 0, len(ids))
	for _, id := range ids {
		v, uid, err := parseID(id)
		if err != nil {
			return nil, err
		}
		if v != validity {
			return nil, fmt.Errorf("notification %s: %w", id, api.ErrNotFound)
		}
		uids = append(uids, uid)
	}
	return imap.UIDSetNum(uids...), nil
}

var _ api.NotificationAPI = (*Client)(nil)
