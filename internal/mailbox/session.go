package mailbox

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/model"
	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/oauth"
)

// Summary is the envelope-level view of one message that the monitor
// consumes: enough to classify and notify, nothing more.
type Summary struct {
	UID      uint32
	Subject  string
	FromName string
	FromAddr string
	Preview  string
	Received time.Time
}

// Session is one authenticated, read-only INBOX session.
type Session interface {
	// SearchSince returns the UIDs of messages delivered at or after
	// the given time.
	SearchSince(since time.Time) ([]uint32, error)

	// FetchSummaries fetches envelope, delivery date and a body
	// preview for exactly the given UIDs.
	FetchSummaries(uids []uint32) ([]Summary, error)

	// Close logs out and releases the connection.
	Close() error
}

// Dialer opens poll sessions and verifies connection candidates.
type Dialer interface {
	Dial(ctx context.Context, cfg model.AccountConfig) (Session, error)
	Verify(ctx context.Context, cand Candidate, cfg model.AccountConfig) error
}

// IMAPDialer implements Dialer against real IMAP servers using
// go-imap v2. OAuth accounts authenticate with XOAUTH2 bearer tokens
// obtained through the token lifecycle; password accounts use LOGIN.
type IMAPDialer struct {
	tokens *oauth.Lifecycle
	log    *zap.SugaredLogger
}

// NewIMAPDialer creates an IMAPDialer.
func NewIMAPDialer(tokens *oauth.Lifecycle, log *zap.SugaredLogger) *IMAPDialer {
	return &IMAPDialer{tokens: tokens, log: log}
}

// Dial connects to the account's configured endpoint, authenticates,
// and selects INBOX read-only.
func (d *IMAPDialer) Dial(
	ctx context.Context, cfg model.AccountConfig,
) (Session, error) {
	cand := Candidate{
		Host:     cfg.Host,
		Port:     cfg.Port,
		TLS:      cfg.TLS,
		Username: cfg.Username,
	}

	client, err := d.connect(ctx, cand, cfg)
	if err != nil {
		return nil, err
	}

	if _, err := client.Select("INBOX", &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	return &imapSession{client: client}, nil
}

// Verify confirms one candidate's credentials by connecting,
// authenticating, and opening INBOX read-only, with no side effects.
func (d *IMAPDialer) Verify(
	ctx context.Context, cand Candidate, cfg model.AccountConfig,
) error {
	client, err := d.connect(ctx, cand, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return fmt.Errorf("selecting INBOX on %s: %w", cand.Host, err)
	}

	return nil
}

// connect dials one candidate and authenticates according to the
// account's auth mode.
func (d *IMAPDialer) connect(
	ctx context.Context, cand Candidate, cfg model.AccountConfig,
) (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", cand.Host, cand.Port)

	var client *imapclient.Client
	var err error
	if cand.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	switch cfg.AuthMode {
	case model.AuthOAuth:
		token, err := d.tokens.EnsureValidAccessToken(ctx, cfg.Token)
		if err != nil {
			_ = client.Logout().Wait()
			return nil, err
		}
		if err := client.Authenticate(newXOAuth2Client(cand.Username, token)); err != nil {
			_ = client.Logout().Wait()
			return nil, fmt.Errorf(
				"XOAUTH2 authentication failed for %s: %w", cand.Username, err,
			)
		}
	default:
		if err := client.Login(cand.Username, cfg.Password).Wait(); err != nil {
			_ = client.Logout().Wait()
			return nil, fmt.Errorf(
				"authentication failed for %s: %w", cand.Username, err,
			)
		}
	}

	return client, nil
}

// imapSession adapts an authenticated imapclient connection to the
// Session interface.
type imapSession struct {
	client *imapclient.Client
}

func (s *imapSession) SearchSince(since time.Time) ([]uint32, error) {
	criteria := &imap.SearchCriteria{Since: since}

	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	raw := data.AllUIDs()
	uids := make([]uint32, 0, len(raw))
	for _, uid := range raw {
		uids = append(uids, uint32(uid))
	}
	return uids, nil
}

func (s *imapSession) FetchSummaries(uids []uint32) ([]Summary, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	set := make([]imap.UID, 0, len(uids))
	for _, uid := range uids {
		set = append(set, imap.UID(uid))
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:     true,
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(imap.UIDSetNum(set...), fetchOpts)
	defer fetchCmd.Close()

	var summaries []Summary
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		summaries = append(summaries, summaryFromBuffer(buf, bodySection))
	}

	if err := fetchCmd.Close(); err != nil {
		return summaries, fmt.Errorf("fetching summaries: %w", err)
	}

	return summaries, nil
}

func (s *imapSession) Close() error {
	return s.client.Logout().Wait()
}

// summaryFromBuffer extracts a Summary from a fetched message buffer.
// The delivery time prefers the server's internal date over the
// sender-supplied envelope date.
func summaryFromBuffer(
	buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection,
) Summary {
	sum := Summary{
		UID:      uint32(buf.UID),
		Received: buf.InternalDate,
	}

	if buf.Envelope != nil {
		sum.Subject = buf.Envelope.Subject
		if sum.Received.IsZero() {
			sum.Received = buf.Envelope.Date
		}
		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			sum.FromName = from.Name
			sum.FromAddr = from.Addr()
		}
	}

	if raw := buf.FindBodySection(section); raw != nil {
		sum.Preview = extractPreview(raw)
	}

	return sum
}
