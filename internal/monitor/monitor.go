package monitor

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/mailbox"
	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/model"
)

const (
	// searchWindowDays is how far back each poll searches the inbox.
	searchWindowDays = 2

	// maxBatch caps how many of the most recent matches one poll
	// considers.
	maxBatch = 60
)

// accountMonitor owns one account's poll lifecycle: a cancellable
// background loop, a bounded seen-UID window, and a gate serializing
// scheduled polls against manual checks. All mutable state is private
// to the monitor's serialized poll path.
type accountMonitor struct {
	cfg      model.AccountConfig
	dialer   mailbox.Dialer
	keywords KeywordSource
	onMatch  func(model.MatchEvent)
	onError  func(model.MonitorError)
	log      *zap.SugaredLogger

	seen *seenWindow

	// gate serializes poll executions for this account.
	gate    sync.Mutex
	stopped bool

	cancel context.CancelFunc
	done   chan struct{}
}

func newAccountMonitor(
	cfg model.AccountConfig,
	dialer mailbox.Dialer,
	keywords KeywordSource,
	onMatch func(model.MatchEvent),
	onError func(model.MonitorError),
	log *zap.SugaredLogger,
) *accountMonitor {
	return &accountMonitor{
		cfg:      cfg,
		dialer:   dialer,
		keywords: keywords,
		onMatch:  onMatch,
		onError:  onError,
		log:      log,
		seen:     newSeenWindow(seenWindowCap),
		done:     make(chan struct{}),
	}
}

// start primes the seen window with one suppressed synchronous poll so
// historical mail is never reported, then launches the background loop.
// The loop's lifetime is bound to the monitor, not to ctx.
func (m *accountMonitor) start(ctx context.Context) {
	if _, err := m.pollOnce(ctx, false); err != nil {
		m.reportError(err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.run(loopCtx)
}

// run is the poll/sleep loop. Iteration failures are reported and the
// loop keeps going; only cancellation stops it.
func (m *accountMonitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if _, err := m.pollOnce(ctx, true); err != nil {
			m.reportError(err)
		}
	}
}

// stop cancels the loop, waits for it to finish, and marks the monitor
// dead so no poll can run or emit afterward. Blocking by design: when
// stop returns, no poll for this account is in flight.
func (m *accountMonitor) stop() {
	m.cancel()
	<-m.done

	m.gate.Lock()
	m.stopped = true
	m.gate.Unlock()
}

// pollOnce performs one complete poll under the gate: search the recent
// window, fetch summaries for unseen UIDs, classify, and (unless
// suppressed) emit a MatchEvent per new message. Returns the number of
// new messages discovered.
func (m *accountMonitor) pollOnce(ctx context.Context, emit bool) (int, error) {
	m.gate.Lock()
	defer m.gate.Unlock()

	if m.stopped {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	sess, err := m.dialer.Dial(ctx, m.cfg)
	if err != nil {
		return 0, err
	}
	defer func() { _ = sess.Close() }()

	since := time.Now().AddDate(0, 0, -searchWindowDays)
	uids, err := sess.SearchSince(since)
	if err != nil {
		return 0, err
	}
	if len(uids) == 0 {
		return 0, nil
	}

	// Stable ascending discovery order regardless of server ordering.
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if len(uids) > maxBatch {
		uids = uids[len(uids)-maxBatch:]
	}

	fresh := uids[:0:0]
	for _, uid := range uids {
		if !m.seen.Contains(uid) {
			fresh = append(fresh, uid)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	summaries, err := sess.FetchSummaries(fresh)
	if err != nil {
		return 0, err
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UID < summaries[j].UID
	})

	keywords := normalizeKeywords(m.keywords())

	count := 0
	for _, sum := range summaries {
		if !m.seen.Add(sum.UID) {
			continue
		}

		subject := sum.Subject
		if strings.TrimSpace(subject) == "" {
			subject = "(No subject)"
		}

		sender := sum.FromName
		if sender == "" {
			sender = sum.FromAddr
		}
		if sender == "" {
			sender = "Unknown sender"
		}

		count++
		if !emit {
			continue
		}

		m.onMatch(model.MatchEvent{
			Provider:   m.cfg.Provider,
			Sender:     sender,
			Subject:    subject,
			Preview:    sum.Preview,
			ReceivedAt: sum.Received,
			Warning:    matchesKeyword(keywords, subject, sender),
		})
	}

	return count, nil
}

func (m *accountMonitor) reportError(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	m.log.Warnw("poll failed", "provider", m.cfg.Provider, "error", err)
	m.onError(model.MonitorError{Provider: m.cfg.Provider, Err: err})
}
