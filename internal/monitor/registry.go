package monitor

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/mailbox"
	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/model"
)

// Registry orchestrates account monitors: it adds/replaces/removes
// accounts, fans manual checks out across them, and forwards match and
// error events from every monitor to its subscribers.
type Registry struct {
	dialer   mailbox.Dialer
	keywords KeywordSource
	log      *zap.SugaredLogger

	mu       sync.Mutex
	monitors map[string]*accountMonitor

	subMu     sync.Mutex
	nextSubID int
	matchSubs map[int]func(model.MatchEvent)
	errorSubs map[int]func(model.MonitorError)
}

// NewRegistry creates a Registry. keywords is consulted fresh on every
// poll of every account.
func NewRegistry(
	dialer mailbox.Dialer, keywords KeywordSource, log *zap.SugaredLogger,
) *Registry {
	return &Registry{
		dialer:    dialer,
		keywords:  keywords,
		log:       log,
		monitors:  make(map[string]*accountMonitor),
		matchSubs: make(map[int]func(model.MatchEvent)),
		errorSubs: make(map[int]func(model.MonitorError)),
	}
}

// OnMatch registers a match subscriber and returns its unsubscribe
// function. Callbacks run on the emitting account's poll goroutine.
func (r *Registry) OnMatch(fn func(model.MatchEvent)) func() {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	id := r.nextSubID
	r.nextSubID++
	r.matchSubs[id] = fn

	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		delete(r.matchSubs, id)
	}
}

// OnError registers an error subscriber and returns its unsubscribe
// function.
func (r *Registry) OnError(fn func(model.MonitorError)) func() {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	id := r.nextSubID
	r.nextSubID++
	r.errorSubs[id] = fn

	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		delete(r.errorSubs, id)
	}
}

func (r *Registry) emitMatch(ev model.MatchEvent) {
	r.subMu.Lock()
	subs := make([]func(model.MatchEvent), 0, len(r.matchSubs))
	for _, fn := range r.matchSubs {
		subs = append(subs, fn)
	}
	r.subMu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

func (r *Registry) emitError(ev model.MonitorError) {
	r.subMu.Lock()
	subs := make([]func(model.MonitorError), 0, len(r.errorSubs))
	for _, fn := range r.errorSubs {
		subs = append(subs, fn)
	}
	r.subMu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// AddOrReplaceAccount registers a monitor for the account's provider,
// first tearing down any existing monitor for it. At most one live
// monitor exists per provider at any instant. The new monitor primes
// its seen window synchronously before its loop starts.
func (r *Registry) AddOrReplaceAccount(ctx context.Context, cfg model.AccountConfig) {
	key := providerKey(cfg.Provider)

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.monitors[key]; ok {
		delete(r.monitors, key)
		old.stop()
	}

	m := newAccountMonitor(
		cfg, r.dialer, r.keywords, r.emitMatch, r.emitError, r.log,
	)
	m.start(ctx)
	r.monitors[key] = m

	r.log.Infow("account monitor started",
		"provider", cfg.Provider, "interval", cfg.PollInterval())
}

// RemoveAccount tears down the provider's monitor. It blocks until the
// background loop has observably stopped; no event for the account
// fires after it returns. Reports whether a monitor existed.
func (r *Registry) RemoveAccount(provider string) bool {
	key := providerKey(provider)

	r.mu.Lock()
	m, ok := r.monitors[key]
	delete(r.monitors, key)
	r.mu.Unlock()

	if !ok {
		return false
	}

	m.stop()
	r.log.Infow("account monitor removed", "provider", provider)
	return true
}

// CheckNow runs one poll, with events enabled, for every registered
// account and returns the total number of new matches found. Accounts
// poll in parallel; each account's gate still serializes it against
// its scheduled loop.
func (r *Registry) CheckNow(ctx context.Context) int {
	r.mu.Lock()
	snapshot := make([]*accountMonitor, 0, len(r.monitors))
	for _, m := range r.monitors {
		snapshot = append(snapshot, m)
	}
	r.mu.Unlock()

	var (
		wg    sync.WaitGroup
		totMu sync.Mutex
		total int
	)
	for _, m := range snapshot {
		wg.Add(1)
		go func(m *accountMonitor) {
			defer wg.Done()
			n, err := m.pollOnce(ctx, true)
			if err != nil {
				m.reportError(err)
				return
			}
			totMu.Lock()
			total += n
			totMu.Unlock()
		}(m)
	}
	wg.Wait()

	return total
}

// ResolveAndVerify tries the account's connection candidates in order
// and returns the config rewritten to the first candidate that
// verifies, or the last failure if none does.
func (r *Registry) ResolveAndVerify(
	ctx context.Context, cfg model.AccountConfig,
) (model.AccountConfig, error) {
	cands := mailbox.Candidates(cfg)
	if len(cands) == 0 {
		return cfg, &model.ConfigError{
			Provider: cfg.Provider,
			Reason:   "no connection candidates (missing host or username)",
		}
	}

	var lastErr error
	for _, cand := range cands {
		if err := r.dialer.Verify(ctx, cand, cfg); err != nil {
			r.log.Debugw("candidate failed",
				"provider", cfg.Provider, "host", cand.Host,
				"username", cand.Username, "error", err)
			lastErr = err
			continue
		}

		cfg.Host = cand.Host
		cfg.Port = cand.Port
		cfg.TLS = cand.TLS
		cfg.Username = cand.Username
		return cfg, nil
	}

	return cfg, lastErr
}

// Close removes every account, blocking until all loops have stopped.
func (r *Registry) Close() {
	r.mu.Lock()
	snapshot := make([]*accountMonitor, 0, len(r.monitors))
	for _, m := range r.monitors {
		snapshot = append(snapshot, m)
	}
	r.monitors = make(map[string]*accountMonitor)
	r.mu.Unlock()

	for _, m := range snapshot {
		m.stop()
	}
}

func providerKey(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
