package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/credential"
	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/mailbox"
	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/model"
	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/monitor"
	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/oauth"
	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/store"
)

var (
	warnBadge  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	matchBadge = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	senderText = lipgloss.NewStyle().Bold(true)
	metaText   = lipgloss.NewStyle().Faint(true)
)

func main() {
	var (
		configPath string
		debug      bool
		login      string
		email      string
		username   string
		host       string
		port       int
		checkNow   bool
	)

	flag.StringVar(&configPath, "c", model.DefaultConfigPath(), "Configuration file")
	flag.BoolVar(&debug, "d", false, "Debug logging")
	flag.StringVar(&login, "login", "", "Run the OAuth sign-in flow for the named provider and exit")
	flag.StringVar(&email, "email", "", "Account email (with -login)")
	flag.StringVar(&username, "user", "", "IMAP username (with -login; defaults to the resolved email)")
	flag.StringVar(&host, "host", "", "IMAP host (with -login)")
	flag.IntVar(&port, "port", 993, "IMAP port (with -login)")
	flag.BoolVar(&checkNow, "check", false, "Run one manual check across all accounts at startup")
	flag.Parse()

	zapCfg := zap.NewDevelopmentConfig()
	level := zap.NewAtomicLevel()
	level.SetLevel(zap.InfoLevel)
	if debug {
		level.SetLevel(zap.DebugLevel)
	}
	zapCfg.Level = level
	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Error reading configuration: %v", err)
	}

	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = model.DefaultDatabasePath()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		log.Fatalf("Error creating data directory: %v", err)
	}

	accountStore, err := store.NewSQLiteStore(dbPath, credential.NewStore())
	if err != nil {
		log.Fatalf("Error opening account store: %v", err)
	}
	defer accountStore.Close()

	lifecycle := oauth.NewLifecycle(log)
	dialer := mailbox.NewIMAPDialer(lifecycle, log)

	// Keywords are re-read from the config file on every poll so edits
	// apply on the next scheduled check without a restart.
	keywords := func() []string {
		current, err := model.LoadConfig(configPath)
		if err != nil {
			log.Warnw("could not reload keywords", "error", err)
			return nil
		}
		return current.Keywords
	}

	registry := monitor.NewRegistry(dialer, keywords, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if login != "" {
		if err := runLogin(ctx, log, cfg, registry, accountStore, loginParams{
			provider: login,
			email:    email,
			username: username,
			host:     host,
			port:     port,
		}); err != nil {
			log.Fatalf("Sign-in failed: %v", err)
		}
		return
	}

	unsubMatch := registry.OnMatch(printMatch)
	defer unsubMatch()
	unsubErr := registry.OnError(func(ev model.MonitorError) {
		log.Errorw("monitor error", "provider", ev.Provider, "error", ev.Err)
	})
	defer unsubErr()

	accounts, err := accountStore.LoadAccounts(ctx)
	if err != nil {
		log.Fatalf("Error loading accounts: %v", err)
	}
	if len(accounts) == 0 {
		log.Info("No accounts configured; run with -login <provider> to add one")
	}
	for _, acct := range accounts {
		registry.AddOrReplaceAccount(ctx, acct)
	}

	if checkNow {
		n := registry.CheckNow(ctx)
		log.Infof("Manual check complete: %d new message(s)", n)
	}

	<-ctx.Done()
	log.Info("Shutting down")
	registry.Close()

	// Tokens may have been refreshed in place during polling; write the
	// final state back so refreshes survive restarts.
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer saveCancel()
	for _, acct := range accounts {
		if err := accountStore.SaveAccount(saveCtx, acct); err != nil {
			log.Warnw("could not persist account", "provider", acct.Provider, "error", err)
		}
	}
}

type loginParams struct {
	provider string
	email    string
	username string
	host     string
	port     int
}

// runLogin performs the interactive OAuth sign-in for one provider,
// verifies connectivity across candidate hosts, and persists the
// resulting account.
func runLogin(
	ctx context.Context,
	log *zap.SugaredLogger,
	cfg *model.AppConfig,
	registry *monitor.Registry,
	accountStore store.AccountStore,
	p loginParams,
) error {
	settings, err := cfg.OAuthSettingsFor(p.provider)
	if err != nil {
		return err
	}

	log.Infof("Starting sign-in for %s; your browser will open", p.provider)
	tok, err := oauth.NewAuthorizer(log).Authorize(ctx, p.provider, settings)
	if err != nil {
		return err
	}

	acctEmail := p.email
	if acctEmail == "" {
		acctEmail = tok.Email
	}
	acctUser := p.username
	if acctUser == "" {
		acctUser = acctEmail
	}

	acct := model.AccountConfig{
		Provider:        p.provider,
		Email:           acctEmail,
		Username:        acctUser,
		Host:            p.host,
		Port:            p.port,
		TLS:             true,
		PollIntervalSec: cfg.PollIntervalSec,
		AuthMode:        model.AuthOAuth,
		Token:           tok,
	}

	verified, err := registry.ResolveAndVerify(ctx, acct)
	if err != nil {
		return fmt.Errorf("verifying mailbox connection: %w", err)
	}

	if err := accountStore.SaveAccount(ctx, verified); err != nil {
		return err
	}

	log.Infof("Account %s (%s) saved; start the daemon to begin monitoring",
		p.provider, verified.Email)
	return nil
}

// printMatch renders one match event to the terminal.
func printMatch(ev model.MatchEvent) {
	badge := matchBadge.Render("MAIL")
	if ev.Warning {
		badge = warnBadge.Render("ALERT")
	}

	line := fmt.Sprintf("%s %s %s — %s",
		metaText.Render(ev.ReceivedAt.Local().Format("15:04")),
		badge,
		senderText.Render(ev.Sender),
		ev.Subject,
	)
	fmt.Println(line)
	if ev.Preview != "" {
		fmt.Println("      " + metaText.Render(ev.Preview))
	}
}
