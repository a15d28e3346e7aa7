package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/model"
)

const (
	successPage = `<html><body><h2>Sign-in complete</h2>
<p>You can close this window and return to InboxSentinel.</p></body></html>`

	failurePage = `<html><body><h2>Sign-in failed</h2>
<p>%s</p><p>Close this window and try again.</p></body></html>`
)

// Authorizer runs the authorization-code-with-PKCE flow against a
// provider, using a one-shot loopback listener for the redirect.
type Authorizer struct {
	httpClient  *http.Client
	openBrowser func(url string) error
	log         *zap.SugaredLogger
}

// NewAuthorizer creates an Authorizer that launches the system browser.
func NewAuthorizer(log *zap.SugaredLogger) *Authorizer {
	return &Authorizer{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		openBrowser: openBrowser,
		log:         log,
	}
}

type callbackResult struct {
	code string
	err  error
}

// Authorize opens the provider's consent page in the user's browser and
// blocks until the loopback redirect arrives or ctx is cancelled. On
// success the authorization code is exchanged with the PKCE verifier
// and the resulting token, with its resolved identity, is returned.
func (a *Authorizer) Authorize(
	ctx context.Context, provider string, settings model.OAuthSettings,
) (*model.OAuthToken, error) {
	if err := settings.Validate(provider); err != nil {
		return nil, err
	}

	state, err := newState()
	if err != nil {
		return nil, err
	}
	verifier, err := newVerifier()
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("opening loopback listener: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback/", port)

	cfg := &oauth2.Config{
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       strings.Fields(settings.Scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:  settings.AuthEndpoint,
			TokenURL: settings.TokenEndpoint,
		},
	}

	resCh := make(chan callbackResult, 1)
	var once sync.Once

	mux := http.NewServeMux()
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	mux.HandleFunc("/callback/", func(w http.ResponseWriter, r *http.Request) {
		res := checkCallback(r, state)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if res.err != nil {
			var authErr *AuthorizationError
			reason := "The sign-in attempt could not be completed."
			if errors.As(res.err, &authErr) {
				reason = string(authErr.Reason)
			}
			fmt.Fprintf(w, failurePage, reason)
		} else {
			fmt.Fprint(w, successPage)
		}

		// Exactly one callback is served; later hits are ignored and
		// the listener goes away.
		once.Do(func() {
			resCh <- res
			go func() { _ = srv.Shutdown(context.Background()) }()
		})
	})

	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", challengeS256(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}
	for k, v := range settings.ExtraAuthParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	authURL := cfg.AuthCodeURL(state, opts...)

	if err := a.openBrowser(authURL); err != nil {
		a.log.Warnw("could not launch browser; open the URL manually",
			"provider", provider, "url", authURL)
	}

	var res callbackResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-resCh:
	}
	if res.err != nil {
		return nil, res.err
	}

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	oaTok, err := cfg.Exchange(exchangeCtx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return nil, &TokenExchangeError{
				Status: rerr.Response.StatusCode,
				Body:   strings.TrimSpace(string(rerr.Body)),
			}
		}
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	if oaTok.AccessToken == "" {
		return nil, errors.New("token response contained no access_token")
	}

	policy := model.FamilyOf(provider).Policy()

	email := ""
	if idToken, ok := oaTok.Extra("id_token").(string); ok {
		email = decodeIdentityEmail(idToken, policy.ClaimOrder)
	}
	if email == "" && policy.UserinfoEndpoint != "" {
		email = a.fetchUserinfoEmail(ctx, policy.UserinfoEndpoint, oaTok.AccessToken)
	}

	return &model.OAuthToken{
		AccessToken:   oaTok.AccessToken,
		RefreshToken:  oaTok.RefreshToken,
		Expiry:        oaTok.Expiry.UTC(),
		TokenEndpoint: settings.TokenEndpoint,
		ClientID:      settings.ClientID,
		ClientSecret:  settings.ClientSecret,
		Scope:         settings.Scope,
		Email:         email,
	}, nil
}

// checkCallback validates one redirect request against the state value
// sent with the authorization URL.
func checkCallback(r *http.Request, wantState string) callbackResult {
	q := r.URL.Query()

	if got := q.Get("state"); got != wantState {
		return callbackResult{err: &AuthorizationError{
			Reason: FailureStateMismatch,
		}}
	}
	if errCode := q.Get("error"); errCode != "" {
		return callbackResult{err: &AuthorizationError{
			Reason: FailureDenied,
			Detail: errCode,
		}}
	}
	code := q.Get("code")
	if code == "" {
		return callbackResult{err: &AuthorizationError{
			Reason: FailureMissingCode,
		}}
	}
	return callbackResult{code: code}
}

// fetchUserinfoEmail asks the provider's userinfo endpoint for the
// account email. Best effort: any failure yields "".
func (a *Authorizer) fetchUserinfoEmail(
	ctx context.Context, endpoint, accessToken string,
) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ""
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return ""
	}
	return info.Email
}

// openBrowser launches the user's default browser against url.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
