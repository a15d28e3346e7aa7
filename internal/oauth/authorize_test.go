package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/model"
)

// exchangeEndpoint fakes the provider's token endpoint for the code
// exchange leg of the flow.
type exchangeEndpoint struct {
	*httptest.Server
	calls    atomic.Int32
	lastForm url.Values
	status   int
	body     map[string]any
}

func newExchangeEndpoint(t *testing.T) *exchangeEndpoint {
	t.Helper()
	ee := &exchangeEndpoint{
		status: http.StatusOK,
		body: map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
			"token_type":    "Bearer",
		},
	}
	ee.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ee.calls.Add(1)
		require.NoError(t, r.ParseForm())
		ee.lastForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(ee.status)
		require.NoError(t, json.NewEncoder(w).Encode(ee.body))
	}))
	t.Cleanup(ee.Close)
	return ee
}

func testSettings(tokenURL string) model.OAuthSettings {
	return model.OAuthSettings{
		ClientID:      "client-1",
		AuthEndpoint:  "https://auth.example.com/authorize",
		TokenEndpoint: tokenURL,
		Scope:         "imap offline_access",
		ExtraAuthParams: map[string]string{
			"access_type": "offline",
		},
	}
}

// browseAndRedirect returns an openBrowser stand-in that inspects the
// authorization URL and immediately hits the loopback redirect the way
// a provider would, using mutate to shape the callback query.
func browseAndRedirect(
	t *testing.T, sawAuthURL *url.Values, mutate func(q url.Values) url.Values,
) func(string) error {
	t.Helper()
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		q := u.Query()
		if sawAuthURL != nil {
			*sawAuthURL = q
		}

		redirect, err := url.Parse(q.Get("redirect_uri"))
		require.NoError(t, err)

		cb := url.Values{}
		cb.Set("state", q.Get("state"))
		cb.Set("code", "code-1")
		cb = mutate(cb)

		redirect.RawQuery = cb.Encode()
		resp, err := http.Get(redirect.String())
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return nil
	}
}

func newTestAuthorizer(browse func(string) error) *Authorizer {
	return &Authorizer{
		httpClient:  &http.Client{Timeout: 5 * time.Second},
		openBrowser: browse,
		log:         zap.NewNop().Sugar(),
	}
}

func TestAuthorizeHappyPath(t *testing.T) {
	ee := newExchangeEndpoint(t)
	ee.body["id_token"] = fakeIDToken(t, map[string]any{"email": "me@example.com"})

	var authQuery url.Values
	a := newTestAuthorizer(browseAndRedirect(t, &authQuery,
		func(q url.Values) url.Values { return q }))

	tok, err := a.Authorize(context.Background(), "fastmail", testSettings(ee.URL))
	require.NoError(t, err)

	// The authorization URL carried PKCE and the extra parameters.
	assert.Equal(t, "client-1", authQuery.Get("client_id"))
	assert.Equal(t, "S256", authQuery.Get("code_challenge_method"))
	assert.NotEmpty(t, authQuery.Get("code_challenge"))
	assert.NotEmpty(t, authQuery.Get("state"))
	assert.Equal(t, "offline", authQuery.Get("access_type"))
	assert.Contains(t, authQuery.Get("redirect_uri"), "http://127.0.0.1:")

	// The exchange sent the code with a verifier matching the challenge.
	require.EqualValues(t, 1, ee.calls.Load())
	assert.Equal(t, "authorization_code", ee.lastForm.Get("grant_type"))
	assert.Equal(t, "code-1", ee.lastForm.Get("code"))
	verifier := ee.lastForm.Get("code_verifier")
	require.NotEmpty(t, verifier)
	assert.Equal(t, authQuery.Get("code_challenge"), challengeS256(verifier))

	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
	assert.Equal(t, "me@example.com", tok.Email)
	assert.Equal(t, ee.URL, tok.TokenEndpoint)
	assert.Equal(t, "client-1", tok.ClientID)
	assert.Equal(t, "imap offline_access", tok.Scope)
	assert.True(t, tok.Expiry.After(time.Now()))
}

func TestAuthorizeStateMismatchAbortsBeforeExchange(t *testing.T) {
	ee := newExchangeEndpoint(t)

	a := newTestAuthorizer(browseAndRedirect(t, nil, func(q url.Values) url.Values {
		q.Set("state", "forged")
		return q
	}))

	_, err := a.Authorize(context.Background(), "fastmail", testSettings(ee.URL))
	require.Error(t, err)

	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, FailureStateMismatch, authErr.Reason)

	// The suspect code is never exchanged.
	assert.EqualValues(t, 0, ee.calls.Load())
}

func TestAuthorizeUserDenied(t *testing.T) {
	ee := newExchangeEndpoint(t)

	a := newTestAuthorizer(browseAndRedirect(t, nil, func(q url.Values) url.Values {
		q.Del("code")
		q.Set("error", "access_denied")
		return q
	}))

	_, err := a.Authorize(context.Background(), "fastmail", testSettings(ee.URL))
	require.Error(t, err)

	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, FailureDenied, authErr.Reason)
	assert.Equal(t, "access_denied", authErr.Detail)
	assert.EqualValues(t, 0, ee.calls.Load())
}

func TestAuthorizeMissingCode(t *testing.T) {
	ee := newExchangeEndpoint(t)

	a := newTestAuthorizer(browseAndRedirect(t, nil, func(q url.Values) url.Values {
		q.Del("code")
		return q
	}))

	_, err := a.Authorize(context.Background(), "fastmail", testSettings(ee.URL))
	require.Error(t, err)

	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, FailureMissingCode, authErr.Reason)
}

func TestAuthorizeExchangeRejected(t *testing.T) {
	ee := newExchangeEndpoint(t)
	ee.status = http.StatusBadRequest
	ee.body = map[string]any{"error": "invalid_grant"}

	a := newTestAuthorizer(browseAndRedirect(t, nil,
		func(q url.Values) url.Values { return q }))

	_, err := a.Authorize(context.Background(), "fastmail", testSettings(ee.URL))
	require.Error(t, err)

	var exErr *TokenExchangeError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, http.StatusBadRequest, exErr.Status)
}

func TestAuthorizeIncompleteSettings(t *testing.T) {
	a := newTestAuthorizer(func(string) error {
		t.Fatal("browser must not open for invalid settings")
		return nil
	})

	settings := testSettings("https://token.example.com")
	settings.ClientID = ""

	_, err := a.Authorize(context.Background(), "fastmail", settings)
	require.Error(t, err)
	assert.True(t, model.IsConfigError(err))
}

func TestAuthorizeCancelled(t *testing.T) {
	ee := newExchangeEndpoint(t)

	ctx, cancel := context.WithCancel(context.Background())
	a := newTestAuthorizer(func(string) error {
		// Simulate a user who never completes the consent page.
		cancel()
		return nil
	})

	_, err := a.Authorize(ctx, "fastmail", testSettings(ee.URL))
	require.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, ee.calls.Load())
}
