package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"

	"github.com/frenchpresssscoffee-blip/InboxSentinel/internal/model"
)

// minExpirySec is the floor applied to expires_in from refresh
// responses; some providers return implausibly small values.
const minExpirySec = 60

// Lifecycle performs token acquisition and silent renewal. It is pure
// protocol logic with no background activity; monitors call it from
// their own serialized poll path.
type Lifecycle struct {
	httpClient *http.Client
	now        func() time.Time
	log        *zap.SugaredLogger
}

// NewLifecycle creates a Lifecycle with a 15-second HTTP timeout.
func NewLifecycle(log *zap.SugaredLogger) *Lifecycle {
	return &Lifecycle{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
		log:        log,
	}
}

// EnsureValidAccessToken returns a usable access token for the account,
// refreshing it first when the cached one is expired or about to
// expire. On refresh the token fields are overwritten in place; the
// previous refresh token survives unless the provider issued a new one.
func (l *Lifecycle) EnsureValidAccessToken(
	ctx context.Context, tok *model.OAuthToken,
) (string, error) {
	if tok == nil {
		return "", errors.New("account has no OAuth token")
	}
	if tok.Valid(l.now()) {
		return tok.AccessToken, nil
	}

	if tok.RefreshToken == "" {
		return "", errors.New(
			"access token expired and no refresh token is available; re-authorization required",
		)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", tok.RefreshToken)
	form.Set("client_id", tok.ClientID)
	if tok.ClientSecret != "" {
		form.Set("client_secret", tok.ClientSecret)
	}
	if tok.Scope != "" {
		form.Set("scope", tok.Scope)
	}

	resp, err := l.postTokenForm(ctx, tok.TokenEndpoint, form)
	if err != nil {
		return "", fmt.Errorf("refreshing access token: %w", err)
	}

	expiresIn := resp.ExpiresIn
	if expiresIn < minExpirySec {
		expiresIn = minExpirySec
	}

	tok.AccessToken = resp.AccessToken
	tok.Expiry = l.now().Add(time.Duration(expiresIn) * time.Second).UTC()
	if resp.RefreshToken != "" {
		tok.RefreshToken = resp.RefreshToken
	}
	if resp.IDToken != "" {
		claimOrder := model.FamilyGeneric.Policy().ClaimOrder
		if email := decodeIdentityEmail(resp.IDToken, claimOrder); email != "" {
			tok.Email = email
		}
	}

	l.log.Debugw("access token refreshed", "expiry", tok.Expiry)
	return tok.AccessToken, nil
}

// tokenResponse is the JSON body of a successful token exchange.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	IDToken      string `json:"id_token"`
	Scope        string `json:"scope"`
}

// postTokenForm POSTs a form to a token endpoint. Transient transport
// failures are retried a few times; a definitive non-2xx answer is not.
func (l *Lifecycle) postTokenForm(
	ctx context.Context, endpoint string, form url.Values,
) (*tokenResponse, error) {
	var parsed tokenResponse

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(
				ctx, http.MethodPost, endpoint,
				strings.NewReader(form.Encode()),
			)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			resp, err := l.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return retry.Unrecoverable(&TokenExchangeError{
					Status: resp.StatusCode,
					Body:   strings.TrimSpace(string(body)),
				})
			}

			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return retry.Unrecoverable(
					fmt.Errorf("decoding token response: %w", err),
				)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	if parsed.AccessToken == "" {
		return nil, errors.New("token response contained no access_token")
	}
	return &parsed, nil
}
