package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/signalsfoundry/flight-spotter/internal/logging"
)

// tokenRefreshMargin is how early a token is refreshed before its stated
// expiry, so a request never goes out with a token about to lapse mid-flight.
const tokenRefreshMargin = 60 * time.Second

// applyAuth attaches credentials to req according to the configured mode.
// For AuthOAuth2 a missing or failed token refresh means the request simply
// goes out unauthenticated; the cycle degrades rather than crashes.
func (c *Client) applyAuth(ctx context.Context, req *http.Request) {
	switch c.cfg.Mode {
	case AuthBasic:
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	case AuthOAuth2:
		if token, ok := c.ensureToken(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// ensureToken returns a bearer token, refreshing it when absent, expired, or
// within tokenRefreshMargin of expiry.
func (c *Client) ensureToken(ctx context.Context) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry.Add(-tokenRefreshMargin)) {
		return c.token, true
	}

	token, expiry, err := c.exchangeCredentials(ctx)
	if err != nil {
		c.log.Warn(ctx, "token refresh failed, proceeding unauthenticated",
			logging.String("error", err.Error()))
		return "", false
	}

	c.token = token
	c.tokenExpiry = expiry
	c.log.Info(ctx, "access token refreshed",
		logging.String("expires", expiry.Format(time.RFC3339)))
	return token, true
}

// invalidateToken drops the cached token so the next call re-authenticates.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.mu.Unlock()
}

// exchangeCredentials performs the OAuth2 client-credentials grant: a
// basic-auth POST returning {access_token, expires_in}. Caller holds c.mu.
func (c *Client) exchangeCredentials(ctx context.Context) (string, time.Time, error) {
	form := url.Values{"grant_type": []string{"client_credentials"}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, err
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", time.Time{}, &tokenExchangeError{status: resp.StatusCode}
	}

	var grant struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return "", time.Time{}, err
	}
	if grant.AccessToken == "" {
		return "", time.Time{}, &tokenExchangeError{status: resp.StatusCode}
	}

	return grant.AccessToken, c.now().Add(time.Duration(grant.ExpiresIn) * time.Second), nil
}

type tokenExchangeError struct {
	status int
}

func (e *tokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange rejected: HTTP %d", e.status)
}
