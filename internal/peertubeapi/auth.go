package peertubeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// fallbackClientID is used when the instance does not expose its local
// OAuth client.
const fallbackClientID = "peertube-cli"

// Authenticate exchanges username and password for a bearer token
// (password grant). Empty credentials leave the client unauthenticated.
func (c *Client) Authenticate(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		c.token = nil
		return nil
	}

	oc, err := c.localClient(ctx)
	if err != nil {
		c.log.WithError(err).Debugf("using fallback OAuth client %q", fallbackClientID)
		oc = oauthClient{ClientID: fallbackClientID}
	}

	form := url.Values{}
	form.Set("client_id", oc.ClientID)
	if oc.ClientSecret != "" {
		form.Set("client_secret", oc.ClientSecret)
	}
	form.Set("grant_type", "password")
	form.Set("response_type", "code")
	form.Set("username", username)
	form.Set("password", password)

	b, err := c.do(ctx, http.MethodPost, "/api/v1/users/token", nil, []byte(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return fmt.Errorf("token request: %w", err)
	}

	var token Token
	if err := json.Unmarshal(b, &token); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}
	if token.AccessToken == "" {
		return errors.New("token response has no access_token")
	}
	if token.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	c.token = &token
	return nil
}

func (c *Client) localClient(ctx context.Context) (oauthClient, error) {
	b, err := c.doJSON(ctx, http.MethodGet, "/api/v1/oauth-clients/local", nil, nil)
	if err != nil {
		return oauthClient{}, err
	}
	var oc oauthClient
	if err := json.Unmarshal(b, &oc); err != nil {
		return oauthClient{}, fmt.Errorf("decode oauth client: %w", err)
	}
	if oc.ClientID == "" {
		return oauthClient{}, errors.New("oauth client response has no client_id")
	}
	return oc, nil
}
