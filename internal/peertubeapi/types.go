package peertubeapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Token represents an authentication token.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Expiry       time.Time
}

// oauthClient is the instance-local OAuth client returned by
// /api/v1/oauth-clients/local.
type oauthClient struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL string
	// RateLimit is requests per second.
	RateLimit int
	// Timeout bounds every single HTTP attempt.
	Timeout time.Duration
	// DateFields are the accepted spellings of the publication timestamp.
	DateFields []string
	// UpdateField is the field name written on update.
	UpdateField string
	PageSize    int
	// RetryMax applies to reads only; writes are never retried.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	HTTPClient   *http.Client
	Log          logrus.FieldLogger
}

// APIError is a non-2xx response.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return status
	}
	return status + ": " + body
}
