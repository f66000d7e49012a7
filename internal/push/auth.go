package push

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"github.com/stacklok/flagsync/internal/httpclient"
)

const (
	// AuthPath is appended to the auth service URL
	AuthPath = "/v2/auth"

	// RefreshGrace is how long before expiry a token is replaced
	RefreshGrace = 600 * time.Second

	// MinRefreshDelay is the shortest refresh delay used unless the token
	// expires sooner
	MinRefreshDelay = time.Minute

	capabilityClaim    = "x-ably-capability"
	publishersCapacity = "channel-metadata:publishers"
	occupancyPrefix    = "[?occupancy=metrics.publishers]"
)

// ErrStreamingDisabled is returned when the auth service reports that push
// is not enabled for the SDK key
var ErrStreamingDisabled = errors.New("streaming is disabled for this SDK key")

// AuthError wraps a failed token request
type AuthError struct {
	Err       error
	Retryable bool
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("failed to authenticate for streaming: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Token is a streaming credential with its channel grants
type Token struct {
	Raw       string
	Channels  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ChannelList returns the channels joined as expected by the stream URL
func (t *Token) ChannelList() string {
	return strings.Join(t.Channels, ",")
}

// RefreshDelay returns how long to wait from now before replacing the token.
// The delay always ends strictly before ExpiresAt.
func (t *Token) RefreshDelay(now time.Time) time.Duration {
	remaining := t.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}

	delay := max(remaining-RefreshGrace, MinRefreshDelay)
	if delay >= remaining {
		delay = remaining / 2
	}
	return delay
}

// Authenticator obtains streaming tokens
type Authenticator interface {
	// Authenticate requests a fresh token. Failures are *AuthError values.
	Authenticate(ctx context.Context) (*Token, error)
}

type httpAuthenticator struct {
	client  httpclient.Client
	authURL string
}

// NewAuthenticator creates an Authenticator calling {authURL}/v2/auth
// through client, which must carry the SDK key
func NewAuthenticator(client httpclient.Client, authURL string) Authenticator {
	return &httpAuthenticator{
		client:  client,
		authURL: strings.TrimSuffix(authURL, "/"),
	}
}

// Authenticate requests a token. Client side HTTP errors and a disabled push
// flag are not retryable; network and server errors are.
func (a *httpAuthenticator) Authenticate(ctx context.Context) (*Token, error) {
	body, err := a.client.Get(ctx, a.authURL+AuthPath)
	if err != nil {
		var httpErr *httpclient.HTTPError
		retryable := !errors.As(err, &httpErr) || !httpErr.IsClientError()
		return nil, &AuthError{Err: err, Retryable: retryable}
	}

	result := gjson.ParseBytes(body)
	if !result.Get("pushEnabled").Bool() {
		return nil, &AuthError{Err: ErrStreamingDisabled}
	}

	token, err := DecodeToken(result.Get("token").String())
	if err != nil {
		return nil, &AuthError{Err: err, Retryable: true}
	}
	return token, nil
}

// DecodeToken reads the expiry and channel grants of a streaming token.
// The signature is not verified: the token is only forwarded to the
// streaming service, which verifies it.
func DecodeToken(raw string) (*Token, error) {
	if raw == "" {
		return nil, errors.New("empty streaming token")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("failed to decode streaming token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("streaming token has no expiration")
	}

	token := &Token{
		Raw:       raw,
		ExpiresAt: exp.Time,
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		token.IssuedAt = iat.Time
	}

	capability, ok := claims[capabilityClaim].(string)
	if !ok || !gjson.Valid(capability) {
		return nil, fmt.Errorf("streaming token has no valid %s claim", capabilityClaim)
	}
	gjson.Parse(capability).ForEach(func(channel, grants gjson.Result) bool {
		name := channel.String()
		for _, grant := range grants.Array() {
			if grant.String() == publishersCapacity {
				name = occupancyPrefix + name
				break
			}
		}
		token.Channels = append(token.Channels, name)
		return true
	})
	if len(token.Channels) == 0 {
		return nil, errors.New("streaming token grants no channels")
	}
	sort.Strings(token.Channels)

	return token, nil
}
