// Package apiclient is the consuming side of the auth lifecycle: an HTTP
// client that attaches the cached access token to outgoing requests and,
// when the token expires mid-flight, funnels every affected request through
// one refresh exchange before replaying each of them exactly once.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/iamdebrajghosh/task-manager/internal/auth"
	"github.com/iamdebrajghosh/task-manager/internal/httpx"
	"github.com/iamdebrajghosh/task-manager/internal/user"
	"go.uber.org/zap"
)

// Credentials is the locally cached token pair.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// authSurface lists the paths whose 401s are terminal results, never
// refresh triggers. The refresh call itself is sent outside Do, so it can
// never recurse into another cycle.
var authSurface = []string{
	"/auth/login",
	"/auth/register",
	"/auth/logout",
	"/auth/refresh",
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	// coordinator state; all fields below share mu
	mu         sync.Mutex
	creds      Credentials
	refreshing bool
	waiters    []chan waitResult
}

func New(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// SetCredentials seeds the cache, e.g. from persisted storage at startup.
func (c *Client) SetCredentials(creds Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = creds
}

func (c *Client) Credentials() Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds
}

// NewRequest builds a request whose body can be replayed after a refresh.
func (c *Client) NewRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Do sends the request with the cached access token. A 401 on a
// non-auth-surface path triggers the single-flight refresh; on success the
// original request is replayed once with the new token. A second 401 after
// replay is returned as-is — one refresh-and-replay cycle bounds the
// failure amplification.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	access := c.Credentials().AccessToken

	resp, err := c.send(req, access)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || isAuthSurface(req.URL.Path) {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	access, err = c.refreshAccess(req.Context(), access)
	if err != nil {
		return nil, err
	}
	return c.send(req, access)
}

func (c *Client) send(req *http.Request, access string) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	if access != "" {
		clone.Header.Set("Authorization", "Bearer "+access)
		clone.Header.Set(auth.LegacyTokenHeader, access)
	}
	return c.http.Do(clone)
}

func isAuthSurface(path string) bool {
	for _, p := range authSurface {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}

// exchange performs the actual refresh round trip. It goes through the bare
// http.Client on purpose: a 401 here must fail the session, not start
// another refresh.
func (c *Client) exchange(ctx context.Context, refreshToken string) (Credentials, error) {
	if refreshToken == "" {
		return Credentials{}, fmt.Errorf("no refresh token cached")
	}

	req, err := c.NewRequest(ctx, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": refreshToken,
	})
	if err != nil {
		return Credentials{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Credentials{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeEnvelope(resp, &payload); err != nil {
		return Credentials{}, err
	}
	return Credentials{AccessToken: payload.AccessToken, RefreshToken: payload.RefreshToken}, nil
}

type authPayload struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	Identity     user.Identity `json:"identity"`
}

// Login authenticates and caches the returned pair. A 401 here is a
// terminal result, not a refresh trigger.
func (c *Client) Login(ctx context.Context, email, password string) (*user.Identity, error) {
	return c.authenticate(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (c *Client) RegisterAccount(ctx context.Context, name, email, password string) (*user.Identity, error) {
	return c.authenticate(ctx, "/auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, body map[string]string) (*user.Identity, error) {
	req, err := c.NewRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload authPayload
	if err := decodeEnvelope(resp, &payload); err != nil {
		return nil, err
	}

	c.SetCredentials(Credentials{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
	})
	return &payload.Identity, nil
}

// Logout asks the server to clear the session record, then drops the local
// cache regardless of the outcome; only the server-side clear makes the
// logout durable.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.NewRequest(ctx, http.MethodPost, "/auth/logout", nil)
	if err != nil {
		return err
	}
	resp, err := c.send(req, c.Credentials().AccessToken)
	c.SetCredentials(Credentials{})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return decodeEnvelope[struct{}](resp, nil)
	}
	return nil
}

// Me fetches the current identity through Do, so it participates in the
// refresh-and-replay flow like any other API call.
func (c *Client) Me(ctx context.Context) (*user.Identity, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var identity user.Identity
	if err := decodeEnvelope(resp, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

func decodeEnvelope[T any](resp *http.Response, out *T) error {
	var env httpx.Envelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if env.Error != nil {
		return &APIError{
			Status:  resp.StatusCode,
			Code:    env.Error.Code,
			Message: env.Error.Message,
		}
	}
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Code: httpx.ErrInternal, Message: "unexpected response"}
	}
	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding response data: %w", err)
		}
	}
	return nil
}
