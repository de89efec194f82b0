package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iamdebrajghosh/task-manager/internal/httpx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeAPI is a stand-in auth server: one valid access token at a time,
// refresh rotates it and counts exchanges.
type fakeAPI struct {
	mu           sync.Mutex
	validAccess  string
	validRefresh string
	refreshCalls int32
	refreshFails bool
	refreshDelay time.Duration
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.refreshCalls, 1)
		time.Sleep(f.refreshDelay)

		if f.refreshFails {
			httpx.Unauthorized(w, "invalid refresh token")
			return
		}

		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.Unauthorized(w, "invalid refresh token")
			return
		}

		f.mu.Lock()
		if req.RefreshToken != f.validRefresh {
			f.mu.Unlock()
			httpx.Unauthorized(w, "invalid refresh token")
			return
		}
		f.validAccess = f.validAccess + "+rotated"
		f.validRefresh = f.validRefresh + "+rotated"
		access, refresh := f.validAccess, f.validRefresh
		f.mu.Unlock()

		httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"accessToken":  access,
			"refreshToken": refresh,
		})
	})
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		httpx.Unauthorized(w, "invalid email or password")
	})
	mux.HandleFunc("/tasks", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		valid := f.validAccess
		f.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+valid {
			httpx.Unauthorized(w, "token is not valid")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func (f *fakeAPI) calls() int32 {
	return atomic.LoadInt32(&f.refreshCalls)
}

func newTestClient(t *testing.T, api *fakeAPI) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	c := New(srv.URL, zap.NewNop())
	return c, srv
}

func TestSingleFlightRefreshAndReplay(t *testing.T) {
	api := &fakeAPI{validAccess: "fresh", validRefresh: "r1", refreshDelay: 30 * time.Millisecond}
	client, _ := newTestClient(t, api)
	client.SetCredentials(Credentials{AccessToken: "stale", RefreshToken: "r1"})

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)

	codes := make(chan int, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			req, err := client.NewRequest(context.Background(), http.MethodGet, "/tasks", nil)
			if err != nil {
				errs <- err
				return
			}
			resp, err := client.Do(req)
			if err != nil {
				errs <- err
				return
			}
			defer resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	count := 0
	for code := range codes {
		require.Equal(t, http.StatusOK, code)
		count++
	}
	require.Equal(t, n, count, "every caller must complete after the single refresh")
	require.Equal(t, int32(1), api.calls(), "concurrent 401s must share one refresh exchange")

	creds := client.Credentials()
	require.Equal(t, "fresh+rotated", creds.AccessToken)
	require.Equal(t, "r1+rotated", creds.RefreshToken)
}

func TestRefreshFailureEndsSessionForAllWaiters(t *testing.T) {
	api := &fakeAPI{validAccess: "fresh", validRefresh: "r1", refreshFails: true, refreshDelay: 20 * time.Millisecond}
	client, _ := newTestClient(t, api)
	client.SetCredentials(Credentials{AccessToken: "stale", RefreshToken: "r1"})

	const n = 5
	var wg sync.WaitGroup
	wg.Add(n)

	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			req, err := client.NewRequest(context.Background(), http.MethodGet, "/tasks", nil)
			require.NoError(t, err)
			_, err = client.Do(req)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.ErrorIs(t, err, ErrSessionExpired)
	}
	require.Equal(t, int32(1), api.calls(), "a failed refresh must not be retried")
	require.Equal(t, Credentials{}, client.Credentials(), "cached credentials are discarded on terminal failure")
}

func TestReplayHappensExactlyOnce(t *testing.T) {
	// the server rotates on refresh but keeps rejecting the task call, so
	// a looping client would refresh forever
	api := &fakeAPI{validAccess: "unreachable", validRefresh: "r1"}
	client, _ := newTestClient(t, api)
	client.SetCredentials(Credentials{AccessToken: "stale", RefreshToken: "r1"})

	req, err := client.NewRequest(context.Background(), http.MethodGet, "/tasks", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "second 401 is returned, not retried")
	require.Equal(t, int32(1), api.calls())
}

func TestAuthSurfaceIsNotIntercepted(t *testing.T) {
	api := &fakeAPI{validAccess: "fresh", validRefresh: "r1"}
	client, _ := newTestClient(t, api)
	client.SetCredentials(Credentials{AccessToken: "stale", RefreshToken: "r1"})

	_, err := client.Login(context.Background(), "a@x.com", "wrong-password")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, int32(0), api.calls(), "a login failure is terminal, never a refresh trigger")
}

func TestRequestBodyIsReplayable(t *testing.T) {
	type received struct {
		Title string `json:"title"`
	}
	var got received

	api := &fakeAPI{validAccess: "fresh", validRefresh: "r1"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			atomic.AddInt32(&api.refreshCalls, 1)
			httpx.WriteJSON(w, http.StatusOK, map[string]string{
				"accessToken":  "fresh",
				"refreshToken": "r2",
			})
			return
		}
		if r.Header.Get("Authorization") != "Bearer fresh" {
			httpx.Unauthorized(w, "token is not valid")
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		httpx.WriteJSON(w, http.StatusCreated, got)
	}))
	defer srv.Close()

	client := New(srv.URL, zap.NewNop())
	client.SetCredentials(Credentials{AccessToken: "stale", RefreshToken: "r1"})

	req, err := client.NewRequest(context.Background(), http.MethodPost, "/tasks", map[string]string{"title": "buy milk"})
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "buy milk", got.Title, "the replayed request must carry the original body")
	require.Equal(t, int32(1), api.calls())
}
