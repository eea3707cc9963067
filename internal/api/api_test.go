package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaco/metaco/internal/agent"
	"github.com/metaco/metaco/internal/api"
	"github.com/metaco/metaco/internal/auth"
	"github.com/metaco/metaco/internal/config"
	"github.com/metaco/metaco/internal/events"
	"github.com/metaco/metaco/internal/host"
	"github.com/metaco/metaco/internal/identity"
	"github.com/metaco/metaco/internal/models"
	"github.com/metaco/metaco/internal/router"
)

const waitFor = 2 * time.Second

type testEnv struct {
	srv   *httptest.Server
	store *config.MemStore
	agent *agent.Agent
}

// newTestEnv wires a running agent over an in-process host to the API.
func newTestEnv(t *testing.T, authSvc *auth.Service) *testEnv {
	t.Helper()

	store := config.NewMemStore()
	require.NoError(t, store.Write(models.State{Enabled: false}))

	bus := events.NewBus()
	dialer := agent.NewLocalDialer(host.NewHandler(func() (config.Store, error) { return store, nil }))
	a := agent.New(dialer, bus, agent.Options{
		PollInterval:   time.Hour,
		RequestTimeout: time.Second,
		SpawnRate:      1000,
		SpawnBurst:     100,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = a.Run(ctx)
		close(done)
	}()

	table := router.NewTable(
		router.Silo{Name: "Legal", Keywords: []string{"contract", "nda"}},
		router.Silo{Name: "Finance", Keywords: []string{"invoice"}},
	)

	srv := httptest.NewServer(api.NewRouter(api.Deps{
		Sync:   a,
		Router: router.New(table, a),
		Events: bus,
		Auth:   authSvc,
		Info:   func() identity.Info { return identity.Get(store.Path(), config.HostModeInProcess) },
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})

	require.Eventually(t, func() bool { return a.Snapshot().Confirmed }, waitFor, 5*time.Millisecond)
	return &testEnv{srv: srv, store: store, agent: a}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, want, body)
	}
}

func requireErrorCode(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	requireStatus(t, resp, status)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, code, body["error"])
	assert.NotEmpty(t, body["message"])
}

// --- state ---

func TestGetState(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "GET", "/api/state", "")
	requireStatus(t, resp, http.StatusOK)

	var snap models.Snapshot
	decode(t, resp, &snap)
	assert.False(t, snap.Enabled)
	assert.True(t, snap.Confirmed)
	assert.NotNil(t, snap.LastSync)
	assert.Equal(t, "disconnected", snap.Connection)
}

func TestToggle_Explicit(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "POST", "/api/toggle", `{"enabled":true}`)
	requireStatus(t, resp, http.StatusAccepted)
	var snap models.Snapshot
	decode(t, resp, &snap)
	assert.True(t, snap.Enabled)

	require.Eventually(t, func() bool {
		s, err := env.store.Read()
		return err == nil && s.Enabled
	}, waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool { return env.agent.Snapshot().Confirmed }, waitFor, 5*time.Millisecond)
}

func TestToggle_EmptyBodyFlips(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, "POST", "/api/toggle", "")
	requireStatus(t, resp, http.StatusAccepted)
	var snap models.Snapshot
	decode(t, resp, &snap)
	assert.True(t, snap.Enabled)

	resp = env.do(t, "POST", "/api/toggle", "")
	requireStatus(t, resp, http.StatusAccepted)
	decode(t, resp, &snap)
	assert.False(t, snap.Enabled)

	require.Eventually(t, func() bool { return env.store.Writes() == 3 }, waitFor, 5*time.Millisecond)
}

func TestToggle_InvalidBody(t *testing.T) {
	env := newTestEnv(t, nil)

	for name, body := range map[string]string{
		"not json":      `{enabled`,
		"missing field": `{}`,
		"wrong type":    `{"enabled":"yes"}`,
		"unknown field": `{"enabled":true,"force":1}`,
		"too large":     `{"enabled":true,"pad":"` + strings.Repeat("x", 5000) + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			requireErrorCode(t, env.do(t, "POST", "/api/toggle", body), http.StatusBadRequest, "INVALID_PAYLOAD")
		})
	}
	assert.Equal(t, 1, env.store.Writes(), "rejected toggles never reach the host")
}

func TestSync_PicksUpExternalChange(t *testing.T) {
	env := newTestEnv(t, nil)

	require.NoError(t, env.store.Write(models.State{Enabled: true}))
	resp := env.do(t, "POST", "/api/sync", "")
	requireStatus(t, resp, http.StatusAccepted)
	resp.Body.Close()

	require.Eventually(t, env.agent.Enabled, waitFor, 5*time.Millisecond)
}

// --- routing ---

func TestRoute_BlockedWhileDisabled(t *testing.T) {
	env := newTestEnv(t, nil)
	requireErrorCode(t, env.do(t, "GET", "/api/route?q=review+this+contract", ""), http.StatusConflict, "BLOCKED")
}

func TestRoute_Enabled(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.agent.Toggle(context.Background(), true))

	resp := env.do(t, "GET", "/api/route?q=Review+this+CONTRACT", "")
	requireStatus(t, resp, http.StatusOK)
	var d router.Decision
	decode(t, resp, &d)
	assert.Equal(t, "Legal", d.Destination)
	assert.Equal(t, "contract", d.Keyword)

	resp = env.do(t, "GET", "/api/route?q=hello", "")
	requireStatus(t, resp, http.StatusOK)
	decode(t, resp, &d)
	assert.Equal(t, router.DefaultDestination, d.Destination)
	assert.True(t, d.Default)

	requireErrorCode(t, env.do(t, "GET", "/api/route", ""), http.StatusBadRequest, "BAD_REQUEST")
}

func TestForward(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.agent.Toggle(context.Background(), true))

	resp := env.do(t, "POST", "/api/forward", `{"query":"pay this invoice"}`)
	requireStatus(t, resp, http.StatusOK)
	var d router.Decision
	decode(t, resp, &d)
	assert.Equal(t, "Finance", d.Destination)

	requireErrorCode(t, env.do(t, "POST", "/api/forward", `nope`), http.StatusBadRequest, "INVALID_PAYLOAD")
}

func TestGetSilos(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, "GET", "/api/silos", "")
	requireStatus(t, resp, http.StatusOK)

	var body struct {
		Silos   []router.Silo `json:"silos"`
		Default string        `json:"default"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Silos, 2)
	assert.Equal(t, "Legal", body.Silos[0].Name)
	assert.Equal(t, "Default Copilot", body.Default)
}

// --- system ---

func TestGetInfo(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, "GET", "/api/info", "")
	requireStatus(t, resp, http.StatusOK)

	var info identity.Info
	decode(t, resp, &info)
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.Hostname)
	assert.Equal(t, ":memory:", info.StatePath)
	assert.Equal(t, "inprocess", info.HostMode)
}

func TestNotFound_JSON(t *testing.T) {
	env := newTestEnv(t, nil)
	requireErrorCode(t, env.do(t, "GET", "/api/nonexistent", ""), http.StatusNotFound, "NOT_FOUND")
}

func TestMethodNotAllowed_JSON(t *testing.T) {
	env := newTestEnv(t, nil)
	requireErrorCode(t, env.do(t, "GET", "/api/toggle", ""), http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
}

func TestCORSOptions(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, "OPTIONS", "/api/toggle", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSSESubscribe(t *testing.T) {
	env := newTestEnv(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/api/subscribe", nil)
	require.NoError(t, err)

	resp, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream"))

	events := make(chan models.Snapshot, 8)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := sc.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var snap models.Snapshot
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap) == nil {
				events <- snap
			}
		}
		close(events)
	}()

	next := func() models.Snapshot {
		t.Helper()
		select {
		case s, ok := <-events:
			require.True(t, ok, "stream closed")
			return s
		case <-time.After(waitFor):
			t.Fatal("no SSE event")
			return models.Snapshot{}
		}
	}

	first := next()
	assert.False(t, first.Enabled)

	require.NoError(t, env.agent.Toggle(context.Background(), true))
	for {
		s := next()
		if s.Enabled && s.Confirmed {
			break
		}
	}
}

// --- auth ---

func TestAuth_TokenRequired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens")
	require.NoError(t, os.WriteFile(path, []byte("letmein\n"), 0600))
	svc, err := auth.NewService(path)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	env := newTestEnv(t, svc)

	requireErrorCode(t, env.do(t, "GET", "/api/state", ""), http.StatusUnauthorized, "UNAUTHORIZED")

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/state", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer letmein")
	resp, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// Preflight requests carry no credentials.
	resp = env.do(t, "OPTIONS", "/api/state", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

type staticSyncer struct{ snap models.Snapshot }

func (s staticSyncer) Snapshot() models.Snapshot          { return s.snap }
func (s staticSyncer) Enabled() bool                      { return s.snap.Enabled }
func (staticSyncer) Toggle(context.Context, bool) error   { return nil }
func (s staticSyncer) Flip(context.Context) (bool, error) { return !s.snap.Enabled, nil }
func (staticSyncer) Refresh()                             {}

func TestSSESubscribe_BeforeFirstPublish(t *testing.T) {
	bus := events.NewBus()
	sync := staticSyncer{snap: models.Snapshot{Enabled: true, Connection: "disconnected"}}
	srv := httptest.NewServer(api.NewRouter(api.Deps{
		Sync:   sync,
		Router: router.New(nil, sync),
		Events: bus,
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/subscribe", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	var first models.Snapshot
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "data: ") {
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &first))
			break
		}
	}
	assert.True(t, first.Enabled, "current snapshot is sent when the bus has nothing yet")
	assert.Equal(t, 1, bus.SubscriberCount())
	_, ok := bus.Last()
	assert.False(t, ok)
}
