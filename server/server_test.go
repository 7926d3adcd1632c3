package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot-gateway/gate"
	"chatbot-gateway/logger"
	"chatbot-gateway/middleware/ratelimit/application"
	"chatbot-gateway/middleware/ratelimit/domain"
	"chatbot-gateway/middleware/ratelimit/infra"
	"chatbot-gateway/middleware/requestid"
)

type botMap map[string]string

func (m botMap) Lookup(id string) (string, bool) {
	url, ok := m[id]
	return url, ok
}

func newTestServer(t *testing.T, mutate func(*Options)) (*Server, *atomic.Int64) {
	t.Helper()

	var calls atomic.Int64
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output":"pong"}`))
	}))
	t.Cleanup(up.Close)

	stats := infra.NewMemoryStatsStore()
	g := gate.New(gate.Options{
		Bots: botMap{"RAPID": up.URL},
		Limiter: application.Service{
			Store:  infra.NewMemorySlidingStore(),
			Policy: domain.MessagePolicy(5, 50),
		},
		CORS:   gate.CORS{AllowedOrigins: []string{"https://site.example"}},
		Stats:  stats,
		Logger: logger.Discard(),
	})

	opts := Options{
		Gate:     g,
		Stats:    stats,
		Snapshot: stats,
		Logger:   logger.Discard(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts), &calls
}

func chatRequest(session string) *http.Request {
	body := `{"action":"sendMessage","sessionId":"` + session + `","chatInput":"ping"}`
	r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Origin", "https://site.example")
	r.Header.Set(gate.HeaderBotID, "RAPID")
	return r
}

func serve(s *Server, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	return w
}

func TestServer_ChatRoundTrip(t *testing.T) {
	s, calls := newTestServer(t, nil)

	w := serve(s, chatRequest("abc"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"output":"pong"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestid.Header))
	assert.Equal(t, "https://site.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.EqualValues(t, 1, calls.Load())
}

func TestServer_ChatEndpointAcceptsAllMethods(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), "Method not allowed")

	w = serve(s, httptest.NewRequest(http.MethodOptions, "/api/chat", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestServer_CustomChatEndpoint(t *testing.T) {
	s, calls := newTestServer(t, func(o *Options) { o.ChatEndpoint = "/v2/chat" })

	r := chatRequest("abc")
	r.URL.Path = "/v2/chat"
	assert.Equal(t, http.StatusOK, serve(s, r).Code)
	assert.Equal(t, http.StatusNotFound, serve(s, chatRequest("abc")).Code)
	assert.EqualValues(t, 1, calls.Load())
}

func TestServer_NotFoundIsJSON(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Not found","output":"`+gate.OutputGeneric+`"}`, w.Body.String())
}

func TestServer_Healthz(t *testing.T) {
	pool := infra.NewChanPool(4)
	s, _ := newTestServer(t, func(o *Options) { o.Pool = pool })

	w := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","in_flight":0}`, w.Body.String())

	s, _ = newTestServer(t, nil)
	w = serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServer_Stats(t *testing.T) {
	s, _ := newTestServer(t, nil)

	serve(s, chatRequest("abc"))
	bad := chatRequest("abc")
	bad.Header.Set(gate.HeaderBotID, "nope")
	serve(s, bad)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var snap infra.StatsSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.EqualValues(t, 1, snap.Total.Allowed)
	assert.EqualValues(t, 1, snap.Total.Denied)
	assert.EqualValues(t, 1, snap.ByOutcome[domain.OutcomeForwarded])
	assert.EqualValues(t, 1, snap.ByOutcome[domain.OutcomeInvalidBot])
	assert.EqualValues(t, 1, snap.ByBot["RAPID"].Allowed)
}

func TestServer_StatsRouteDisabled(t *testing.T) {
	s, _ := newTestServer(t, func(o *Options) { o.Snapshot = nil })
	assert.Equal(t, http.StatusNotFound, serve(s, httptest.NewRequest(http.MethodGet, "/stats", nil)).Code)
}

func TestServer_FloodGuardRejectsWithJSONContract(t *testing.T) {
	s, calls := newTestServer(t, func(o *Options) {
		o.Flood = infra.NewBucketStore(0.001, 2)
	})

	// sessões diferentes: o limite por identidade não entra em jogo
	assert.Equal(t, http.StatusOK, serve(s, chatRequest("a")).Code)
	assert.Equal(t, http.StatusOK, serve(s, chatRequest("b")).Code)

	w := serve(s, chatRequest("c"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "https://site.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t,
		`{"error":"`+application.ReasonFlood+`","output":"`+gate.OutputRateLimited+`"}`,
		w.Body.String())
	assert.EqualValues(t, 2, calls.Load())

	// preflight não consome nem é barrado
	assert.Equal(t, http.StatusOK, serve(s, httptest.NewRequest(http.MethodOptions, "/api/chat", nil)).Code)
	// /healthz fica fora do flood guard
	assert.Equal(t, http.StatusOK, serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestServer_ConcurrencyLimitRejectsWhenFull(t *testing.T) {
	pool := infra.NewChanPool(1)
	s, calls := newTestServer(t, func(o *Options) {
		o.Pool = pool
		o.AcquireTimeout = 10 * time.Millisecond
	})

	release, ok := pool.Acquire(context.Background())
	require.True(t, ok)

	w := serve(s, chatRequest("abc"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"Server busy","output":"`+gate.OutputBusy+`"}`, w.Body.String())
	assert.Zero(t, calls.Load())

	release()
	assert.Equal(t, http.StatusOK, serve(s, chatRequest("abc")).Code)
	assert.Equal(t, 0, pool.InUse())
}

func TestServer_PreflightSucceedsWhilePoolIsFull(t *testing.T) {
	pool := infra.NewChanPool(1)
	s, calls := newTestServer(t, func(o *Options) {
		o.Pool = pool
		o.AcquireTimeout = 10 * time.Millisecond
	})

	release, ok := pool.Acquire(context.Background())
	require.True(t, ok)
	defer release()

	r := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	r.Header.Set("Origin", "https://site.example")
	w := serve(s, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "https://site.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, 1, pool.InUse())
	assert.Zero(t, calls.Load())
}

func TestServer_ServeShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
