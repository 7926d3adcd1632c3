package gate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePayload = UpstreamPayload{
	Action:    "sendMessage",
	SessionID: "abc",
	ChatInput: "hello",
	Metadata: Metadata{
		Timestamp: "2025-03-01T09:30:00.000Z",
		ClientIP:  "1.2.3.4",
		Origin:    "https://a.example",
		BotID:     "RAPID",
	},
}

func TestHTTPForwarder_Success(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"output":"hi"}`))
	}))
	defer srv.Close()

	out, err := NewHTTPForwarder(time.Second).Forward(context.Background(), srv.URL, samplePayload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"output":"hi"}`, string(out))

	meta, ok := got["_metadata"].(map[string]any)
	require.True(t, ok, "payload must carry _metadata: %v", got)
	assert.Equal(t, "1.2.3.4", meta["clientIp"])
	assert.Equal(t, "RAPID", meta["botId"])
	assert.Equal(t, "sendMessage", got["action"])
	assert.Equal(t, "abc", got["sessionId"])
}

func TestHTTPForwarder_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(strings.Repeat("x", maxLoggedBodyBytes*2)))
	}))
	defer srv.Close()

	_, err := NewHTTPForwarder(time.Second).Forward(context.Background(), srv.URL, samplePayload)
	var statusErr *UpstreamStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Len(t, statusErr.Body, maxLoggedBodyBytes)
}

func TestHTTPForwarder_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"output":`))
	}))
	defer srv.Close()

	_, err := NewHTTPForwarder(time.Second).Forward(context.Background(), srv.URL, samplePayload)
	assert.ErrorIs(t, err, ErrInvalidUpstreamResponse)
}

func TestHTTPForwarder_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`"` + strings.Repeat("x", 64) + `"`))
	}))
	defer srv.Close()

	f := NewHTTPForwarder(time.Second)
	f.MaxResponseBytes = 16
	_, err := f.Forward(context.Background(), srv.URL, samplePayload)
	assert.ErrorIs(t, err, ErrInvalidUpstreamResponse)
}

func TestHTTPForwarder_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := NewHTTPForwarder(50*time.Millisecond).Forward(context.Background(), srv.URL, samplePayload)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHTTPForwarder_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPForwarder(time.Second).Forward(context.Background(), url, samplePayload)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}
