package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrUpstreamUnavailable cobre falha de rede e timeout.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrInvalidUpstreamResponse cobre corpo que não é JSON ou grande demais.
	ErrInvalidUpstreamResponse = errors.New("invalid upstream response")
)

// UpstreamStatusError é devolvido quando o webhook responde fora de 2xx.
// Body é truncado e serve apenas para log.
type UpstreamStatusError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream responded %d: %s", e.StatusCode, e.Body)
}

type Metadata struct {
	Timestamp string `json:"timestamp"`
	ClientIP  string `json:"clientIp"`
	Origin    string `json:"origin"`
	BotID     string `json:"botId"`
}

// UpstreamPayload é o corpo enviado ao webhook.
type UpstreamPayload struct {
	Action    string   `json:"action"`
	SessionID string   `json:"sessionId"`
	ChatInput string   `json:"chatInput"`
	Metadata  Metadata `json:"_metadata"`
}

// Forwarder entrega o payload ao webhook e devolve o corpo JSON da resposta.
type Forwarder interface {
	Forward(ctx context.Context, webhookURL string, payload UpstreamPayload) (json.RawMessage, error)
}

const (
	defaultUpstreamTimeout  = 10 * time.Second
	defaultUserAgent        = "Chatbot-Proxy/1.0"
	defaultMaxResponseBytes = 1 << 20
	maxLoggedBodyBytes      = 4 << 10
)

// HTTPForwarder faz POST JSON no webhook com timeout.
type HTTPForwarder struct {
	Client           *http.Client
	Timeout          time.Duration
	UserAgent        string
	MaxResponseBytes int64
}

func NewHTTPForwarder(timeout time.Duration) *HTTPForwarder {
	if timeout <= 0 {
		timeout = defaultUpstreamTimeout
	}
	return &HTTPForwarder{
		Client:           &http.Client{},
		Timeout:          timeout,
		UserAgent:        defaultUserAgent,
		MaxResponseBytes: defaultMaxResponseBytes,
	}
}

func (f *HTTPForwarder) Forward(ctx context.Context, webhookURL string, payload UpstreamPayload) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode upstream payload: %w", err)
	}

	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", f.UserAgent)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBodyBytes))
		return nil, &UpstreamStatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	limit := f.MaxResponseBytes
	if limit <= 0 {
		limit = defaultMaxResponseBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUpstreamUnavailable, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidUpstreamResponse, limit)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: body is not JSON", ErrInvalidUpstreamResponse)
	}
	return json.RawMessage(data), nil
}
