package gate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"chatbot-gateway/middleware/ratelimit"
	"chatbot-gateway/middleware/ratelimit/domain"
	"chatbot-gateway/middleware/requestid"
)

const (
	HeaderBotID = "X-Bot-ID"

	maxBodyBytes       = 64 << 10
	metadataTimeLayout = "2006-01-02T15:04:05.000Z"
)

// Bots resolve o id do bot para a URL do webhook.
// known=false para ids desconhecidos; url vazia para ids sem webhook.
type Bots interface {
	Lookup(id string) (url string, known bool)
}

// Limiter decide se a identidade pode enviar mais uma mensagem.
// application.Service implementa.
type Limiter interface {
	Decide(ctx context.Context, key domain.Key) (domain.Decision, error)
}

type Options struct {
	Bots             Bots
	Limiter          Limiter
	Forwarder        Forwarder
	CORS             CORS
	MaxMessageLength int
	// TrustProxy faz o IP do cliente vir de X-Forwarded-For / X-Real-IP.
	TrustProxy bool
	Stats      domain.StatsStore
	Logger     *slog.Logger
	Clock      domain.Clock
}

// Gate é o handler HTTP do endpoint de chat.
type Gate struct {
	bots       Bots
	limiter    Limiter
	forwarder  Forwarder
	cors       CORS
	validator  *Validator
	trustProxy bool
	stats      domain.StatsStore
	log        *slog.Logger
	clock      domain.Clock
}

func New(opts Options) *Gate {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 500
	}
	if opts.Forwarder == nil {
		opts.Forwarder = NewHTTPForwarder(defaultUpstreamTimeout)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	return &Gate{
		bots:       opts.Bots,
		limiter:    opts.Limiter,
		forwarder:  opts.Forwarder,
		cors:       opts.CORS,
		validator:  NewValidator(opts.MaxMessageLength),
		trustProxy: opts.TrustProxy,
		stats:      opts.Stats,
		log:        opts.Logger,
		clock:      opts.Clock,
	}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// exchange guarda o estado de uma requisição enquanto ela atravessa o gate.
type exchange struct {
	origin   string
	clientIP string
	botID    string
	key      domain.Key
	log      *slog.Logger
}

func (g *Gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	x := &exchange{
		origin: requestOrigin(r),
		log:    g.log.With("request_id", requestid.FromContext(r.Context())),
	}

	g.cors.apply(w.Header(), x.origin)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	hw := &headerWriter{ResponseWriter: w}
	defer func() {
		if rec := recover(); rec != nil {
			x.log.Error("panic in chat gate", "panic", rec, "stack", string(debug.Stack()))
			if hw.wrote {
				// status já enviado; só resta o log
				return
			}
			g.fail(hw, r, x, errInternal(fmt.Errorf("panic: %v", rec)))
		}
	}()

	body, err := g.handle(r, x)
	if err != nil {
		g.fail(hw, r, x, err)
		return
	}

	g.record(r, x, domain.OutcomeForwarded)
	writeRaw(hw, http.StatusOK, body)
}

// headerWriter marca quando a resposta já começou a ser escrita.
type headerWriter struct {
	http.ResponseWriter
	wrote bool
}

func (w *headerWriter) WriteHeader(code int) {
	w.wrote = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *headerWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

func (w *headerWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (g *Gate) handle(r *http.Request, x *exchange) ([]byte, error) {
	if r.Method != http.MethodPost {
		return nil, errMethodNotAllowed(r.Method)
	}

	x.botID = r.Header.Get(HeaderBotID)
	x.log = x.log.With("bot_id", x.botID)
	webhookURL, err := g.resolveBot(x.botID)
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, errInvalidBody(err)
	}
	if len(raw) > maxBodyBytes {
		return nil, errInvalidBody(fmt.Errorf("body exceeds %d bytes", maxBodyBytes))
	}
	req, err := decodeChatRequest(raw)
	if err != nil {
		return nil, errInvalidBody(err)
	}
	if res := g.validator.Validate(req); !res.Valid {
		return nil, errValidation(res.Errors)
	}

	x.clientIP = ratelimit.ClientIP(r, g.trustProxy)
	x.key = domain.Key(x.clientIP + "-" + req.SessionID)
	x.log = x.log.With("client_ip", x.clientIP, "session_id", req.SessionID)

	if g.limiter != nil {
		dec, err := g.limiter.Decide(r.Context(), x.key)
		if err != nil {
			return nil, errInternal(err)
		}
		if !dec.Allowed {
			return nil, RateLimitError(dec)
		}
	}

	x.log.Info("relaying chat message", "preview", preview(req.ChatInput))

	payload := UpstreamPayload{
		Action:    req.Action,
		SessionID: req.SessionID,
		ChatInput: req.ChatInput,
		Metadata: Metadata{
			Timestamp: g.clock.Now().UTC().Format(metadataTimeLayout),
			ClientIP:  x.clientIP,
			Origin:    x.origin,
			BotID:     x.botID,
		},
	}
	out, err := g.forwarder.Forward(r.Context(), webhookURL, payload)
	if err != nil {
		return nil, errUpstream(err)
	}
	return out, nil
}

func (g *Gate) lookup(id string) (string, bool) {
	if id == "" || g.bots == nil {
		return "", false
	}
	return g.bots.Lookup(id)
}

func (g *Gate) resolveBot(id string) (string, error) {
	url, known := g.lookup(id)
	if !known {
		return "", errInvalidBot(id)
	}
	if url == "" {
		return "", errUnconfiguredWebhook(id)
	}
	return url, nil
}

func (g *Gate) fail(w http.ResponseWriter, r *http.Request, x *exchange, err error) {
	ge := asGateError(err)

	attrs := []any{"kind", ge.Kind, "status", ge.Status}
	if ge.Err != nil {
		attrs = append(attrs, "error", ge.Err)
	}
	var statusErr *UpstreamStatusError
	if errors.As(ge.Err, &statusErr) {
		attrs = append(attrs, "upstream_status", statusErr.StatusCode)
	}

	switch {
	case ge.Status >= http.StatusInternalServerError:
		x.log.Error("chat request failed", attrs...)
	case ge.Kind == KindValidationFailed:
		x.log.Warn("chat request rejected", append(attrs, "validation", ge.Message)...)
	default:
		x.log.Warn("chat request rejected", attrs...)
	}

	g.record(r, x, ge.outcome())
	WriteError(w, ge)
}

// record é best-effort: falha ao gravar estatística não afeta a resposta.
func (g *Gate) record(r *http.Request, x *exchange, outcome domain.Outcome) {
	if g.stats == nil {
		return
	}
	// ids desconhecidos vêm do cliente; não viram contador por bot.
	botID := x.botID
	if _, known := g.lookup(botID); !known {
		botID = ""
	}
	err := g.stats.Record(r.Context(), domain.StatsEvent{
		Key:     x.key,
		BotID:   botID,
		Outcome: outcome,
		Method:  r.Method,
		Path:    r.URL.Path,
		At:      g.clock.Now(),
	})
	if err != nil {
		x.log.Debug("stats record failed", "error", err)
	}
}

// Reject escreve e para requisições barradas antes do gate (flood guard,
// limite de concorrência), com os mesmos headers CORS.
func (g *Gate) Reject(w http.ResponseWriter, r *http.Request, e *Error) {
	g.cors.apply(w.Header(), requestOrigin(r))
	WriteError(w, e)
}
