package ratelimit

import (
	"net/http"
	"time"

	"chatbot-gateway/middleware/ratelimit/application"
	"chatbot-gateway/middleware/ratelimit/domain"
)

// RejectFunc escreve a resposta de bloqueio. Retry-After já vem preenchido.
type RejectFunc func(w http.ResponseWriter, r *http.Request, dec domain.Decision)

// Options configura o flood guard: um token bucket por cliente, antes do gate.
type Options struct {
	Store               domain.LimiterStore
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustProxy          bool
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
	Reject              RejectFunc
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

func defaultReject(w http.ResponseWriter, _ *http.Request, _ domain.Decision) {
	http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustProxy)
	}
	if opts.Reject == nil {
		opts.Reject = defaultReject
	}

	svc := application.BucketService{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// preflight nunca consome tokens
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if ri, ok := opts.Store.(rateInfo); ok {
					w.Header().Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-RateLimit-Burst", formatInt(ri.Burst()))
				}
			}

			dec := svc.Decide(domain.Key(key))
			if !dec.Allowed {
				if opts.Stats != nil {
					_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
						Key:     domain.Key(key),
						Outcome: domain.OutcomeFloodLimited,
						Method:  r.Method,
						Path:    r.URL.Path,
						At:      time.Now(),
					})
				}
				w.Header().Set("Retry-After", formatInt(retrySeconds(dec.RetryAfter)))
				opts.Reject(w, r, dec)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// retrySeconds trunca para segundos inteiros, com mínimo de 1.
func retrySeconds(d time.Duration) int {
	s := int(d.Seconds())
	if s < 1 {
		return 1
	}
	return s
}
