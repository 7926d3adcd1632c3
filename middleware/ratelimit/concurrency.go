package ratelimit

import (
	"net/http"
	"time"

	"chatbot-gateway/middleware/ratelimit/application"
	"chatbot-gateway/middleware/ratelimit/domain"
)

type ConcurrencyOptions struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
	Stats          domain.StatsStore
	// Reject escreve a resposta quando não há vaga. Padrão: 503 texto puro.
	Reject func(w http.ResponseWriter, r *http.Request)
}

func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.Reject == nil {
		opts.Reject = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	}

	svc := application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// preflight nunca ocupa nem espera vaga
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			release, ok := svc.Acquire(r.Context())
			if !ok {
				if opts.Stats != nil {
					_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
						Outcome: domain.OutcomeOverloaded,
						Method:  r.Method,
						Path:    r.URL.Path,
						At:      time.Now(),
					})
				}
				opts.Reject(w, r)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
