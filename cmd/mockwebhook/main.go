// Command mockwebhook é um webhook de bot falso para testar o gateway
// localmente: responde {"output": "..."} ecoando a mensagem recebida.
//
//	LISTEN_ADDR=:8081 FAIL_STATUS=503 go run ./cmd/mockwebhook
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"chatbot-gateway/gate"
	"chatbot-gateway/logger"
)

func main() {
	log, err := logger.New(logger.Options{Level: os.Getenv("LOG_LEVEL"), Writer: os.Stderr})
	if err != nil {
		slog.Error("logger", "error", err)
		os.Exit(1)
	}

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	// FAIL_STATUS faz todo POST responder com esse status (ex.: 503)
	failStatus, _ := strconv.Atoi(os.Getenv("FAIL_STATUS"))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/webhook/{bot}", webhookHandler(log, failStatus))

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("mock webhook listening", "addr", addr, "fail_status", failStatus)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func webhookHandler(log *slog.Logger, failStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p gate.UpstreamPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}

		log.Info("webhook received",
			"bot", chi.URLParam(r, "bot"),
			"session_id", p.SessionID,
			"client_ip", p.Metadata.ClientIP,
			"origin", p.Metadata.Origin,
			"bot_id", p.Metadata.BotID,
		)

		w.Header().Set("Content-Type", "application/json")
		if failStatus >= 400 {
			w.WriteHeader(failStatus)
			_, _ = w.Write([]byte(`{"message":"mock failure"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"output": "echo: " + p.ChatInput})
	}
}
