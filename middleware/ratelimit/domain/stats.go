package domain

import (
	"context"
	"time"
)

// Outcome é o desfecho de uma requisição no gate.
type Outcome string

const (
	OutcomeForwarded     Outcome = "forwarded"
	OutcomeInvalidBot    Outcome = "invalid_bot"
	OutcomeInvalidInput  Outcome = "invalid_input"
	OutcomeRateLimited   Outcome = "rate_limited"
	OutcomeUpstreamError Outcome = "upstream_error"
	OutcomeInternalError Outcome = "internal_error"
	OutcomeFloodLimited  Outcome = "flood_limited"
	OutcomeOverloaded    Outcome = "overloaded"
)

// Allowed indica se o desfecho conta como requisição admitida.
func (o Outcome) Allowed() bool {
	return o == OutcomeForwarded || o == OutcomeUpstreamError
}

// StatsEvent representa o desfecho de uma requisição.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key sem controle pode
// explodir o número de chaves numa base como Redis).
type StatsEvent struct {
	Key     Key
	BotID   string
	Outcome Outcome

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas.
//
// Implementações podem armazenar em Redis, memória, etc.
// Quem chama deve tratar erro como best-effort (não derrubar request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
