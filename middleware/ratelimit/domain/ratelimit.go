package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

type Key string

// Limiter representa algo que pode decidir se uma ação é permitida agora.
//
// Usado pelo flood guard (token bucket via golang.org/x/time/rate).
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave (ex: IP do cliente).
type LimiterStore interface {
	Get(Key) Limiter
}

// Window é uma janela deslizante: no máximo Limit eventos dentro de Size.
//
// Limit <= 0 desabilita a janela.
type Window struct {
	Name       string
	Size       time.Duration
	Limit      int
	RetryAfter time.Duration
	Reason     string
}

// Policy é a lista ordenada de janelas. A primeira janela estourada decide.
type Policy []Window

// Active devolve apenas as janelas habilitadas, mantendo a ordem.
func (p Policy) Active() Policy {
	out := make(Policy, 0, len(p))
	for _, w := range p {
		if w.Limit > 0 && w.Size > 0 {
			out = append(out, w)
		}
	}
	return out
}

// Largest devolve a maior duração entre as janelas habilitadas.
func (p Policy) Largest() time.Duration {
	var d time.Duration
	for _, w := range p.Active() {
		if w.Size > d {
			d = w.Size
		}
	}
	return d
}

// WindowStore guarda os timestamps por chave.
//
// Hit precisa ser atômico por chave: podar, comparar com os limites e
// registrar `now` em todas as janelas numa única operação. Sem isso, duas
// requisições concorrentes podem ver espaço sob o limite e ambas passarem.
type WindowStore interface {
	Hit(ctx context.Context, key Key, policy Policy, now time.Time) (Decision, error)
}

type Decision struct {
	Allowed bool
	// Window é o nome da janela que bloqueou (vazio quando permitido).
	Window string
	Reason string
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}

// Denied monta a decisão de bloqueio para a janela w.
func Denied(w Window) Decision {
	return Decision{Allowed: false, Window: w.Name, Reason: w.Reason, RetryAfter: w.RetryAfter}
}
