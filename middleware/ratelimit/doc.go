// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (janelas deslizantes, token bucket, acquire/timeout)
//   - infra: implementações concretas (memória, Redis, x/time/rate, semáforo)
//   - ratelimit (este pacote): middlewares HTTP + extração do IP do cliente
//
// Fluxo no gateway:
//
//  1. ConcurrencyMiddleware limita requisições em voo (503)
//  2. Middleware aplica o flood guard por IP (429)
//  3. O gate de chat aplica as janelas por identidade (IP + sessão) depois
//     de validar o corpo, via application.Service
package ratelimit
