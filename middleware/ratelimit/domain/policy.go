package domain

import "time"

const (
	ReasonPerMinute = "Rate limit exceeded: Too many messages per minute"
	ReasonPerHour   = "Rate limit exceeded: Too many messages per hour"
)

// MessagePolicy é a política padrão de mensagens por identidade:
// janela de 1 minuto (Retry-After 60s) avaliada antes da janela de 1 hora
// (Retry-After 3600s).
func MessagePolicy(perMinute, perHour int) Policy {
	return Policy{
		{
			Name:       "minute",
			Size:       time.Minute,
			Limit:      perMinute,
			RetryAfter: 60 * time.Second,
			Reason:     ReasonPerMinute,
		},
		{
			Name:       "hour",
			Size:       time.Hour,
			Limit:      perHour,
			RetryAfter: 3600 * time.Second,
			Reason:     ReasonPerHour,
		},
	}
}
