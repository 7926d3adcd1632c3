package infra

import (
	"context"
	"sync"

	"chatbot-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) add(o domain.Outcome) {
	if o.Allowed() {
		c.Allowed++
		return
	}
	c.Denied++
}

// StatsSnapshot é uma cópia consistente dos contadores.
type StatsSnapshot struct {
	Total     Counters                 `json:"total"`
	ByOutcome map[domain.Outcome]int64 `json:"by_outcome"`
	ByBot     map[string]Counters      `json:"by_bot"`
	ByKey     map[string]Counters      `json:"by_key,omitempty"`
}

// MemoryStatsStore é uma implementação simples em memória.
//
// Não faz expiração; com trackKeys ligado a cardinalidade cresce com o
// número de identidades.
type MemoryStatsStore struct {
	mu        sync.Mutex
	total     Counters
	byOutcome map[domain.Outcome]int64
	byBot     map[string]Counters
	byKey     map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byOutcome: make(map[domain.Outcome]int64),
		byBot:     make(map[string]Counters),
		byKey:     make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Outcome)
	s.byOutcome[ev.Outcome]++

	if ev.BotID != "" {
		c := s.byBot[ev.BotID]
		c.add(ev.Outcome)
		s.byBot[ev.BotID] = c
	}
	if s.trackKeys && ev.Key != "" {
		c := s.byKey[string(ev.Key)]
		c.add(ev.Outcome)
		s.byKey[string(ev.Key)] = c
	}
	return nil
}

func (s *MemoryStatsStore) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := StatsSnapshot{
		Total:     s.total,
		ByOutcome: make(map[domain.Outcome]int64, len(s.byOutcome)),
		ByBot:     make(map[string]Counters, len(s.byBot)),
	}
	for k, v := range s.byOutcome {
		out.ByOutcome[k] = v
	}
	for k, v := range s.byBot {
		out.ByBot[k] = v
	}
	if s.trackKeys {
		out.ByKey = make(map[string]Counters, len(s.byKey))
		for k, v := range s.byKey {
			out.ByKey[k] = v
		}
	}
	return out
}
