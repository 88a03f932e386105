package infra

import (
	"context"
	"sync"

	"document-gateway/docflow/domain"
)

type Counters struct {
	Sent      int64
	Failed    int64
	Deferred  int64
	Abandoned int64
}

func (c *Counters) add(o domain.Outcome) {
	switch o {
	case domain.OutcomeSent:
		c.Sent++
	case domain.OutcomeFailed:
		c.Failed++
	case domain.OutcomeDeferred:
		c.Deferred++
	case domain.OutcomeAbandoned:
		c.Abandoned++
	}
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e para o demo.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu        sync.Mutex
	total     Counters
	byDocType map[string]Counters

	trackDocTypes bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackDocTypes(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackDocTypes = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byDocType: make(map[string]Counters),
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
	if s.trackDocTypes && ev.DocType != "" {
		c := s.byDocType[ev.DocType]
		c.add(ev.Outcome)
		s.byDocType[ev.DocType] = c
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByDocType() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byDocType))
	for k, v := range s.byDocType {
		out[k] = v
	}
	return out
}
