package domain

import (
	"context"
	"time"
)

// Outcome é o desfecho de um pedido observado pelo dispatcher ou pelo shutdown.
type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomeFailed    Outcome = "failed"
	OutcomeDeferred  Outcome = "deferred"
	OutcomeAbandoned Outcome = "abandoned"
)

// StatsEvent representa um evento de despacho.
//
// Observação: DocType tem cardinalidade baixa; RequestID não deve virar
// chave de série temporal.
type StatsEvent struct {
	RequestID  string
	DocID      string
	DocType    string
	Outcome    Outcome
	StatusCode int

	At time.Time
}

// StatsStore é a estratégia de persistência das estatísticas de despacho.
//
// O dispatcher trata erro como best-effort (não interrompe o loop).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
