package domain

import (
	"context"
	"time"
)

// Window decide se um novo envio cabe na janela de admissão atual.
//
// TryAdmit incrementa o contador e retorna Allowed=true se ainda houver
// espaço; caso contrário retorna Allowed=false sem efeito colateral.
// A implementação pode ser em memória ou compartilhada (ex: Redis).
type Window interface {
	TryAdmit(ctx context.Context) (Decision, error)
}

type Decision struct {
	Allowed bool
	// RetryAfter é o tempo até a próxima fronteira de janela quando negado.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}

// Clock fornece o tempo atual e temporizadores. Injetável para testes determinísticos.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}
