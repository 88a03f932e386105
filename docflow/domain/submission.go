package domain

import (
	"context"
	"time"
)

// SubmissionRequest é o par {documento, assinatura} criado no Submit.
//
// É tratado como valor imutável: a fila é dona do pedido até o dispatcher
// retirá-lo, e em nenhum momento ele está na fila e em voo ao mesmo tempo.
type SubmissionRequest struct {
	ID          string
	Document    Document
	Signature   string
	SubmittedAt time.Time
}

// Queue é a fila de entrega usada pelo dispatcher (único consumidor).
//
// Dequeue bloqueia até haver item, a fila fechar (ErrQueueClosed) ou ctx encerrar.
// RequeueFront devolve um pedido negado para a cabeça da fila.
type Queue interface {
	Dequeue(ctx context.Context) (SubmissionRequest, error)
	RequeueFront(SubmissionRequest)
	Len() int
}
