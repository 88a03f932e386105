package infra

import (
	"container/list"
	"context"
	"sync"

	"document-gateway/docflow/domain"
)

var _ domain.Queue = (*SubmissionQueue)(nil)

// Queue é uma fila FIFO ilimitada e segura para vários produtores.
//
// Enqueue nunca espera por capacidade, só pelo mutex. Dequeue bloqueia o
// consumidor até haver item, Close, ou ctx encerrar. O sinal de chegada é um
// channel de capacidade 1, então um Dequeue pode acordar sem item e volta a
// esperar.
type Queue[T any] struct {
	mu     sync.Mutex
	items  *list.List
	closed bool
	notify chan struct{}
	done   chan struct{}
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		items:  list.New(),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue adiciona no fim. Retorna domain.ErrQueueClosed depois de Close.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return domain.ErrQueueClosed
	}
	q.items.PushBack(item)
	q.mu.Unlock()

	q.signal()
	return nil
}

// RequeueFront devolve item para a cabeça. Aceito mesmo com a fila fechada,
// para que Close o conte como abandonado.
func (q *Queue[T]) RequeueFront(item T) {
	q.mu.Lock()
	q.items.PushFront(item)
	q.mu.Unlock()

	q.signal()
}

func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return zero, domain.ErrQueueClosed
		}
		if front := q.items.Front(); front != nil {
			q.items.Remove(front)
			q.mu.Unlock()
			return front.Value.(T), nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close impede novos Enqueue, acorda consumidores bloqueados e retorna os
// itens que ficaram na fila. Chamadas seguintes retornam nil.
func (q *Queue[T]) Close() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return q.drainLocked()
}

// Drain remove e retorna tudo que está na fila (ex: itens devolvidos por
// RequeueFront depois de Close).
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drainLocked()
}

func (q *Queue[T]) drainLocked() []T {
	out := make([]T, 0, q.items.Len())
	for e := q.items.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(T))
	}
	q.items.Init()
	return out
}

func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// SubmissionQueue é a fila concreta do gateway.
type SubmissionQueue = Queue[domain.SubmissionRequest]

func NewSubmissionQueue() *SubmissionQueue {
	return NewQueue[domain.SubmissionRequest]()
}
