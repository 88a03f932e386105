package application

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"document-gateway/docflow/domain"

	"go.uber.org/zap"
)

// Dispatcher é o único consumidor da fila. Ele serializa as entregas (um
// pedido em voo por vez) e respeita a janela de admissão.
//
// Pedidos negados pela janela esperam ao menos WindowDuration e voltam para a
// cabeça da fila. Falhas de entrega são logadas e o pedido é descartado.
type Dispatcher struct {
	Queue      domain.Queue
	Window     domain.Window
	Transport  domain.Transport
	Serializer domain.Serializer
	Clock      domain.Clock
	Stats      domain.StatsStore
	Logger     *zap.Logger

	AuthToken string
	// WindowDuration é a espera mínima de um pedido negado, e a espera usada
	// quando a própria janela falha.
	WindowDuration time.Duration
	// SendTimeout limita cada entrega. Se 0, só o Transport limita.
	SendTimeout time.Duration

	state atomic.Int32
}

func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

func (d *Dispatcher) setState(s State) {
	d.state.Store(int32(s))
}

// Run processa a fila até ctx encerrar ou a fila fechar. Uma entrega em andamento
// termina antes de Run retornar. Retorna nil em parada limpa.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.Queue == nil || d.Window == nil || d.Transport == nil || d.Serializer == nil || d.Clock == nil {
		d.setState(StateStopped)
		return errors.New("dispatcher: queue, window, transport, serializer and clock are required")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	defer d.setState(StateStopped)

	for {
		d.setState(StateIdle)
		req, err := d.Queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrQueueClosed) || ctx.Err() != nil {
				d.Logger.Debug("dispatcher stopped", zap.Error(err))
				return nil
			}
			d.Logger.Error("dequeue failed", zap.Error(err))
			continue
		}

		dec, err := d.Window.TryAdmit(ctx)
		if err != nil {
			d.Logger.Warn("admission check failed, deferring request",
				zap.String("request_id", req.ID), zap.Error(err))
			dec = domain.Decision{Allowed: false, RetryAfter: d.WindowDuration}
		}

		if !dec.Allowed {
			if !d.deferRequest(ctx, req, dec.RetryAfter) {
				return nil
			}
			continue
		}

		d.setState(StateSending)
		d.send(ctx, req)
	}
}

// deferRequest espera a próxima janela e devolve req para a cabeça da fila.
// Retorna false se a espera foi interrompida pelo shutdown.
func (d *Dispatcher) deferRequest(ctx context.Context, req domain.SubmissionRequest, retryAfter time.Duration) bool {
	d.setState(StateWaitingForWindow)

	// nunca antes de uma janela inteira; RetryAfter maior (janela externa) prevalece
	wait := d.WindowDuration
	if retryAfter > wait {
		wait = retryAfter
	}
	d.record(ctx, req, domain.OutcomeDeferred, 0)
	d.Logger.Debug("rate window exhausted, waiting",
		zap.String("request_id", req.ID),
		zap.Duration("retry_after", wait),
		zap.Int("queue_len", d.Queue.Len()))

	select {
	case <-d.Clock.After(wait):
		d.Queue.RequeueFront(req)
		return true
	case <-ctx.Done():
		// volta para a fila para ser contado como abandonado
		d.Queue.RequeueFront(req)
		return false
	}
}

func (d *Dispatcher) send(ctx context.Context, req domain.SubmissionRequest) {
	logger := d.Logger.With(zap.String("request_id", req.ID), zap.String("doc_id", req.Document.DocID))

	payload, err := d.Serializer.Encode(req.Document, req.Signature)
	if err != nil {
		logger.Error("failed to encode document", zap.Error(err))
		d.record(ctx, req, domain.OutcomeFailed, 0)
		return
	}
	logger.Debug("sending document", zap.Int("payload_bytes", len(payload)))

	// shutdown não interrompe uma entrega em andamento
	sendCtx := context.WithoutCancel(ctx)
	if d.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(sendCtx, d.SendTimeout)
		defer cancel()
	}

	resp, err := d.Transport.Send(sendCtx, payload, d.Serializer.ContentType(), d.AuthToken)
	if err != nil {
		logger.Error("failed to send document", zap.Error(err))
		d.record(ctx, req, domain.OutcomeFailed, resp.StatusCode)
		return
	}
	if !resp.OK() {
		terr := &domain.TransportError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
		logger.Error("document rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", resp.Body),
			zap.Error(terr))
		d.record(ctx, req, domain.OutcomeFailed, resp.StatusCode)
		return
	}

	logger.Debug("document sent", zap.Int("status", resp.StatusCode))
	d.record(ctx, req, domain.OutcomeSent, resp.StatusCode)
}

func (d *Dispatcher) record(ctx context.Context, req domain.SubmissionRequest, o domain.Outcome, status int) {
	if d.Stats == nil {
		return
	}
	_ = d.Stats.Record(context.WithoutCancel(ctx), domain.StatsEvent{
		RequestID:  req.ID,
		DocID:      req.Document.DocID,
		DocType:    req.Document.DocType,
		Outcome:    o,
		StatusCode: status,
		At:         d.Clock.Now(),
	})
}
