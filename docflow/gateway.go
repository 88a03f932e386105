package docflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"document-gateway/docflow/application"
	"document-gateway/docflow/domain"
	"document-gateway/docflow/infra"
	"document-gateway/internal/log"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrAlreadyStarted = errors.New("gateway already started")
	ErrShutDown       = errors.New("gateway is shut down")
)

// Gateway recebe pedidos de qualquer goroutine e os entrega, um por vez,
// sem passar de `limit` envios por janela de `window`.
type Gateway struct {
	window time.Duration
	limit  int

	queue      *infra.SubmissionQueue
	rate       domain.Window
	local      *infra.RateWindow // nil quando a janela veio de WithWindow
	dispatcher *application.Dispatcher
	clock      domain.Clock
	stats      domain.StatsStore
	logger     *zap.Logger
	rollEvery  time.Duration

	mu       sync.Mutex
	started  bool
	shutdown bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// New valida a configuração e monta o gateway. Nenhuma goroutine é iniciada
// até Start. limit < 1 ou window <= 0 retornam domain.ErrInvalidConfiguration.
func New(window time.Duration, limit int, opts ...Option) (*Gateway, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be >= 1, got %d", domain.ErrInvalidConfiguration, limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("%w: window must be > 0, got %s", domain.ErrInvalidConfiguration, window)
	}

	o := options{
		serializer: infra.JSONSerializer{},
		clock:      infra.SystemClock{},
		endpoint:   infra.DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Logger()
	}
	if o.rollEvery <= 0 {
		o.rollEvery = window
	}

	if o.transport == nil {
		var topts []infra.HTTPTransportOption
		if o.httpClient != nil {
			topts = append(topts, infra.WithHTTPClient(o.httpClient))
		}
		t, err := infra.NewHTTPTransport(o.endpoint, topts...)
		if err != nil {
			return nil, err
		}
		o.transport = t
	}

	g := &Gateway{
		window:    window,
		limit:     limit,
		queue:     infra.NewSubmissionQueue(),
		clock:     o.clock,
		stats:     o.stats,
		logger:    o.logger,
		rollEvery: o.rollEvery,
	}

	if o.window != nil {
		g.rate = o.window
	} else {
		rw, err := infra.NewRateWindow(window, limit, infra.WithWindowClock(o.clock))
		if err != nil {
			return nil, err
		}
		g.rate = rw
		g.local = rw
	}

	g.dispatcher = &application.Dispatcher{
		Queue:          g.queue,
		Window:         g.rate,
		Transport:      o.transport,
		Serializer:     o.serializer,
		Clock:          o.clock,
		Stats:          o.stats,
		Logger:         o.logger.Named("dispatcher"),
		AuthToken:      o.authToken,
		WindowDuration: window,
		SendTimeout:    o.sendTimeout,
	}
	return g, nil
}

// Start inicia o dispatcher. O ctx controla a vida do worker junto com Shutdown:
// quando ele encerra, a fila é fechada e os pedidos pendentes são abandonados.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.shutdown {
		return ErrShutDown
	}
	if g.started {
		return ErrAlreadyStarted
	}
	g.started = true

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan struct{})

	if g.local != nil {
		if err := g.local.StartRoller(runCtx, g.rollEvery); err != nil {
			g.logger.Warn("window roller not started", zap.Error(err))
		}
	}

	go func() {
		defer close(g.done)
		if err := g.dispatcher.Run(runCtx); err != nil {
			g.logger.Error("dispatcher exited", zap.Error(err))
		}
		// sem worker ninguém mais entrega: fecha a fila para Submit falhar e
		// contabiliza o que ficou (inclusive pedidos devolvidos após um Close)
		left := append(g.queue.Close(), g.queue.Drain()...)
		if len(left) > 0 {
			g.logger.Warn("dispatcher stopped with queued requests", zap.Int("abandoned", len(left)))
			g.recordAbandoned(runCtx, left)
		}
	}()

	g.logger.Info("gateway started",
		zap.Duration("window", g.window),
		zap.Int("limit", g.limit))
	return nil
}

// Submit enfileira o documento e retorna o ID do pedido. Não bloqueia além do
// lock da fila. Depois do início do shutdown retorna domain.ErrCancelledSubmission.
func (g *Gateway) Submit(doc domain.Document, signature string) (string, error) {
	req := domain.SubmissionRequest{
		ID:          uuid.NewString(),
		Document:    doc,
		Signature:   signature,
		SubmittedAt: g.clock.Now(),
	}

	if err := g.queue.Enqueue(req); err != nil {
		if errors.Is(err, domain.ErrQueueClosed) {
			return "", domain.ErrCancelledSubmission
		}
		return "", err
	}

	g.logger.Debug("document queued",
		zap.String("request_id", req.ID),
		zap.String("doc_id", doc.DocID))
	return req.ID, nil
}

// Shutdown para de aceitar pedidos, acorda o dispatcher e espera a entrega em
// andamento terminar (limitado por ctx). Pedidos ainda na fila são abandonados
// e contabilizados mesmo quando ctx vence antes.
// Chamadas repetidas retornam nil.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if g.shutdown {
		g.mu.Unlock()
		return nil
	}
	g.shutdown = true
	cancel, done := g.cancel, g.done
	g.mu.Unlock()

	abandoned := g.queue.Close()
	g.recordAbandoned(ctx, abandoned)
	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			// o worker ainda contabiliza o que for devolvido até terminar
			g.logger.Warn("shutdown timed out waiting for in-flight send",
				zap.Int("abandoned", len(abandoned)),
				zap.Error(ctx.Err()))
			return ctx.Err()
		}
	}

	g.logger.Info("gateway stopped", zap.Int("abandoned", len(abandoned)))
	return nil
}

func (g *Gateway) recordAbandoned(ctx context.Context, reqs []domain.SubmissionRequest) {
	if g.stats == nil {
		return
	}
	now := g.clock.Now()
	for _, r := range reqs {
		_ = g.stats.Record(context.WithoutCancel(ctx), domain.StatsEvent{
			RequestID: r.ID,
			DocID:     r.Document.DocID,
			DocType:   r.Document.DocType,
			Outcome:   domain.OutcomeAbandoned,
			At:        now,
		})
	}
}

// Pending é o número de pedidos aguardando na fila (sem contar o em voo).
func (g *Gateway) Pending() int { return g.queue.Len() }

func (g *Gateway) State() application.State { return g.dispatcher.State() }

func (g *Gateway) Window() time.Duration { return g.window }
func (g *Gateway) Limit() int            { return g.limit }
