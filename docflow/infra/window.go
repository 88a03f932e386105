package infra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"document-gateway/docflow/domain"
)

var _ domain.Window = (*RateWindow)(nil)

// RateWindow é uma janela fixa em memória: no máximo `limit` admissões a cada
// `window`, com fronteiras em origin + k*window.
//
// O contador volta a zero pela passagem do tempo (lido do Clock), haja ou não
// admissões no intervalo. count e windowStart ficam sob o mesmo mutex.
type RateWindow struct {
	mu          sync.Mutex
	clock       domain.Clock
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
}

type WindowSnapshot struct {
	Count       int
	Limit       int
	WindowStart time.Time
}

type RateWindowOption func(*RateWindow)

func WithWindowClock(c domain.Clock) RateWindowOption {
	return func(w *RateWindow) {
		if c != nil {
			w.clock = c
		}
	}
}

func NewRateWindow(window time.Duration, limit int, opts ...RateWindowOption) (*RateWindow, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be >= 1, got %d", domain.ErrInvalidConfiguration, limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("%w: window must be > 0, got %s", domain.ErrInvalidConfiguration, window)
	}

	w := &RateWindow{
		clock:  SystemClock{},
		limit:  limit,
		window: window,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.windowStart = w.clock.Now()
	return w, nil
}

func (w *RateWindow) Limit() int              { return w.limit }
func (w *RateWindow) Duration() time.Duration { return w.window }

// TryAdmit implementa domain.Window. Nunca retorna erro.
func (w *RateWindow) TryAdmit(context.Context) (domain.Decision, error) {
	now := w.clock.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.roll(now)
	if w.count < w.limit {
		w.count++
		return domain.Decision{Allowed: true}, nil
	}

	retry := w.windowStart.Add(w.window).Sub(now)
	if retry <= 0 {
		retry = w.window
	}
	return domain.Decision{Allowed: false, RetryAfter: retry}, nil
}

// Reset zera o contador e reinicia a janela no instante atual.
func (w *RateWindow) Reset() {
	now := w.clock.Now()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.count = 0
	w.windowStart = now
}

// Snapshot lê o estado sem fechar janelas; o reset por tempo acontece em
// TryAdmit e no roller.
func (w *RateWindow) Snapshot() WindowSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WindowSnapshot{Count: w.count, Limit: w.limit, WindowStart: w.windowStart}
}

// roll avança windowStart até a janela que contém now. Chamar com mu travado.
// Relógio voltando no tempo não reabre capacidade.
func (w *RateWindow) roll(now time.Time) {
	elapsed := now.Sub(w.windowStart)
	if elapsed < w.window {
		return
	}
	n := elapsed / w.window
	w.windowStart = w.windowStart.Add(n * w.window)
	w.count = 0
}

// StartRoller inicia uma goroutine que fecha janelas expiradas periodicamente,
// para que Snapshot reflita o reset mesmo sem tráfego.
// Pare cancelando o contexto.
func (w *RateWindow) StartRoller(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		return errors.New("roller interval must be > 0")
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				now := w.clock.Now()
				w.mu.Lock()
				w.roll(now)
				w.mu.Unlock()
			}
		}
	}()
	return nil
}
