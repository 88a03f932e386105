package infra

import (
	"context"

	"document-gateway/docflow/domain"

	"golang.org/x/time/rate"
)

var _ domain.Transport = (*PacedTransport)(nil)

// PacedTransport espaça as entregas com um token bucket (x/time/rate) antes de
// delegar para o próximo Transport.
//
// Não substitui a janela de admissão: só evita que as `limit` entregas de uma
// janela saiam coladas umas nas outras.
type PacedTransport struct {
	next domain.Transport
	lim  *rate.Limiter
}

func NewPacedTransport(next domain.Transport, rps float64, burst int) *PacedTransport {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &PacedTransport{next: next, lim: rate.NewLimiter(limit, burst)}
}

func (p *PacedTransport) RPS() float64 { return float64(p.lim.Limit()) }
func (p *PacedTransport) Burst() int   { return p.lim.Burst() }

func (p *PacedTransport) Send(ctx context.Context, payload []byte, contentType, authToken string) (domain.Response, error) {
	if err := p.lim.Wait(ctx); err != nil {
		return domain.Response{}, &domain.TransportError{Err: err}
	}
	return p.next.Send(ctx, payload, contentType, authToken)
}
