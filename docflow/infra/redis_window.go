package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"document-gateway/docflow/domain"

	"github.com/redis/go-redis/v9"
)

var _ domain.Window = (*RedisWindow)(nil)

// KEYS[1] = chave da janela atual
// ARGV[1] = limite
// ARGV[2] = duração da janela em ms (PEXPIRE)
//
// Retorna {1, count} quando admitido e {0, count} quando negado; negar não altera o contador.
var fixedWindowScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local limit = tonumber(ARGV[1])
if current < limit then
  current = redis.call("INCR", KEYS[1])
  if current == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[2])
  end
  return {1, current}
end
return {0, current}
`)

// RedisWindow é a janela fixa compartilhada entre processos.
//
// Fronteiras alinhadas à época Unix: a chave é prefix:<now/window>, e a
// expiração da chave no Redis descarta janelas antigas.
type RedisWindow struct {
	rdb    redis.Scripter
	clock  domain.Clock
	prefix string
	limit  int
	window time.Duration
}

type RedisWindowOption func(*RedisWindow)

func WithRedisWindowPrefix(prefix string) RedisWindowOption {
	return func(w *RedisWindow) { w.prefix = strings.Trim(prefix, ":") }
}

func WithRedisWindowClock(c domain.Clock) RedisWindowOption {
	return func(w *RedisWindow) {
		if c != nil {
			w.clock = c
		}
	}
}

func NewRedisWindow(rdb redis.Scripter, window time.Duration, limit int, opts ...RedisWindowOption) (*RedisWindow, error) {
	if rdb == nil {
		return nil, fmt.Errorf("%w: redis client is required", domain.ErrInvalidConfiguration)
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be >= 1, got %d", domain.ErrInvalidConfiguration, limit)
	}
	// chaves e PEXPIRE trabalham em ms; frações truncadas encolheriam a janela
	if window < time.Millisecond || window%time.Millisecond != 0 {
		return nil, fmt.Errorf("%w: window must be a whole number of milliseconds, got %s", domain.ErrInvalidConfiguration, window)
	}

	w := &RedisWindow{
		rdb:    rdb,
		clock:  SystemClock{},
		prefix: "docflow:window",
		limit:  limit,
		window: window,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *RedisWindow) TryAdmit(ctx context.Context) (domain.Decision, error) {
	nowMs := w.clock.Now().UnixMilli()
	windowMs := w.window.Milliseconds()
	index := nowMs / windowMs

	res, err := fixedWindowScript.Run(ctx, w.rdb, []string{w.key(index)}, w.limit, windowMs).Int64Slice()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("redis window: %w", err)
	}
	if len(res) < 1 {
		return domain.Decision{}, fmt.Errorf("redis window: unexpected script reply %v", res)
	}

	if res[0] == 1 {
		return domain.Decision{Allowed: true}, nil
	}
	retry := time.Duration((index+1)*windowMs-nowMs) * time.Millisecond
	return domain.Decision{Allowed: false, RetryAfter: retry}, nil
}

func (w *RedisWindow) key(index int64) string {
	return w.prefix + ":" + strconv.FormatInt(index, 10)
}
