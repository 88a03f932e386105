// Package log guarda o logger zap compartilhado pelos componentes.
package log

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger *zap.Logger
	once   sync.Once
)

// Logger retorna o logger global, criando um logger de produção na primeira chamada.
func Logger() *zap.Logger {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if logger == nil {
			l, err := zap.NewProduction()
			if err != nil {
				l = zap.NewNop()
			}
			logger = l
		}
	})

	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLogger substitui o logger global (ex: no main, depois de ler LOG_LEVEL).
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	once.Do(func() {})
	mu.Lock()
	logger = l
	mu.Unlock()
}

// New cria um logger JSON de produção no nível informado ("debug", "info", "warn", "error").
func New(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if s := strings.TrimSpace(level); s != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
			return nil, err
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
