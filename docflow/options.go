package docflow

import (
	"net/http"
	"time"

	"document-gateway/docflow/domain"

	"go.uber.org/zap"
)

type options struct {
	transport   domain.Transport
	serializer  domain.Serializer
	clock       domain.Clock
	window      domain.Window
	stats       domain.StatsStore
	logger      *zap.Logger
	authToken   string
	endpoint    string
	httpClient  *http.Client
	sendTimeout time.Duration
	rollEvery   time.Duration
}

type Option func(*options)

// WithTransport troca o transporte HTTP padrão.
func WithTransport(t domain.Transport) Option {
	return func(o *options) { o.transport = t }
}

func WithSerializer(s domain.Serializer) Option {
	return func(o *options) { o.serializer = s }
}

func WithClock(c domain.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithWindow usa uma janela de admissão própria (ex: infra.RedisWindow)
// em vez da janela em memória. A janela deve aplicar o mesmo limite.
func WithWindow(w domain.Window) Option {
	return func(o *options) { o.window = w }
}

func WithStats(s domain.StatsStore) Option {
	return func(o *options) { o.stats = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithAuthToken(token string) Option {
	return func(o *options) { o.authToken = token }
}

// WithEndpoint define a URL do transporte HTTP padrão. Ignorado com WithTransport.
func WithEndpoint(url string) Option {
	return func(o *options) { o.endpoint = url }
}

// WithHTTPClient define o *http.Client do transporte padrão. Ignorado com WithTransport.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func WithSendTimeout(d time.Duration) Option {
	return func(o *options) { o.sendTimeout = d }
}

// WithRollInterval define a frequência com que a janela em memória fecha
// janelas expiradas em segundo plano. Se 0, usa a própria duração da janela.
func WithRollInterval(d time.Duration) Option {
	return func(o *options) { o.rollEvery = d }
}
