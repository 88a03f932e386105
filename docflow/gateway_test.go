package docflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"document-gateway/docflow/application"
	"document-gateway/docflow/domain"
	"document-gateway/docflow/infra"
	"document-gateway/internal/fakeclock"
	"document-gateway/internal/registrystub"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type delivery struct {
	DocID string
	At    time.Time
}

// recorder é um domain.Transport que guarda doc_id e instante de cada envio.
type recorder struct {
	clock domain.Clock

	mu  sync.Mutex
	got []delivery
}

func (r *recorder) Send(_ context.Context, payload []byte, _, _ string) (domain.Response, error) {
	var env struct {
		Document domain.Document `json:"document"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return domain.Response{}, err
	}
	r.mu.Lock()
	r.got = append(r.got, delivery{DocID: env.Document.DocID, At: r.clock.Now()})
	r.mu.Unlock()
	return domain.Response{StatusCode: http.StatusOK}, nil
}

func (r *recorder) Deliveries() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]delivery, len(r.got))
	copy(out, r.got)
	return out
}

func doc(id string) domain.Document {
	return domain.Document{DocID: id, DocType: "LP_INTRODUCE_GOODS", DocStatus: "pending"}
}

func shutdown(t *testing.T, g *Gateway) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, g.Shutdown(ctx))
}

func TestNew_InvalidConfiguration(t *testing.T) {
	for _, tc := range []struct {
		window time.Duration
		limit  int
	}{
		{time.Second, 0},
		{time.Second, -1},
		{0, 3},
		{-time.Second, 3},
	} {
		g, err := New(tc.window, tc.limit, WithLogger(zap.NewNop()))
		assert.Nil(t, g)
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration, "window=%s limit=%d", tc.window, tc.limit)
	}
}

func TestNew_InvalidEndpoint(t *testing.T) {
	g, err := New(time.Second, 1, WithEndpoint("not a url"), WithLogger(zap.NewNop()))
	assert.Nil(t, g)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestGateway_FiveDocumentsThreePerSecond(t *testing.T) {
	clock := fakeclock.New(t0)
	rec := &recorder{clock: clock}
	stats := infra.NewMemoryStatsStore()

	g, err := New(time.Second, 3,
		WithClock(clock),
		WithTransport(rec),
		WithStats(stats),
		WithRollInterval(time.Hour),
		WithLogger(zap.NewNop()))
	require.NoError(t, err)
	assert.Equal(t, time.Second, g.Window())
	assert.Equal(t, 3, g.Limit())

	for i := 1; i <= 5; i++ {
		_, err := g.Submit(doc(fmt.Sprint(i)), "signature")
		require.NoError(t, err)
	}
	assert.Equal(t, 5, g.Pending())

	require.NoError(t, g.Start(context.Background()))
	require.Eventually(t, func() bool { return len(rec.Deliveries()) == 5 }, 2*time.Second, time.Millisecond)
	shutdown(t, g)

	got := rec.Deliveries()
	for i, d := range got {
		assert.Equal(t, fmt.Sprint(i+1), d.DocID)
	}
	assert.Equal(t, t0, got[2].At)
	assert.Equal(t, t0.Add(time.Second), got[3].At)
	assert.Equal(t, t0.Add(time.Second), got[4].At)
	assert.Equal(t, infra.Counters{Sent: 5, Deferred: 1}, stats.Total())
	assert.Equal(t, application.StateStopped, g.State())
}

func TestGateway_ConcurrentSubmitsDeliveredExactlyOnce(t *testing.T) {
	const producers, each, limit = 8, 25, 5
	clock := fakeclock.New(t0)
	rec := &recorder{clock: clock}

	g, err := New(time.Second, limit,
		WithClock(clock),
		WithTransport(rec),
		WithRollInterval(time.Hour),
		WithLogger(zap.NewNop()))
	require.NoError(t, err)
	require.NoError(t, g.Start(context.Background()))

	var wg sync.WaitGroup
	ids := make(chan string, producers*each)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				id, err := g.Submit(doc(fmt.Sprintf("%d-%d", p, i)), "sig")
				if err != nil {
					t.Errorf("submit: %v", err)
					return
				}
				ids <- id
			}
		}(p)
	}
	wg.Wait()
	close(ids)

	unique := make(map[string]struct{})
	for id := range ids {
		unique[id] = struct{}{}
	}
	assert.Len(t, unique, producers*each, "request ids are unique")

	require.Eventually(t, func() bool { return len(rec.Deliveries()) == producers*each }, 5*time.Second, time.Millisecond)
	shutdown(t, g)

	seen := make(map[string]int)
	perWindow := make(map[int64]int)
	lastByProducer := make(map[string]int)
	for _, d := range rec.Deliveries() {
		seen[d.DocID]++
		perWindow[int64(d.At.Sub(t0)/time.Second)]++

		var p, i int
		_, err := fmt.Sscanf(d.DocID, "%d-%d", &p, &i)
		require.NoError(t, err)
		key := fmt.Sprint(p)
		if last, ok := lastByProducer[key]; ok {
			assert.Greater(t, i, last, "producer %d out of order", p)
		}
		lastByProducer[key] = i
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "doc %s", id)
	}
	for idx, n := range perWindow {
		assert.LessOrEqual(t, n, limit, "window %d", idx)
	}
}

func TestGateway_ShutdownBeforeStartAbandonsQueue(t *testing.T) {
	clock := fakeclock.New(t0)
	rec := &recorder{clock: clock}
	stats := infra.NewMemoryStatsStore()

	g, err := New(time.Second, 3, WithClock(clock), WithTransport(rec), WithStats(stats), WithLogger(zap.NewNop()))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := g.Submit(doc(fmt.Sprint(i)), "sig")
		require.NoError(t, err)
	}

	shutdown(t, g)

	_, err = g.Submit(doc("late"), "sig")
	assert.ErrorIs(t, err, domain.ErrCancelledSubmission)
	assert.Empty(t, rec.Deliveries())
	assert.Equal(t, infra.Counters{Abandoned: 2}, stats.Total())
	assert.Equal(t, 0, g.Pending())
}

func TestGateway_Lifecycle(t *testing.T) {
	clock := fakeclock.New(t0)
	g, err := New(time.Second, 3, WithClock(clock), WithTransport(&recorder{clock: clock}), WithLogger(zap.NewNop()))
	require.NoError(t, err)

	require.NoError(t, g.Start(context.Background()))
	assert.ErrorIs(t, g.Start(context.Background()), ErrAlreadyStarted)

	shutdown(t, g)
	shutdown(t, g)
	assert.ErrorIs(t, g.Start(context.Background()), ErrShutDown)
	assert.Equal(t, application.StateStopped, g.State())
}

func TestGateway_ParentContextStopsDispatcher(t *testing.T) {
	clock := fakeclock.New(t0)
	g, err := New(time.Second, 3, WithClock(clock), WithTransport(&recorder{clock: clock}), WithLogger(zap.NewNop()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, g.Start(ctx))
	cancel()

	require.Eventually(t, func() bool { return g.queue.Closed() }, time.Second, time.Millisecond)
	assert.Equal(t, application.StateStopped, g.State())

	id, err := g.Submit(doc("late"), "sig")
	assert.Empty(t, id)
	assert.ErrorIs(t, err, domain.ErrCancelledSubmission)
	assert.Equal(t, 0, g.Pending())
	shutdown(t, g)
}

type denyAll struct{}

func (denyAll) TryAdmit(context.Context) (domain.Decision, error) {
	return domain.Decision{Allowed: false, RetryAfter: time.Hour}, nil
}

// stuckClock nunca dispara After.
type stuckClock struct{}

func (stuckClock) Now() time.Time                       { return t0 }
func (stuckClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

func TestGateway_ParentContextAbandonsQueuedRequests(t *testing.T) {
	stats := infra.NewMemoryStatsStore()
	g, err := New(time.Second, 1,
		WithClock(stuckClock{}),
		WithWindow(denyAll{}),
		WithTransport(&recorder{clock: stuckClock{}}),
		WithStats(stats),
		WithLogger(zap.NewNop()))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := g.Submit(doc(fmt.Sprint(i)), "sig")
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, g.Start(ctx))
	require.Eventually(t, func() bool { return g.State() == application.StateWaitingForWindow }, time.Second, time.Millisecond)
	cancel()

	// o pedido em espera volta para a fila e entra na conta junto com o outro
	require.Eventually(t, func() bool { return stats.Total().Abandoned == 2 }, time.Second, time.Millisecond)
	_, err = g.Submit(doc("late"), "sig")
	assert.ErrorIs(t, err, domain.ErrCancelledSubmission)

	shutdown(t, g)
	assert.Equal(t, infra.Counters{Deferred: 1, Abandoned: 2}, stats.Total())
}

// gate é um transporte que segura cada envio até release.
type gate struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) Send(context.Context, []byte, string, string) (domain.Response, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return domain.Response{StatusCode: http.StatusOK}, nil
}

func TestGateway_ShutdownWaitsForInFlightSend(t *testing.T) {
	clock := fakeclock.New(t0)
	tr := newGate()
	stats := infra.NewMemoryStatsStore()

	g, err := New(time.Second, 5, WithClock(clock), WithTransport(tr), WithStats(stats), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	require.NoError(t, g.Start(context.Background()))

	for i := 0; i < 2; i++ {
		_, err := g.Submit(doc(fmt.Sprint(i)), "sig")
		require.NoError(t, err)
	}
	<-tr.started

	errCh := make(chan error, 1)
	go func() { errCh <- g.Shutdown(context.Background()) }()

	select {
	case <-errCh:
		t.Fatalf("shutdown returned before the in-flight send finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(tr.release)
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("shutdown did not return")
	}

	assert.Equal(t, infra.Counters{Sent: 1, Abandoned: 1}, stats.Total())
}

func TestGateway_ShutdownHonorsContext(t *testing.T) {
	clock := fakeclock.New(t0)
	tr := newGate()
	defer close(tr.release)
	stats := infra.NewMemoryStatsStore()

	g, err := New(time.Second, 5, WithClock(clock), WithTransport(tr), WithStats(stats), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	require.NoError(t, g.Start(context.Background()))

	for i := 1; i <= 3; i++ {
		_, err = g.Submit(doc(fmt.Sprint(i)), "sig")
		require.NoError(t, err)
	}
	<-tr.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.Shutdown(ctx), context.DeadlineExceeded)

	// os dois que esperavam na fila já foram contabilizados, sem depender do envio em voo
	assert.Equal(t, infra.Counters{Abandoned: 2}, stats.Total())
	assert.NoError(t, g.Shutdown(context.Background()))
	assert.Equal(t, int64(2), stats.Total().Abandoned, "repeated shutdown does not count twice")
}

func TestGateway_EndToEndAgainstRegistryStub(t *testing.T) {
	stub := registrystub.New(registrystub.WithAuthToken("secret"))
	srv := httptest.NewServer(stub)
	defer srv.Close()

	window := 200 * time.Millisecond
	g, err := New(window, 2,
		WithEndpoint(srv.URL+registrystub.CreatePath),
		WithHTTPClient(srv.Client()),
		WithAuthToken("secret"),
		WithSendTimeout(time.Second),
		WithLogger(zap.NewNop()))
	require.NoError(t, err)
	require.NoError(t, g.Start(context.Background()))

	for i := 1; i <= 5; i++ {
		_, err := g.Submit(doc(fmt.Sprint(i)), "signature")
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return len(stub.Received()) == 5 }, 3*time.Second, 5*time.Millisecond)
	shutdown(t, g)

	got := stub.Received()
	for i, r := range got {
		assert.Equal(t, fmt.Sprint(i+1), r.Document.DocID)
		assert.Equal(t, "signature", r.Signature)
	}
	// o terceiro só sai na segunda janela e o quinto na terceira
	assert.GreaterOrEqual(t, got[2].At.Sub(got[0].At), window/2)
	assert.GreaterOrEqual(t, got[4].At.Sub(got[0].At), window+window/2)
}

func TestGateway_SharedRedisWindow(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := fakeclock.New(t0)
	rw, err := infra.NewRedisWindow(client, time.Second, 2, infra.WithRedisWindowClock(clock))
	require.NoError(t, err)

	rec := &recorder{clock: clock}
	g, err := New(time.Second, 2, WithClock(clock), WithWindow(rw), WithTransport(rec), WithLogger(zap.NewNop()))
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		_, err := g.Submit(doc(fmt.Sprint(i)), "sig")
		require.NoError(t, err)
	}
	require.NoError(t, g.Start(context.Background()))
	require.Eventually(t, func() bool { return len(rec.Deliveries()) == 4 }, 2*time.Second, time.Millisecond)
	shutdown(t, g)

	got := rec.Deliveries()
	assert.Equal(t, t0, got[1].At)
	assert.Equal(t, t0.Add(time.Second), got[2].At)
	assert.Equal(t, t0.Add(time.Second), got[3].At)
}
