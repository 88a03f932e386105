package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"document-gateway/docflow/domain"

	"github.com/redis/go-redis/v9"
)

// StatsBucket é a granularidade da série temporal gravada no Redis.
type StatsBucket int

const (
	StatsBucketNone StatsBucket = iota
	StatsBucketMinute
	StatsBucketHour
)

// ParseStatsBucket aceita "none", "minute" e "hour" (sem diferenciar caixa).
func ParseStatsBucket(s string) (StatsBucket, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return StatsBucketNone, nil
	case "minute":
		return StatsBucketMinute, nil
	case "hour":
		return StatsBucketHour, nil
	}
	return StatsBucketNone, fmt.Errorf("%w: unknown stats bucket %q", domain.ErrInvalidConfiguration, s)
}

func (b StatsBucket) String() string {
	switch b {
	case StatsBucketMinute:
		return "minute"
	case StatsBucketHour:
		return "hour"
	}
	return "none"
}

func (b StatsBucket) layout() string {
	switch b {
	case StatsBucketMinute:
		return "200601021504"
	case StatsBucketHour:
		return "2006010215"
	}
	return ""
}

// RedisStatsStore conta resultados de entrega em hashes (campo = outcome).
//
//	<prefix>:total              cumulativo, sem TTL
//	<prefix>:<bucket>:<instante> série temporal, com TTL
//	<prefix>:doctype:<tipo>     por tipo de documento, com TTL (opcional)
type RedisStatsStore struct {
	rdb           redis.Cmdable
	prefix        string
	ttl           time.Duration
	bucket        StatsBucket
	trackDocTypes bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

// WithStatsTTL define a expiração das chaves de série e por tipo. 0 desliga.
func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(b StatsBucket) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = b }
}

func WithStatsTrackDocTypes(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackDocTypes = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "docflow:stats",
		ttl:    24 * time.Hour,
		bucket: StatsBucketMinute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) TotalKey() string { return s.prefix + ":total" }

// BucketKey retorna a chave da série para at, ou "" com StatsBucketNone.
func (s *RedisStatsStore) BucketKey(at time.Time) string {
	layout := s.bucket.layout()
	if layout == "" {
		return ""
	}
	return s.prefix + ":" + s.bucket.String() + ":" + at.UTC().Format(layout)
}

func (s *RedisStatsStore) DocTypeKey(docType string) string {
	return s.prefix + ":doctype:" + docType
}

// Record incrementa o outcome do evento em todas as chaves aplicáveis num
// único pipeline.
func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil || ev.Outcome == "" {
		return nil
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	var expiring []string
	if k := s.BucketKey(at); k != "" {
		expiring = append(expiring, k)
	}
	if dt := strings.TrimSpace(ev.DocType); s.trackDocTypes && dt != "" {
		expiring = append(expiring, s.DocTypeKey(dt))
	}

	field := string(ev.Outcome)
	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.TotalKey(), field, 1)
	for _, k := range expiring {
		pipe.HIncrBy(ctx, k, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, k, s.ttl)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}
