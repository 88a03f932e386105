package infra

import (
	"time"

	"document-gateway/docflow/domain"
)

var _ domain.Clock = SystemClock{}

// SystemClock é o relógio de parede.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
