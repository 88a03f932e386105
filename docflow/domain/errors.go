package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrCancelledSubmission  = errors.New("submission cancelled: gateway is shutting down")
	ErrQueueClosed          = errors.New("queue closed")
)

func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelledSubmission)
}

func IsInvalidConfiguration(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}

// TransportError descreve uma entrega que falhou, por erro de rede (Err)
// ou por status diferente de 2xx (StatusCode/Body).
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport failure: %v", e.Err)
	}
	return fmt.Sprintf("transport failure: status %d: %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }
