package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"document-gateway/docflow/domain"
)

// DefaultEndpoint é o endpoint de criação de documentos da API de registro.
const DefaultEndpoint = "https://ismp.crpt.ru/api/v3/lk/documents/create"

const maxResponseBody = 1 << 20

var _ domain.Transport = (*HTTPTransport)(nil)

// HTTPTransport entrega o payload via POST com Authorization: Bearer.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
}

type HTTPTransportOption func(*HTTPTransport)

func WithHTTPClient(c *http.Client) HTTPTransportOption {
	return func(t *HTTPTransport) {
		if c != nil {
			t.client = c
		}
	}
}

func NewHTTPTransport(endpoint string, opts ...HTTPTransportOption) (*HTTPTransport, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid endpoint: %v", domain.ErrInvalidConfiguration, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: endpoint must be http(s), got %q", domain.ErrInvalidConfiguration, endpoint)
	}

	t := &HTTPTransport{
		endpoint: u.String(),
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *HTTPTransport) Endpoint() string { return t.endpoint }

func (t *HTTPTransport) Send(ctx context.Context, payload []byte, contentType, authToken string) (domain.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.Response{}, &domain.TransportError{Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return domain.Response{}, &domain.TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil && !errors.Is(err, io.EOF) {
		return domain.Response{StatusCode: resp.StatusCode}, &domain.TransportError{StatusCode: resp.StatusCode, Err: err}
	}
	return domain.Response{StatusCode: resp.StatusCode, Body: body}, nil
}
