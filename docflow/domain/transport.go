package domain

import "context"

// Response é o resultado bruto de uma entrega.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK indica status 2xx.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport entrega um payload já serializado ao serviço remoto.
//
// Erros de rede são retornados como error; status não-2xx vêm em Response.
// O dispatcher trata os dois casos da mesma forma (loga e descarta).
type Transport interface {
	Send(ctx context.Context, payload []byte, contentType, authToken string) (Response, error)
}

// Serializer transforma documento+assinatura no payload de transporte.
type Serializer interface {
	Encode(doc Document, signature string) ([]byte, error)
	ContentType() string
}
