package infra

import (
	"encoding/json"

	"document-gateway/docflow/domain"
)

var _ domain.Serializer = JSONSerializer{}

// envelope é o corpo esperado pelo endpoint de criação de documentos.
type envelope struct {
	Document  domain.Document `json:"document"`
	Signature string          `json:"signature"`
}

// JSONSerializer gera {"document": {...}, "signature": "..."}.
type JSONSerializer struct{}

func (JSONSerializer) Encode(doc domain.Document, signature string) ([]byte, error) {
	return json.Marshal(envelope{Document: doc, Signature: signature})
}

func (JSONSerializer) ContentType() string { return "application/json" }
