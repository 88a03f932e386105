package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout é o formato de data aceito pela API de registro.
const DateLayout = "2006-01-02"

// Date é uma data de calendário (sem hora) serializada como "YYYY-MM-DD".
type Date struct {
	time.Time
}

// NewDate trunca t para o dia, no fuso de t.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, t.Location())}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// Description é o bloco "description" do documento.
type Description struct {
	ParticipantInn string `json:"participantInn"`
}

// Product representa um item (produto) do documento de introdução em circulação.
type Product struct {
	CertificateDocument       string `json:"certificate_document,omitempty"`
	CertificateDocumentDate   Date   `json:"certificate_document_date"`
	CertificateDocumentNumber string `json:"certificate_document_number,omitempty"`
	OwnerInn                  string `json:"owner_inn"`
	ProducerInn               string `json:"producer_inn"`
	ProductionDate            Date   `json:"production_date"`
	TnvedCode                 string `json:"tnved_code"`
	UitCode                   string `json:"uit_code,omitempty"`
	UituCode                  string `json:"uitu_code,omitempty"`
}

// Document é o documento enviado ao serviço de registro.
//
// O conteúdo é opaco para a fila e para o dispatcher: só o Serializer o inspeciona.
type Document struct {
	Description    *Description `json:"description,omitempty"`
	DocID          string       `json:"doc_id"`
	DocStatus      string       `json:"doc_status"`
	DocType        string       `json:"doc_type"`
	ImportRequest  bool         `json:"importRequest"`
	OwnerInn       string       `json:"owner_inn"`
	ParticipantInn string       `json:"participant_inn"`
	ProducerInn    string       `json:"producer_inn"`
	ProductionDate Date         `json:"production_date"`
	ProductionType string       `json:"production_type"`
	Products       []Product    `json:"products"`
	RegDate        Date         `json:"reg_date"`
	RegNumber      string       `json:"reg_number"`
}
