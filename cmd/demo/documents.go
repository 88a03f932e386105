package main

import (
	"fmt"
	"time"

	"document-gateway/docflow/domain"
)

// sampleDocument monta um documento de introdução de mercadorias com
// valores fixos e datas de hoje. i entra na UIT para diferenciar os produtos.
func sampleDocument(i int, now time.Time) domain.Document {
	today := domain.NewDate(now)
	return domain.Document{
		Description:    &domain.Description{ParticipantInn: "999"},
		DocID:          "123",
		DocStatus:      "pending",
		DocType:        "LP_INTRODUCE_GOODS",
		ImportRequest:  true,
		OwnerInn:       "456",
		ParticipantInn: "789",
		ProducerInn:    "101112",
		ProductionDate: today,
		ProductionType: "type1",
		Products: []domain.Product{{
			CertificateDocument:       "cert1",
			CertificateDocumentDate:   today,
			CertificateDocumentNumber: "001",
			OwnerInn:                  "789",
			ProducerInn:               "101112",
			ProductionDate:            today,
			TnvedCode:                 "123456",
			UitCode:                   fmt.Sprintf("UIT-%03d", i+1),
			UituCode:                  fmt.Sprintf("UITU-%03d", i+1),
		}},
		RegDate:   today,
		RegNumber: "001",
	}
}
