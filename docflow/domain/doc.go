// Package domain define contratos e tipos de domínio do envio de documentos
// com limite de taxa.
//
// Aqui vivem o documento e o pedido de envio, as portas que o dispatcher
// consome (Queue, Window, Transport, Serializer, Clock, StatsStore) e os
// erros que atravessam as camadas. Só stdlib: as implementações ficam em infra.
package domain
