// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - RateWindow: janela fixa em memória com relógio injetável
//   - RedisWindow: a mesma janela compartilhada entre processos via Redis
//   - Queue: fila FIFO ilimitada com requeue na cabeça
//   - HTTPTransport/PacedTransport: entrega HTTP, com espaçamento opcional (x/time/rate)
//   - JSONSerializer, MemoryStatsStore, RedisStatsStore
package infra
