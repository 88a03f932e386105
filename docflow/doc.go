// Package docflow é a fachada do cliente de registro de documentos com limite de taxa.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (documento, pedido, janela, transporte)
//   - application: o Dispatcher (loop único de entrega) sem net/http
//   - infra: implementações concretas (janela em memória/Redis, fila, HTTP, stats)
//   - docflow (este pacote): Gateway, wiring das opções e ciclo de vida
//
// Fluxo:
//
//  1. Submit empacota documento+assinatura e enfileira (retorna na hora)
//  2. O Dispatcher retira da fila e consulta a janela de admissão
//  3. Se admitido, entrega via Transport; falhas são logadas e descartadas
//  4. Se negado, espera a próxima janela e devolve o pedido para a cabeça da fila
//
// O ciclo de vida é explícito: New não inicia goroutines; Start inicia o
// dispatcher e Shutdown o encerra.
package docflow
