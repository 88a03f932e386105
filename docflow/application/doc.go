// Package application contém o caso de uso de despacho: o loop que retira
// pedidos da fila, consulta a janela de admissão e entrega ao Transport.
//
// Ele depende apenas do pacote domain e não conhece net/http nem Redis.
package application
