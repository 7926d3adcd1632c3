// Package gate implementa o endpoint de relay do chat: CORS, método, bot,
// validação, janelas de rate limit por identidade e encaminhamento para o
// webhook do bot.
//
// Toda falha vira o mesmo contrato JSON:
//
//	{"error": "<motivo legível por máquina>", "output": "<frase fixa para o usuário>"}
//
// O campo output é o único texto que chega ao usuário final; detalhes
// internos (status e corpo do upstream, erros de rede, panics) vão só para o log.
package gate
