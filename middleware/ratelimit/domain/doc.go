// Package domain define contratos e tipos de domínio para rate limit,
// concorrência e estatísticas do gateway de chat.
//
// Este pacote não depende de net/http nem de implementações concretas.
// Janelas deslizantes (Policy/Window), a decisão (Decision) e os stores
// (WindowStore, LimiterStore, StatsStore) ficam aqui; infra implementa.
package domain
