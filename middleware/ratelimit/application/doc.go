// Package application contém os casos de uso do rate limit e do limite de
// concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, key) avalia a política de janelas deslizantes e
// BucketService.Decide(key) aplica o token bucket do flood guard.
package application
