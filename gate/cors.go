package gate

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
)

const (
	corsAllowMethods = "POST, OPTIONS"
	corsAllowHeaders = "Content-Type, X-Bot-ID"
	corsMaxAge       = "86400"
)

// CORS negocia Access-Control-Allow-Origin a partir de uma allow-list.
//
// Lista vazia equivale a "*". Com "*", o origin da requisição é ecoado; sem
// ele, um origin fora da lista recebe a primeira entrada da lista (o browser
// então bloqueia a resposta).
type CORS struct {
	AllowedOrigins []string
}

func (c CORS) wildcard() bool {
	return len(c.AllowedOrigins) == 0 || slices.Contains(c.AllowedOrigins, "*")
}

// AllowOrigin devolve o valor de Access-Control-Allow-Origin para origin.
func (c CORS) AllowOrigin(origin string) string {
	if c.wildcard() {
		if origin == "" || origin == unknownOrigin {
			return "*"
		}
		return origin
	}
	if slices.Contains(c.AllowedOrigins, origin) {
		return origin
	}
	return c.AllowedOrigins[0]
}

func (c CORS) apply(h http.Header, origin string) {
	h.Set("Access-Control-Allow-Origin", c.AllowOrigin(origin))
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	h.Set("Access-Control-Max-Age", corsMaxAge)
	h.Add("Vary", "Origin")
}

const unknownOrigin = "unknown"

// requestOrigin usa Origin; sem ele, o scheme+host do Referer; senão "unknown".
func requestOrigin(r *http.Request) string {
	if o := strings.TrimSpace(r.Header.Get("Origin")); o != "" {
		return o
	}
	if ref := strings.TrimSpace(r.Header.Get("Referer")); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Host != "" {
			return u.Scheme + "://" + u.Host
		}
		return ref
	}
	return unknownOrigin
}
