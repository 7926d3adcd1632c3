// Package requestid propaga ou gera o X-Request-ID de cada requisição.
package requestid

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const Header = "X-Request-ID"

type ctxKey struct{}

// maxLen limita IDs vindos do cliente; acima disso geramos um novo.
const maxLen = 128

// Middleware reaproveita o X-Request-ID do cliente e gera um UUID quando não
// há nenhum. O ID volta no header da resposta.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(Header))
		if id == "" || len(id) > maxLen {
			id = uuid.NewString()
		}

		w.Header().Set(Header, id)
		ctx := context.WithValue(r.Context(), ctxKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext devolve o ID da requisição, ou "" fora do middleware.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
