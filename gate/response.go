package gate

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type errorBody struct {
	Error  string `json:"error"`
	Output string `json:"output"`
}

// WriteError escreve o contrato de erro. Retry-After só é enviado quando há dica.
func WriteError(w http.ResponseWriter, e *Error) {
	if e.RetryAfter > 0 {
		secs := int(e.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	writeJSON(w, e.Status, errorBody{Error: e.Message, Output: e.Output})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw devolve o corpo do upstream sem reserializar.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
