package gate

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const previewRunes = 50

var previewPolicy = bluemonday.StrictPolicy()

// preview corta a mensagem para o log, sem markup e sem quebras de linha.
func preview(s string) string {
	s = previewPolicy.Sanitize(s)
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes]) + "..."
}
