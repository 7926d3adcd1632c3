package config

import (
	"sort"
	"strings"
	"unicode"
)

// BotRegistry mapeia o identificador do bot para a URL do webhook.
// Imutável depois de construído; seguro para leitura concorrente sem lock.
type BotRegistry struct {
	hooks map[string]string
}

// NewBotRegistry copia m. Um id com URL vazia é conhecido, mas não configurado.
func NewBotRegistry(m map[string]string) BotRegistry {
	hooks := make(map[string]string, len(m))
	for id, url := range m {
		hooks[id] = strings.TrimSpace(url)
	}
	return BotRegistry{hooks: hooks}
}

// Lookup devolve a URL e se o id é conhecido. Ids desconhecidos nunca caem
// num webhook padrão.
func (r BotRegistry) Lookup(id string) (string, bool) {
	url, ok := r.hooks[id]
	return url, ok
}

func (r BotRegistry) IDs() []string {
	ids := make([]string, 0, len(r.hooks))
	for id := range r.hooks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r BotRegistry) Len() int { return len(r.hooks) }

// WebhookEnvKey devolve a variável de ambiente do webhook de um bot:
// "Raindance" -> "WEBHOOK_RAINDANCE", "my-bot" -> "WEBHOOK_MY_BOT".
func WebhookEnvKey(id string) string {
	var b strings.Builder
	b.WriteString("WEBHOOK_")
	for _, r := range id {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}
