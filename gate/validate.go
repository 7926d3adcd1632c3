package gate

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

const actionSendMessage = "sendMessage"

// ChatRequest é o payload validado que segue para o upstream.
type ChatRequest struct {
	Action    string `json:"action" validate:"eq=sendMessage"`
	SessionID string `json:"sessionId" validate:"required"`
	ChatInput string `json:"chatInput" validate:"required"`
}

type ValidationResult struct {
	Valid  bool
	Errors []string
}

// unsafePatterns: tags script, URIs javascript: e handlers inline (onclick=).
var unsafePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
}

var fieldMessages = map[string]string{
	"Action":    "Invalid action",
	"SessionID": "Invalid session ID",
	"ChatInput": "Invalid message",
}

// Validator aplica as regras de ChatRequest. Seguro para uso concorrente.
type Validator struct {
	maxLen   int
	validate *validator.Validate
}

func NewValidator(maxLen int) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("safe_content", func(fl validator.FieldLevel) bool {
		return !containsUnsafe(fl.Field().String())
	})
	return &Validator{maxLen: maxLen, validate: v}
}

func containsUnsafe(s string) bool {
	for _, p := range unsafePatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// Validate devolve todos os erros, na ordem action, sessionId, chatInput.
//
// O tamanho é medido em runes (code points), não em bytes nem em unidades
// UTF-16: um emoji fora do BMP conta 1, então 500 emojis cabem no limite de
// 500 mesmo sendo 1000 unidades UTF-16.
func (v *Validator) Validate(req ChatRequest) ValidationResult {
	var errs []string
	chatInputOK := true

	if err := v.validate.Struct(req); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return ValidationResult{Valid: false, Errors: []string{"Invalid request"}}
		}
		for _, fe := range fieldErrs {
			if fe.StructField() == "ChatInput" {
				chatInputOK = false
			}
			errs = append(errs, fieldMessages[fe.StructField()])
		}
	}

	if chatInputOK {
		if err := v.validate.Var(req.ChatInput, fmt.Sprintf("max=%d", v.maxLen)); err != nil {
			errs = append(errs, fmt.Sprintf("Message too long (max %d characters)", v.maxLen))
		}
		if err := v.validate.Var(req.ChatInput, "safe_content"); err != nil {
			errs = append(errs, "Message contains suspicious content")
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// rawChatRequest aceita qualquer tipo JSON nos campos; valores que não são
// string viram "" e falham na validação do campo.
type rawChatRequest struct {
	Action    json.RawMessage `json:"action"`
	SessionID json.RawMessage `json:"sessionId"`
	ChatInput json.RawMessage `json:"chatInput"`
}

// decodeChatRequest exige um único valor JSON; dados depois dele são erro.
func decodeChatRequest(body []byte) (ChatRequest, error) {
	var raw rawChatRequest
	if err := json.Unmarshal(body, &raw); err != nil {
		return ChatRequest{}, fmt.Errorf("decode chat request: %w", err)
	}
	return ChatRequest{
		Action:    jsonString(raw.Action),
		SessionID: jsonString(raw.SessionID),
		ChatInput: jsonString(raw.ChatInput),
	}, nil
}

func jsonString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
