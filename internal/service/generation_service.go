package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"scene-bridge/internal/domain"
	"scene-bridge/internal/llm"
)

var ErrGenerationNotConfigured = errors.New("generation service not configured")

// systemPrompt instruye al backend para producir código ejecutable por el
// host, con el wrapper scene_action(context) que el host espera.
const systemPrompt = `You are an expert 3D scripting assistant. Generate clean, executable Python code for the host application.

IMPORTANT RULES:
1. Always wrap your code in a function called scene_action(context)
2. Import bpy at the top
3. Use bpy.ops and bpy.data APIs correctly
4. Include error handling where appropriate
5. Respond with a friendly message followed by the code in a code block

Be conversational and helpful!`

// defaultReplyMessage se usa cuando la respuesta viene sin texto antes del
// bloque de código.
const defaultReplyMessage = "I've generated the code for you!"

// GenerationService arma el prompt, llama al backend y separa la respuesta
// en (mensaje conversacional, código).
type GenerationService struct {
	client llm.Client
	logger *zap.Logger
}

func NewGenerationService(client llm.Client, logger *zap.Logger) *GenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationService{client: client, logger: logger}
}

// Generate produce el turno del asistente para un pedido del usuario. Si hay
// un asset de la librería que matchea, el prompt se enriquece con su path
// para que el backend prefiera importarlo en vez de modelar desde cero.
func (s *GenerationService) Generate(ctx context.Context, userMessage string, match *domain.AssetEntry) (message, code string, err error) {
	if s == nil || s.client == nil {
		return "", "", ErrGenerationNotConfigured
	}

	prompt := buildPrompt(userMessage, match)
	raw, err := s.client.Generate(ctx, prompt)
	if err != nil {
		return "", "", fmt.Errorf("generation backend: %w", err)
	}

	message, code = splitReply(raw)
	return message, code, nil
}

// Transcribe delega el audio al servicio de speech-to-text del backend.
func (s *GenerationService) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if s == nil || s.client == nil {
		return "", ErrGenerationNotConfigured
	}
	return s.client.Transcribe(ctx, audio)
}

func buildPrompt(userMessage string, match *domain.AssetEntry) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nCreate code for: ")
	b.WriteString(userMessage)
	if match != nil {
		b.WriteString("\n\nA matching model already exists in the local asset library at ")
		b.WriteString(match.Path)
		b.WriteString(". Prefer importing that file instead of modeling from scratch.")
	}
	return b.String()
}

var fenceRe = regexp.MustCompile("(?s)```(?:python)?\\s*\\n?(.*?)```")

// splitReply separa el texto conversacional del bloque de código fenced.
// Sin fence, toda la respuesta es mensaje y no hay código.
func splitReply(raw string) (message, code string) {
	raw = strings.TrimSpace(raw)
	m := fenceRe.FindStringSubmatchIndex(raw)
	if m == nil {
		return raw, ""
	}

	code = strings.TrimSpace(raw[m[2]:m[3]])
	message = strings.TrimSpace(raw[:m[0]])
	if message == "" {
		message = defaultReplyMessage
	}
	return message, code
}
