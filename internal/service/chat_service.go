package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"scene-bridge/internal/assets"
	"scene-bridge/internal/domain"
	"scene-bridge/internal/executor"
	"scene-bridge/internal/safety"
	"scene-bridge/internal/session"
)

var ErrRateLimited = errors.New("generation rate limit exceeded")

// Broadcaster abstrae el fan-out hacia los clientes conectados. Lo
// implementa el hub de websockets.
type Broadcaster interface {
	Broadcast(ev domain.OutboundEvent)
}

// GenRateLimiter limita la tasa de pedidos de generación por conexión.
// nil = sin límite.
type GenRateLimiter interface {
	Allow(key string) bool
}

// ChatService orquesta el ciclo completo de un turno: persistir el mensaje
// del usuario, resolver assets, generar código, pasarlo por el gate,
// ejecutarlo en el host y publicar el turno del asistente.
//
// El par append+broadcast se serializa con un mutex propio para que los
// broadcasts salgan en el mismo orden en que los mensajes entran a la
// sesión. Pedidos solapados sobre la misma sesión no se cancelan entre sí:
// ambas respuestas aterrizan en orden de finalización.
type ChatService struct {
	mu sync.Mutex

	store       *session.Store
	gate        safety.Gate
	index       *assets.Index
	gen         *GenerationService
	exec        executor.HostExecutor
	limiter     GenRateLimiter
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewChatService(
	store *session.Store,
	gate safety.Gate,
	index *assets.Index,
	gen *GenerationService,
	exec executor.HostExecutor,
	limiter GenRateLimiter,
	broadcaster Broadcaster,
	logger *zap.Logger,
) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		store:       store,
		gate:        gate,
		index:       index,
		gen:         gen,
		exec:        exec,
		limiter:     limiter,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// History devuelve el historial completo en orden de inserción.
func (s *ChatService) History() []domain.Message {
	return s.store.List()
}

// ClearChat vacía la sesión.
func (s *ChatService) ClearChat(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// SendMessage procesa un mensaje del usuario de punta a punta. Las fallas
// del backend o del host se reportan como eventos/mensajes de error y nunca
// tumban el servidor.
func (s *ChatService) SendMessage(ctx context.Context, connID, content string) {
	if _, err := s.appendAndBroadcast(ctx, domain.Message{
		Role:    domain.RoleUser,
		Content: content,
	}); err != nil {
		s.logger.Warn("append user message failed", zap.Error(err))
		s.broadcaster.Broadcast(domain.ErrorEvent("could not accept message: " + err.Error()))
		return
	}

	if s.limiter != nil && !s.limiter.Allow(connID) {
		s.logger.Warn("generation rate limited", zap.String("conn_id", connID))
		s.broadcaster.Broadcast(domain.ErrorEvent(ErrRateLimited.Error()))
		return
	}

	// Enriquecimiento con la librería: el mejor match acompaña al prompt.
	var match *domain.AssetEntry
	if candidates := s.index.Resolve(content); len(candidates) > 0 {
		match = &candidates[0]
		s.logger.Info("asset match",
			zap.String("phrase", content),
			zap.String("path", match.Path),
			zap.Int("candidates", len(candidates)),
		)
	}

	message, code, err := s.gen.Generate(ctx, content, match)
	if err != nil {
		s.logger.Warn("generation failed", zap.Error(err))
		if match != nil {
			// Backend caído pero hay un asset que matchea: importarlo
			// directo desde la librería igual resuelve el pedido.
			s.importMatched(ctx, *match)
			return
		}
		s.broadcaster.Broadcast(domain.ErrorEvent("generation failed: " + err.Error()))
		s.mustAppendAndBroadcast(ctx, domain.Message{
			Role:     domain.RoleAssistant,
			Content:  "Sorry, I encountered an error generating a response.",
			Status:   domain.StatusError,
			ErrorMsg: err.Error(),
		})
		return
	}

	if code == "" {
		if match != nil {
			s.importMatched(ctx, *match)
			return
		}
		// Respuesta puramente conversacional, nada que ejecutar.
		s.mustAppendAndBroadcast(ctx, domain.Message{
			Role:    domain.RoleAssistant,
			Content: message,
		})
		return
	}

	s.runGenerated(ctx, message, code)
}

// runGenerated aplica el gate y, solo si aprueba, ejecuta en el host.
// Código rechazado jamás llega al ejecutor.
func (s *ChatService) runGenerated(ctx context.Context, message, code string) {
	verdict := s.gate.Evaluate(code)
	if !verdict.Approved {
		s.logger.Warn("code rejected by safety gate", zap.Int("violations", len(verdict.Violations)))
		s.mustAppendAndBroadcast(ctx, domain.Message{
			Role:     domain.RoleAssistant,
			Content:  message,
			Code:     code,
			Status:   domain.StatusError,
			ErrorMsg: verdict.Reason(),
		})
		return
	}

	result := s.exec.Run(ctx, code)
	msg := domain.Message{
		Role:    domain.RoleAssistant,
		Content: message,
		Code:    code,
	}
	if result.Success {
		msg.Status = domain.StatusSuccess
	} else {
		msg.Status = domain.StatusError
		msg.ErrorMsg = result.Error
	}
	s.mustAppendAndBroadcast(ctx, msg)
}

// importMatched importa un asset de la librería a través del host y publica
// el turno resultante.
func (s *ChatService) importMatched(ctx context.Context, match domain.AssetEntry) {
	result := s.exec.ImportAsset(ctx, match.Path)
	msg := domain.Message{
		Role:    domain.RoleAssistant,
		Content: fmt.Sprintf("I'll bring in %s from the library.", filepath.Base(match.Path)),
		Code:    assets.ImportSnippet(match),
	}
	if result.Success {
		msg.Status = domain.StatusSuccess
	} else {
		msg.Status = domain.StatusError
		msg.ErrorMsg = result.Error
	}
	s.mustAppendAndBroadcast(ctx, msg)
}

// ExecuteCode maneja el pedido explícito de ejecutar el código de un
// mensaje. Mismo contrato que el camino de generación: gate primero.
func (s *ChatService) ExecuteCode(ctx context.Context, code string) {
	verdict := s.gate.Evaluate(code)
	if !verdict.Approved {
		s.logger.Warn("execute_code rejected", zap.Int("violations", len(verdict.Violations)))
		s.mustAppendAndBroadcast(ctx, domain.Message{
			Role:     domain.RoleAssistant,
			Content:  "That code was rejected by the safety gate.",
			Code:     code,
			Status:   domain.StatusError,
			ErrorMsg: verdict.Reason(),
		})
		return
	}

	result := s.exec.Run(ctx, code)
	msg := domain.Message{
		Role: domain.RoleAssistant,
		Code: code,
	}
	if result.Success {
		msg.Content = "Code executed successfully."
		msg.Status = domain.StatusSuccess
	} else {
		msg.Content = "Code execution failed."
		msg.Status = domain.StatusError
		msg.ErrorMsg = result.Error
	}
	s.mustAppendAndBroadcast(ctx, msg)
}

// TranscribeAudio decodifica el audio base64 y lo manda al servicio de
// speech-to-text.
func (s *ChatService) TranscribeAudio(ctx context.Context, audioB64 string) (string, error) {
	audio, err := base64.StdEncoding.DecodeString(audioB64)
	if err != nil {
		return "", fmt.Errorf("decode audio: %w", err)
	}
	return s.gen.Transcribe(ctx, audio)
}

// appendAndBroadcast serializa el par append+broadcast para preservar el
// orden de la sesión en el fan-out.
func (s *ChatService) appendAndBroadcast(ctx context.Context, msg domain.Message) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appended, err := s.store.Append(ctx, msg)
	if err != nil {
		return domain.Message{}, err
	}
	s.broadcaster.Broadcast(domain.NewMessageEvent(appended))
	return appended, nil
}

// mustAppendAndBroadcast es appendAndBroadcast para mensajes construidos por
// el propio servicio, donde un rechazo solo puede ser un bug: se loggea.
func (s *ChatService) mustAppendAndBroadcast(ctx context.Context, msg domain.Message) {
	if _, err := s.appendAndBroadcast(ctx, msg); err != nil {
		s.logger.Error("append assistant message failed", zap.Error(err))
	}
}
