package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scene-bridge/internal/domain"
	"scene-bridge/internal/repository"
)

var (
	// ErrStatusWithoutCode protege el invariante: un status de ejecución
	// solo tiene sentido si el mensaje lleva código.
	ErrStatusWithoutCode = errors.New("message with execution status requires code")
	ErrEmptyMessage      = errors.New("message requires role and content")
)

// Store es el dueño único de la sesión. Toda mutación (append, clear) pasa
// por su mutex, lo que preserva el orden total de los mensajes. Nunca expone
// el slice interno: List devuelve una copia.
//
// La persistencia es write-through y best-effort: una falla del repositorio
// se loggea pero no tumba el append en memoria.
type Store struct {
	mu        sync.Mutex
	sessionID string
	messages  []domain.Message
	createdAt time.Time
	clearedAt time.Time

	repo   repository.MessageRepository
	logger *zap.Logger
}

// NewStore crea el Store de una sesión. repo puede ser nil (solo memoria).
func NewStore(sessionID string, repo repository.MessageRepository, logger *zap.Logger) *Store {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		sessionID: sessionID,
		createdAt: time.Now().UTC(),
		repo:      repo,
		logger:    logger,
	}
}

// SessionID devuelve el identificador de la sesión.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Load reemplaza el historial en memoria con lo persistido, para que una
// reconexión después de reiniciar el proceso recupere la conversación.
func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	msgs, err := s.repo.ListBySessionID(ctx, s.sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.messages = msgs
	s.mu.Unlock()
	return nil
}

// Append agrega un mensaje al final del historial y devuelve el mensaje con
// ID y timestamp ya completados. El orden de llamadas define el orden total.
func (s *Store) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	msg.Role = strings.TrimSpace(msg.Role)
	if msg.Role == "" || (msg.Content == "" && msg.Code == "") {
		return domain.Message{}, ErrEmptyMessage
	}
	// Un status de ejecución exige código, salvo que el turno documente una
	// falla previa a tener código (backend de generación caído).
	if msg.HasExecution() && msg.Code == "" && msg.ErrorMsg == "" {
		return domain.Message{}, ErrStatusWithoutCode
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Create(ctx, s.sessionID, msg); err != nil {
			s.logger.Warn("persist message failed", zap.Error(err), zap.String("message_id", msg.ID))
		}
	}
	return msg, nil
}

// Clear vacía el historial sin destruir la sesión.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.messages = nil
	s.clearedAt = time.Now().UTC()
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.DeleteBySessionID(ctx, s.sessionID); err != nil {
			s.logger.Warn("clear persisted messages failed", zap.Error(err))
			return err
		}
	}
	return nil
}

// List devuelve una copia del historial en orden de inserción.
func (s *Store) List() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Snapshot arma la vista completa de la sesión.
func (s *Store) Snapshot() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]domain.Message, len(s.messages))
	copy(msgs, s.messages)
	return domain.Session{
		ID:        s.sessionID,
		Messages:  msgs,
		CreatedAt: s.createdAt,
		ClearedAt: s.clearedAt,
	}
}
