package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"scene-bridge/internal/domain"
)

// MessageRepository persiste el historial de la sesión. Es opcional: el
// Store funciona solo en memoria cuando no hay base configurada.
type MessageRepository interface {
	Create(ctx context.Context, sessionID string, message domain.Message) error
	ListBySessionID(ctx context.Context, sessionID string) ([]domain.Message, error)
	DeleteBySessionID(ctx context.Context, sessionID string) error
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) Create(ctx context.Context, sessionID string, message domain.Message) error {
	const query = `
		INSERT INTO messages (id, session_id, role, content, code, status, error_msg, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var code, status, errorMsg interface{}
	if message.Code != "" {
		code = message.Code
	}
	if message.Status != domain.StatusNone {
		status = message.Status
	}
	if message.ErrorMsg != "" {
		errorMsg = message.ErrorMsg
	}

	_, err := r.pool.Exec(ctx, query,
		message.ID,
		sessionID,
		message.Role,
		message.Content,
		code,
		status,
		errorMsg,
		message.CreatedAt,
	)
	return err
}

func (r *PgMessageRepository) ListBySessionID(ctx context.Context, sessionID string) ([]domain.Message, error) {
	const query = `
		SELECT id, role, content, code, status, error_msg, created_at
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var code, status, errorMsg *string

		err = rows.Scan(
			&msg.ID,
			&msg.Role,
			&msg.Content,
			&code,
			&status,
			&errorMsg,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if code != nil {
			msg.Code = *code
		}
		if status != nil {
			msg.Status = *status
		}
		if errorMsg != nil {
			msg.ErrorMsg = *errorMsg
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *PgMessageRepository) DeleteBySessionID(ctx context.Context, sessionID string) error {
	const query = `DELETE FROM messages WHERE session_id = $1`
	_, err := r.pool.Exec(ctx, query, sessionID)
	return err
}
