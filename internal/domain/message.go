package domain

import "time"

// Roles de los mensajes dentro de una sesión.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Estados de ejecución de un mensaje con código generado. El estado "none"
// se serializa como campo ausente en el wire.
const (
	StatusNone    = ""
	StatusSuccess = "success"
	StatusError   = "error"
)

// Message es un turno de la conversación. Una vez agregado a la sesión es
// inmutable; el orden de inserción define el orden de despliegue.
// Invariante: un status distinto de "none" implica Code no vacío.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Code      string    `json:"code,omitempty"`
	Status    string    `json:"status,omitempty"`
	ErrorMsg  string    `json:"error_msg,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}

// HasExecution indica si el mensaje registra un intento de ejecución.
func (m Message) HasExecution() bool {
	return m.Status == StatusSuccess || m.Status == StatusError
}
