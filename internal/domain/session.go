package domain

import "time"

// Session es el historial ordenado de una conversación. Es propiedad
// exclusiva del proceso del bridge; solo se muta a través del Store.
// "clear" vacía el historial pero no destruye la sesión.
type Session struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	ClearedAt time.Time `json:"cleared_at,omitempty"`
}
