package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Tipos de eventos entrantes (cliente -> servidor). El set es cerrado: el
// dispatcher hace switch exhaustivo y loggea/ignora cualquier otro tipo.
const (
	InPing            = "ping"
	InGetMessages     = "get_messages"
	InSendMessage     = "send_message"
	InExecuteCode     = "execute_code"
	InClearChat       = "clear_chat"
	InTranscribeAudio = "transcribe_audio"
)

// Tipos de eventos salientes (servidor -> cliente).
const (
	OutPong          = "pong"
	OutMessages      = "messages"
	OutNewMessage    = "new_message"
	OutTranscription = "transcription"
	OutError         = "error"
	OutChatCleared   = "chat_cleared"
)

// InboundEvent es el variante etiquetado de los eventos del cliente,
// decodificado una sola vez en el borde del canal.
type InboundEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Audio   string `json:"audio,omitempty"`
}

// DecodeInbound parsea el payload JSON de un evento del cliente.
func DecodeInbound(data []byte) (InboundEvent, error) {
	var ev InboundEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return InboundEvent{}, fmt.Errorf("decode inbound event: %w", err)
	}
	if ev.Type == "" {
		return InboundEvent{}, fmt.Errorf("decode inbound event: missing type")
	}
	return ev, nil
}

// OutboundEvent es el variante etiquetado de los eventos hacia el cliente.
// El campo "message" carga un Message en new_message y un texto legible en
// error, igual que en el protocolo original.
type OutboundEvent struct {
	Type      string    `json:"type"`
	Timestamp string    `json:"timestamp,omitempty"`
	Messages  []Message `json:"messages,omitempty"`
	Message   any       `json:"message,omitempty"`
	Text      string    `json:"text,omitempty"`
	ErrorText string    `json:"error,omitempty"`
}

// Encode serializa el evento para el wire.
func (ev OutboundEvent) Encode() ([]byte, error) {
	return json.Marshal(ev)
}

// PongEvent responde a un ping con la hora del servidor.
func PongEvent(now time.Time) OutboundEvent {
	return OutboundEvent{Type: OutPong, Timestamp: now.UTC().Format(time.RFC3339)}
}

// MessagesEvent entrega el historial completo de la sesión.
func MessagesEvent(msgs []Message) OutboundEvent {
	if msgs == nil {
		msgs = []Message{}
	}
	return OutboundEvent{Type: OutMessages, Messages: msgs}
}

// NewMessageEvent anuncia un mensaje recién agregado a la sesión.
func NewMessageEvent(msg Message) OutboundEvent {
	return OutboundEvent{Type: OutNewMessage, Message: msg}
}

// ErrorEvent reporta una falla recuperable con un texto legible.
func ErrorEvent(text string) OutboundEvent {
	return OutboundEvent{Type: OutError, Message: text}
}

// TranscriptionEvent entrega el texto transcrito de un audio.
func TranscriptionEvent(text string) OutboundEvent {
	return OutboundEvent{Type: OutTranscription, Text: text}
}

// TranscriptionErrorEvent reporta una falla del servicio de transcripción.
func TranscriptionErrorEvent(errText string) OutboundEvent {
	return OutboundEvent{Type: OutTranscription, ErrorText: errText}
}

// ChatClearedEvent confirma que la sesión quedó vacía.
func ChatClearedEvent() OutboundEvent {
	return OutboundEvent{Type: OutChatCleared}
}
