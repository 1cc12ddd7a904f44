package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"scene-bridge/internal/domain"
)

const (
	// writeWait acota cuánto puede tardar una escritura al socket.
	writeWait = 10 * time.Second
	// maxMessageSize acota el payload entrante (el audio base64 es lo más
	// pesado que aceptamos).
	maxMessageSize = 8 << 20
	sendBuffer     = 64
)

// Client es una conexión viva: el socket, su canal de salida y el estado de
// heartbeat. Si el cliente no responde un ping dentro de la ventana, la
// lectura vence y la conexión se evicta del hub.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	chat ChatHandler

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	pongWait   time.Duration
	pingPeriod time.Duration
	logger     *zap.Logger
}

// ChatHandler es lo que el dispatcher necesita del servicio de chat.
type ChatHandler interface {
	History() []domain.Message
	SendMessage(ctx context.Context, connID, content string)
	ExecuteCode(ctx context.Context, code string)
	ClearChat(ctx context.Context) error
	TranscribeAudio(ctx context.Context, audioB64 string) (string, error)
}

func newClient(id string, hub *Hub, conn *websocket.Conn, chat ChatHandler, heartbeat time.Duration, logger *zap.Logger) *Client {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Client{
		id:         id,
		hub:        hub,
		conn:       conn,
		chat:       chat,
		send:       make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
		pongWait:   heartbeat,
		pingPeriod: heartbeat * 9 / 10,
		logger:     logger.With(zap.String("conn_id", id)),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// trySend encola sin bloquear; false significa cliente saturado o cerrado.
func (c *Client) trySend(data []byte) bool {
	select {
	case <-c.done:
		return false
	case c.send <- data:
		return true
	default:
		return false
	}
}

// reply manda un evento solo a esta conexión.
func (c *Client) reply(ev domain.OutboundEvent) {
	data, err := ev.Encode()
	if err != nil {
		c.logger.Error("encode reply", zap.Error(err), zap.String("type", ev.Type))
		return
	}
	if !c.trySend(data) {
		c.logger.Warn("reply dropped, client unresponsive")
	}
}

// writePump drena el canal de salida y mantiene el heartbeat con pings
// periódicos.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.unregister(c)
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump lee y despacha eventos entrantes. El deadline de lectura se
// renueva con cada pong; vencerse equivale a heartbeat perdido.
func (c *Client) readPump() {
	defer c.hub.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("read failed", zap.Error(err))
			}
			return
		}

		ev, err := domain.DecodeInbound(data)
		if err != nil {
			// Payload malformado: se descarta ese mensaje, no la conexión.
			c.logger.Warn("malformed event", zap.Error(err))
			c.reply(domain.ErrorEvent("invalid JSON"))
			continue
		}
		c.dispatch(ev)
	}
}

// dispatch hace el switch exhaustivo sobre el set cerrado de eventos. Las
// operaciones largas (generación, ejecución, transcripción) corren en su
// propia goroutine para no frenar heartbeats ni otros clientes; sus
// resultados vuelven por el camino serializado del ChatService.
func (c *Client) dispatch(ev domain.InboundEvent) {
	switch ev.Type {
	case domain.InPing:
		c.reply(domain.PongEvent(time.Now()))

	case domain.InGetMessages:
		c.reply(domain.MessagesEvent(c.chat.History()))

	case domain.InSendMessage:
		if ev.Message == "" {
			c.reply(domain.ErrorEvent("send_message requires a message"))
			return
		}
		go c.chat.SendMessage(context.Background(), c.id, ev.Message)

	case domain.InExecuteCode:
		if ev.Code == "" {
			c.reply(domain.ErrorEvent("execute_code requires code"))
			return
		}
		go c.chat.ExecuteCode(context.Background(), ev.Code)

	case domain.InClearChat:
		if err := c.chat.ClearChat(context.Background()); err != nil {
			c.reply(domain.ErrorEvent("could not clear chat: " + err.Error()))
			return
		}
		c.reply(domain.ChatClearedEvent())

	case domain.InTranscribeAudio:
		go func() {
			text, err := c.chat.TranscribeAudio(context.Background(), ev.Audio)
			if err != nil {
				c.reply(domain.TranscriptionErrorEvent(err.Error()))
				return
			}
			c.reply(domain.TranscriptionEvent(text))
		}()

	default:
		// Tipos desconocidos se loggean y se ignoran; no son fatales.
		c.logger.Info("unknown event type ignored", zap.String("type", ev.Type))
	}
}
