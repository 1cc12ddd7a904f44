// Package ws implementa el endpoint de tiempo real del bridge: un hub de
// conexiones websocket multiplexadas contra una única sesión.
package ws

import (
	"sync"

	"go.uber.org/zap"

	"scene-bridge/internal/domain"
)

// Hub mantiene el set de conexiones vivas y hace el fan-out de eventos.
// El envío a cada cliente pasa por su canal bufferizado: un cliente caído o
// saturado se marca para remoción sin abortar la entrega al resto.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("client connected", zap.String("conn_id", c.id), zap.Int("total", total))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, present := h.clients[c.id]
	delete(h.clients, c.id)
	total := len(h.clients)
	h.mu.Unlock()
	if present {
		c.close()
		h.logger.Info("client disconnected", zap.String("conn_id", c.id), zap.Int("total", total))
	}
}

// Broadcast manda un evento a todas las conexiones vivas. El orden relativo
// de los broadcasts lo garantiza el caller (ChatService serializa
// append+broadcast); acá solo se respeta el orden de encolado por cliente.
func (h *Hub) Broadcast(ev domain.OutboundEvent) {
	data, err := ev.Encode()
	if err != nil {
		h.logger.Error("encode outbound event", zap.Error(err), zap.String("type", ev.Type))
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var dead []*Client
	for _, c := range targets {
		if !c.trySend(data) {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		h.logger.Warn("dropping unresponsive client", zap.String("conn_id", c.id))
		h.unregister(c)
	}
}

// Count devuelve la cantidad de conexiones vivas.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
