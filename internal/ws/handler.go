package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"scene-bridge/internal/domain"
)

// Server ata el hub al router HTTP y maneja el upgrade de cada conexión.
type Server struct {
	hub       *Hub
	chat      ChatHandler
	heartbeat time.Duration
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

func NewServer(hub *Hub, chat ChatHandler, heartbeat time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		hub:       hub,
		chat:      chat,
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// El transporte es loopback local confiable; el origin del
			// browser no es una barrera acá.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// NewRouter configura el router de Gin con middlewares y rutas del bridge.
func NewRouter(logger *zap.Logger, srv *Server) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/ws", srv.HandleWS)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": srv.hub.Count()})
	})

	return r
}

// HandleWS registra la conexión y le manda el sync inicial: el historial
// completo de la sesión, solo a esa conexión.
func (s *Server) HandleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(uuid.NewString(), s.hub, conn, s.chat, s.heartbeat, s.logger)
	s.hub.register(client)

	client.reply(domain.MessagesEvent(s.chat.History()))

	go client.writePump()
	go client.readPump()
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
