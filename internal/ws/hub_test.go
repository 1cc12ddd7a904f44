package ws

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"scene-bridge/internal/assets"
	"scene-bridge/internal/domain"
	"scene-bridge/internal/executor"
	"scene-bridge/internal/llm"
	"scene-bridge/internal/safety"
	"scene-bridge/internal/service"
	"scene-bridge/internal/session"
)

// wireEvent decodifica eventos del wire sin asumir la forma de "message",
// que es objeto en new_message y texto en error.
type wireEvent struct {
	Type     string           `json:"type"`
	Messages []domain.Message `json:"messages"`
	Message  json.RawMessage  `json:"message"`
	Text     string           `json:"text"`
	Error    string           `json:"error"`
}

func (ev wireEvent) message(t *testing.T) domain.Message {
	t.Helper()
	var msg domain.Message
	if err := json.Unmarshal(ev.Message, &msg); err != nil {
		t.Fatalf("decode message payload: %v", err)
	}
	return msg
}

func writeAsset(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newTestBridge(t *testing.T, mock *llm.MockClient, exec executor.HostExecutor, files ...string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	for _, f := range files {
		writeAsset(t, root, f)
	}
	index, err := assets.NewIndex(root, nil)
	if err != nil {
		t.Fatalf("index: %v", err)
	}

	store := session.NewStore("s1", nil, nil)
	hub := NewHub(nil)
	chat := service.NewChatService(store, safety.NewGate(), index, service.NewGenerationService(mock, nil), exec, nil, hub, nil)
	srv := NewServer(hub, chat, time.Second, nil)

	ts := httptest.NewServer(NewRouter(nil, srv))
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var ev wireEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev
}

func send(t *testing.T, conn *websocket.Conn, payload map[string]string) {
	t.Helper()
	if err := conn.WriteJSON(payload); err != nil {
		t.Fatalf("write event: %v", err)
	}
}

func TestInitialSyncOnConnect(t *testing.T) {
	ts := newTestBridge(t, &llm.MockClient{}, &executor.MockExecutor{})
	conn := dial(t, ts)

	ev := readEvent(t, conn)
	if ev.Type != domain.OutMessages {
		t.Fatalf("expected initial messages event, got %q", ev.Type)
	}
	if len(ev.Messages) != 0 {
		t.Fatalf("expected empty history, got %d", len(ev.Messages))
	}
}

func TestPingPong(t *testing.T) {
	ts := newTestBridge(t, &llm.MockClient{}, &executor.MockExecutor{})
	conn := dial(t, ts)
	readEvent(t, conn) // sync inicial

	send(t, conn, map[string]string{"type": "ping"})
	ev := readEvent(t, conn)
	if ev.Type != domain.OutPong {
		t.Fatalf("expected pong, got %q", ev.Type)
	}
}

func TestSendMessageEndToEnd(t *testing.T) {
	mock := &llm.MockClient{Response: "import apple"}
	exec := &executor.MockExecutor{ImportResult: domain.ExecutionResult{Success: true}}
	ts := newTestBridge(t, mock, exec, "food/apple.blend")

	conn := dial(t, ts)
	readEvent(t, conn) // sync inicial

	send(t, conn, map[string]string{"type": "send_message", "message": "add an apple"})

	user := readEvent(t, conn)
	if user.Type != domain.OutNewMessage {
		t.Fatalf("expected new_message, got %q", user.Type)
	}
	if msg := user.message(t); msg.Role != domain.RoleUser || msg.Content != "add an apple" {
		t.Fatalf("unexpected user turn: %+v", msg)
	}

	assistant := readEvent(t, conn)
	if assistant.Type != domain.OutNewMessage {
		t.Fatalf("expected new_message, got %q", assistant.Type)
	}
	msg := assistant.message(t)
	if msg.Role != domain.RoleAssistant || msg.Status != domain.StatusSuccess {
		t.Fatalf("expected assistant success, got %+v", msg)
	}
	if exec.ImportCalls != 1 {
		t.Fatalf("expected host import, got %d", exec.ImportCalls)
	}
}

func TestExecuteCodeRejectedOverWire(t *testing.T) {
	exec := &executor.MockExecutor{}
	ts := newTestBridge(t, &llm.MockClient{}, exec)

	conn := dial(t, ts)
	readEvent(t, conn) // sync inicial

	send(t, conn, map[string]string{"type": "execute_code", "code": "os.system('rm -rf /')"})

	ev := readEvent(t, conn)
	if ev.Type != domain.OutNewMessage {
		t.Fatalf("expected new_message, got %q", ev.Type)
	}
	msg := ev.message(t)
	if msg.Status != domain.StatusError {
		t.Fatalf("expected error status, got %+v", msg)
	}
	if !strings.Contains(msg.ErrorMsg, "process invocation") {
		t.Fatalf("expected process invocation reason, got %q", msg.ErrorMsg)
	}
	if exec.RunCalls != 0 {
		t.Fatalf("rejected code must never reach the executor")
	}
}

func TestMalformedPayloadDropsMessageNotConnection(t *testing.T) {
	ts := newTestBridge(t, &llm.MockClient{}, &executor.MockExecutor{})
	conn := dial(t, ts)
	readEvent(t, conn) // sync inicial

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev := readEvent(t, conn)
	if ev.Type != domain.OutError {
		t.Fatalf("expected error event, got %q", ev.Type)
	}

	// La conexión sigue viva.
	send(t, conn, map[string]string{"type": "ping"})
	if ev := readEvent(t, conn); ev.Type != domain.OutPong {
		t.Fatalf("expected pong after malformed payload, got %q", ev.Type)
	}
}

func TestUnknownEventKindIsIgnored(t *testing.T) {
	ts := newTestBridge(t, &llm.MockClient{}, &executor.MockExecutor{})
	conn := dial(t, ts)
	readEvent(t, conn) // sync inicial

	send(t, conn, map[string]string{"type": "warp_drive"})
	send(t, conn, map[string]string{"type": "ping"})

	// El tipo desconocido no genera respuesta ni corta la conexión.
	if ev := readEvent(t, conn); ev.Type != domain.OutPong {
		t.Fatalf("expected pong, got %q", ev.Type)
	}
}

func TestClearChatAndGetMessages(t *testing.T) {
	mock := &llm.MockClient{Response: "just words"}
	ts := newTestBridge(t, mock, &executor.MockExecutor{})

	conn := dial(t, ts)
	readEvent(t, conn) // sync inicial

	send(t, conn, map[string]string{"type": "send_message", "message": "hola"})
	readEvent(t, conn) // user
	readEvent(t, conn) // assistant

	send(t, conn, map[string]string{"type": "clear_chat"})
	if ev := readEvent(t, conn); ev.Type != domain.OutChatCleared {
		t.Fatalf("expected chat_cleared, got %q", ev.Type)
	}

	send(t, conn, map[string]string{"type": "get_messages"})
	ev := readEvent(t, conn)
	if ev.Type != domain.OutMessages || len(ev.Messages) != 0 {
		t.Fatalf("expected empty history after clear, got %+v", ev)
	}
}

// Reconexión: una conexión nueva recibe el historial completo previo sin
// haber mandado nada.
func TestReconnectReceivesFullHistory(t *testing.T) {
	mock := &llm.MockClient{Response: "just words"}
	ts := newTestBridge(t, mock, &executor.MockExecutor{})

	first := dial(t, ts)
	readEvent(t, first) // sync inicial
	send(t, first, map[string]string{"type": "send_message", "message": "hola"})
	readEvent(t, first) // user
	readEvent(t, first) // assistant
	first.Close()

	second := dial(t, ts)
	ev := readEvent(t, second)
	if ev.Type != domain.OutMessages {
		t.Fatalf("expected initial sync, got %q", ev.Type)
	}
	if len(ev.Messages) != 2 {
		t.Fatalf("expected 2 prior messages, got %d", len(ev.Messages))
	}
	if ev.Messages[0].Role != domain.RoleUser || ev.Messages[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected history order: %+v", ev.Messages)
	}

	// get_messages antes de cualquier send_message propio.
	send(t, second, map[string]string{"type": "get_messages"})
	if ev := readEvent(t, second); len(ev.Messages) != 2 {
		t.Fatalf("expected full history on get_messages, got %d", len(ev.Messages))
	}
}

// Un cliente que no responde pings debe vencer el deadline de lectura y
// quedar fuera del hub.
func TestMissedHeartbeatEvictsConnection(t *testing.T) {
	gin.SetMode(gin.TestMode)

	index, err := assets.NewIndex(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	store := session.NewStore("s1", nil, nil)
	hub := NewHub(nil)
	chat := service.NewChatService(store, safety.NewGate(), index, service.NewGenerationService(&llm.MockClient{}, nil), &executor.MockExecutor{}, nil, hub, nil)
	srv := NewServer(hub, chat, 100*time.Millisecond, nil)

	ts := httptest.NewServer(NewRouter(nil, srv))
	t.Cleanup(ts.Close)

	conn := dial(t, ts)
	// Suprimir la respuesta automática a los pings: este cliente nunca
	// manda pong. Sin leer tampoco se procesan frames de control.
	conn.SetPingHandler(func(string) error { return nil })
	readEvent(t, conn) // sync inicial

	if hub.Count() != 1 {
		t.Fatalf("expected 1 registered client, got %d", hub.Count())
	}

	deadline := time.Now().Add(3 * time.Second)
	for hub.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if hub.Count() != 0 {
		t.Fatalf("expected eviction after missed heartbeats, got %d clients", hub.Count())
	}
}

func TestTranscribeAudioOverWire(t *testing.T) {
	mock := &llm.MockClient{Transcript: "add a cube"}
	ts := newTestBridge(t, mock, &executor.MockExecutor{})

	conn := dial(t, ts)
	readEvent(t, conn) // sync inicial

	send(t, conn, map[string]string{"type": "transcribe_audio", "audio": "YXVkaW8="})
	ev := readEvent(t, conn)
	if ev.Type != domain.OutTranscription || ev.Text != "add a cube" {
		t.Fatalf("expected transcription, got %+v", ev)
	}
}
