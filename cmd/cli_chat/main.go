// Cliente de terminal para probar el bridge sin el UI web: se conecta al
// websocket, imprime los eventos entrantes y manda lo que se tipee.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	url := os.Getenv("BRIDGE_WS_URL")
	if url == "" {
		url = "ws://127.0.0.1:8765/ws"
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("dial %s: %v", url, err)
	}
	defer conn.Close()

	fmt.Printf("Conectado a %s\n", url)
	fmt.Println("Comandos: /history /clear /exec <code> /quit — cualquier otra línea es un mensaje")

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Fatalf("connection closed: %v", err)
			}
			printEvent(data)
		}
	}()

	reader := bufio.NewReader(os.Stdin)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var payload map[string]string
		switch {
		case line == "/quit":
			return
		case line == "/history":
			payload = map[string]string{"type": "get_messages"}
		case line == "/clear":
			payload = map[string]string{"type": "clear_chat"}
		case strings.HasPrefix(line, "/exec "):
			payload = map[string]string{"type": "execute_code", "code": strings.TrimPrefix(line, "/exec ")}
		default:
			payload = map[string]string{"type": "send_message", "message": line}
		}

		if err := conn.WriteJSON(payload); err != nil {
			log.Fatalf("write: %v", err)
		}
	}
}

func printEvent(data []byte) {
	var ev struct {
		Type     string            `json:"type"`
		Messages []json.RawMessage `json:"messages"`
		Message  json.RawMessage   `json:"message"`
		Text     string            `json:"text"`
		Error    string            `json:"error"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		fmt.Printf("<< %s\n", data)
		return
	}

	switch ev.Type {
	case "messages":
		fmt.Printf("<< historial (%d mensajes)\n", len(ev.Messages))
		for _, raw := range ev.Messages {
			printMessage(raw)
		}
	case "new_message":
		printMessage(ev.Message)
	case "transcription":
		if ev.Error != "" {
			fmt.Printf("<< transcripción falló: %s\n", ev.Error)
		} else {
			fmt.Printf("<< transcripción: %s\n", ev.Text)
		}
	case "chat_cleared":
		fmt.Println("<< chat vacío")
	default:
		fmt.Printf("<< %s\n", data)
	}
}

func printMessage(raw json.RawMessage) {
	var msg struct {
		Role     string `json:"role"`
		Content  string `json:"content"`
		Code     string `json:"code"`
		Status   string `json:"status"`
		ErrorMsg string `json:"error_msg"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		fmt.Printf("<< %s\n", raw)
		return
	}
	fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
	if msg.Code != "" {
		fmt.Printf("    code: %d bytes (status=%s)\n", len(msg.Code), msg.Status)
	}
	if msg.ErrorMsg != "" {
		fmt.Printf("    error: %s\n", msg.ErrorMsg)
	}
}
