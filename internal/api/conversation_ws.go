package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/interview-engine/internal/models"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ConversationMessage is exchanged over the conversation websocket.
// Clients send {"type":"turn","text":"..."}; a bare text frame is a turn as well.
// The server answers with "transcript" carrying the whole progress, or "error".
type ConversationMessage struct {
	Type     string                `json:"type"`
	Text     string                `json:"text,omitempty"`
	Progress *models.StageProgress `json:"progress,omitempty"`
	Code     string                `json:"code,omitempty"`
	Message  string                `json:"message,omitempty"`
}

func (s *Server) handleConversationWS(w http.ResponseWriter, r *http.Request) {
	key := progressKey(r, r.URL.Query().Get("email"))
	if err := key.Validate(); err != nil {
		respondServiceError(w, r, "conversation websocket", err)
		return
	}
	if !key.InterviewType.Conversational() {
		respondError(w, http.StatusBadRequest, "wrong_kind", "stage is not conversational")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	slog.Info("conversation websocket connected", "key", key.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := s.deps.Conversation.Open(ctx, key)
	if err != nil {
		s.sendConversationError(conn, err)
		return
	}
	if err := s.sendConversationMessage(conn, ConversationMessage{Type: "transcript", Progress: p}); err != nil {
		return
	}

	conn.SetReadLimit(wsMaxMessage)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	turns := make(chan string)
	var wg sync.WaitGroup

	// Read from WebSocket -> queue candidate turns in arrival order
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}

			text, ok := parseTurnFrame(message)
			if !ok {
				continue
			}

			select {
			case turns <- text:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				break loop
			}
		case text := <-turns:
			p, err := s.deps.Conversation.Say(ctx, key, text)
			if err != nil {
				s.sendConversationError(conn, err)
				continue
			}
			if err := s.sendConversationMessage(conn, ConversationMessage{Type: "transcript", Progress: p}); err != nil {
				break loop
			}
		}
	}

	cancel()
	conn.Close()
	wg.Wait()
	slog.Info("conversation websocket disconnected", "key", key.String())
}

// parseTurnFrame accepts a JSON turn message or plain text
func parseTurnFrame(message []byte) (string, bool) {
	var msg ConversationMessage
	if err := json.Unmarshal(message, &msg); err == nil && msg.Type != "" {
		if msg.Type != "turn" {
			return "", false
		}
		return msg.Text, strings.TrimSpace(msg.Text) != ""
	}

	text := string(message)
	return text, strings.TrimSpace(text) != ""
}

func (s *Server) sendConversationMessage(conn *websocket.Conn, msg ConversationMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal conversation message", "error", err)
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send conversation message", "error", err)
		return err
	}
	return nil
}

func (s *Server) sendConversationError(conn *websocket.Conn, err error) {
	status, code := classify(err)
	if status >= 500 {
		slog.Error("conversation turn failed", "error", err)
	}
	s.sendConversationMessage(conn, ConversationMessage{
		Type:    "error",
		Code:    code,
		Message: err.Error(),
	})
}
