// Package ws implements the WebSocket chat endpoint for the browser UI.
// Clients connect once, then exchange JSON frames: one chat message in,
// one reply out, sharing the same conversation history as the HTTP API.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/jkaninda/mwito/internal/chat"
	"github.com/jkaninda/mwito/internal/config"
)

// subprotocol identifies the chat framing version.
const subprotocol = "mwito-chat-v1"

// ChatFrame is a client → server message.
type ChatFrame struct {
	ConversationID string `json:"conversation_id,omitempty"` // Empty = new conversation.
	Message        string `json:"message"`
}

// ReplyFrame is a server → client message. Error is set instead of
// Reply when the turn failed; the connection stays open either way.
type ReplyFrame struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Reply          string `json:"reply,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Server upgrades HTTP connections and runs chat turns over WebSocket.
type Server struct {
	chat   *chat.Service
	cfg    *config.WebSocketConfig
	logger *slog.Logger
}

// NewServer creates a WebSocket chat server over the shared chat service.
func NewServer(svc *chat.Service, cfg *config.WebSocketConfig, logger *slog.Logger) *Server {
	return &Server{
		chat:   svc,
		cfg:    cfg,
		logger: logger,
	}
}

// Handler returns an http.Handler that upgrades connections to WebSocket.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleUpgrade)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	// Authenticate via token (query param or Authorization header).
	userID := "ws-client"
	if s.cfg != nil && s.cfg.Token != "" {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = r.Header.Get("Authorization")
			if len(token) > 7 && token[:7] == "Bearer " {
				token = token[7:]
			}
		}
		if token != s.cfg.Token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{subprotocol},
	})
	if err != nil {
		s.logger.Error("websocket accept failed", slog.String("error", err.Error()))
		return
	}

	s.handleConnection(r.Context(), conn, userID)
}

func (s *Server) handleConnection(ctx context.Context, conn *websocket.Conn, userID string) {
	defer conn.Close(websocket.StatusNormalClosure, "connection closed")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				s.logger.Info("websocket client disconnected")
			} else {
				s.logger.Warn("websocket connection error", slog.String("error", err.Error()))
			}
			return
		}

		var frame ChatFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.writeFrame(ctx, conn, ReplyFrame{Error: "invalid frame"})
			continue
		}
		if frame.Message == "" {
			s.writeFrame(ctx, conn, ReplyFrame{Error: "message is required"})
			continue
		}

		convID := uuid.Nil
		if frame.ConversationID != "" {
			convID, err = uuid.Parse(frame.ConversationID)
			if err != nil {
				s.writeFrame(ctx, conn, ReplyFrame{Error: "invalid conversation_id"})
				continue
			}
		}
		if convID == uuid.Nil {
			convID = uuid.New()
		}

		result, err := s.chat.Turn(ctx, userID, convID, frame.Message)
		if err != nil {
			// Turn failures are per-message: report and keep serving.
			s.logger.Error("websocket chat turn failed",
				slog.String("conversation_id", convID.String()),
				slog.String("error", err.Error()),
			)
			s.writeFrame(ctx, conn, ReplyFrame{
				ConversationID: convID.String(),
				Error:          "chat turn failed",
			})
			continue
		}

		s.writeFrame(ctx, conn, ReplyFrame{
			ConversationID: result.ConversationID.String(),
			Reply:          result.Reply,
		})
	}
}

func (s *Server) writeFrame(ctx context.Context, conn *websocket.Conn, frame ReplyFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		s.logger.Debug("websocket write failed", slog.String("error", err.Error()))
	}
}
