package httpapi

import (
	"errors"
	"log/slog"

	"github.com/jkaninda/mwito/internal/awsauth"
	"github.com/jkaninda/okapi"
)

// SSEEvent represents a server-sent event for streaming chat replies.
type SSEEvent struct {
	Type           string `json:"type,omitempty"`    // "text", "done", "error"
	Content        string `json:"content,omitempty"` // Text content.
	ConversationID string `json:"conversation_id,omitempty"`
}

// handleChatStream handles POST /v1/chat/stream with SSE responses.
// Runs the turn and streams the result as server-sent events.
func (g *Gateway) handleChatStream(c *okapi.Context) error {
	userID := c.GetString("userID")
	if userID == "" {
		return c.AbortUnauthorized("Unauthorized")
	}

	if g.limiter != nil {
		if err := g.limiter.Allow(userID); err != nil {
			return c.AbortTooManyRequests("rate limit exceeded")
		}
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("message is required")
	}
	if req.Message == "" {
		return c.AbortBadRequest("message is required")
	}

	convID, err := parseConversationID(req.ConversationID)
	if err != nil {
		return c.AbortBadRequest("invalid conversation_id")
	}

	correlationID := newCorrelationID()

	g.logger.Info("http chat stream",
		slog.String("user_id", userID),
		slog.String("correlation_id", correlationID),
		slog.String("conversation_id", convID.String()),
	)

	// Turn is buffered — the full reply is streamed as events.
	result, err := g.chat.Turn(c.Context(), userID, convID, req.Message)
	if err != nil {
		var unavailable *awsauth.CredentialUnavailableError
		if errors.As(err, &unavailable) {
			c.SSEvent("error", SSEEvent{Content: "model backend credentials unavailable"})
			return nil
		}
		c.SSEvent("error", SSEEvent{Content: "chat turn failed"})
		return nil
	}

	if result.Reply != "" {
		c.SSEvent("text", SSEEvent{Content: result.Reply, ConversationID: result.ConversationID.String()})
	}
	c.SSEvent("done", SSEEvent{Type: "done", ConversationID: result.ConversationID.String()})
	return nil
}
