// Package httpapi implements the HTTP surface of Mwito: the JSON chat
// API, the embedded browser chat page, and the observability endpoints.
//
// Security:
//   - API key authentication on every /v1 request (constant-time comparison)
//   - Per-user rate limiting via token bucket
//   - All requests logged with correlation IDs
//   - TLS expected via reverse proxy (not handled here)
package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"embed"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/mwito/internal/awsauth"
	"github.com/jkaninda/mwito/internal/chat"
	"github.com/jkaninda/mwito/internal/observability"
	"github.com/jkaninda/mwito/internal/ratelimit"
	"github.com/jkaninda/okapi"
)

const defaultMaxRequestSize = 1 << 20 // 1 MB

//go:embed ui/index.html
var uiFS embed.FS

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the HTTP gateway.
type Config struct {
	ListenAddr string // e.g., ":8080"
	EnableDocs bool
	APIKeys    map[string]string // API key → user ID mapping. Keys from env or config.

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Path for metrics endpoint. Default: "/metrics".
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// Gateway is the HTTP gateway over the chat service.
type Gateway struct {
	config  Config
	chat    *chat.Service
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	server  *http.Server

	// Streaming support.
	sseEnabled bool

	// Extra handlers mounted on the HTTP mux (e.g., the WebSocket chat endpoint).
	extraRoutes []extraRoute

	okapi *okapi.Okapi
	group *okapi.Group
}

// extraRoute stores an additional handler to be mounted on the HTTP mux.
type extraRoute struct {
	pattern string
	handler http.Handler
}

// NewGateway creates an HTTP gateway.
func NewGateway(cfg Config, svc *chat.Service, rl *ratelimit.Limiter, logger *slog.Logger) *Gateway {
	return &Gateway{
		config:  cfg,
		chat:    svc,
		limiter: rl,
		logger:  logger,
		okapi:   okapi.New(okapi.WithMaxMultipartMemory(defaultMaxRequestSize)),
	}
}

// WithSSE enables the SSE streaming chat endpoint.
func (g *Gateway) WithSSE(enabled bool) *Gateway {
	g.sseEnabled = enabled
	return g
}

// WithHandler mounts an additional handler on the HTTP mux at the given pattern.
// Used to attach the WebSocket chat endpoint alongside the API routes.
func (g *Gateway) WithHandler(pattern string, handler http.Handler) *Gateway {
	g.extraRoutes = append(g.extraRoutes, extraRoute{pattern: pattern, handler: handler})
	return g
}

func (g *Gateway) WithOpenAPIDocs() *Gateway {
	g.okapi.WithOpenAPIDocs(
		okapi.OpenAPI{
			Title:   "Mwito",
			Version: "v0.1.0",
		},
	)
	return g
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	// Metrics/tracing middleware (applied globally).
	if g.config.Metrics != nil || g.config.Tracer != nil {
		g.okapi.UseMiddleware(func(next http.Handler) http.Handler {
			return observability.HTTPMetricsMiddleware(g.config.Metrics, g.config.Tracer, next)
		})
	}

	// Authenticated /v1 group.
	g.group = g.okapi.Group("/v1", g.authenticate)

	g.group.Post("/chat", g.handleChat,
		okapi.DocSummary("Send a chat message and get the model reply"),
		okapi.DocTags("Chat"),
		okapi.DocRequestBody(ChatRequest{}),
		okapi.DocResponse(ChatResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
		okapi.DocResponse(http.StatusTooManyRequests, ErrorBody{}),
		okapi.DocResponse(http.StatusServiceUnavailable, ErrorBody{}),
	)
	g.group.Get("/conversations/{id}", g.handleConversationGet,
		okapi.DocSummary("Get conversation history"),
		okapi.DocTags("Conversations"),
		okapi.DocPathParam("id", "string", "Conversation ID (UUID)"),
		okapi.DocResponse(ConversationResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusForbidden, ErrorBody{}),
	)
	g.group.Delete("/conversations/{id}", g.handleConversationDelete,
		okapi.DocSummary("Delete a conversation"),
		okapi.DocTags("Conversations"),
		okapi.DocPathParam("id", "string", "Conversation ID (UUID)"),
		okapi.DocResponse(map[string]string{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusForbidden, ErrorBody{}),
	)
	g.group.Get("/healthz", g.handleHealth,
		okapi.DocSummary("Authenticated health check"),
		okapi.DocTags("Health"),
		okapi.DocResponse(HealthResponse{}),
	)

	// SSE streaming endpoint.
	if g.sseEnabled {
		g.group.Post("/chat/stream", g.handleChatStream,
			okapi.DocSummary("Stream a chat reply via SSE"),
			okapi.DocTags("Chat"),
			okapi.DocRequestBody(ChatRequest{}),
			okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
			okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
		)
	}

	// Extra handlers (e.g., WebSocket chat endpoint).
	for _, er := range g.extraRoutes {
		g.okapi.HandleStd("GET", er.pattern, er.handler.ServeHTTP)
	}

	// Browser chat page (unauthenticated; the page itself asks for an API key).
	g.okapi.HandleStd("GET", "/", g.handleIndex)

	// Observability endpoints (unauthenticated).
	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.WithOpenAPIDocs()
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second, // model turns can be slow
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http gateway starting", slog.String("addr", g.config.ListenAddr))

	return g.okapi.StartServer(g.server)
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http gateway stopping")
	return g.okapi.Shutdown(g.server)
}

// --- Handlers ---

// ChatRequest is the JSON body for POST /v1/chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"` // Empty = new conversation.
}

// ChatResponse is the JSON response for POST /v1/chat.
type ChatResponse struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversation_id"`
	CorrelationID  string `json:"correlation_id"`
	InputTokens    int    `json:"input_tokens,omitempty"`
	OutputTokens   int    `json:"output_tokens,omitempty"`
}

func (g *Gateway) handleChat(c *okapi.Context) error {
	userID := c.GetString("userID")

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

	g.logger.Info("http chat",
		slog.String("user_id", userID),
		slog.String("correlation_id", correlationID),
		slog.String("conversation_id", convID.String()),
	)

	result, err := g.chat.Turn(c.Context(), userID, convID, req.Message)
	if err != nil {
		var unavailable *awsauth.CredentialUnavailableError
		if errors.As(err, &unavailable) {
			g.logger.Error("chat turn failed: credentials unavailable",
				slog.String("correlation_id", correlationID),
				slog.String("strategy", string(unavailable.Strategy)),
			)
			return c.AbortServiceUnavailable("model backend credentials unavailable")
		}

		g.logger.Error("chat turn failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
		return c.AbortInternalServerError("chat turn failed")
	}

	return c.OK(ChatResponse{
		Reply:          result.Reply,
		ConversationID: result.ConversationID.String(),
		CorrelationID:  correlationID,
		InputTokens:    result.Usage.InputTokens,
		OutputTokens:   result.Usage.OutputTokens,
	})
}

// ConversationMessage is one message in a conversation history response.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationResponse is the JSON response for GET /v1/conversations/{id}.
type ConversationResponse struct {
	ConversationID string                `json:"conversation_id"`
	Messages       []ConversationMessage `json:"messages"`
}

func (g *Gateway) handleConversationGet(c *okapi.Context) error {
	userID := c.GetString("userID")

	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("invalid conversation ID")
	}

	msgs, err := g.chat.History(c.Context(), userID, convID)
	if err != nil {
		return c.JSON(http.StatusForbidden, okapi.M{"error": "conversation not accessible"})
	}

	resp := ConversationResponse{
		ConversationID: convID.String(),
		Messages:       make([]ConversationMessage, len(msgs)),
	}
	for i, m := range msgs {
		resp.Messages[i] = ConversationMessage{Role: string(m.Role), Content: m.Content}
	}
	return c.OK(resp)
}

func (g *Gateway) handleConversationDelete(c *okapi.Context) error {
	userID := c.GetString("userID")

	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("invalid conversation ID")
	}

	if err := g.chat.Delete(c.Context(), userID, convID); err != nil {
		return c.JSON(http.StatusForbidden, okapi.M{"error": "conversation not accessible"})
	}

	g.logger.Info("conversation deleted",
		slog.String("user_id", userID),
		slog.String("conversation_id", convID.String()),
	)
	return c.OK(map[string]string{"status": "deleted"})
}

// HealthResponse is the JSON response for the health endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

func (g *Gateway) handleHealth(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleLiveness is the Kubernetes liveness probe.
func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness reports readiness. The gateway is only constructed
// after credential resolution succeeded, so reaching this handler at
// all means the process is ready to serve.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleIndex serves the embedded single-page chat UI.
func (g *Gateway) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page, err := uiFS.ReadFile("ui/index.html")
	if err != nil {
		http.Error(w, "chat page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// --- Authentication ---

// authenticate validates the API key and stores the mapped user ID in
// the request context.
func (g *Gateway) authenticate(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		authHeader := c.Header("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.AbortUnauthorized("missing or invalid Authorization header")
		}
		apiKey := strings.TrimPrefix(authHeader, "Bearer ")

		userID := ""
		for key, mapped := range g.config.APIKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
				userID = mapped
			}
		}
		if userID == "" {
			return c.AbortUnauthorized("invalid API key")
		}
		c.Set("userID", userID)
		return next(c)
	}
}

// --- Helpers ---

// parseConversationID turns the client-supplied ID into a UUID,
// generating a fresh one when the field is empty.
func parseConversationID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.New(), nil
	}
	return uuid.Parse(raw)
}

func newCorrelationID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
