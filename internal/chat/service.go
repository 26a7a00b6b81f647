package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/mwito/internal/awsauth"
	"github.com/jkaninda/mwito/internal/llm"
	"github.com/jkaninda/mwito/internal/observability"
)

// Service runs chat turns: it loads history, calls the model, and
// records the exchange. One Service is shared by all gateway surfaces.
type Service struct {
	provider llm.Provider
	store    HistoryStore
	logger   *slog.Logger
	metrics  *observability.MetricsCollector // nil = metrics disabled

	systemPrompt string
	maxHistory   int
	maxTokens    int
	temperature  float64
}

// Options configures a Service.
type Options struct {
	SystemPrompt string
	MaxHistory   int // messages kept in the model context window
	MaxTokens    int
	Temperature  float64
	Metrics      *observability.MetricsCollector
}

// NewService creates a chat service over the given provider and store.
func NewService(provider llm.Provider, store HistoryStore, logger *slog.Logger, opts Options) *Service {
	return &Service{
		provider:     provider,
		store:        store,
		logger:       logger,
		metrics:      opts.Metrics,
		systemPrompt: opts.SystemPrompt,
		maxHistory:   opts.MaxHistory,
		maxTokens:    opts.MaxTokens,
		temperature:  opts.Temperature,
	}
}

// TurnResult is the outcome of one successful chat turn.
type TurnResult struct {
	ConversationID uuid.UUID
	Reply          string
	Usage          llm.Usage
}

// Turn runs one user message through the model and returns the reply.
// Model and credential failures fail only this turn: the error
// propagates to the caller and the process keeps serving. A
// CredentialUnavailable failure from a deferred-verification strategy
// is counted separately so operators can tell it from model errors.
func (s *Service) Turn(ctx context.Context, userID string, convID uuid.UUID, text string) (*TurnResult, error) {
	convID, err := s.store.GetOrCreate(ctx, userID, convID)
	if err != nil {
		return nil, fmt.Errorf("opening conversation: %w", err)
	}

	history, err := s.store.History(ctx, convID, s.maxHistory)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	userMsg := llm.Message{Role: llm.RoleUser, Content: text}

	start := time.Now()
	resp, err := s.provider.Converse(ctx, &llm.Request{
		SystemPrompt: s.systemPrompt,
		Messages:     append(history, userMsg),
		MaxTokens:    s.maxTokens,
		Temperature:  s.temperature,
	})
	duration := time.Since(start)

	if err != nil {
		s.recordTurn(duration, "error")
		var unavailable *awsauth.CredentialUnavailableError
		if errors.As(err, &unavailable) {
			if s.metrics != nil {
				s.metrics.CredentialFailuresTotal.WithLabelValues(string(unavailable.Strategy)).Inc()
			}
			s.logger.Error("aws credentials unavailable",
				slog.String("strategy", string(unavailable.Strategy)),
				slog.String("error", err.Error()),
			)
			return nil, unavailable
		}
		return nil, fmt.Errorf("model turn failed: %w", err)
	}

	s.recordTurn(duration, "ok")
	if s.metrics != nil {
		s.metrics.LLMTokensUsed.WithLabelValues(s.provider.Name(), "input").Add(float64(resp.Usage.InputTokens))
		s.metrics.LLMTokensUsed.WithLabelValues(s.provider.Name(), "output").Add(float64(resp.Usage.OutputTokens))
	}

	assistantMsg := llm.Message{Role: llm.RoleAssistant, Content: resp.Content}
	if err := s.store.Append(ctx, convID, []llm.Message{userMsg, assistantMsg}); err != nil {
		return nil, fmt.Errorf("recording turn: %w", err)
	}

	return &TurnResult{
		ConversationID: convID,
		Reply:          resp.Content,
		Usage:          resp.Usage,
	}, nil
}

// History returns the stored messages for a conversation owned by the user.
func (s *Service) History(ctx context.Context, userID string, convID uuid.UUID) ([]llm.Message, error) {
	if _, err := s.store.GetOrCreate(ctx, userID, convID); err != nil {
		return nil, err
	}
	return s.store.History(ctx, convID, 0)
}

// Delete removes a conversation owned by the user.
func (s *Service) Delete(ctx context.Context, userID string, convID uuid.UUID) error {
	if _, err := s.store.GetOrCreate(ctx, userID, convID); err != nil {
		return err
	}
	return s.store.Delete(ctx, convID)
}

func (s *Service) recordTurn(d time.Duration, status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ChatTurnsTotal.WithLabelValues(status).Inc()
	s.metrics.ChatTurnDuration.Observe(d.Seconds())
	s.metrics.LLMRequestsTotal.WithLabelValues(s.provider.Name(), status).Inc()
}
