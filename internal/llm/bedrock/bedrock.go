// Package bedrock implements the LLM provider interface over the Amazon
// Bedrock Converse API.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/jkaninda/mwito/internal/awsauth"
	"github.com/jkaninda/mwito/internal/llm"
)

const (
	defaultMaxTokens = 4096
	maxRetryAttempts = 10
	requestTimeout   = 60 * time.Second

	// crossRegionPrefix routes requests through a cross-region
	// inference profile.
	crossRegionPrefix = "us."
)

// Client implements llm.Provider using the Bedrock Converse API.
type Client struct {
	api     *bedrockruntime.Client
	modelID string
	logger  *slog.Logger

	httpClient  *http.Client
	endpoint    string
	crossRegion bool
	thinking    *thinkingConfig
}

type thinkingConfig struct {
	budgetTokens int
}

// Option configures the Bedrock client.
type Option func(*Client)

// WithEndpoint overrides the service endpoint (useful for testing).
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCrossRegion enables cross-region inference: the model ID is
// prefixed with the geography routing prefix.
func WithCrossRegion() Option {
	return func(c *Client) { c.crossRegion = true }
}

// WithThinking enables extended thinking with the given token budget,
// forwarded as an additional model request field.
func WithThinking(budgetTokens int) Option {
	return func(c *Client) { c.thinking = &thinkingConfig{budgetTokens: budgetTokens} }
}

// NewClient creates a Bedrock provider from a resolved AWS config.
// The config's credential provider is consulted lazily by the SDK, so
// construction never performs a network call; deferred-verification
// strategies fail on the first Converse instead.
func NewClient(awsCfg aws.Config, modelID string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		modelID: modelID,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.crossRegion {
		c.modelID = crossRegionPrefix + c.modelID
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: requestTimeout}
	}

	awsCfg.HTTPClient = c.httpClient
	awsCfg.Retryer = func() aws.Retryer {
		return retry.AddWithMaxAttempts(retry.NewAdaptiveMode(), maxRetryAttempts)
	}

	c.api = bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if c.endpoint != "" {
			o.BaseEndpoint = aws.String(c.endpoint)
		}
	})
	return c
}

func (c *Client) Name() string { return "bedrock" }

// ModelID returns the effective model identifier, including the
// cross-region prefix when enabled.
func (c *Client) ModelID() string { return c.modelID }

// Converse sends the conversation to Bedrock.
func (c *Client) Converse(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	input := c.buildInput(req)

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		// Credential retrieval failures from deferred-verification
		// providers keep their identity through the SDK's wrapping;
		// surface them as-is so the turn handler can classify them.
		var unavailable *awsauth.CredentialUnavailableError
		if errors.As(err, &unavailable) {
			return nil, unavailable
		}
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}

	resp := c.toResponse(out)

	c.logger.DebugContext(ctx, "llm request completed",
		slog.String("provider", "bedrock"),
		slog.String("model", c.modelID),
		slog.Int("input_tokens", resp.Usage.InputTokens),
		slog.Int("output_tokens", resp.Usage.OutputTokens),
		slog.String("stop_reason", resp.StopReason),
	)

	return resp, nil
}

func (c *Client) buildInput(req *llm.Request) *bedrockruntime.ConverseInput {
	messages := make([]types.Message, len(req.Messages))
	for i, m := range req.Messages {
		role := types.ConversationRoleUser
		if m.Role == llm.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		messages[i] = types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	inference := &types.InferenceConfiguration{
		MaxTokens: aws.Int32(int32(maxTokens)),
	}
	if req.Temperature > 0 {
		inference.Temperature = aws.Float32(float32(req.Temperature))
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(c.modelID),
		Messages:        messages,
		InferenceConfig: inference,
	}
	if req.SystemPrompt != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.SystemPrompt},
		}
	}
	if c.thinking != nil {
		input.AdditionalModelRequestFields = document.NewLazyDocument(map[string]any{
			"thinking": map[string]any{
				"type":          "enabled",
				"budget_tokens": c.thinking.budgetTokens,
			},
		})
	}
	return input
}

func (c *Client) toResponse(out *bedrockruntime.ConverseOutput) *llm.Response {
	resp := &llm.Response{
		StopReason: string(out.StopReason),
	}

	if msg, ok := out.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			if text, ok := block.(*types.ContentBlockMemberText); ok {
				resp.Content += text.Value
			}
		}
	}

	if out.Usage != nil {
		if out.Usage.InputTokens != nil {
			resp.Usage.InputTokens = int(*out.Usage.InputTokens)
		}
		if out.Usage.OutputTokens != nil {
			resp.Usage.OutputTokens = int(*out.Usage.OutputTokens)
		}
	}
	return resp
}
