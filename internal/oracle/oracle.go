package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"newsdroid/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	systemRole   = "You are a cryptocurrency trading expert."
	defaultModel = "gpt-4o-mini"
)

// LLMClient abstracts the chat completions call so tests can stub it.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Completion is the oracle reply decoded once at the boundary.
type Completion struct {
	Text         string
	Model        string
	FinishReason string
}

type Client struct {
	tracer trace.Tracer
	llm    LLMClient
	cfg    Config
}

func NewClient(tracer trace.Tracer, llm LLMClient, cfg Config) *Client {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8
	}
	return &Client{tracer: tracer, llm: llm, cfg: cfg}
}

// Classify sends prompt under the fixed trading-expert system role and returns the first choice.
func (c *Client) Classify(ctx context.Context, prompt string) (Completion, error) {
	ctx, span := c.tracer.Start(ctx, "oracle.classify")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.cfg.Model),
		attribute.Int("llm.prompt_length", len(prompt)),
	)

	if c.llm == nil {
		return Completion{}, domain.NewError(domain.KindOracleUnavailable, "oracle.classify", errors.New("llm client not configured"))
	}

	completion, err := c.llm.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemRole),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.cfg.Temperature),
		MaxTokens:   openai.Int(int64(c.cfg.MaxTokens)),
	})
	if err != nil {
		span.RecordError(err)
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return Completion{}, domain.NewError(domain.KindOracleUnavailable, "oracle.classify", err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return Completion{}, domain.NewError(domain.KindOracleUnavailable, "oracle.classify", errors.New("no choices in LLM response"))
	}

	choice := completion.Choices[0]
	out := Completion{
		Text:         choice.Message.Content,
		Model:        completion.Model,
		FinishReason: string(choice.FinishReason),
	}
	if out.Model == "" {
		out.Model = c.cfg.Model
	}
	span.SetAttributes(
		attribute.Int("llm.reply_length", len(out.Text)),
		attribute.String("llm.finish_reason", out.FinishReason),
	)
	return out, nil
}

// openAIClient wraps the official SDK's chat completions service.
type openAIClient struct {
	client openai.Client
}

func NewOpenAIClient(apiKey string) LLMClient {
	return &openAIClient{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

func (c *openAIClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
