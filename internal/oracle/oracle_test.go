package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"newsdroid/internal/domain"

	"github.com/openai/openai-go"
	"go.opentelemetry.io/otel/trace"
)

type stubLLMClient struct {
	response *openai.ChatCompletion
	err      error
	params   openai.ChatCompletionNewParams
	calls    int
}

func (s *stubLLMClient) CreateChatCompletion(_ context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	s.calls++
	s.params = params
	return s.response, s.err
}

func newTestClient(llm LLMClient, cfg Config) *Client {
	return NewClient(trace.NewNoopTracerProvider().Tracer("test"), llm, cfg)
}

func TestClassifyHappyPath(t *testing.T) {
	llm := &stubLLMClient{
		response: &openai.ChatCompletion{
			Model: "gpt-4o-mini-2024-07-18",
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: " Buy\n"}, FinishReason: "stop"},
			},
		},
	}
	c := newTestClient(llm, Config{})

	got, err := c.Classify(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != " Buy\n" {
		t.Fatalf("reply must be passed through untouched, got %q", got.Text)
	}
	if got.Model != "gpt-4o-mini-2024-07-18" || got.FinishReason != "stop" {
		t.Fatalf("unexpected completion: %+v", got)
	}
	if llm.params.Model != defaultModel {
		t.Fatalf("expected default model, got %q", llm.params.Model)
	}
	if len(llm.params.Messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(llm.params.Messages))
	}
	if llm.params.Temperature.Value != 0 || llm.params.MaxTokens.Value != 8 {
		t.Fatalf("unexpected sampling params: temp=%v max=%v", llm.params.Temperature.Value, llm.params.MaxTokens.Value)
	}
}

func TestClassifyFallsBackToConfiguredModelName(t *testing.T) {
	llm := &stubLLMClient{
		response: &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "0.3"}}},
		},
	}
	c := newTestClient(llm, Config{Model: "gpt-4o", MaxTokens: 4})

	got, err := c.Classify(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Model != "gpt-4o" {
		t.Fatalf("expected configured model, got %q", got.Model)
	}
}

func TestClassifyErrors(t *testing.T) {
	cases := []struct {
		name string
		llm  LLMClient
	}{
		{"api error", &stubLLMClient{err: errors.New("429 too many requests")}},
		{"no choices", &stubLLMClient{response: &openai.ChatCompletion{}}},
		{"nil response", &stubLLMClient{}},
		{"no client", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestClient(tc.llm, Config{}).Classify(context.Background(), "prompt")
			if domain.KindOf(err) != domain.KindOracleUnavailable {
				t.Fatalf("expected oracle unavailable, got %v", err)
			}
		})
	}
}

func TestClassifyDeadlineIsTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	llm := &stubLLMClient{err: errors.New("request canceled")}
	_, err := newTestClient(llm, Config{}).Classify(ctx, "prompt")
	if domain.KindOf(err) != domain.KindTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}
