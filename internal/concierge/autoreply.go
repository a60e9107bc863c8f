package concierge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/CalosDev/aquitado-ops/internal/engine"
	"github.com/CalosDev/aquitado-ops/internal/health"
)

var tracer = otel.Tracer("aquitado.concierge")

// AutoReplier produces a business-scoped reply to one inbound customer text.
type AutoReplier interface {
	Generate(ctx context.Context, businessID, text, profileName string) (string, error)
}

const fallbackReply = "Thanks for your message! The team has been notified and will get back to you shortly."

// OpenAIReplier generates replies with a chat-completion model. Calls go
// through the circuit breaker under the "openai" key and are reported to the
// health tracker as ai:auto_reply samples. Without an API key it degrades to
// a static acknowledgement instead of erroring.
type OpenAIReplier struct {
	client  *openai.Client
	model   string
	breaker *engine.CircuitBreaker
	tracker *health.Tracker
	logger  *slog.Logger
}

func NewOpenAIReplier(apiKey, model string, breaker *engine.CircuitBreaker, tracker *health.Tracker, logger *slog.Logger) *OpenAIReplier {
	var client *openai.Client
	if apiKey != "" {
		client = openai.NewClient(apiKey)
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIReplier{
		client:  client,
		model:   model,
		breaker: breaker,
		tracker: tracker,
		logger:  logger,
	}
}

func (r *OpenAIReplier) Generate(ctx context.Context, businessID, text, profileName string) (string, error) {
	if r.client == nil {
		r.logger.Info("openai not configured, using fallback reply", "business_id", businessID)
		return fallbackReply, nil
	}

	ctx, span := tracer.Start(ctx, "concierge.auto_reply",
		trace.WithAttributes(attribute.String("business.id", businessID)),
	)
	defer span.End()

	greeting := "a customer"
	if profileName != "" {
		greeting = profileName
	}

	start := time.Now()
	reply, err := engine.Execute(r.breaker, ctx, "openai", func(ctx context.Context) (string, error) {
		resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: r.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleSystem,
					Content: "You are the WhatsApp assistant of a local business. " +
						"Answer briefly and helpfully, in the customer's language. " +
						"Never invent prices or opening hours you were not given.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: fmt.Sprintf("Message from %s: %s", greeting, text),
				},
			},
			MaxTokens: 300,
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("empty completion response")
		}
		return resp.Choices[0].Message.Content, nil
	})
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	r.tracker.Record("ai", "auto_reply", elapsed, err == nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("generating auto reply: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return reply, nil
}
