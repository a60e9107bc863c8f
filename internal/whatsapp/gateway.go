package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/CalosDev/aquitado-ops/internal/health"
)

var tracer = otel.Tracer("aquitado.whatsapp")

// Send result reasons for the non-error degraded paths.
const (
	ReasonInvalidInput  = "invalid_phone_or_text"
	ReasonDisabled      = "whatsapp_disabled"
	ReasonProviderError = "provider_error"
	ReasonTransport     = "transport_error"
)

// Provider-imposed content caps.
const (
	maxTextLen     = 4096
	maxLocNameLen  = 100
	maxAddressLen  = 300
	minPhoneDigits = 8
)

// Config gates the gateway between real sends and simulated fallback.
type Config struct {
	Enabled       bool
	PhoneNumberID string
	AccessToken   string
	APIVersion    string
	BaseURL       string
}

// Gateway sends single text/location messages to the WhatsApp Cloud API.
// When unconfigured it degrades to a simulated no-op: callers get a
// simulated provider id and must treat the result as degraded, not failed.
type Gateway struct {
	client  *resty.Client
	cfg     Config
	tracker *health.Tracker
	logger  *slog.Logger
}

// TextMessage is a single outbound text send.
type TextMessage struct {
	To         string
	Text       string
	PreviewURL bool
}

// LocationMessage is a single outbound map-pin send.
type LocationMessage struct {
	To        string
	Latitude  float64
	Longitude float64
	Name      string
	Address   string
}

// SendResult reports the outcome of one send. Sent is false on every
// degraded path; Reason says which one. RawResponse carries the provider's
// response body verbatim when one was received.
type SendResult struct {
	Sent              bool            `json:"sent"`
	ProviderMessageID string          `json:"provider_message_id,omitempty"`
	Reason            string          `json:"reason,omitempty"`
	RawResponse       json.RawMessage `json:"raw_response,omitempty"`
}

func NewGateway(cfg Config, tracker *health.Tracker, logger *slog.Logger) *Gateway {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v19.0"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10 * time.Second)

	if cfg.AccessToken != "" {
		client.SetAuthToken(cfg.AccessToken)
	}

	return &Gateway{
		client:  client,
		cfg:     cfg,
		tracker: tracker,
		logger:  logger,
	}
}

func (g *Gateway) enabled() bool {
	return g.cfg.Enabled && g.cfg.AccessToken != "" && g.cfg.PhoneNumberID != ""
}

// SendText sends one text message. Validation failures and disabled-provider
// fallback return normally with Sent=false; only transport failures return a
// non-nil error.
func (g *Gateway) SendText(ctx context.Context, msg TextMessage) (SendResult, error) {
	phone := digitsOnly(msg.To)
	text := strings.TrimSpace(msg.Text)
	if len(phone) < minPhoneDigits || text == "" {
		return SendResult{Reason: ReasonInvalidInput}, nil
	}

	if !g.enabled() {
		return g.simulated(phone, "send_text"), nil
	}

	body := map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "text",
		"text": map[string]any{
			"body":        truncate(text, maxTextLen),
			"preview_url": msg.PreviewURL,
		},
	}
	return g.send(ctx, "send_text", phone, body)
}

// SendLocation sends one map pin.
func (g *Gateway) SendLocation(ctx context.Context, msg LocationMessage) (SendResult, error) {
	phone := digitsOnly(msg.To)
	if len(phone) < minPhoneDigits {
		return SendResult{Reason: ReasonInvalidInput}, nil
	}

	if !g.enabled() {
		return g.simulated(phone, "send_location"), nil
	}

	location := map[string]any{
		"latitude":  msg.Latitude,
		"longitude": msg.Longitude,
	}
	if name := strings.TrimSpace(msg.Name); name != "" {
		location["name"] = truncate(name, maxLocNameLen)
	}
	if address := strings.TrimSpace(msg.Address); address != "" {
		location["address"] = truncate(address, maxAddressLen)
	}

	body := map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "location",
		"location":          location,
	}
	return g.send(ctx, "send_location", phone, body)
}

// send issues the provider HTTP call, reports latency/outcome to the health
// tracker, and traces the attempt. Non-2xx responses are a degraded result;
// transport errors are the only path that propagates.
func (g *Gateway) send(ctx context.Context, operation, phone string, body map[string]any) (SendResult, error) {
	ctx, span := tracer.Start(ctx, "whatsapp."+operation,
		trace.WithAttributes(
			attribute.String("whatsapp.operation", operation),
			attribute.String("whatsapp.to", phone),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(fmt.Sprintf("/%s/%s/messages", g.cfg.APIVersion, g.cfg.PhoneNumberID))
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		g.tracker.Record("whatsapp", operation, elapsed, false)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SendResult{Reason: ReasonTransport}, fmt.Errorf("whatsapp %s: %w", operation, err)
	}

	raw := json.RawMessage(append([]byte(nil), resp.Body()...))

	if resp.IsError() {
		g.tracker.Record("whatsapp", operation, elapsed, false)
		span.SetStatus(codes.Error, resp.Status())
		g.logger.Warn("whatsapp send rejected",
			"operation", operation,
			"status_code", resp.StatusCode(),
			"response", string(resp.Body()),
		)
		return SendResult{Reason: ReasonProviderError, RawResponse: raw}, nil
	}

	g.tracker.Record("whatsapp", operation, elapsed, true)
	span.SetStatus(codes.Ok, "")

	var parsed struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	_ = json.Unmarshal(resp.Body(), &parsed)

	result := SendResult{Sent: true, RawResponse: raw}
	if len(parsed.Messages) > 0 {
		result.ProviderMessageID = parsed.Messages[0].ID
	}
	return result, nil
}

func (g *Gateway) simulated(phone, operation string) SendResult {
	g.logger.Info("whatsapp disabled, simulating send",
		"operation", operation,
		"to", phone,
	)
	return SendResult{
		ProviderMessageID: fmt.Sprintf("simulated-%d", time.Now().UnixMilli()),
		Reason:            ReasonDisabled,
	}
}

// VerifyChallenge implements the provider's webhook subscription handshake:
// the challenge is echoed back only for a subscribe request carrying the
// configured verify token.
func VerifyChallenge(mode, token, challenge, expected string) (string, bool) {
	if mode != "subscribe" || expected == "" || token != expected {
		return "", false
	}
	return challenge, true
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// truncate caps s at max bytes without splitting a multi-byte rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
