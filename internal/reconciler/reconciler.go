package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/CalosDev/aquitado-ops/internal/concierge"
	"github.com/CalosDev/aquitado-ops/internal/domain"
	"github.com/CalosDev/aquitado-ops/internal/store"
	"github.com/CalosDev/aquitado-ops/internal/whatsapp"
	ws "github.com/CalosDev/aquitado-ops/internal/websocket"
)

// businessMarker matches the business id a deep link embeds in the first
// message text, e.g. "Hola [biz:3f2a8b1c-...]".
var businessMarker = regexp.MustCompile(`biz:([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})`)

const (
	handoffSuffix = "\n\nReply AGENT at any time to talk to a person."

	dedupTTL           = 24 * time.Hour
	businessCacheTTL   = 5 * time.Minute
	conciergeLimit     = 5
	maxSuggestions     = 3
	activityPreviewLen = 80
)

// Narrow views of the collaborators, so tests can fake them.

type BusinessStore interface {
	GetBusiness(ctx context.Context, id string) (*domain.Business, error)
}

type ConversationStore interface {
	UpsertConversation(ctx context.Context, organizationID string, businessID *string, customerPhone string, customerName *string) (*domain.Conversation, error)
	LatestConversationByPhone(ctx context.Context, customerPhone string) (*domain.Conversation, error)
}

type MessageStore interface {
	CreateMessage(ctx context.Context, rec store.MessageRecord) (*domain.Message, error)
}

type WebhookEventStore interface {
	CreateWebhookEvent(ctx context.Context, source string, payload []byte, externalEventID *string) (*domain.WebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id string) error
	MarkWebhookFailed(ctx context.Context, id string, errMsg string) error
}

type DedupStore interface {
	Seen(ctx context.Context, providerMessageID string) (bool, error)
	MarkSeen(ctx context.Context, providerMessageID string, ttl time.Duration) (bool, error)
}

type Sender interface {
	SendText(ctx context.Context, msg whatsapp.TextMessage) (whatsapp.SendResult, error)
	SendLocation(ctx context.Context, msg whatsapp.LocationMessage) (whatsapp.SendResult, error)
}

type Concierge interface {
	Query(ctx context.Context, query string, limit int) (*concierge.Answer, error)
}

type ReplyLimiter interface {
	Allow(ctx context.Context, phone string) bool
}

type Broadcaster interface {
	BroadcastActivity(event ws.ActivityEvent)
}

// Reconciler turns provider webhook deliveries into persisted conversation
// state and replies. Messages within one delivery are processed in payload
// order, each fully completed before the next; the first failure marks the
// whole delivery FAILED and propagates, relying on provider redelivery.
type Reconciler struct {
	businesses    BusinessStore
	conversations ConversationStore
	messages      MessageStore
	events        WebhookEventStore
	dedup         DedupStore
	sender        Sender
	autoReplier   concierge.AutoReplier
	concierge     Concierge
	limiter       ReplyLimiter
	broadcaster   Broadcaster
	bizCache      *gocache.Cache
	logger        *slog.Logger
}

type Deps struct {
	Businesses    BusinessStore
	Conversations ConversationStore
	Messages      MessageStore
	Events        WebhookEventStore
	Dedup         DedupStore
	Sender        Sender
	AutoReplier   concierge.AutoReplier
	Concierge     Concierge
	Limiter       ReplyLimiter
	Broadcaster   Broadcaster
}

func New(deps Deps, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		businesses:    deps.Businesses,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		events:        deps.Events,
		dedup:         deps.Dedup,
		sender:        deps.Sender,
		autoReplier:   deps.AutoReplier,
		concierge:     deps.Concierge,
		limiter:       deps.Limiter,
		broadcaster:   deps.Broadcaster,
		bizCache:      gocache.New(businessCacheTTL, 10*time.Minute),
		logger:        logger,
	}
}

// Process handles one webhook delivery. Returns the number of messages fully
// processed. The webhook event row moves RECEIVED → PROCESSED or FAILED
// exactly once.
func (r *Reconciler) Process(ctx context.Context, raw []byte, source string) (int, error) {
	var externalID *string
	if id := whatsapp.ExternalEventID(raw); id != "" {
		externalID = &id
	}

	event, err := r.events.CreateWebhookEvent(ctx, source, raw, externalID)
	if err != nil {
		return 0, fmt.Errorf("recording webhook event: %w", err)
	}

	messages, err := whatsapp.ParseInbound(raw)
	if err != nil {
		r.markFailed(ctx, event.ID, err)
		return 0, err
	}

	processed := 0
	for i := range messages {
		if err := r.processMessage(ctx, &messages[i]); err != nil {
			r.markFailed(ctx, event.ID, err)
			return processed, fmt.Errorf("processing message %q: %w", messages[i].ExternalMessageID, err)
		}
		processed++
	}

	if err := r.events.MarkWebhookProcessed(ctx, event.ID); err != nil {
		r.logger.Error("failed to mark webhook processed", "error", err, "event_id", event.ID)
	}

	r.logger.Info("webhook processed", "event_id", event.ID, "messages", processed, "source", source)
	return processed, nil
}

func (r *Reconciler) markFailed(ctx context.Context, eventID string, cause error) {
	if err := r.events.MarkWebhookFailed(ctx, eventID, cause.Error()); err != nil {
		r.logger.Error("failed to mark webhook failed", "error", err, "event_id", eventID)
	}
}

// processMessage wraps handleMessage with the dedup check. The message id is
// marked seen only after handling completes, so a failed message stays fresh
// and the provider's redelivery reprocesses it.
func (r *Reconciler) processMessage(ctx context.Context, msg *whatsapp.InboundText) error {
	seen, err := r.dedup.Seen(ctx, msg.ExternalMessageID)
	if err != nil {
		// Dedup is an optimization; fail open rather than dropping messages.
		r.logger.Warn("dedup check failed", "error", err, "message_id", msg.ExternalMessageID)
		seen = false
	}
	if seen {
		r.logger.Info("duplicate provider message skipped", "message_id", msg.ExternalMessageID)
		return nil
	}

	if err := r.handleMessage(ctx, msg); err != nil {
		return err
	}

	if _, err := r.dedup.MarkSeen(ctx, msg.ExternalMessageID, dedupTTL); err != nil {
		r.logger.Warn("failed to mark message seen", "error", err, "message_id", msg.ExternalMessageID)
	}
	return nil
}

func (r *Reconciler) handleMessage(ctx context.Context, msg *whatsapp.InboundText) error {
	business, err := r.resolveBusiness(ctx, msg.Text)
	if err != nil {
		return err
	}

	prior, err := r.conversations.LatestConversationByPhone(ctx, msg.From)
	if err != nil {
		return err
	}

	organizationID := ""
	var businessID *string
	if business != nil {
		organizationID = business.OrganizationID
		businessID = &business.ID
	} else if prior != nil {
		organizationID = prior.OrganizationID
		businessID = prior.BusinessID
	}

	if organizationID == "" {
		// No deep-link marker and no history: nothing to attach the message to.
		r.logger.Info("inbound message has no resolvable organization, dropping",
			"from", msg.From, "message_id", msg.ExternalMessageID)
		return nil
	}

	conversation, err := r.conversations.UpsertConversation(ctx, organizationID, businessID, msg.From, nilIfEmpty(msg.ProfileName))
	if err != nil {
		return err
	}

	rawMsg, _ := json.Marshal(msg)
	if _, err := r.messages.CreateMessage(ctx, store.MessageRecord{
		ConversationID:    conversation.ID,
		Direction:         domain.DirectionInbound,
		Status:            domain.MessageReceived,
		ProviderMessageID: nilIfEmpty(msg.ExternalMessageID),
		SenderPhone:       msg.From,
		RecipientPhone:    msg.ToPhoneNumberID,
		Content:           msg.Text,
		RawPayload:        rawMsg,
	}); err != nil {
		return err
	}

	r.broadcast("message_inbound", conversation, msg.Text, true)

	if !conversation.AutoResponderActive {
		r.logger.Info("auto-responder paused for conversation, no reply",
			"conversation_id", conversation.ID)
		return nil
	}
	if r.limiter != nil && !r.limiter.Allow(ctx, msg.From) {
		r.logger.Warn("reply rate limited", "phone", msg.From, "conversation_id", conversation.ID)
		return nil
	}

	reply, location, err := r.buildReply(ctx, business, msg)
	if err != nil {
		return err
	}

	textResult, err := r.sender.SendText(ctx, whatsapp.TextMessage{To: msg.From, Text: reply})
	if err != nil {
		return err
	}
	if location != nil {
		location.To = msg.From
		if _, err := r.sender.SendLocation(ctx, *location); err != nil {
			return err
		}
	}

	status := domain.MessageSent
	if !textResult.Sent {
		status = domain.MessageFailed
	}
	if _, err := r.messages.CreateMessage(ctx, store.MessageRecord{
		ConversationID:    conversation.ID,
		Direction:         domain.DirectionOutbound,
		Status:            status,
		ProviderMessageID: nilIfEmpty(textResult.ProviderMessageID),
		SenderPhone:       msg.ToPhoneNumberID,
		RecipientPhone:    msg.From,
		Content:           reply,
		RawPayload:        textResult.RawResponse,
	}); err != nil {
		return err
	}

	r.broadcast("message_outbound", conversation, reply, textResult.Sent)
	return nil
}

// resolveBusiness extracts an embedded business marker from the message text
// and loads that business, through a short-lived cache. A marker pointing at
// a business that no longer exists is treated as no marker.
func (r *Reconciler) resolveBusiness(ctx context.Context, text string) (*domain.Business, error) {
	match := businessMarker.FindStringSubmatch(text)
	if match == nil {
		return nil, nil
	}

	id, err := uuid.Parse(match[1])
	if err != nil {
		return nil, nil
	}
	key := id.String()

	if cached, ok := r.bizCache.Get(key); ok {
		return cached.(*domain.Business), nil
	}

	business, err := r.businesses.GetBusiness(ctx, key)
	if err != nil {
		return nil, err
	}
	if business != nil {
		r.bizCache.Set(key, business, gocache.DefaultExpiration)
	}
	return business, nil
}

// buildReply composes the outbound text and optional location. Business
// context with an enabled auto-responder gets the scoped generator plus the
// human-handoff suffix; everything else goes through the concierge search.
func (r *Reconciler) buildReply(ctx context.Context, business *domain.Business, msg *whatsapp.InboundText) (string, *whatsapp.LocationMessage, error) {
	if business != nil && business.AutoResponderEnabled {
		reply, err := r.autoReplier.Generate(ctx, business.ID, msg.Text, msg.ProfileName)
		if err != nil {
			return "", nil, err
		}
		reply += handoffSuffix

		var location *whatsapp.LocationMessage
		if business.HasCoordinates() {
			location = &whatsapp.LocationMessage{
				Latitude:  *business.Latitude,
				Longitude: *business.Longitude,
				Name:      business.Name,
				Address:   deref(business.Address),
			}
		}
		return reply, location, nil
	}

	answer, err := r.concierge.Query(ctx, msg.Text, conciergeLimit)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString(answer.Answer)

	shown := answer.Data
	if len(shown) > maxSuggestions {
		shown = shown[:maxSuggestions]
	}
	if len(shown) > 0 {
		b.WriteString("\n")
		for i, s := range shown {
			fmt.Fprintf(&b, "\n%d. %s", i+1, s.Name)
			if s.Link != "" {
				fmt.Fprintf(&b, " — %s", s.Link)
			}
		}
	}

	var location *whatsapp.LocationMessage
	for i := range shown {
		if shown[i].HasCoordinates() {
			location = &whatsapp.LocationMessage{
				Latitude:  *shown[i].Latitude,
				Longitude: *shown[i].Longitude,
				Name:      shown[i].Name,
				Address:   deref(shown[i].Address),
			}
			break
		}
	}

	return b.String(), location, nil
}

func (r *Reconciler) broadcast(eventType string, conversation *domain.Conversation, text string, sent bool) {
	if r.broadcaster == nil {
		return
	}
	preview := text
	if len(preview) > activityPreviewLen {
		cut := activityPreviewLen
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}
	r.broadcaster.BroadcastActivity(ws.ActivityEvent{
		Type:           eventType,
		ConversationID: conversation.ID,
		OrganizationID: conversation.OrganizationID,
		CustomerPhone:  conversation.CustomerPhone,
		Preview:        preview,
		Sent:           sent,
		Timestamp:      time.Now(),
	})
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
