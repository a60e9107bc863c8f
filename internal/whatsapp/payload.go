package whatsapp

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Cloud API webhook envelope. Every branch is optional — status receipts,
// reactions and media messages arrive through the same endpoint, so each
// extraction step tolerates missing fields.
type webhookPayload struct {
	Object string         `json:"object"`
	Entry  []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	ID      string          `json:"id"`
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Field string       `json:"field"`
	Value webhookValue `json:"value"`
}

type webhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         valueMetadata    `json:"metadata"`
	Contacts         []contact        `json:"contacts"`
	Messages         []inboundMessage `json:"messages"`
}

type valueMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type contact struct {
	WaID    string         `json:"wa_id"`
	Profile contactProfile `json:"profile"`
}

type contactProfile struct {
	Name string `json:"name"`
}

type inboundMessage struct {
	From        string              `json:"from"`
	ID          string              `json:"id"`
	Timestamp   string              `json:"timestamp"`
	Type        string              `json:"type"`
	Text        *textBody           `json:"text,omitempty"`
	Button      *buttonReply        `json:"button,omitempty"`
	Interactive *interactiveContent `json:"interactive,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type buttonReply struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

type interactiveContent struct {
	Type        string      `json:"type"`
	ButtonReply *replyValue `json:"button_reply,omitempty"`
	ListReply   *replyValue `json:"list_reply,omitempty"`
}

type replyValue struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// InboundText is one normalized text-bearing message extracted from a webhook
// delivery.
type InboundText struct {
	ExternalMessageID string
	From              string
	ToPhoneNumberID   string
	Text              string
	ProfileName       string
}

// ParseInbound extracts every message that carries a from-phone and a
// resolvable text from a raw webhook payload, in payload order. Messages with
// no resolvable text (media, reactions, receipts) are dropped silently.
func ParseInbound(raw []byte) ([]InboundText, error) {
	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("unmarshaling webhook payload: %w", err)
	}

	var messages []InboundText
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.From == "" {
					continue
				}
				text := resolveText(&msg)
				if text == "" {
					continue
				}

				messages = append(messages, InboundText{
					ExternalMessageID: msg.ID,
					From:              msg.From,
					ToPhoneNumberID:   change.Value.Metadata.PhoneNumberID,
					Text:              text,
					ProfileName:       profileName(change.Value.Contacts, msg.From),
				})
			}
		}
	}

	return messages, nil
}

// ExternalEventID extracts the provider's entry id from a raw webhook
// payload, or "" when the payload has no entries.
func ExternalEventID(raw []byte) string {
	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	if len(payload.Entry) == 0 {
		return ""
	}
	return payload.Entry[0].ID
}

// resolveText applies the text precedence chain: plain body, button reply
// text, interactive button-reply title, interactive list-reply title. First
// non-empty match wins.
func resolveText(msg *inboundMessage) string {
	if msg.Text != nil {
		if body := strings.TrimSpace(msg.Text.Body); body != "" {
			return body
		}
	}
	if msg.Button != nil {
		if text := strings.TrimSpace(msg.Button.Text); text != "" {
			return text
		}
	}
	if msg.Interactive != nil {
		if msg.Interactive.ButtonReply != nil {
			if title := strings.TrimSpace(msg.Interactive.ButtonReply.Title); title != "" {
				return title
			}
		}
		if msg.Interactive.ListReply != nil {
			if title := strings.TrimSpace(msg.Interactive.ListReply.Title); title != "" {
				return title
			}
		}
	}
	return ""
}

// profileName returns the display name of the contact matching the sender's
// wa_id, falling back to the first contact in the batch.
func profileName(contacts []contact, from string) string {
	for _, c := range contacts {
		if c.WaID == from {
			return c.Profile.Name
		}
	}
	if len(contacts) > 0 {
		return contacts[0].Profile.Name
	}
	return ""
}
