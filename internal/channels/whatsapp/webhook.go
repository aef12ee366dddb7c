package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ParseWebhook extracts the first client message of a webhook body.
// Delivery receipts and non-text media are reported as skipped.
func ParseWebhook(body []byte) ParseResult {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return ParseResult{Reason: SkipInvalidPayload}
	}

	reason := SkipNoMessage
	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			if len(value.Messages) == 0 {
				if len(value.Statuses) > 0 {
					reason = SkipStatusUpdate
				}
				continue
			}
			for _, m := range value.Messages {
				text, ok := messageText(m)
				if !ok {
					reason = SkipUnsupported
					continue
				}
				return ParseResult{Message: &InboundMessage{
					ID:            m.ID,
					From:          m.From,
					ContactName:   contactName(value.Contacts, m.From),
					Text:          text,
					Type:          m.Type,
					PhoneNumberID: value.Metadata.PhoneNumberID,
					DisplayPhone:  value.Metadata.DisplayPhoneNumber,
					Timestamp:     unixSeconds(m.Timestamp),
				}}
			}
		}
	}
	return ParseResult{Reason: reason}
}

func messageText(m Message) (string, bool) {
	switch m.Type {
	case "text":
		if m.Text != nil && strings.TrimSpace(m.Text.Body) != "" {
			return m.Text.Body, true
		}
	case "button":
		if m.Button != nil {
			return m.Button.Text, true
		}
	case "interactive":
		if m.Interactive == nil {
			break
		}
		if r := m.Interactive.ButtonReply; r != nil {
			return r.Title, true
		}
		if r := m.Interactive.ListReply; r != nil {
			return r.Title, true
		}
	}
	return "", false
}

func contactName(contacts []Contact, waID string) string {
	for _, c := range contacts {
		if c.WaID == waID {
			return c.Profile.Name
		}
	}
	return ""
}

func unixSeconds(s string) time.Time {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

// VerifyChallenge returns the challenge to echo when the subscription
// handshake is valid.
func VerifyChallenge(mode, token, challenge, verifyToken string) (string, bool) {
	if mode != "subscribe" || verifyToken == "" {
		return "", false
	}
	if !hmac.Equal([]byte(token), []byte(verifyToken)) {
		return "", false
	}
	return challenge, true
}

// VerifySignature checks the X-Hub-Signature-256 header against body.
func VerifySignature(appSecret string, body []byte, signature string) bool {
	if appSecret == "" || signature == "" {
		return false
	}
	const prefix = "sha256="
	if !strings.HasPrefix(signature, prefix) || len(signature) == len(prefix) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature[len(prefix):]))
}
