package whatsapp

import (
	"fmt"
	"time"
)

// WebhookEvent is the top-level payload Meta posts for WhatsApp Business.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
	Statuses         []Status  `json:"statuses"`
}

// Metadata identifies the business number that received the message.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type Message struct {
	From        string       `json:"from"`
	ID          string       `json:"id"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *TextBody    `json:"text,omitempty"`
	Button      *ButtonReply `json:"button,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

// ButtonReply is a tap on a template quick-reply button.
type ButtonReply struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

type Interactive struct {
	Type        string `json:"type"`
	ButtonReply *struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"button_reply,omitempty"`
	ListReply *struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"list_reply,omitempty"`
}

// Status is a delivery receipt for an outbound message.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
}

// InboundMessage is the normalized client message.
type InboundMessage struct {
	ID            string
	From          string
	ContactName   string
	Text          string
	Type          string
	PhoneNumberID string
	DisplayPhone  string
	Timestamp     time.Time
}

// SkipReason explains why a webhook produced no message.
type SkipReason string

const (
	SkipInvalidPayload SkipReason = "invalid_payload"
	SkipNoMessage      SkipReason = "no_message"
	SkipStatusUpdate   SkipReason = "status_update"
	SkipUnsupported    SkipReason = "unsupported_type"
)

// ParseResult holds either a Message or the Reason it was skipped.
type ParseResult struct {
	Message *InboundMessage
	Reason  SkipReason
}

// OK reports whether a message was found.
func (r ParseResult) OK() bool { return r.Message != nil }

// Template is a pre-approved message template.
type Template struct {
	Name       string              `json:"name"`
	Language   TemplateLanguage    `json:"language"`
	Components []TemplateComponent `json:"components,omitempty"`
}

type TemplateLanguage struct {
	Code string `json:"code"`
}

type TemplateComponent struct {
	Type       string              `json:"type"`
	Parameters []TemplateParameter `json:"parameters,omitempty"`
}

type TemplateParameter struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// BodyTemplate builds a pt_BR template whose body takes params in order.
func BodyTemplate(name string, params ...string) Template {
	tpl := Template{Name: name, Language: TemplateLanguage{Code: "pt_BR"}}
	if len(params) > 0 {
		comp := TemplateComponent{Type: "body"}
		for _, p := range params {
			comp.Parameters = append(comp.Parameters, TemplateParameter{Type: "text", Text: p})
		}
		tpl.Components = []TemplateComponent{comp}
	}
	return tpl
}

type sendRequest struct {
	MessagingProduct string    `json:"messaging_product"`
	RecipientType    string    `json:"recipient_type,omitempty"`
	To               string    `json:"to,omitempty"`
	Type             string    `json:"type,omitempty"`
	Text             *TextBody `json:"text,omitempty"`
	Template         *Template `json:"template,omitempty"`
	Status           string    `json:"status,omitempty"`
	MessageID        string    `json:"message_id,omitempty"`
}

// SendResponse is the Graph API answer to a send.
type SendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []SentMessage `json:"messages"`
	Success  bool          `json:"success"`
	Error    *APIError     `json:"error,omitempty"`
}

// SentMessage identifies an accepted outbound message.
type SentMessage struct {
	ID string `json:"id"`
}

// MessageID returns the id of the first sent message, if any.
func (r *SendResponse) MessageID() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}

// APIError is the error object returned by the Graph API.
type APIError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp: API error %d: %s", e.Code, e.Message)
}
