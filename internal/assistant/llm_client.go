package assistant

import (
	"context"
	"strings"
)

// ChatRole says who wrote a ChatMessage.
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of a client conversation as the model sees it:
// the client speaks as the user, the professional's automation as the
// assistant.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// LLMRequest is a single completion for one of the assistant purposes
// (classify, extract, reply).
type LLMRequest struct {
	Model    string
	System   []string
	Messages []ChatMessage
	// MaxTokens <= 0 and Temperature < 0 leave the provider defaults.
	MaxTokens   int32
	Temperature float32
	// JSON asks for a JSON-only answer when the provider supports it.
	JSON bool
}

// Usage counts tokens for the llm token metric.
type Usage struct {
	Input  int32
	Output int32
}

type LLMResponse struct {
	Text   string
	Usage  Usage
	Finish string
}

// LLMClient is a chat completion provider (Gemini, Bedrock or a failover
// pair of both).
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// AlternateTurns shapes a dialog the way chat providers accept it: it opens
// with a user turn and user/assistant roles alternate. Leading assistant
// turns are dropped and consecutive turns of one role are joined. Blank
// turns are skipped; system turns are passed through in place for the
// adapter to lift out.
func AlternateTurns(msgs []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	last := -1
	for _, m := range msgs {
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		if m.Role == ChatRoleSystem {
			out = append(out, ChatMessage{Role: m.Role, Content: text})
			continue
		}
		if last < 0 && m.Role != ChatRoleUser {
			continue
		}
		if last >= 0 && out[last].Role == m.Role {
			out[last].Content += "\n" + text
			continue
		}
		out = append(out, ChatMessage{Role: m.Role, Content: text})
		last = len(out) - 1
	}
	return out
}
