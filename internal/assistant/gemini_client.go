package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/rafamhanel/web-app-agenda/internal/apperrors"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiLLMClient implements LLMClient over the Gemini chat API.
type GeminiLLMClient struct {
	client  *genai.Client
	modelID string
}

func NewGeminiLLMClient(ctx context.Context, apiKey, modelID string, opts ...option.ClientOption) (*GeminiLLMClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("assistant: gemini api key is required")
	}
	if modelID = strings.TrimSpace(modelID); modelID == "" {
		modelID = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("assistant: create gemini client: %w", err)
	}
	return &GeminiLLMClient{client: client, modelID: modelID}, nil
}

// Complete sends req as a chat: the last user turn is the prompt and earlier
// turns become history.
func (c *GeminiLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	turns := AlternateTurns(req.Messages)
	prompt, history, err := geminiSplit(turns)
	if err != nil {
		return LLMResponse{}, err
	}

	cs := c.model(req).StartChat()
	cs.History = geminiHistory(history)

	resp, err := cs.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return LLMResponse{}, apperrors.External("gemini", "generate", err)
	}
	text, finish, err := geminiText(resp)
	if err != nil {
		return LLMResponse{}, apperrors.External("gemini", "generate", err)
	}

	out := LLMResponse{Text: text, Finish: finish}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{Input: u.PromptTokenCount, Output: u.CandidatesTokenCount}
	}
	return out, nil
}

func (c *GeminiLLMClient) model(req LLMRequest) *genai.GenerativeModel {
	id := c.modelID
	if m := strings.TrimSpace(req.Model); m != "" {
		id = m
	}
	model := c.client.GenerativeModel(id)
	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}
	if sys := strings.TrimSpace(strings.Join(req.System, "\n\n")); sys != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(sys))
	}
	return model
}

// geminiSplit takes the closing user turn as the prompt. Gemini history must
// alternate and the prompt continues it, so a trailing model turn is dropped.
func geminiSplit(turns []ChatMessage) (string, []ChatMessage, error) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == ChatRoleUser {
			return turns[i].Content, turns[:i], nil
		}
	}
	return "", nil, errors.New("assistant: gemini requires a user turn")
}

// geminiHistory maps prior turns to Gemini roles ("user"/"model"). System and
// blank turns are skipped.
func geminiHistory(msgs []ChatMessage) []*genai.Content {
	history := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		text := strings.TrimSpace(m.Content)
		if text == "" || m.Role == ChatRoleSystem {
			continue
		}
		role := "user"
		if m.Role == ChatRoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(text)}})
	}
	return history
}

func geminiText(resp *genai.GenerateContentResponse) (string, string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", "", errors.New("no candidates")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", "", errors.New("empty content")
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", "", errors.New("empty content")
	}
	return text, cand.FinishReason.String(), nil
}

// Close releases the underlying connection.
func (c *GeminiLLMClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
