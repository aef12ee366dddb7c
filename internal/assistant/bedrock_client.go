package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/rafamhanel/web-app-agenda/internal/apperrors"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockLLMClient implements LLMClient over the Bedrock Converse API.
type BedrockLLMClient struct {
	api     bedrockConverseAPI
	modelID string
}

func NewBedrockLLMClient(api bedrockConverseAPI, modelID string) *BedrockLLMClient {
	if api == nil {
		panic("assistant: bedrock converse client cannot be nil")
	}
	return &BedrockLLMClient{api: api, modelID: strings.TrimSpace(modelID)}
}

func (c *BedrockLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	modelID := c.modelID
	if modelID == "" {
		modelID = strings.TrimSpace(req.Model)
	}
	if modelID == "" {
		return LLMResponse{}, errors.New("assistant: bedrock model id is required")
	}

	system, messages, err := bedrockConversation(req)
	if err != nil {
		return LLMResponse{}, err
	}
	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(modelID),
		System:          system,
		Messages:        messages,
		InferenceConfig: bedrockInference(req),
	})
	if err != nil {
		return LLMResponse{}, apperrors.External("bedrock", "converse", err)
	}

	text, err := bedrockText(out)
	if err != nil {
		return LLMResponse{}, apperrors.External("bedrock", "converse", err)
	}
	resp := LLMResponse{Text: strings.TrimSpace(text), Finish: string(out.StopReason)}
	if u := out.Usage; u != nil {
		resp.Usage = Usage{Input: aws.ToInt32(u.InputTokens), Output: aws.ToInt32(u.OutputTokens)}
	}
	return resp, nil
}

// bedrockConversation splits req into system blocks and chat turns. System
// role messages join the system blocks. Turns are reshaped by AlternateTurns
// since Converse rejects a dialog that does not open with the user or that
// repeats a role.
func bedrockConversation(req LLMRequest) ([]brtypes.SystemContentBlock, []brtypes.Message, error) {
	var system []brtypes.SystemContentBlock
	addSystem := func(text string) {
		if text = strings.TrimSpace(text); text != "" {
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: text})
		}
	}
	for _, s := range req.System {
		addSystem(s)
	}

	turns := AlternateTurns(req.Messages)
	messages := make([]brtypes.Message, 0, len(turns))
	for _, m := range turns {
		var role brtypes.ConversationRole
		switch m.Role {
		case ChatRoleSystem:
			addSystem(m.Content)
			continue
		case ChatRoleUser:
			role = brtypes.ConversationRoleUser
		case ChatRoleAssistant:
			role = brtypes.ConversationRoleAssistant
		default:
			return nil, nil, fmt.Errorf("assistant: unsupported role %q", m.Role)
		}
		messages = append(messages, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
		})
	}
	if len(messages) == 0 {
		return nil, nil, errors.New("assistant: bedrock requires a user turn")
	}
	return system, messages, nil
}

// bedrockInference returns nil when req leaves every knob at the provider
// default. A negative temperature means "provider default".
func bedrockInference(req LLMRequest) *brtypes.InferenceConfiguration {
	if req.MaxTokens <= 0 && req.Temperature < 0 {
		return nil
	}
	cfg := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		cfg.MaxTokens = aws.Int32(req.MaxTokens)
	}
	if req.Temperature >= 0 {
		cfg.Temperature = aws.Float32(req.Temperature)
	}
	return cfg
}

func bedrockText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("empty response")
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("response has no message output")
	}
	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if t, ok := block.(*brtypes.ContentBlockMemberText); ok {
			sb.WriteString(t.Value)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", errors.New("response has no text blocks")
	}
	return sb.String(), nil
}
