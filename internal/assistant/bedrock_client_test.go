package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafamhanel/web-app-agenda/internal/apperrors"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.out, f.err
}

func TestBedrockComplete(t *testing.T) {
	api := &fakeConverse{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: " Olá! "}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(12), OutputTokens: aws.Int32(3), TotalTokens: aws.Int32(15)},
	}}
	client := NewBedrockLLMClient(api, "anthropic.claude-3-haiku")

	resp, err := client.Complete(context.Background(), LLMRequest{
		System: []string{"seja breve"},
		Messages: []ChatMessage{
			{Role: ChatRoleUser, Content: "oi"},
			{Role: ChatRoleAssistant, Content: ""},
			{Role: ChatRoleSystem, Content: "extra"},
			{Role: ChatRoleUser, Content: "tudo bem?"},
		},
		MaxTokens:   300,
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "Olá!", resp.Text)
	assert.Equal(t, Usage{Input: 12, Output: 3}, resp.Usage)
	assert.Equal(t, "end_turn", resp.Finish)

	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(api.input.ModelId))
	assert.Len(t, api.input.System, 2)
	require.Len(t, api.input.Messages, 1)
	assert.Equal(t, brtypes.ConversationRoleUser, api.input.Messages[0].Role)
	assert.Equal(t, "oi\ntudo bem?", api.input.Messages[0].Content[0].(*brtypes.ContentBlockMemberText).Value)
	assert.Equal(t, int32(300), aws.ToInt32(api.input.InferenceConfig.MaxTokens))
}

func TestBedrockErrors(t *testing.T) {
	_, err := NewBedrockLLMClient(&fakeConverse{}, "").Complete(context.Background(), LLMRequest{})
	assert.Error(t, err)

	boom := errors.New("throttled")
	_, err = NewBedrockLLMClient(&fakeConverse{err: boom}, "m").Complete(context.Background(), LLMRequest{
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "oi"}},
	})
	assert.ErrorIs(t, err, boom)

	_, err = NewBedrockLLMClient(&fakeConverse{}, "m").Complete(context.Background(), LLMRequest{
		Messages: []ChatMessage{{Role: "tool", Content: "x"}},
	})
	assert.Error(t, err)
}

func TestBedrockFailuresAreExternal(t *testing.T) {
	_, err := NewBedrockLLMClient(&fakeConverse{err: errors.New("throttled")}, "m").Complete(context.Background(), LLMRequest{
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "oi"}},
	})
	assert.True(t, apperrors.IsExternal(err))

	_, err = NewBedrockLLMClient(&fakeConverse{out: &bedrockruntime.ConverseOutput{}}, "m").Complete(context.Background(), LLMRequest{
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "oi"}},
	})
	assert.True(t, apperrors.IsExternal(err))
}

func TestBedrockInference(t *testing.T) {
	assert.Nil(t, bedrockInference(LLMRequest{Temperature: -1}))

	cfg := bedrockInference(LLMRequest{Temperature: 0})
	require.NotNil(t, cfg)
	assert.Nil(t, cfg.MaxTokens)
	assert.Equal(t, float32(0), aws.ToFloat32(cfg.Temperature))
}
