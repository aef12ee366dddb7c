package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlternateTurns(t *testing.T) {
	tests := []struct {
		name string
		in   []ChatMessage
		want []ChatMessage
	}{
		{
			name: "window opening on an assistant turn",
			in: []ChatMessage{
				{Role: ChatRoleAssistant, Content: "Seu horário está confirmado."},
				{Role: ChatRoleAssistant, Content: "Até amanhã!"},
				{Role: ChatRoleUser, Content: "obrigado"},
				{Role: ChatRoleAssistant, Content: "Por nada!"},
			},
			want: []ChatMessage{
				{Role: ChatRoleUser, Content: "obrigado"},
				{Role: ChatRoleAssistant, Content: "Por nada!"},
			},
		},
		{
			name: "consecutive client messages are joined",
			in: []ChatMessage{
				{Role: ChatRoleUser, Content: "oi"},
				{Role: ChatRoleUser, Content: " "},
				{Role: ChatRoleUser, Content: "tem horário amanhã?"},
			},
			want: []ChatMessage{
				{Role: ChatRoleUser, Content: "oi\ntem horário amanhã?"},
			},
		},
		{
			name: "system turns stay in place and do not break a run",
			in: []ChatMessage{
				{Role: ChatRoleSystem, Content: "contexto"},
				{Role: ChatRoleUser, Content: "oi"},
				{Role: ChatRoleSystem, Content: "nota"},
				{Role: ChatRoleUser, Content: "alô"},
			},
			want: []ChatMessage{
				{Role: ChatRoleSystem, Content: "contexto"},
				{Role: ChatRoleUser, Content: "oi\nalô"},
				{Role: ChatRoleSystem, Content: "nota"},
			},
		},
		{
			name: "only assistant turns",
			in:   []ChatMessage{{Role: ChatRoleAssistant, Content: "Olá"}},
			want: []ChatMessage{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AlternateTurns(tt.in))
		})
	}
}
