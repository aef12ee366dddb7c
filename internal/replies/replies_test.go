package replies

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var brt = time.FixedZone("BRT", -3*60*60)

func TestSlotFormatting(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"tuesday", time.Date(2024, 1, 16, 14, 0, 0, 0, brt), "terça-feira, 16 de janeiro às 14:00"},
		{"padded day", time.Date(2024, 3, 1, 9, 30, 0, 0, brt), "sexta-feira, 01 de março às 09:30"},
		{"utc converted", time.Date(2024, 12, 2, 12, 0, 0, 0, time.UTC), "segunda-feira, 02 de dezembro às 09:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slot(tt.at, brt))
		})
	}
}

func TestProposal(t *testing.T) {
	slots := []time.Time{
		time.Date(2024, 1, 15, 9, 0, 0, 0, brt),
		time.Date(2024, 1, 15, 10, 0, 0, 0, brt),
		time.Date(2024, 1, 16, 9, 0, 0, 0, brt),
	}
	got := Proposal(slots, brt)
	want := "Tenho esses horários disponíveis:\n\n" +
		"1. segunda-feira, 15 de janeiro às 09:00\n" +
		"2. segunda-feira, 15 de janeiro às 10:00\n" +
		"3. terça-feira, 16 de janeiro às 09:00\n\n" +
		"Qual funciona melhor pra você?"
	assert.Equal(t, want, got)

	assert.Equal(t, NoSlots, Proposal(nil, brt))
	assert.Equal(t, NoRescheduleSlots, RescheduleProposal(nil, brt))
	assert.True(t, strings.HasPrefix(RescheduleProposal(slots[:1], brt), "Sem problemas!"))
}

func TestConfirmedAndReminder(t *testing.T) {
	start := time.Date(2024, 1, 16, 14, 0, 0, 0, brt)
	assert.Equal(t, "Perfeito! ✅ Seu horário está confirmado para terça-feira, 16 de janeiro às 14:00. Te espero! 😊", Confirmed(start, brt))
	assert.Equal(t, "Oi Ana! Lembrete: você tem um horário marcado hoje às 14:00. Te espero! 😊",
		Reminder("Ana", start, start.Add(-3*time.Hour), brt))
}

func TestReminderDay(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		now   time.Time
		want  string
	}{
		{
			name:  "same day",
			start: time.Date(2024, 1, 16, 14, 0, 0, 0, brt),
			now:   time.Date(2024, 1, 16, 11, 0, 0, 0, brt),
			want:  "Oi! Lembrete: você tem um horário marcado hoje às 14:00. Te espero! 😊",
		},
		{
			name:  "past midnight",
			start: time.Date(2024, 1, 17, 0, 30, 0, 0, brt),
			now:   time.Date(2024, 1, 16, 22, 30, 0, 0, brt),
			want:  "Oi! Lembrete: você tem um horário marcado amanhã às 00:30. Te espero! 😊",
		},
		{
			// 01:30 UTC on the 17th is still the 16th in São Paulo.
			name:  "dates compared in the professional's zone",
			start: time.Date(2024, 1, 17, 1, 30, 0, 0, time.UTC),
			now:   time.Date(2024, 1, 16, 20, 0, 0, 0, brt),
			want:  "Oi! Lembrete: você tem um horário marcado hoje às 22:30. Te espero! 😊",
		},
		{
			name:  "further out",
			start: time.Date(2024, 1, 18, 9, 0, 0, 0, brt),
			now:   time.Date(2024, 1, 16, 9, 0, 0, 0, brt),
			want:  "Oi! Lembrete: você tem um horário marcado para quinta-feira, 18 de janeiro às 09:00. Te espero! 😊",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reminder(" ", tt.start, tt.now, brt))
		})
	}
}
