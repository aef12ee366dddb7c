// Package replies renders the fixed pt-BR client messages.
package replies

import (
	"fmt"
	"strings"
	"time"
)

const (
	CalendarFailure   = "Desculpe, não consegui confirmar esse horário. Pode me passar outra opção?"
	SlotTaken         = "Esse horário acabou de ser ocupado. Pode escolher outro horário?"
	NoSlots           = "No momento não tenho horários disponíveis nos próximos dias. Posso te avisar quando abrir uma vaga?"
	NoRescheduleSlots = "No momento não tenho outros horários disponíveis. Posso te avisar quando abrir uma vaga?"
	Cancelled         = "Seu agendamento foi cancelado com sucesso. Se precisar remarcar, é só me avisar! 😊"
	NoActiveToCancel  = "Não encontrei nenhum agendamento ativo no seu nome. Quer marcar um horário?"
	NoActiveToMove    = "Não encontrei nenhum agendamento ativo no seu nome. Quer marcar um horário novo?"
	Apology           = "Desculpe, estou com dificuldades técnicas no momento. Por favor, tente novamente em alguns instantes."
	Unprocessable     = "Desculpe, não consegui processar sua mensagem."
)

var weekdays = [...]string{
	"domingo", "segunda-feira", "terça-feira", "quarta-feira", "quinta-feira", "sexta-feira", "sábado",
}

var months = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// Date renders t as "terça-feira, 16 de janeiro" in loc.
func Date(t time.Time, loc *time.Location) string {
	t = in(t, loc)
	return fmt.Sprintf("%s, %02d de %s", weekdays[t.Weekday()], t.Day(), months[t.Month()-1])
}

// Clock renders t as "14:00" in loc.
func Clock(t time.Time, loc *time.Location) string {
	return in(t, loc).Format("15:04")
}

// Slot renders t as "terça-feira, 16 de janeiro às 14:00".
func Slot(t time.Time, loc *time.Location) string {
	return Date(t, loc) + " às " + Clock(t, loc)
}

// SlotList numbers slots from 1, one per line.
func SlotList(slots []time.Time, loc *time.Location) string {
	lines := make([]string, len(slots))
	for i, s := range slots {
		lines[i] = fmt.Sprintf("%d. %s", i+1, Slot(s, loc))
	}
	return strings.Join(lines, "\n")
}

// Confirmed is sent after a booking succeeds.
func Confirmed(start time.Time, loc *time.Location) string {
	return fmt.Sprintf("Perfeito! ✅ Seu horário está confirmado para %s. Te espero! 😊", Slot(start, loc))
}

// Rescheduled is sent after a reschedule completes.
func Rescheduled(start time.Time, loc *time.Location) string {
	return fmt.Sprintf("Pronto! ✅ Seu horário foi remarcado para %s. Te espero! 😊", Slot(start, loc))
}

// Proposal offers slots for a new booking, or NoSlots when there are none.
func Proposal(slots []time.Time, loc *time.Location) string {
	if len(slots) == 0 {
		return NoSlots
	}
	return fmt.Sprintf("Tenho esses horários disponíveis:\n\n%s\n\nQual funciona melhor pra você?", SlotList(slots, loc))
}

// RescheduleProposal offers slots to replace an existing appointment.
func RescheduleProposal(slots []time.Time, loc *time.Location) string {
	if len(slots) == 0 {
		return NoRescheduleSlots
	}
	return fmt.Sprintf("Sem problemas! Tenho esses horários disponíveis:\n\n%s\n\nQual prefere?", SlotList(slots, loc))
}

// Reminder is the plain-text reminder sent at now ahead of an appointment.
func Reminder(name string, start, now time.Time, loc *time.Location) string {
	greeting := "Oi"
	if name = strings.TrimSpace(name); name != "" {
		greeting += " " + name
	}
	return fmt.Sprintf("%s! Lembrete: você tem um horário marcado %s. Te espero! 😊", greeting, relativeSlot(start, now, loc))
}

// relativeSlot names the day of start as seen from now: "hoje às 14:00",
// "amanhã às 00:30", or the full slot when further out.
func relativeSlot(start, now time.Time, loc *time.Location) string {
	s, n := in(start, loc), in(now, loc)
	sy, sm, sd := s.Date()
	ny, nm, nd := n.Date()
	day := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	switch {
	case day.Equal(today):
		return "hoje às " + Clock(s, loc)
	case day.Equal(today.AddDate(0, 0, 1)):
		return "amanhã às " + Clock(s, loc)
	}
	return "para " + Slot(s, loc)
}

func in(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t
	}
	return t.In(loc)
}
