package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/rafamhanel/web-app-agenda/internal/replies"
)

const classifyPrompt = `Analise a mensagem do cliente e identifique a intenção principal.

Retorne APENAS um JSON no formato:
{
  "intent": "agendar" | "cancelar" | "reagendar" | "informacao" | "outro",
  "confidence": 0.0 a 1.0
}

Intenções:
- agendar: cliente quer marcar um horário
- cancelar: cliente quer cancelar um agendamento
- reagendar: cliente quer mudar um horário já marcado
- informacao: cliente quer informações (preço, localização, etc)
- outro: outras mensagens (saudações, agradecimentos, etc)`

const extractPrompt = `Extraia informações de agendamento da mensagem do cliente.
Hoje é %s (%s). Resolva datas relativas como "amanhã" ou "sexta" a partir de hoje.

Retorne APENAS um JSON no formato:
{
  "date": "YYYY-MM-DD" ou null,
  "time": "HH:MM" ou null,
  "clientName": "nome" ou null
}

Exemplos:
- "Quero agendar para amanhã às 14h" -> {"date": "%s", "time": "14:00", "clientName": null}
- "Meu nome é João, pode ser sexta?" -> {"date": null, "time": null, "clientName": "João"}`

// Profile describes the professional the assistant speaks for.
type Profile struct {
	Name                string
	ToneOfVoice         string
	BusinessHoursStart  string
	BusinessHoursEnd    string
	AppointmentDuration int // minutes
}

func buildExtractPrompt(now time.Time) string {
	today := now.Format("2006-01-02")
	tomorrow := now.AddDate(0, 0, 1).Format("2006-01-02")
	return fmt.Sprintf(extractPrompt, today, replies.Date(now, nil), tomorrow)
}

func buildReplyPrompt(p Profile, slots []time.Time, loc *time.Location, examples []TrainingExample) string {
	formatted := make([]string, len(slots))
	for i, s := range slots {
		formatted[i] = replies.Slot(s, loc)
	}
	available := strings.Join(formatted, "\n")
	if available == "" {
		available = "Nenhum horário livre encontrado."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Você é um assistente virtual que responde mensagens de WhatsApp para %s.\n\n", p.Name)
	b.WriteString("INFORMAÇÕES IMPORTANTES:\n")
	fmt.Fprintf(&b, "- Nome do profissional: %s\n", p.Name)
	fmt.Fprintf(&b, "- Tom de voz: %s\n", p.ToneOfVoice)
	fmt.Fprintf(&b, "- Horário de funcionamento: %s às %s\n", p.BusinessHoursStart, p.BusinessHoursEnd)
	fmt.Fprintf(&b, "- Duração dos atendimentos: %d minutos\n\n", p.AppointmentDuration)
	fmt.Fprintf(&b, "HORÁRIOS DISPONÍVEIS NOS PRÓXIMOS DIAS:\n%s\n\n", available)
	b.WriteString(`INSTRUÇÕES:
1. Responda de forma natural, usando o tom de voz especificado
2. Use emojis quando apropriado (mas sem exagero)
3. Seja educado, prestativo e profissional
4. Se o cliente perguntar sobre horários, ofereça as opções disponíveis
5. Se o cliente quiser agendar, confirme o horário escolhido
6. Se o cliente quiser cancelar ou reagendar, seja compreensivo
7. Mantenha as respostas curtas e diretas
8. Use linguagem brasileira natural

IMPORTANTE: Você está respondendo pelo WhatsApp, então seja conciso e objetivo.`)

	if len(examples) > 0 {
		b.WriteString("\n\nEXEMPLOS DE COMO O PROFISSIONAL RESPONDE:\n")
		for _, ex := range examples {
			fmt.Fprintf(&b, "Cliente: %s\nResposta: %s\n\n", strings.TrimSpace(ex.Message), strings.TrimSpace(ex.Response))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
