// Package conversation runs one request-response cycle for an inbound client
// message: history, intent routing, calendar and ledger side effects, reply.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rafamhanel/web-app-agenda/internal/apperrors"
	"github.com/rafamhanel/web-app-agenda/internal/appointments"
	"github.com/rafamhanel/web-app-agenda/internal/assistant"
	"github.com/rafamhanel/web-app-agenda/internal/availability"
	"github.com/rafamhanel/web-app-agenda/internal/calendar"
	"github.com/rafamhanel/web-app-agenda/internal/channels/whatsapp"
	"github.com/rafamhanel/web-app-agenda/internal/intent"
	"github.com/rafamhanel/web-app-agenda/internal/replies"
	"github.com/rafamhanel/web-app-agenda/internal/users"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

var tracer = otel.Tracer("agenda.internal.conversation")

const (
	// DefaultHistoryLimit is how many past turns feed the reply model.
	DefaultHistoryLimit = 20

	contextSlotLimit     = 5
	contextSlotDaysAhead = 7
	defaultClientName    = "Cliente"
)

// Understanding is the text-understanding collaborator. Every method falls
// back to a safe value instead of failing.
type Understanding interface {
	ClassifyIntent(ctx context.Context, message string) intent.Result
	ExtractBookingFields(ctx context.Context, message string, loc *time.Location) intent.Extraction
	GenerateReply(ctx context.Context, req assistant.ReplyRequest) string
}

// Ledger is the subset of appointments.Ledger the cycle needs.
type Ledger interface {
	CheckAvailable(ctx context.Context, userID string, start, end time.Time) error
	Create(ctx context.Context, in appointments.NewAppointment) (*appointments.Appointment, error)
	Cancel(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*appointments.Appointment, error)
	FindNearestActive(ctx context.Context, userID, clientPhone string, now time.Time) (*appointments.Appointment, error)
}

// Calendar is one professional's external calendar.
type Calendar interface {
	ListBusyIntervals(ctx context.Context, timeMin, timeMax time.Time) ([]availability.Interval, error)
	CreateEvent(ctx context.Context, in calendar.EventInput) (string, error)
	UpdateEvent(ctx context.Context, id string, in calendar.EventInput) error
	CancelEvent(ctx context.Context, id string) error
}

// Messenger sends replies on the professional's WhatsApp number.
type Messenger interface {
	SendText(ctx context.Context, to, body string) (*whatsapp.SendResponse, error)
	MarkRead(ctx context.Context, messageID string) error
}

// CalendarProvider opens the calendar of u.
type CalendarProvider func(ctx context.Context, u *users.User) (Calendar, error)

// MessengerProvider returns the messenger of u, or nil when u has no
// WhatsApp credentials.
type MessengerProvider func(u *users.User) Messenger

// InboundMessage is a client message addressed to a professional. Either
// UserID or PhoneNumberID identifies the professional.
type InboundMessage struct {
	UserID        string
	PhoneNumberID string
	ClientPhone   string
	ClientName    string
	MessageID     string
	Text          string
}

// Result describes what one cycle did.
type Result struct {
	UserID            string
	Action            intent.Kind
	Reply             string
	Appointment       *appointments.Appointment
	OutboundMessageID string
}

// Config bundles the orchestrator collaborators.
type Config struct {
	Users         users.Repository
	Turns         TurnStore
	Offers        OfferStore
	Pending       PendingReplyStore
	Ledger        Ledger
	Understanding Understanding
	Calendars     CalendarProvider
	Messengers    MessengerProvider
	HistoryLimit  int
	Now           func() time.Time
}

// Orchestrator runs the conversation cycle.
type Orchestrator struct {
	users         users.Repository
	turns         TurnStore
	offers        OfferStore
	pending       PendingReplyStore
	ledger        Ledger
	router        *intent.Router
	understanding Understanding
	calendars     CalendarProvider
	messengers    MessengerProvider
	historyLimit  int
	now           func() time.Time
	logger        *logging.Logger
}

func New(cfg Config, logger *logging.Logger) *Orchestrator {
	if cfg.Users == nil || cfg.Turns == nil || cfg.Ledger == nil || cfg.Understanding == nil {
		panic("conversation: users, turns, ledger and understanding are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Calendars == nil {
		cfg.Calendars = func(context.Context, *users.User) (Calendar, error) { return nil, calendar.ErrNoToken }
	}
	if cfg.Messengers == nil {
		cfg.Messengers = func(*users.User) Messenger { return nil }
	}
	return &Orchestrator{
		users:         cfg.Users,
		turns:         cfg.Turns,
		offers:        cfg.Offers,
		pending:       cfg.Pending,
		ledger:        cfg.Ledger,
		router:        intent.NewRouter(cfg.Ledger),
		understanding: cfg.Understanding,
		calendars:     cfg.Calendars,
		messengers:    cfg.Messengers,
		historyLimit:  cfg.HistoryLimit,
		now:           cfg.Now,
		logger:        logger,
	}
}

// cycle carries the per-message state through the steps.
type cycle struct {
	user    *users.User
	msg     InboundMessage
	loc     *time.Location
	now     time.Time
	history []assistant.ChatMessage
	offer   *SlotOffer
	cal     Calendar
	calErr  error
	calOpen bool
}

func (c *cycle) calendar(ctx context.Context, o *Orchestrator) (Calendar, error) {
	if !c.calOpen {
		c.cal, c.calErr = o.calendars(ctx, c.user)
		c.calOpen = true
	}
	return c.cal, c.calErr
}

// HandleInbound processes one client message end to end. An unknown
// professional yields users.ErrUserNotFound and nothing is sent. Only a
// failure to deliver the reply is returned as an error once the user is
// resolved; every other failure is answered with a fallback reply.
func (o *Orchestrator) HandleInbound(ctx context.Context, msg InboundMessage) (*Result, error) {
	ctx, span := tracer.Start(ctx, "conversation.handle_inbound")
	defer span.End()
	started := time.Now()

	msg.Text = strings.TrimSpace(msg.Text)
	msg.ClientPhone = strings.TrimSpace(msg.ClientPhone)
	verr := apperrors.NewValidationError()
	if msg.ClientPhone == "" {
		verr.Add("clientPhone", "required")
	}
	if msg.Text == "" {
		verr.Add("message", "required")
	}
	if msg.UserID == "" && msg.PhoneNumberID == "" {
		verr.Add("userId", "required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	user, err := o.resolveUser(ctx, msg)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("agenda.user_id", user.ID))

	c := &cycle{user: user, msg: msg, loc: user.Location(), now: o.now()}

	if pending := o.loadPending(ctx, c); pending != nil {
		return o.redeliver(ctx, c, pending)
	}

	inbound := &Turn{UserID: user.ID, ClientPhone: msg.ClientPhone, Body: msg.Text, Direction: DirectionInbound}
	if err := o.turns.Append(ctx, inbound); err != nil {
		o.logger.Warn("persist inbound turn failed", "user_id", user.ID, "client_phone", msg.ClientPhone, "error", err)
	}
	c.history = o.loadHistory(ctx, c, inbound.ID)

	action, err := o.decide(ctx, c)
	var reply string
	var appt *appointments.Appointment
	if err != nil {
		span.RecordError(err)
		o.logger.Error("route message failed", "user_id", user.ID, "client_phone", msg.ClientPhone, "error", err)
		action = intent.ConversationalReply{}
		reply = replies.Apology
	} else {
		reply, appt = o.execute(ctx, c, action)
	}
	span.SetAttributes(attribute.String("agenda.action", string(action.Kind())))

	result := &Result{UserID: user.ID, Action: action.Kind(), Reply: reply, Appointment: appt}

	outbound := &Turn{UserID: user.ID, ClientPhone: msg.ClientPhone, Body: reply, Direction: DirectionOutbound, Automated: true}
	if err := o.turns.Append(ctx, outbound); err != nil {
		o.logger.Warn("persist outbound turn failed", "user_id", user.ID, "client_phone", msg.ClientPhone, "error", err)
	}

	if err := o.deliver(ctx, c, result); err != nil {
		span.RecordError(err)
		cyclesTotal.WithLabelValues(string(result.Action), "send_failed").Inc()
		o.savePending(ctx, c, result)
		return result, err
	}

	cyclesTotal.WithLabelValues(string(result.Action), "ok").Inc()
	cycleDuration.WithLabelValues(string(result.Action)).Observe(time.Since(started).Seconds())
	o.logger.Info("inbound message handled",
		"user_id", user.ID,
		"client_phone", msg.ClientPhone,
		"action", result.Action,
	)
	return result, nil
}

// ProcessWhatsApp adapts webhook deliveries. Messages for numbers that belong
// to no professional, and messages without text, are dropped silently.
func (o *Orchestrator) ProcessWhatsApp(ctx context.Context, in whatsapp.InboundMessage) error {
	_, err := o.HandleInbound(ctx, InboundMessage{
		PhoneNumberID: in.PhoneNumberID,
		ClientPhone:   in.From,
		ClientName:    in.ContactName,
		MessageID:     in.ID,
		Text:          in.Text,
	})
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		o.logger.Info("whatsapp message for unknown number dropped", "phone_number_id", in.PhoneNumberID)
		return nil
	case apperrors.IsValidation(err):
		o.logger.Info("whatsapp message dropped", "message_id", in.ID, "error", err)
		return nil
	}
	return err
}

func (o *Orchestrator) resolveUser(ctx context.Context, msg InboundMessage) (*users.User, error) {
	var user *users.User
	var err error
	if msg.UserID != "" {
		user, err = o.users.Get(ctx, msg.UserID)
	} else {
		user, err = o.users.GetByWhatsAppPhoneNumberID(ctx, msg.PhoneNumberID)
	}
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("conversation: resolve user: %w", err)
	}
	u := user.WithDefaults()
	return &u, nil
}

func (o *Orchestrator) loadHistory(ctx context.Context, c *cycle, skipID string) []assistant.ChatMessage {
	turns, err := o.turns.Recent(ctx, c.user.ID, c.msg.ClientPhone, o.historyLimit)
	if err != nil {
		o.logger.Warn("load history failed", "user_id", c.user.ID, "client_phone", c.msg.ClientPhone, "error", err)
		return nil
	}
	return ToChatMessages(turns, skipID)
}

// decide picks the action: a numeric answer to a pending offer books that
// slot; anything else goes through intent classification and routing.
func (o *Orchestrator) decide(ctx context.Context, c *cycle) (intent.Action, error) {
	c.offer = o.loadOffer(ctx, c)
	if c.offer != nil {
		if idx, ok := intent.SlotChoice(c.msg.Text, len(c.offer.Slots)); ok && c.offer.Slots[idx].After(c.now) {
			start := c.offer.Slots[idx]
			return intent.CreateAppointment{
				Start:      start,
				End:        start.Add(c.user.SlotDuration()),
				ClientName: c.msg.ClientName,
			}, nil
		}
	}

	classified := o.understanding.ClassifyIntent(ctx, c.msg.Text)
	var extraction intent.Extraction
	if classified.Category == intent.CategoryBook {
		extraction = o.understanding.ExtractBookingFields(ctx, c.msg.Text, c.loc)
	}
	o.logger.Debug("intent classified",
		"user_id", c.user.ID,
		"intent", classified.Category,
		"confidence", classified.Confidence,
	)

	return o.router.Route(ctx, intent.Input{
		Intent:     classified,
		Extraction: extraction,
		Settings: intent.Settings{
			Location:            c.loc,
			AppointmentDuration: c.user.SlotDuration(),
		},
		UserID:      c.user.ID,
		ClientPhone: c.msg.ClientPhone,
		Now:         c.now,
	})
}

func (o *Orchestrator) execute(ctx context.Context, c *cycle, action intent.Action) (string, *appointments.Appointment) {
	switch a := action.(type) {
	case intent.CreateAppointment:
		return o.book(ctx, c, a)
	case intent.ProposeSlots:
		return o.propose(ctx, c, a), nil
	case intent.CancelAppointment:
		return o.cancel(ctx, c, a.Appointment), nil
	case intent.NoActiveAppointment:
		if a.Reschedule {
			return replies.NoActiveToMove, nil
		}
		return replies.NoActiveToCancel, nil
	default:
		return o.converse(ctx, c), nil
	}
}

// book reserves the slot in the calendar first and then in the ledger. A
// ledger conflict after the event exists removes the event again.
func (o *Orchestrator) book(ctx context.Context, c *cycle, a intent.CreateAppointment) (string, *appointments.Appointment) {
	log := o.logger.With("user_id", c.user.ID, "client_phone", c.msg.ClientPhone, "start_at", a.Start)

	if err := o.ledger.CheckAvailable(ctx, c.user.ID, a.Start, a.End); err != nil {
		if errors.Is(err, appointments.ErrConflict) {
			return replies.SlotTaken, nil
		}
		log.Error("availability check failed", "error", err)
		return replies.Apology, nil
	}

	cal, err := c.calendar(ctx, o)
	if err != nil {
		log.Error("open calendar failed", "error", err)
		return replies.CalendarFailure, nil
	}

	name := strings.TrimSpace(a.ClientName)
	if name == "" {
		name = strings.TrimSpace(c.msg.ClientName)
	}
	if name == "" {
		name = defaultClientName
	}
	eventID, err := cal.CreateEvent(ctx, calendar.EventInput{
		Summary:     fmt.Sprintf("Atendimento - %s", name),
		Description: eventDescription(c.msg.ClientPhone, ""),
		Start:       a.Start,
		End:         a.End,
		TimeZone:    c.loc.String(),
	})
	if err != nil {
		log.Error("create calendar event failed", "error", err)
		return replies.CalendarFailure, nil
	}

	appt, err := o.ledger.Create(ctx, appointments.NewAppointment{
		UserID:          c.user.ID,
		ClientPhone:     c.msg.ClientPhone,
		ClientName:      name,
		StartAt:         a.Start,
		EndAt:           a.End,
		ExternalEventID: eventID,
	})
	if err != nil {
		if cerr := cal.CancelEvent(ctx, eventID); cerr != nil {
			log.Error("remove orphaned calendar event failed", "event_id", eventID, "error", cerr)
		}
		if errors.Is(err, appointments.ErrConflict) {
			return replies.SlotTaken, nil
		}
		log.Error("ledger create failed", "error", err)
		return replies.Apology, nil
	}

	// The appointment id exists only once the ledger holds the event id.
	if err := cal.UpdateEvent(ctx, eventID, calendar.EventInput{Description: eventDescription(c.msg.ClientPhone, appt.ID)}); err != nil {
		log.Warn("tag calendar event failed", "event_id", eventID, "appointment_id", appt.ID, "error", err)
	}

	reply := replies.Confirmed(appt.StartAt, c.loc)
	if c.offer != nil && c.offer.RescheduleID != "" && c.offer.RescheduleID != appt.ID {
		if o.releaseOriginal(ctx, c, cal, c.offer.RescheduleID) {
			reply = replies.Rescheduled(appt.StartAt, c.loc)
		}
	}
	o.clearOffer(ctx, c)
	return reply, appt
}

func eventDescription(phone, appointmentID string) string {
	desc := fmt.Sprintf("Cliente: %s\nAgendado via WhatsApp automaticamente", phone)
	if appointmentID != "" {
		desc += "\nRef: " + appointmentID
	}
	return desc
}

// releaseOriginal cancels the appointment a reschedule started from.
func (o *Orchestrator) releaseOriginal(ctx context.Context, c *cycle, cal Calendar, id string) bool {
	original, err := o.ledger.Get(ctx, id)
	if err != nil {
		o.logger.Warn("reschedule original lookup failed", "appointment_id", id, "error", err)
		return false
	}
	if !original.Status.Active() {
		return false
	}
	if original.ExternalEventID != "" {
		if err := cal.CancelEvent(ctx, original.ExternalEventID); err != nil {
			o.logger.Error("cancel rescheduled calendar event failed", "appointment_id", id, "error", err)
		}
	}
	if err := o.ledger.Cancel(ctx, id); err != nil {
		o.logger.Error("cancel rescheduled appointment failed", "appointment_id", id, "error", err)
		return false
	}
	o.logger.Info("appointment rescheduled", "appointment_id", id, "user_id", c.user.ID)
	return true
}

func (o *Orchestrator) propose(ctx context.Context, c *cycle, a intent.ProposeSlots) string {
	slots, err := o.freeSlots(ctx, c, a.DaysAhead, a.Limit)
	if err != nil {
		o.logger.Error("find available slots failed", "user_id", c.user.ID, "error", err)
		return replies.CalendarFailure
	}

	offer := &SlotOffer{Slots: slots, OfferedAt: c.now}
	if a.Reschedule != nil {
		offer.RescheduleID = a.Reschedule.ID
	}
	if o.offers != nil {
		if err := o.offers.Save(ctx, c.user.ID, c.msg.ClientPhone, offer); err != nil {
			o.logger.Warn("save slot offer failed", "user_id", c.user.ID, "error", err)
		}
	}

	if a.Reschedule != nil {
		return replies.RescheduleProposal(slots, c.loc)
	}
	return replies.Proposal(slots, c.loc)
}

// cancel removes the calendar event when possible and always cancels the
// ledger entry.
func (o *Orchestrator) cancel(ctx context.Context, c *cycle, appt appointments.Appointment) string {
	if appt.ExternalEventID != "" {
		cal, err := c.calendar(ctx, o)
		if err == nil {
			err = cal.CancelEvent(ctx, appt.ExternalEventID)
		}
		if err != nil {
			o.logger.Error("cancel calendar event failed", "appointment_id", appt.ID, "error", err)
		}
	}
	if err := o.ledger.Cancel(ctx, appt.ID); err != nil {
		o.logger.Error("ledger cancel failed", "appointment_id", appt.ID, "error", err)
		return replies.Apology
	}
	o.clearOffer(ctx, c)
	return replies.Cancelled
}

func (o *Orchestrator) converse(ctx context.Context, c *cycle) string {
	slots, err := o.freeSlots(ctx, c, contextSlotDaysAhead, contextSlotLimit)
	if err != nil && !errors.Is(err, calendar.ErrNoToken) {
		o.logger.Warn("slots for reply context unavailable", "user_id", c.user.ID, "error", err)
	}
	return o.understanding.GenerateReply(ctx, assistant.ReplyRequest{
		UserID: c.user.ID,
		Profile: assistant.Profile{
			Name:                c.user.Name,
			ToneOfVoice:         c.user.ToneOfVoice,
			BusinessHoursStart:  c.user.BusinessHoursStart,
			BusinessHoursEnd:    c.user.BusinessHoursEnd,
			AppointmentDuration: c.user.AppointmentDuration,
		},
		Slots:    slots,
		Location: c.loc,
		History:  c.history,
		Message:  c.msg.Text,
	})
}

func (o *Orchestrator) freeSlots(ctx context.Context, c *cycle, daysAhead, limit int) ([]time.Time, error) {
	cal, err := c.calendar(ctx, o)
	if err != nil {
		return nil, err
	}
	w, err := c.user.Window(daysAhead)
	if err != nil {
		return nil, err
	}
	return availability.FindAvailableSlots(ctx, c.now, w, cal, availability.WithLimit(limit))
}

// deliver sends the reply and marks the inbound message read. Only the send
// can fail the cycle.
func (o *Orchestrator) deliver(ctx context.Context, c *cycle, result *Result) error {
	messenger := o.messengers(c.user)
	if messenger == nil {
		o.logger.Warn("no whatsapp credentials, reply not sent", "user_id", c.user.ID)
		return nil
	}
	resp, err := messenger.SendText(ctx, c.msg.ClientPhone, result.Reply)
	if err != nil {
		return fmt.Errorf("conversation: send reply: %w", err)
	}
	result.OutboundMessageID = resp.MessageID()

	if c.msg.MessageID != "" {
		if err := messenger.MarkRead(ctx, c.msg.MessageID); err != nil {
			o.logger.Warn("mark read failed", "message_id", c.msg.MessageID, "error", err)
		}
	}
	return nil
}

// redeliver answers a redelivered message whose reply was composed but never
// sent. The side effects of the first attempt stand; only the send is retried.
func (o *Orchestrator) redeliver(ctx context.Context, c *cycle, p *PendingReply) (*Result, error) {
	result := &Result{UserID: c.user.ID, Action: p.Action, Reply: p.Body}
	if p.AppointmentID != "" {
		appt, err := o.ledger.Get(ctx, p.AppointmentID)
		if err != nil {
			o.logger.Warn("pending reply appointment lookup failed", "appointment_id", p.AppointmentID, "error", err)
		} else {
			result.Appointment = appt
		}
	}
	if err := o.deliver(ctx, c, result); err != nil {
		cyclesTotal.WithLabelValues(string(result.Action), "send_failed").Inc()
		return result, err
	}
	if err := o.pending.Clear(ctx, c.user.ID, c.msg.MessageID); err != nil {
		o.logger.Warn("clear pending reply failed", "message_id", c.msg.MessageID, "error", err)
	}
	cyclesTotal.WithLabelValues(string(result.Action), "redelivered").Inc()
	o.logger.Info("pending reply redelivered",
		"user_id", c.user.ID,
		"client_phone", c.msg.ClientPhone,
		"message_id", c.msg.MessageID,
	)
	return result, nil
}

func (o *Orchestrator) loadPending(ctx context.Context, c *cycle) *PendingReply {
	if o.pending == nil || c.msg.MessageID == "" {
		return nil
	}
	p, err := o.pending.Load(ctx, c.user.ID, c.msg.MessageID)
	if err != nil {
		o.logger.Warn("load pending reply failed", "message_id", c.msg.MessageID, "error", err)
		return nil
	}
	return p
}

func (o *Orchestrator) savePending(ctx context.Context, c *cycle, result *Result) {
	if o.pending == nil || c.msg.MessageID == "" {
		return
	}
	p := &PendingReply{Body: result.Reply, Action: result.Action}
	if result.Appointment != nil {
		p.AppointmentID = result.Appointment.ID
	}
	if err := o.pending.Save(ctx, c.user.ID, c.msg.MessageID, p); err != nil {
		o.logger.Error("save pending reply failed", "message_id", c.msg.MessageID, "error", err)
	}
}

func (o *Orchestrator) loadOffer(ctx context.Context, c *cycle) *SlotOffer {
	if o.offers == nil {
		return nil
	}
	offer, err := o.offers.Load(ctx, c.user.ID, c.msg.ClientPhone)
	if err != nil {
		o.logger.Warn("load slot offer failed", "user_id", c.user.ID, "error", err)
		return nil
	}
	return offer
}

func (o *Orchestrator) clearOffer(ctx context.Context, c *cycle) {
	if o.offers == nil || c.offer == nil {
		return
	}
	if err := o.offers.Clear(ctx, c.user.ID, c.msg.ClientPhone); err != nil {
		o.logger.Warn("clear slot offer failed", "user_id", c.user.ID, "error", err)
	}
}
