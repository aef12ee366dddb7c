// Package users loads the professional accounts that own the automation.
package users

import (
	"errors"
	"strings"
	"time"

	"github.com/rafamhanel/web-app-agenda/internal/availability"
)

// ErrUserNotFound is returned when no professional matches the lookup.
var ErrUserNotFound = errors.New("users: user not found")

const (
	DefaultTimezone            = "America/Sao_Paulo"
	defaultBusinessHoursStart  = "09:00"
	defaultBusinessHoursEnd    = "18:00"
	defaultAppointmentDuration = 60
	defaultToneOfVoice         = "amigável e profissional"
)

// User is a professional account. The core only reads it.
type User struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	Email                 string `json:"email"`
	WhatsAppPhoneNumberID string `json:"whatsapp_phone_number_id"`
	WhatsAppDisplayPhone  string `json:"whatsapp_display_phone"`
	WhatsAppToken         string `json:"whatsapp_token"`
	GoogleCalendarToken   string `json:"google_calendar_token"`
	ToneOfVoice           string `json:"tone_of_voice"`
	BusinessHoursStart    string `json:"business_hours_start"`
	BusinessHoursEnd      string `json:"business_hours_end"`
	AppointmentDuration   int    `json:"appointment_duration"` // minutes
	Timezone              string `json:"timezone"`
}

// WithDefaults fills unset scheduling fields.
func (u User) WithDefaults() User {
	if strings.TrimSpace(u.BusinessHoursStart) == "" {
		u.BusinessHoursStart = defaultBusinessHoursStart
	}
	if strings.TrimSpace(u.BusinessHoursEnd) == "" {
		u.BusinessHoursEnd = defaultBusinessHoursEnd
	}
	if u.AppointmentDuration <= 0 {
		u.AppointmentDuration = defaultAppointmentDuration
	}
	if strings.TrimSpace(u.ToneOfVoice) == "" {
		u.ToneOfVoice = defaultToneOfVoice
	}
	if strings.TrimSpace(u.Timezone) == "" {
		u.Timezone = DefaultTimezone
	}
	return u
}

// Location returns the user's time zone, or the default zone when the stored
// name cannot be loaded.
func (u User) Location() *time.Location {
	for _, tz := range []string{u.Timezone, DefaultTimezone} {
		if tz == "" {
			continue
		}
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.UTC
}

// SlotDuration is the appointment length.
func (u User) SlotDuration() time.Duration {
	d := u.AppointmentDuration
	if d <= 0 {
		d = defaultAppointmentDuration
	}
	return time.Duration(d) * time.Minute
}

// Window builds the availability window for the next daysAhead days.
func (u User) Window(daysAhead int) (availability.Window, error) {
	u = u.WithDefaults()
	return availability.NewWindow(u.BusinessHoursStart, u.BusinessHoursEnd, u.AppointmentDuration, daysAhead, u.Location())
}
