package conversation

import (
	"context"

	"github.com/rafamhanel/web-app-agenda/internal/calendar"
	"github.com/rafamhanel/web-app-agenda/internal/channels/whatsapp"
	"github.com/rafamhanel/web-app-agenda/internal/users"
)

// GoogleCalendars opens each professional's Google Calendar with the token
// stored on the account.
func GoogleCalendars(factory *calendar.Factory) CalendarProvider {
	return func(ctx context.Context, u *users.User) (Calendar, error) {
		client, err := factory.ForToken(ctx, u.GoogleCalendarToken)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// WhatsAppMessengers builds a Graph API client per professional. Account
// credentials win over the deployment defaults.
func WhatsAppMessengers(defaults whatsapp.Credentials, opts ...whatsapp.Option) MessengerProvider {
	return func(u *users.User) Messenger {
		client := whatsapp.ForAccount(whatsapp.Credentials{
			AccessToken:   u.WhatsAppToken,
			PhoneNumberID: u.WhatsAppPhoneNumberID,
		}, defaults, opts...)
		if client == nil {
			return nil
		}
		return client
	}
}
