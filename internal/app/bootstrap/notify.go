package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/rafamhanel/web-app-agenda/internal/config"
	"github.com/rafamhanel/web-app-agenda/internal/events"
	"github.com/rafamhanel/web-app-agenda/internal/notify"
	"github.com/rafamhanel/web-app-agenda/internal/users"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

// BuildEmailSender picks SendGrid, then SES, then the log-only sender.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg != nil {
		if sg := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFrom,
			FromName:  cfg.NotifyFromName,
		}, logger); sg != nil {
			return sg, "sendgrid"
		}
		if strings.TrimSpace(cfg.SESFromEmail) != "" && awsCfg != nil {
			return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.NotifyFromName,
			}, logger), "ses"
		}
	}
	return notify.NewLogSender(logger), "log"
}

// BuildDeliveryHandler fans outbox entries out to the professional's email and,
// when brokers are configured, to Kafka.
func BuildDeliveryHandler(cfg *appconfig.Config, email notify.EmailSender, directory users.Repository, logger *logging.Logger) events.FanoutHandler {
	handlers := events.FanoutHandler{notify.NewService(email, directory, logger)}
	if cfg != nil && len(cfg.KafkaBrokers) > 0 {
		handlers = append(handlers, events.NewKafkaHandler(cfg.KafkaBrokers, cfg.KafkaTopic))
	}
	return handlers
}
