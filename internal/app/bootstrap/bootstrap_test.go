package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/rafamhanel/web-app-agenda/internal/config"
	"github.com/rafamhanel/web-app-agenda/internal/events"
	"github.com/rafamhanel/web-app-agenda/internal/notify"
	"github.com/rafamhanel/web-app-agenda/internal/users"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

func TestBuildRedisClient(t *testing.T) {
	logger := logging.New("error")
	if c := BuildRedisClient(context.Background(), &appconfig.Config{}, logger, true); c != nil {
		t.Fatal("expected nil client without an address")
	}

	mr := miniredis.RunT(t)
	c := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, true)
	if c == nil {
		t.Fatal("expected a client for a live server")
	}
	_ = c.Close()

	addr := mr.Addr()
	mr.Close()
	if c := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logger, true); c != nil {
		t.Fatal("expected nil client when ping fails")
	}
}

func TestConnectPostgresRequiresURL(t *testing.T) {
	if _, err := ConnectPostgres(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := ConnectPostgres(context.Background(), "://not a url"); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestLoadAWSConfigStaticCredentials(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:           "sa-east-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566",
	}
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg.Region != "sa-east-1" {
		t.Fatalf("expected region sa-east-1, got %s", awsCfg.Region)
	}
	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	if err != nil || creds.AccessKeyID != "test" {
		t.Fatalf("expected static credentials, got %+v (%v)", creds, err)
	}
	ep, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint("SESv2", "sa-east-1")
	if err != nil || ep.URL != "http://localhost:4566" {
		t.Fatalf("expected SES override, got %+v (%v)", ep, err)
	}
}

func TestBuildLLMClient(t *testing.T) {
	logger := logging.New("error")
	if _, _, err := BuildLLMClient(context.Background(), nil, nil, logger); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, _, err := BuildLLMClient(context.Background(), &appconfig.Config{}, nil, logger); err == nil {
		t.Fatal("expected error without any provider")
	}

	awsCfg := aws.Config{Region: "us-east-1"}
	client, cleanup, err := BuildLLMClient(context.Background(), &appconfig.Config{BedrockModelID: "anthropic.claude-3-haiku"}, &awsCfg, logger)
	if err != nil || client == nil {
		t.Fatalf("expected bedrock client, got %v (%v)", client, err)
	}
	cleanup()
}

func TestBuildEmailSender(t *testing.T) {
	logger := logging.New("error")
	awsCfg := aws.Config{Region: "us-east-1"}

	tests := []struct {
		name string
		cfg  *appconfig.Config
		aws  *aws.Config
		want string
	}{
		{name: "nothing configured", cfg: &appconfig.Config{}, want: "log"},
		{name: "nil config", cfg: nil, want: "log"},
		{name: "sendgrid wins", cfg: &appconfig.Config{SendGridAPIKey: "SG.x", SESFromEmail: "a@b.c"}, aws: &awsCfg, want: "sendgrid"},
		{name: "ses", cfg: &appconfig.Config{SESFromEmail: "agenda@example.com"}, aws: &awsCfg, want: "ses"},
		{name: "ses without aws", cfg: &appconfig.Config{SESFromEmail: "agenda@example.com"}, want: "log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, kind := BuildEmailSender(tt.cfg, tt.aws, logger)
			if sender == nil || kind != tt.want {
				t.Fatalf("expected %s sender, got %s", tt.want, kind)
			}
		})
	}
}

func TestBuildDeliveryHandler(t *testing.T) {
	logger := logging.New("error")
	email := notify.NewLogSender(logger)
	directory := users.NewInMemoryRepository()

	h := BuildDeliveryHandler(&appconfig.Config{}, email, directory, logger)
	if len(h) != 1 {
		t.Fatalf("expected email handler only, got %d", len(h))
	}

	h = BuildDeliveryHandler(&appconfig.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "agenda.appointments"}, email, directory, logger)
	if len(h) != 2 {
		t.Fatalf("expected email and kafka handlers, got %d", len(h))
	}
	if _, ok := h[1].(*events.KafkaHandler); !ok {
		t.Fatalf("expected kafka handler second, got %T", h[1])
	}
}
