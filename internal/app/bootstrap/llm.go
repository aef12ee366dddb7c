package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/rafamhanel/web-app-agenda/internal/assistant"
	appconfig "github.com/rafamhanel/web-app-agenda/internal/config"
	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

// BuildLLMClient returns Gemini, Bedrock, or Gemini with Bedrock as fallback,
// depending on which credentials are configured. The cleanup func releases the
// Gemini connection.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (assistant.LLMClient, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	noop := func() {}

	var primary, fallback assistant.LLMClient
	cleanup := noop
	if key := strings.TrimSpace(cfg.GeminiAPIKey); key != "" {
		gemini, err := assistant.NewGeminiLLMClient(ctx, key, cfg.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		primary = gemini
		cleanup = func() { _ = gemini.Close() }
	}
	if model := strings.TrimSpace(cfg.BedrockModelID); model != "" && awsCfg != nil {
		fallback = assistant.NewBedrockLLMClient(bedrockruntime.NewFromConfig(*awsCfg), model)
	}

	switch {
	case primary != nil && fallback != nil:
		logger.Info("using gemini with bedrock fallback", "gemini_model", cfg.GeminiModel, "bedrock_model", cfg.BedrockModelID)
		return assistant.NewFallbackLLMClient(primary, fallback, logger), cleanup, nil
	case primary != nil:
		logger.Info("using gemini", "model", cfg.GeminiModel)
		return primary, cleanup, nil
	case fallback != nil:
		logger.Info("using bedrock", "model", cfg.BedrockModelID)
		return fallback, noop, nil
	}
	return nil, nil, fmt.Errorf("bootstrap: no text-understanding provider configured (GEMINI_API_KEY or BEDROCK_MODEL_ID)")
}
