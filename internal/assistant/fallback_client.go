package assistant

import (
	"context"

	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

// FallbackLLMClient sends each completion to primary and, when that fails,
// repeats it on secondary. A cancelled context is never retried.
type FallbackLLMClient struct {
	primary   LLMClient
	secondary LLMClient
	logger    *logging.Logger
}

// NewFallbackLLMClient wraps primary. A nil secondary disables the retry.
func NewFallbackLLMClient(primary, secondary LLMClient, logger *logging.Logger) *FallbackLLMClient {
	if primary == nil {
		panic("assistant: primary llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackLLMClient{primary: primary, secondary: secondary, logger: logger}
}

func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil || c.secondary == nil || ctx.Err() != nil {
		return resp, err
	}
	c.logger.Warn("primary llm failed; retrying on secondary", "error", err)

	// Model ids are provider specific; the secondary uses its own.
	req.Model = ""
	resp, secondErr := c.secondary.Complete(ctx, req)
	if secondErr != nil {
		providerFailoversTotal.WithLabelValues("failed").Inc()
		c.logger.Error("secondary llm failed", "primary_error", err, "secondary_error", secondErr)
		return LLMResponse{}, secondErr
	}
	providerFailoversTotal.WithLabelValues("recovered").Inc()
	return resp, nil
}
