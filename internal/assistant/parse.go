package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var errNoJSONObject = errors.New("assistant: no json object in model output")

// decodeJSON reads the first JSON object in raw into v. Models often wrap
// the object in code fences or prose, or leave it slightly malformed.
func decodeJSON(raw string, v any) error {
	body := extractObject(raw)
	if body == "" {
		return errNoJSONObject
	}
	err := json.Unmarshal([]byte(body), v)
	if err == nil {
		return nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(body)
	if repairErr != nil {
		return fmt.Errorf("assistant: decode model json: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("assistant: decode repaired json: %w", err)
	}
	return nil
}

func extractObject(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	start := strings.Index(raw, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(raw, "}")
	if end < start {
		// Truncated output; let the repair step close it.
		return raw[start:]
	}
	return raw[start : end+1]
}
