package model

import (
	"encoding/json"
	"strings"
)

type devicePayload struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
}

// NormalizeDevice renders a raw device payload as a single display string.
// Object payloads become "{os} {browser}" trimmed; an object with neither
// field falls back to its literal JSON rendering. String payloads pass
// through as-is. Absent or empty payloads normalize to "".
func NormalizeDevice(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return strings.TrimSpace(asString)
	}

	var dev devicePayload
	if err := json.Unmarshal(raw, &dev); err == nil {
		rendered := strings.TrimSpace(dev.OS + " " + dev.Browser)
		if rendered != "" {
			return rendered
		}
	}
	return trimmed
}
