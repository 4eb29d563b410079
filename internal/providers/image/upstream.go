package image

import (
	"encoding/json"
	"strings"
)

const maxErrorBody = 2048

// upstreamMessage extracts a human readable message from a vendor error body.
// It understands {"error":{"message":...}}, {"error":"..."} and
// {"message":...}; anything else is returned trimmed and truncated.
func upstreamMessage(raw []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if len(envelope.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
				return nested.Message
			}
			var flat string
			if err := json.Unmarshal(envelope.Error, &flat); err == nil && flat != "" {
				return flat
			}
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return msg
}
