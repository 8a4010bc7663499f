package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

var errEmptyData = errors.New("envelope data is empty")

// PayloadEnvelope is the JSON document stored in outbox_events.payload and
// published unchanged, so subscribers can route on EventType without reading
// message attributes.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
	Source     string          `json:"source,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeData unmarshals the payload into v. Missing or null data is an error.
func (e PayloadEnvelope) DecodeData(v any) error {
	trimmed := bytes.TrimSpace(e.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return errEmptyData
	}
	return json.Unmarshal(trimmed, v)
}
