package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error body. Retryable tells webhook senders and
// operators whether redelivering the same request can succeed.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Webhook acknowledgement statuses.
const (
	AckProcessed = "processed"
	AckDuplicate = "duplicate"
	AckRejected  = "rejected"
)

// WebhookAck is returned for every webhook delivery answered with 200.
type WebhookAck struct {
	Status  string `json:"status"`
	EventID string `json:"eventId,omitempty"`
}
