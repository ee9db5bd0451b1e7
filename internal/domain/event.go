package domain

// RelayEnvelope is the body the edge receiver forwards to the backend.
type RelayEnvelope struct {
	Raw  string    `json:"raw"`
	Meta RelayMeta `json:"meta"`
}

type RelayMeta struct {
	RelaySignature string `json:"relaySignature"`
	ReceivedAt     string `json:"receivedAt"`
}

// WebhookBatch is the platform's event-batch encoding.
type WebhookBatch struct {
	Destination string         `json:"destination,omitempty"`
	Events      []WebhookEvent `json:"events"`
}

// WebhookEvent is the subset of a platform event the backend consumes.
type WebhookEvent struct {
	Type       string          `json:"type"`
	ReplyToken string          `json:"replyToken"`
	Source     EventSource     `json:"source"`
	Message    *WebhookMessage `json:"message,omitempty"`
}

type EventSource struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type WebhookMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// IsText reports whether the event is a plain text message.
func (e WebhookEvent) IsText() bool {
	return e.Type == "message" && e.Message != nil && e.Message.Type == "text"
}

// PlatformEvent is the decoded input to the conversation engine.
type PlatformEvent struct {
	UserID     string
	ReplyToken string
	Text       string
}
