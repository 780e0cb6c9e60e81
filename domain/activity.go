package domain

import "github.com/bytedance/sonic"

// Activity records an administrative write for the audit queue.
type Activity struct {
	ID        string                 `json:"id"`
	Action    string                 `json:"action"`
	Table     string                 `json:"table"`
	Data      sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ActivityEnvelope wraps an activity with the admin performing it.
type ActivityEnvelope struct {
	UserID   string   `json:"userId"`
	Activity Activity `json:"activity"`
}
