package model

import "time"

// MatchEvent is raised once per newly discovered message. It is a
// transient value handed to subscribers; nothing retains it.
type MatchEvent struct {
	// Provider names the account the message arrived on.
	Provider string `json:"provider"`

	// Sender is the normalized sender (display name, else address,
	// else "Unknown sender").
	Sender string `json:"sender"`

	// Subject is the normalized subject ("(No subject)" when blank).
	Subject string `json:"subject"`

	// Preview is a short plain-text snippet of the body. Best effort;
	// may be empty.
	Preview string `json:"preview"`

	// ReceivedAt is when the remote store received the message.
	ReceivedAt time.Time `json:"received_at"`

	// Warning is set when the subject or sender matched one of the
	// configured keywords.
	Warning bool `json:"warning"`
}

// MonitorError reports a failure inside one account's poll path. It is
// forwarded to the error sink and never terminates the poll loop.
type MonitorError struct {
	Provider string
	Err      error
}
