package store

import "time"

// SessionRecord captures one connect attempt.
type SessionRecord struct {
	Peer      string    `json:"peer"`
	Transport string    `json:"transport"`
	Timestamp time.Time `json:"timestamp"`
	Connected bool      `json:"connected"`
	Duration  string    `json:"duration"`
	Error     string    `json:"error,omitempty"`
}

// CommandRecord captures the outcome of one command sent to the lock.
type CommandRecord struct {
	Command   string    `json:"command"`
	Code      byte      `json:"code"`
	Peer      string    `json:"peer"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Duration  string    `json:"duration"`
	Error     string    `json:"error,omitempty"`
}

// RejectedRecord captures a phrase or PIN the authorization gate refused.
// The PIN itself is never stored.
type RejectedRecord struct {
	Phrase    string    `json:"phrase"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
