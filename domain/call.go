package domain

import "time"

// CallID identifies an in-progress call tied to a conversation's RTC session.
// All events and call operations are scoped by exact id match.
type CallID string

type Call struct {
	ID           CallID
	RTCSessionID string
}

// Outcome is the terminal result of one session run. It is produced exactly
// once per session. NoOp marks the soft path where a call already existed
// for the conversation and no conference was started.
type Outcome struct {
	CallID       CallID
	DialoutCount int
	NoOp         bool
}

// OutcomeRecord is the journaled form of a completed session, success or not.
type OutcomeRecord struct {
	ConversationID ConversationID `json:"conversationId"`
	CallID         CallID         `json:"callId,omitempty"`
	DialoutCount   int            `json:"dialoutCount"`
	NoOp           bool           `json:"noop,omitempty"`
	Error          string         `json:"error,omitempty"`
	FinishedAt     time.Time      `json:"finishedAt"`
}
