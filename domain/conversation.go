// Package domain contains core concepts of the conference orchestrator.
// No runtime, network, or UI logic should be added here.
package domain

// ConversationID identifies a persistent collaboration space on the platform.
// It is the registry key: at most one live session exists per id.
type ConversationID string

type Conversation struct {
	ID               ConversationID
	Topic            string
	TopicPlaceholder string
	RTCSessionID     string
}

// Title returns the best displayable name for the conversation.
func (c Conversation) Title() string {
	if c.Topic != "" {
		return c.Topic
	}
	return c.TopicPlaceholder
}

// Participant is a conversation member eligible for dial-out.
type Participant struct {
	UserID string
}

// User is the identity the bot operates under after logon.
type User struct {
	UserID string
}
