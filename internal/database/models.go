package database

import "time"

type Account struct {
	Id           string
	Username     string
	EmailAddress string
	PasswordHash string
	Online       bool
	LastSeen     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Conversation struct {
	Id             string
	Type           string
	Name           string
	CreatedBy      string
	ParticipantIds []string
	CreatedAt      time.Time
}

// ConversationSummary is a conversation enriched for a particular account:
// participant details, the latest message and that account's unread count.
type ConversationSummary struct {
	Conversation
	Participants []Account
	LastMessage  *Message
	UnreadCount  int
}

type Message struct {
	Id             string
	ConversationId string
	SenderId       string
	Text           string
	ReadBy         []string
	CreatedAt      time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateConversationParams struct {
	Id             string
	Type           string
	Name           string
	CreatedBy      string
	ParticipantIds []string
}
