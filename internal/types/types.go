package types

import (
	"time"
)

const (
	ConversationTypePrivate = "private"
	ConversationTypeGroup   = "group"
)

type User struct {
	Id           string    `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	Online       bool      `json:"online"`
	LastSeen     time.Time `json:"last_seen,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Conversation struct {
	Id             string    `json:"id"`
	Type           string    `json:"type"`
	Name           string    `json:"name,omitempty"`
	ParticipantIds []string  `json:"participant_ids"`
	Participants   []User    `json:"participants,omitempty"`
	LastMessage    *Message  `json:"last_message,omitempty"`
	UnreadCount    int       `json:"unread_count"`
	CreatedBy      string    `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

type Message struct {
	Id             string    `json:"id"`
	ConversationId string    `json:"conversation_id"`
	SenderId       string    `json:"sender_id"`
	Text           string    `json:"text"`
	ReadBy         []string  `json:"read_by"`
	CreatedAt      time.Time `json:"created_at"`
}
