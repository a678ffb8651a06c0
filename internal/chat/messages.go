package chat

import (
	"net/http"
	"time"

	"chatwire/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Send       *SendMessage `json:"send,omitempty"`
	Typing     *Typing      `json:"typing,omitempty"`
	MarkRead   *MarkRead    `json:"mark_read,omitempty"`
	ListOnline *ListOnline  `json:"list_online,omitempty"`
	UserId     string       `json:"-"`
}

type SendMessage struct {
	ConversationId string `json:"conversation_id"`
	Text           string `json:"text"`
}

type Typing struct {
	ConversationId string `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing"`
}

type MarkRead struct {
	ConversationId string `json:"conversation_id"`
}

type ListOnline struct{}

type ServerMessage struct {
	BaseMessage
	Response *Response      `json:"response,omitempty"`
	Message  *types.Message `json:"message,omitempty"`
	Typing   *TypingEvent   `json:"typing,omitempty"`
	Presence *PresenceEvent `json:"presence,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

// TypingEvent is advisory and has no stored lifecycle. The server never times
// a typing indicator out; a receiving client that gets is_typing=true and no
// follow-up within about three seconds clears the indicator locally.
type TypingEvent struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

type PresenceEvent struct {
	UserId string `json:"user_id"`
	Online bool   `json:"online"`
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
