package chat

import (
	"errors"
	"net/http"
)

// Failure classes for inbound operations. A failure isolates to the one
// request or recipient that hit it; none of these is fatal to the process.
var (
	ErrEmptyMessage         = errors.New("message text is empty")
	ErrNotParticipant       = errors.New("sender is not a conversation participant")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrStoreUnavailable     = errors.New("message store unavailable")
	ErrDirectoryUnavailable = errors.New("conversation directory unavailable")
)

// responseFor maps an operation error onto the wire envelope sent back to the
// originating session only.
func responseFor(id int, err error) *ServerMessage {
	code := http.StatusInternalServerError
	reason := "internal server error"
	for _, class := range []struct {
		err  error
		code int
	}{
		{ErrEmptyMessage, http.StatusBadRequest},
		{ErrNotParticipant, http.StatusForbidden},
		{ErrConversationNotFound, http.StatusNotFound},
		{ErrStoreUnavailable, http.StatusServiceUnavailable},
		{ErrDirectoryUnavailable, http.StatusServiceUnavailable},
	} {
		if errors.Is(err, class.err) {
			code = class.code
			reason = class.err.Error()
			break
		}
	}

	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        reason,
		},
	}
}
