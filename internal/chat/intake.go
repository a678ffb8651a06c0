package chat

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/google/uuid"

	"chatwire/internal/database"
	"chatwire/internal/types"
)

// Intake validates and persists inbound messages. The server assigns the id
// and timestamp; anything the client supplied for those fields is ignored.
type Intake struct {
	log       *log.Logger
	directory database.Directory
	store     database.MessageStore
}

func NewIntake(logger *log.Logger, directory database.Directory, store database.MessageStore) *Intake {
	return &Intake{
		log:       logger,
		directory: directory,
		store:     store,
	}
}

func (i *Intake) Submit(conversationId, senderId, text string) (types.Message, error) {
	if strings.TrimSpace(text) == "" {
		return types.Message{}, ErrEmptyMessage
	}

	conv, err := i.directory.GetConversation(conversationId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Message{}, ErrConversationNotFound
		}
		return types.Message{}, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}

	if !slices.Contains(conv.ParticipantIds, senderId) {
		// stale or misbehaving client; worth flagging
		i.log.Printf("rejected message from %q to conversation %q: not a participant", senderId, conversationId)
		return types.Message{}, ErrNotParticipant
	}

	msg := database.Message{
		Id:             uuid.NewString(),
		ConversationId: conversationId,
		SenderId:       senderId,
		Text:           text,
		ReadBy:         []string{senderId},
		CreatedAt:      Now(),
	}

	if err := i.store.CreateMessage(msg); err != nil {
		return types.Message{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return types.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		Text:           msg.Text,
		ReadBy:         msg.ReadBy,
		CreatedAt:      msg.CreatedAt,
	}, nil
}
