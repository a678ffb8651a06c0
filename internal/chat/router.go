package chat

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"chatwire/internal/database"
	"chatwire/internal/presence"
	"chatwire/internal/stats"
)

// Router fans events out to live sessions. Delivery is at-most-once and
// best-effort: offline participants are skipped and a failed delivery to one
// session never aborts delivery to the rest.
type Router struct {
	log       *log.Logger
	registry  *presence.Registry[*Session]
	directory database.Directory
	stats     stats.StatsProvider
}

func NewRouter(logger *log.Logger, registry *presence.Registry[*Session], directory database.Directory, sp stats.StatsProvider) *Router {
	return &Router{
		log:       logger,
		registry:  registry,
		directory: directory,
		stats:     sp,
	}
}

// BroadcastPresence delivers an online/offline event to every registered
// session except the subject's own.
func (rt *Router) BroadcastPresence(userId string, online bool) {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Presence: &PresenceEvent{
			UserId: userId,
			Online: online,
		},
	}

	for _, id := range rt.registry.OnlineUserIds() {
		if id == userId {
			continue
		}
		rt.deliverToUser(id, msg)
	}
}

// DeliverToConversation resolves the conversation's participants and delivers
// msg to every open session of every participant other than excludeUserId.
// The participant list is a fresh snapshot per call. The whole operation fails
// if the conversation cannot be resolved; individual delivery failures do not.
func (rt *Router) DeliverToConversation(conversationId string, msg *ServerMessage, excludeUserId string) error {
	conv, err := rt.directory.GetConversation(conversationId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConversationNotFound
		}
		return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}

	for _, participantId := range conv.ParticipantIds {
		if participantId == excludeUserId {
			continue
		}
		rt.deliverToUser(participantId, msg)
	}

	return nil
}

func (rt *Router) deliverToUser(userId string, msg *ServerMessage) {
	for _, s := range rt.registry.SessionsFor(userId) {
		if !s.queueMessage(msg) {
			rt.log.Printf("dropped event for %q: session queue full", userId)
			rt.stats.Incr(stats.DeliveryFailures)
			continue
		}
		rt.stats.Incr(stats.FanoutDeliveries)
	}
}
