package chat

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatwire/internal/stats"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Session owns one user's live websocket channel. Its read pump processes
// that connection's inbound events one at a time in arrival order; sessions
// of other connections run concurrently.
type Session struct {
	conn     *websocket.Conn
	server   *ChatServer
	log      *log.Logger
	userId   string
	send     chan *ServerMessage
	stats    stats.StatsProvider
	stop     chan struct{}
	stopOnce sync.Once
}

func NewSession(userId string, conn *websocket.Conn, server *ChatServer, l *log.Logger, sp stats.StatsProvider) *Session {
	return &Session{
		conn:   conn,
		server: server,
		log:    l,
		userId: userId,
		send:   make(chan *ServerMessage, 256),
		stats:  sp,
		stop:   make(chan struct{}),
	}
}

func (s *Session) UserId() string {
	return s.userId
}

func (s *Session) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		s.log.Printf("write pump for %q exiting", s.userId)
	}()

	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}

			bytes, err := serializeMessage(msg)
			if err != nil {
				s.log.Println("failed to serialize message:", err)
				continue
			}

			if !s.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-s.stop:
			return
		case <-ticker.C:
			if !s.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (s *Session) Read() {
	defer func() {
		s.conn.Close()
		s.cleanup()
		s.log.Printf("read pump for %q exiting", s.userId)
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(appData string) error { s.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Println("error parsing message:", err)
			s.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.UserId = s.userId

		s.dispatch(&msg)
	}
}

func (s *Session) dispatch(msg *ClientMessage) {
	switch {
	case msg.Send != nil:
		s.handleSend(msg)
	case msg.Typing != nil:
		s.handleTyping(msg)
	case msg.MarkRead != nil:
		s.handleMarkRead(msg)
	case msg.ListOnline != nil:
		s.handleListOnline(msg)
	default:
		s.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (s *Session) handleSend(msg *ClientMessage) {
	persisted, err := s.server.intake.Submit(msg.Send.ConversationId, s.userId, msg.Send.Text)
	if err != nil {
		s.log.Printf("submit message from %q: %v", s.userId, err)
		s.queueMessage(responseFor(msg.Id, err))
		return
	}

	s.queueMessage(NoErrAccepted(msg.Id))
	s.stats.Incr(stats.MessagesSent)

	// every participant, the sender's own connections included, receives the
	// canonical persisted record
	ev := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: persisted.CreatedAt,
		},
		Message: &persisted,
	}
	if err := s.server.router.DeliverToConversation(persisted.ConversationId, ev, ""); err != nil {
		s.log.Printf("fan out message %q: %v", persisted.Id, err)
	}
}

func (s *Session) handleTyping(msg *ClientMessage) {
	ev := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Typing: &TypingEvent{
			ConversationId: msg.Typing.ConversationId,
			UserId:         s.userId,
			IsTyping:       msg.Typing.IsTyping,
		},
	}

	if err := s.server.router.DeliverToConversation(msg.Typing.ConversationId, ev, s.userId); err != nil {
		s.log.Printf("fan out typing signal from %q: %v", s.userId, err)
		s.queueMessage(responseFor(msg.Id, err))
	}
}

func (s *Session) handleMarkRead(msg *ClientMessage) {
	updated, err := s.server.store.MarkMessagesRead(msg.MarkRead.ConversationId, s.userId)
	if err != nil {
		s.log.Printf("mark messages read for %q: %v", s.userId, err)
		s.queueMessage(responseFor(msg.Id, ErrStoreUnavailable))
		return
	}

	s.queueMessage(NoErrOK(msg.Id, map[string]any{"updated": updated}))
}

func (s *Session) handleListOnline(msg *ClientMessage) {
	s.queueMessage(NoErrOK(msg.Id, map[string]any{"user_ids": s.server.registry.OnlineUserIds()}))
}

func (s *Session) queueMessage(msg *ServerMessage) bool {
	select {
	case s.send <- msg:
	default:
		s.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (s *Session) sendMessage(msgType int, msg []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := s.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			s.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (s *Session) stopSession() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// cleanup runs to completion on every disconnect path, including abrupt
// socket errors; deregistration is never deferred past the pump exiting.
func (s *Session) cleanup() {
	s.server.Disconnect(s)
	s.stopSession()
}
