package chat

import (
	"context"
	"log"
	"sync"

	"chatwire/internal/database"
	"chatwire/internal/presence"
	"chatwire/internal/stats"
)

// ChatServer owns the presence registry and orchestrates session lifecycle:
// register on connect, broadcast presence transitions, mirror online state to
// the account store, and tear everything down on shutdown.
type ChatServer struct {
	log          *log.Logger
	registry     *presence.Registry[*Session]
	router       *Router
	intake       *Intake
	accounts     database.AccountStore
	store        database.MessageStore
	stats        stats.StatsProvider
	sessions     map[*Session]struct{}
	sessionsLock sync.Mutex
	wg           sync.WaitGroup
}

func NewChatServer(logger *log.Logger, db database.ChatRepository, sp stats.StatsProvider) (*ChatServer, error) {
	registry := presence.NewRegistry[*Session]()

	cs := &ChatServer{
		log:      logger,
		registry: registry,
		router:   NewRouter(logger, registry, db, sp),
		intake:   NewIntake(logger, db, db),
		accounts: db,
		store:    db,
		stats:    sp,
		sessions: make(map[*Session]struct{}),
	}

	sp.RegisterMetric(stats.ActiveConnections)
	sp.RegisterMetric(stats.OnlineUsers)
	sp.RegisterMetric(stats.MessagesSent)
	sp.RegisterMetric(stats.FanoutDeliveries)
	sp.RegisterMetric(stats.DeliveryFailures)

	return cs, nil
}

func (cs *ChatServer) Registry() *presence.Registry[*Session] {
	return cs.registry
}

// Connect registers the session and, when it is the user's first open
// connection, mirrors the online flag to the account store and broadcasts the
// transition. Later connections of an already-online user do not re-broadcast.
func (cs *ChatServer) Connect(s *Session) {
	cameOnline := cs.registry.Register(s.userId, s)
	cs.addSession(s)
	cs.stats.Incr(stats.ActiveConnections)
	cs.log.Printf("connection registered for %q", s.userId)

	if cameOnline {
		cs.stats.Incr(stats.OnlineUsers)
		if err := cs.accounts.SetAccountOnline(s.userId, true); err != nil {
			cs.log.Printf("set account %q online: %v", s.userId, err)
		}
		cs.router.BroadcastPresence(s.userId, true)
	}
}

// Disconnect is the single cleanup path for a session. It is driven by the
// read pump exiting, so it runs exactly once per session regardless of why
// the connection closed.
func (cs *ChatServer) Disconnect(s *Session) {
	wentOffline := cs.registry.Unregister(s.userId, s)
	cs.removeSession(s)
	cs.stats.Decr(stats.ActiveConnections)
	cs.log.Printf("connection removed for %q", s.userId)

	if wentOffline {
		cs.stats.Decr(stats.OnlineUsers)
		if err := cs.accounts.SetAccountOnline(s.userId, false); err != nil {
			cs.log.Printf("set account %q offline: %v", s.userId, err)
		}
		cs.router.BroadcastPresence(s.userId, false)
	}
}

func (cs *ChatServer) addSession(s *Session) {
	cs.sessionsLock.Lock()
	defer cs.sessionsLock.Unlock()
	cs.sessions[s] = struct{}{}
	cs.wg.Add(1)
}

func (cs *ChatServer) removeSession(s *Session) {
	cs.sessionsLock.Lock()
	defer cs.sessionsLock.Unlock()
	if _, ok := cs.sessions[s]; !ok {
		return
	}
	delete(cs.sessions, s)
	cs.wg.Done()
}

// Shutdown stops every session and waits for their cleanup to finish.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.sessionsLock.Lock()
	open := make([]*Session, 0, len(cs.sessions))
	for s := range cs.sessions {
		open = append(open, s)
	}
	cs.sessionsLock.Unlock()

	cs.log.Printf("stopping %d sessions", len(open))
	for _, s := range open {
		s.stopSession()
	}

	done := make(chan struct{})
	go func() {
		cs.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
