package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"

	"chatwire/internal/chat"
	"chatwire/internal/config"
	"chatwire/internal/database"
	"chatwire/internal/stats"
)

type ChatApp struct {
	log             *log.Logger
	db              database.ChatRepository
	srv             *http.Server
	cs              *chat.ChatServer
	stats           stats.StatsProvider
	validate        *validator.Validate
	signingKey      []byte
	allowedOrigins  []string
	generateShortId func() (string, error)
}

func NewChatApp(mux *http.ServeMux, logger *log.Logger, cs *chat.ChatServer, db database.ChatRepository, sp stats.StatsProvider, cfg *config.Config) *ChatApp {
	s := &ChatApp{
		log:             logger,
		db:              db,
		cs:              cs,
		stats:           sp,
		validate:        validator.New(),
		signingKey:      cfg.SigningKey,
		allowedOrigins:  cfg.AllowedOrigins,
		generateShortId: shortid.Generate,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("GET /api/users/search", s.authMiddleware(s.searchUsers))
	mux.HandleFunc("PUT /api/users/status", s.authMiddleware(s.updateStatus))
	mux.HandleFunc("GET /api/conversations", s.authMiddleware(s.getConversations))
	mux.HandleFunc("POST /api/conversations", s.authMiddleware(s.createConversation))
	mux.HandleFunc("GET /api/conversations/{conversationId}/messages", s.authMiddleware(s.getConversationMessages))
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.srv = srv
	return s
}

func (s *ChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *ChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
