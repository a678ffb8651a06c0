package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"chatwire/internal/chat"
	"chatwire/internal/database"
	"chatwire/internal/types"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=2,max=64"`
	Password string `json:"password" validate:"required,min=8"`
}

type UpdateStatusRequest struct {
	Online *bool `json:"online" validate:"required"`
}

type CreateConversationRequest struct {
	Type           string   `json:"type" validate:"required,oneof=private group"`
	Name           string   `json:"name" validate:"max=128"`
	ParticipantIds []string `json:"participant_ids" validate:"required,min=1,dive,required"`
}

func (s *ChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func userFromAccount(acct database.Account) types.User {
	return types.User{
		Id:           acct.Id,
		Username:     acct.Username,
		EmailAddress: acct.EmailAddress,
		Online:       acct.Online,
		LastSeen:     acct.LastSeen,
		CreatedAt:    acct.CreatedAt,
		UpdatedAt:    acct.UpdatedAt,
	}
}

func messageFromRecord(msg database.Message) types.Message {
	return types.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		SenderId:       msg.SenderId,
		Text:           msg.Text,
		ReadBy:         msg.ReadBy,
		CreatedAt:      msg.CreatedAt,
	}
}

func conversationFromRecord(conv database.Conversation) types.Conversation {
	return types.Conversation{
		Id:             conv.Id,
		Type:           conv.Type,
		Name:           conv.Name,
		ParticipantIds: conv.ParticipantIds,
		CreatedBy:      conv.CreatedBy,
		CreatedAt:      conv.CreatedAt,
	}
}

func (s *ChatApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health check:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		s.log.Printf("write response: %v", err)
	}
}

func (s *ChatApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.validate.Struct(req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
	}

	newUser, err := s.db.CreateAccount(params)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, userFromAccount(newUser))
}

func (s *ChatApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.validate.Struct(lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetAccountByEmail(lr.Email)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	token, err := s.createJwtForSession(dbUser.Id, defaultJwtExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))

	s.writeJson(w, http.StatusOK, userFromAccount(dbUser))
}

func (s *ChatApp) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createJwtCookie("", time.Duration(time.Unix(0, 0).Unix())))
	w.WriteHeader(http.StatusNoContent)
}

func (s *ChatApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, userFromAccount(user))
}

func (s *ChatApp) searchUsers(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	accounts, err := s.db.SearchAccounts(query, userId)
	if err != nil {
		s.log.Println("search accounts:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	users := lo.Map(accounts, func(acct database.Account, _ int) types.User {
		return userFromAccount(acct)
	})

	s.writeJson(w, http.StatusOK, users)
}

func (s *ChatApp) updateStatus(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.validate.Struct(req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.SetAccountOnline(userId, *req.Online); err != nil {
		s.log.Println("set account online:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *ChatApp) getConversations(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	summaries, err := s.db.ListConversations(userId)
	if err != nil {
		s.log.Println("list conversations:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conversations := lo.Map(summaries, func(summary database.ConversationSummary, _ int) types.Conversation {
		conv := conversationFromRecord(summary.Conversation)
		conv.Participants = lo.Map(summary.Participants, func(acct database.Account, _ int) types.User {
			return userFromAccount(acct)
		})
		if summary.LastMessage != nil {
			last := messageFromRecord(*summary.LastMessage)
			conv.LastMessage = &last
		}
		conv.UnreadCount = summary.UnreadCount
		return conv
	})

	s.writeJson(w, http.StatusOK, conversations)
}

func (s *ChatApp) createConversation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.validate.Struct(req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// creator is always a participant
	participantIds := lo.Uniq(append([]string{userId}, req.ParticipantIds...))

	if req.Type == types.ConversationTypePrivate {
		if len(participantIds) != 2 {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		otherId, _ := lo.Find(participantIds, func(id string) bool {
			return id != userId
		})

		// a private pair maps to at most one conversation
		existing, err := s.db.FindPrivateConversation(userId, otherId)
		if err == nil {
			s.writeJson(w, http.StatusOK, conversationFromRecord(existing))
			return
		}
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Println("find private conversation:", err)
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.CreateConversationParams{
		Id:             sid,
		Type:           req.Type,
		Name:           req.Name,
		CreatedBy:      userId,
		ParticipantIds: participantIds,
	}

	newConv, err := s.db.CreateConversation(params)
	if err != nil {
		s.log.Println("create conversation:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, conversationFromRecord(newConv))
}

func (s *ChatApp) getConversationMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conversationId := r.PathValue("conversationId")
	if conversationId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conv, err := s.db.GetConversation(conversationId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// non-participants get the same answer as a missing conversation
	if !slices.Contains(conv.ParticipantIds, userId) {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// fetching history doubles as a read receipt
	if _, err := s.db.MarkMessagesRead(conv.Id, userId); err != nil {
		s.log.Println("mark messages read:", err)
	}

	records, err := s.db.GetMessages(conv.Id)
	if err != nil {
		s.log.Println("get messages:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages := lo.Map(records, func(msg database.Message, _ int) types.Message {
		return messageFromRecord(msg)
	})

	s.writeJson(w, http.StatusOK, messages)
}

func (s *ChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	session := chat.NewSession(user.Id, conn, s.cs, s.log, s.stats)
	s.cs.Connect(session)

	go session.Write()
	go session.Read()
}
