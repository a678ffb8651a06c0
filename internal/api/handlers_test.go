package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatwire/internal/config"
	"chatwire/internal/database"
	"chatwire/internal/testutil"
	"chatwire/internal/types"
)

// findCookie is a helper function to find a cookie by name in the response recorder.
// It returns the cookie if found, or nil if not found.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func newTestApp(t *testing.T, mockRepo *database.MockChatRepository) *ChatApp {
	t.Helper()

	cfg := &config.Config{
		SigningKey: []byte("test-signing-key"),
	}

	return NewChatApp(http.NewServeMux(), testutil.TestLogger(t), nil, mockRepo, nil, cfg)
}

func authenticatedRequest(method, target string, body []byte, userId string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	return req.WithContext(WithUserId(req.Context(), userId))
}

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
	}{
		{
			name:    "successful health check",
			mockErr: nil,
		},
		{
			name:    "failed health check",
			mockErr: errors.New("db error"),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)
			mockRepo.On("Ping").Return(tc.mockErr).Once()

			app := newTestApp(t, mockRepo)
			rr := httptest.NewRecorder()
			app.healthCheck(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
			} else {
				assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
				assert.Equal(t, "OK", rr.Body.String(), "expected response body to be 'OK'")
			}
		})
	}
}

func TestCreateAccountHandler(t *testing.T) {
	expectedUser := database.Account{
		Id:           "u-1",
		Username:     "newuser",
		EmailAddress: "newuser@example.com",
		PasswordHash: "hashedpassword",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	tcases := []struct {
		name        string
		body        any
		success     bool
		mockUser    database.Account
		mockErr     error
		expectedErr *ApiError
	}{
		{
			name: "successfully creates a new account",
			body: RegisterRequest{
				Username: expectedUser.Username,
				Email:    expectedUser.EmailAddress,
				Password: "password123",
			},
			success:  true,
			mockUser: expectedUser,
		},
		{
			name:        "failed with invalid json body",
			body:        "invalid json",
			expectedErr: NewBadRequestError(),
		},
		{
			name: "fails with missing username",
			body: RegisterRequest{
				Email:    expectedUser.EmailAddress,
				Password: "password123",
			},
			expectedErr: NewBadRequestError(),
		},
		{
			name: "fails with invalid email",
			body: RegisterRequest{
				Username: expectedUser.Username,
				Email:    "not-an-email",
				Password: "password123",
			},
			expectedErr: NewBadRequestError(),
		},
		{
			name: "fails with short password",
			body: RegisterRequest{
				Username: expectedUser.Username,
				Email:    expectedUser.EmailAddress,
				Password: "short",
			},
			expectedErr: NewBadRequestError(),
		},
		{
			name: "fails with db error",
			body: RegisterRequest{
				Username: expectedUser.Username,
				Email:    expectedUser.EmailAddress,
				Password: "password123",
			},
			mockErr:     errors.New("db error"),
			expectedErr: NewInternalServerError(nil),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)

			if tc.mockUser != (database.Account{}) || tc.mockErr != nil {
				regReq, ok := tc.body.(RegisterRequest)
				require.True(t, ok, "unsupported request body type: %T", tc.body)

				mockRepo.On("CreateAccount", mock.MatchedBy(func(params database.CreateAccountParams) bool {
					return params.Username == regReq.Username &&
						params.EmailAddress == regReq.Email &&
						verifyPassword(params.PasswordHash, regReq.Password)
				})).Return(tc.mockUser, tc.mockErr).Once()
			}

			app := newTestApp(t, mockRepo)

			var req *http.Request
			switch v := tc.body.(type) {
			case string:
				req = httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(v))
			case RegisterRequest:
				body, err := json.Marshal(v)
				require.NoError(t, err, "failed to marshal request body")
				req = httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBuffer(body))
			default:
				t.Fatalf("unsupported request body type: %T", v)
			}

			rr := httptest.NewRecorder()
			app.createAccount(rr, req)

			if tc.success {
				assert.Equal(t, http.StatusCreated, rr.Code)

				var user types.User
				err := json.NewDecoder(rr.Body).Decode(&user)
				assert.NoError(t, err, "failed to decode response")
				assert.Equal(t, expectedUser.Id, user.Id)
				assert.Equal(t, expectedUser.Username, user.Username)
				assert.Equal(t, expectedUser.EmailAddress, user.EmailAddress)
			} else {
				var apiErr ApiError
				err := json.NewDecoder(rr.Body).Decode(&apiErr)
				assert.NoError(t, err, "failed to decode error response")
				assert.Equal(t, tc.expectedErr.StatusCode, rr.Code, "expected status code to match")
				assert.Equal(t, *tc.expectedErr, apiErr, "expected ApiError response")
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	passwordHash, err := hashPassword("password123")
	require.NoError(t, err, "failed to hash password")

	account := database.Account{
		Id:           "u-1",
		Username:     "test",
		EmailAddress: "test@example.com",
		PasswordHash: passwordHash,
	}

	t.Run("successful login sets token cookie", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountByEmail", account.EmailAddress).Return(account, nil).Once()

		app := newTestApp(t, mockRepo)

		body, err := json.Marshal(LoginRequest{Email: account.EmailAddress, Password: "password123"})
		require.NoError(t, err, "failed to marshal request body")

		rr := httptest.NewRecorder()
		app.login(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBuffer(body)))

		assert.Equal(t, http.StatusOK, rr.Code)

		cookie := findCookie(rr, tokenCookieKey)
		require.NotNil(t, cookie, "expected token cookie to be set")

		userId, err := app.extractUserIdFromToken(cookie.Value)
		assert.NoError(t, err, "expected cookie to carry a valid token")
		assert.Equal(t, account.Id, userId, "expected token to identify the account")
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountByEmail", account.EmailAddress).Return(account, nil).Once()

		app := newTestApp(t, mockRepo)

		body, err := json.Marshal(LoginRequest{Email: account.EmailAddress, Password: "wrong-password"})
		require.NoError(t, err, "failed to marshal request body")

		rr := httptest.NewRecorder()
		app.login(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBuffer(body)))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Nil(t, findCookie(rr, tokenCookieKey), "expected no token cookie")
	})

	t.Run("unknown email is not found", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountByEmail", "nobody@example.com").Return(database.Account{}, sql.ErrNoRows).Once()

		app := newTestApp(t, mockRepo)

		body, err := json.Marshal(LoginRequest{Email: "nobody@example.com", Password: "password123"})
		require.NoError(t, err, "failed to marshal request body")

		rr := httptest.NewRecorder()
		app.login(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBuffer(body)))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestSearchUsersHandler(t *testing.T) {
	t.Run("returns matches excluding the caller", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("SearchAccounts", "ali", "u-1").Return([]database.Account{
			{Id: "u-2", Username: "alice", Online: true},
			{Id: "u-3", Username: "alistair"},
		}, nil).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.searchUsers(rr, authenticatedRequest(http.MethodGet, "/api/users/search?q=ali", nil, "u-1"))

		assert.Equal(t, http.StatusOK, rr.Code)

		var users []types.User
		err := json.NewDecoder(rr.Body).Decode(&users)
		require.NoError(t, err, "failed to decode response")
		require.Len(t, users, 2, "expected both matches")
		assert.Equal(t, "u-2", users[0].Id)
		assert.True(t, users[0].Online, "expected online flag to survive mapping")
		assert.Equal(t, "u-3", users[1].Id)
	})

	t.Run("missing query is a bad request", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.searchUsers(rr, authenticatedRequest(http.MethodGet, "/api/users/search", nil, "u-1"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unauthenticated request is unauthorized", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.searchUsers(rr, httptest.NewRequest(http.MethodGet, "/api/users/search?q=ali", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestUpdateStatusHandler(t *testing.T) {
	t.Run("persists explicit offline", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("SetAccountOnline", "u-1", false).Return(nil).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.updateStatus(rr, authenticatedRequest(http.MethodPut, "/api/users/status", []byte(`{"online":false}`), "u-1"))

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("missing online field is a bad request", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.updateStatus(rr, authenticatedRequest(http.MethodPut, "/api/users/status", []byte(`{}`), "u-1"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestGetConversationsHandler(t *testing.T) {
	lastMsg := database.Message{
		Id:             "m-9",
		ConversationId: "c-1",
		SenderId:       "u-2",
		Text:           "hello",
		ReadBy:         []string{"u-2"},
		CreatedAt:      time.Now().UTC(),
	}
	summaries := []database.ConversationSummary{
		{
			Conversation: database.Conversation{
				Id:             "c-1",
				Type:           types.ConversationTypePrivate,
				ParticipantIds: []string{"u-1", "u-2"},
				CreatedBy:      "u-1",
			},
			Participants: []database.Account{
				{Id: "u-1", Username: "me"},
				{Id: "u-2", Username: "alice", Online: true},
			},
			LastMessage: &lastMsg,
			UnreadCount: 3,
		},
	}

	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("ListConversations", "u-1").Return(summaries, nil).Once()

	app := newTestApp(t, mockRepo)

	rr := httptest.NewRecorder()
	app.getConversations(rr, authenticatedRequest(http.MethodGet, "/api/conversations", nil, "u-1"))

	assert.Equal(t, http.StatusOK, rr.Code)

	var conversations []types.Conversation
	err := json.NewDecoder(rr.Body).Decode(&conversations)
	require.NoError(t, err, "failed to decode response")
	require.Len(t, conversations, 1)

	conv := conversations[0]
	assert.Equal(t, "c-1", conv.Id)
	assert.Equal(t, 3, conv.UnreadCount)
	require.NotNil(t, conv.LastMessage, "expected last message")
	assert.Equal(t, lastMsg.Id, conv.LastMessage.Id)
	require.Len(t, conv.Participants, 2)
	assert.True(t, conv.Participants[1].Online, "expected participant presence to survive mapping")
}

func TestCreateConversationHandler(t *testing.T) {
	t.Run("creating an existing private pair returns the existing conversation", func(t *testing.T) {
		existing := database.Conversation{
			Id:             "c-1",
			Type:           types.ConversationTypePrivate,
			ParticipantIds: []string{"u-1", "u-2"},
			CreatedBy:      "u-2",
		}

		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("FindPrivateConversation", "u-1", "u-2").Return(existing, nil).Once()

		app := newTestApp(t, mockRepo)

		body := []byte(`{"type":"private","participant_ids":["u-2"]}`)
		rr := httptest.NewRecorder()
		app.createConversation(rr, authenticatedRequest(http.MethodPost, "/api/conversations", body, "u-1"))

		assert.Equal(t, http.StatusOK, rr.Code, "expected existing conversation, not a new one")

		var conv types.Conversation
		err := json.NewDecoder(rr.Body).Decode(&conv)
		require.NoError(t, err, "failed to decode response")
		assert.Equal(t, existing.Id, conv.Id)
	})

	t.Run("creates a new private conversation", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("FindPrivateConversation", "u-1", "u-2").Return(database.Conversation{}, sql.ErrNoRows).Once()
		mockRepo.On("CreateConversation", mock.MatchedBy(func(params database.CreateConversationParams) bool {
			return params.Id == "short-id" &&
				params.Type == types.ConversationTypePrivate &&
				params.CreatedBy == "u-1" &&
				assert.ObjectsAreEqual([]string{"u-1", "u-2"}, params.ParticipantIds)
		})).Return(database.Conversation{
			Id:             "short-id",
			Type:           types.ConversationTypePrivate,
			ParticipantIds: []string{"u-1", "u-2"},
			CreatedBy:      "u-1",
		}, nil).Once()

		app := newTestApp(t, mockRepo)
		app.generateShortId = func() (string, error) { return "short-id", nil }

		body := []byte(`{"type":"private","participant_ids":["u-2"]}`)
		rr := httptest.NewRecorder()
		app.createConversation(rr, authenticatedRequest(http.MethodPost, "/api/conversations", body, "u-1"))

		assert.Equal(t, http.StatusCreated, rr.Code)

		var conv types.Conversation
		err := json.NewDecoder(rr.Body).Decode(&conv)
		require.NoError(t, err, "failed to decode response")
		assert.Equal(t, "short-id", conv.Id)
	})

	t.Run("creates a group conversation without dedupe", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("CreateConversation", mock.MatchedBy(func(params database.CreateConversationParams) bool {
			return params.Type == types.ConversationTypeGroup &&
				params.Name == "weekend plans" &&
				assert.ObjectsAreEqual([]string{"u-1", "u-2", "u-3"}, params.ParticipantIds)
		})).Return(database.Conversation{
			Id:             "short-id",
			Type:           types.ConversationTypeGroup,
			Name:           "weekend plans",
			ParticipantIds: []string{"u-1", "u-2", "u-3"},
			CreatedBy:      "u-1",
		}, nil).Once()

		app := newTestApp(t, mockRepo)
		app.generateShortId = func() (string, error) { return "short-id", nil }

		body := []byte(`{"type":"group","name":"weekend plans","participant_ids":["u-2","u-3"]}`)
		rr := httptest.NewRecorder()
		app.createConversation(rr, authenticatedRequest(http.MethodPost, "/api/conversations", body, "u-1"))

		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("private conversation with more than one other participant is rejected", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		app := newTestApp(t, mockRepo)

		body := []byte(`{"type":"private","participant_ids":["u-2","u-3"]}`)
		rr := httptest.NewRecorder()
		app.createConversation(rr, authenticatedRequest(http.MethodPost, "/api/conversations", body, "u-1"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown conversation type is rejected", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		app := newTestApp(t, mockRepo)

		body := []byte(`{"type":"broadcast","participant_ids":["u-2"]}`)
		rr := httptest.NewRecorder()
		app.createConversation(rr, authenticatedRequest(http.MethodPost, "/api/conversations", body, "u-1"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestGetConversationMessagesHandler(t *testing.T) {
	conv := database.Conversation{
		Id:             "c-1",
		Type:           types.ConversationTypePrivate,
		ParticipantIds: []string{"u-1", "u-2"},
	}

	newRequest := func(userId string) *http.Request {
		req := authenticatedRequest(http.MethodGet, "/api/conversations/c-1/messages", nil, userId)
		req.SetPathValue("conversationId", "c-1")
		return req
	}

	t.Run("marks messages read before returning them", func(t *testing.T) {
		messages := []database.Message{
			{Id: "m-1", ConversationId: "c-1", SenderId: "u-2", Text: "hi", ReadBy: []string{"u-2", "u-1"}},
		}

		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetConversation", "c-1").Return(conv, nil).Once()
		mockRepo.On("MarkMessagesRead", "c-1", "u-1").Return(1, nil).Once()
		mockRepo.On("GetMessages", "c-1").Return(messages, nil).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.getConversationMessages(rr, newRequest("u-1"))

		assert.Equal(t, http.StatusOK, rr.Code)

		var got []types.Message
		err := json.NewDecoder(rr.Body).Decode(&got)
		require.NoError(t, err, "failed to decode response")
		require.Len(t, got, 1)
		assert.Equal(t, "m-1", got[0].Id)
		assert.Contains(t, got[0].ReadBy, "u-1", "expected reader in read_by")
	})

	t.Run("non-participant gets not found", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetConversation", "c-1").Return(conv, nil).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.getConversationMessages(rr, newRequest("u-9"))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("unknown conversation gets not found", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetConversation", "c-1").Return(database.Conversation{}, sql.ErrNoRows).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		app.getConversationMessages(rr, newRequest("u-1"))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
