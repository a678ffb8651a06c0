package database

import (
	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockChatRepository) GetAccountById(accountId string) (Account, error) {
	args := m.Called(accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockChatRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockChatRepository) SearchAccounts(query, excludeId string) ([]Account, error) {
	args := m.Called(query, excludeId)
	return args.Get(0).([]Account), args.Error(1)
}
func (m *MockChatRepository) SetAccountOnline(accountId string, online bool) error {
	args := m.Called(accountId, online)
	return args.Error(0)
}
func (m *MockChatRepository) GetConversation(conversationId string) (Conversation, error) {
	args := m.Called(conversationId)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockChatRepository) FindPrivateConversation(accountId, otherId string) (Conversation, error) {
	args := m.Called(accountId, otherId)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockChatRepository) CreateConversation(params CreateConversationParams) (Conversation, error) {
	args := m.Called(params)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockChatRepository) ListConversations(accountId string) ([]ConversationSummary, error) {
	args := m.Called(accountId)
	return args.Get(0).([]ConversationSummary), args.Error(1)
}
func (m *MockChatRepository) CreateMessage(msg Message) error {
	args := m.Called(msg)
	return args.Error(0)
}
func (m *MockChatRepository) MarkMessagesRead(conversationId, readerId string) (int, error) {
	args := m.Called(conversationId, readerId)
	return args.Int(0), args.Error(1)
}
func (m *MockChatRepository) GetMessages(conversationId string) ([]Message, error) {
	args := m.Called(conversationId)
	return args.Get(0).([]Message), args.Error(1)
}
