package database

// AccountStore holds user accounts and the persisted online/last-seen mirror
// of the in-process presence registry.
type AccountStore interface {
	CreateAccount(params CreateAccountParams) (Account, error)
	GetAccountById(accountId string) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	SearchAccounts(query, excludeId string) ([]Account, error)
	SetAccountOnline(accountId string, online bool) error
}

// Directory is the conversation lookup contract consumed by the fan-out
// router. Participant lists are point-in-time snapshots fetched per call.
type Directory interface {
	GetConversation(conversationId string) (Conversation, error)
	FindPrivateConversation(accountId, otherId string) (Conversation, error)
	CreateConversation(params CreateConversationParams) (Conversation, error)
	ListConversations(accountId string) ([]ConversationSummary, error)
}

// MessageStore is the append-only message contract consumed by message intake.
type MessageStore interface {
	CreateMessage(msg Message) error
	MarkMessagesRead(conversationId, readerId string) (int, error)
	GetMessages(conversationId string) ([]Message, error)
}

type ChatRepository interface {
	AccountStore
	Directory
	MessageStore
	Ping() error
}
