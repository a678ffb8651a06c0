package database

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const participantIdsSubquery = "ARRAY(SELECT p.account_id FROM conversation_participants p " +
	"WHERE p.conversation_id = c.id ORDER BY p.position)"

func (db *PgChatRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (id, username, email, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, username, email",
		uuid.NewString(),
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
	)

	return a, err
}

func (db *PgChatRepository) GetAccountById(accountId string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, online, last_seen, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.Online,
		&a.LastSeen,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgChatRepository) GetAccountByEmail(email string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.PasswordHash,
	)

	return a, err
}

func (db *PgChatRepository) SearchAccounts(query, excludeId string) ([]Account, error) {
	rows, err := db.conn.Query(
		"SELECT id, username, email, online, last_seen FROM accounts "+
			"WHERE id <> $2 AND (username ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%') "+
			"ORDER BY username LIMIT 20",
		query,
		excludeId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(
			&a.Id,
			&a.Username,
			&a.EmailAddress,
			&a.Online,
			&a.LastSeen,
		); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}

	return accounts, rows.Err()
}

func (db *PgChatRepository) SetAccountOnline(accountId string, online bool) error {
	_, err := db.conn.Exec(
		"UPDATE accounts SET online = $2, last_seen = $3 WHERE id = $1",
		accountId,
		online,
		time.Now().UTC(),
	)

	return err
}

func (db *PgChatRepository) GetConversation(conversationId string) (Conversation, error) {
	row := db.conn.QueryRow(
		"SELECT c.id, c.type, COALESCE(c.name, ''), c.created_by, c.created_at, "+
			participantIdsSubquery+
			" FROM conversations c WHERE c.id = $1 LIMIT 1",
		conversationId,
	)

	var conv Conversation
	err := row.Scan(
		&conv.Id,
		&conv.Type,
		&conv.Name,
		&conv.CreatedBy,
		&conv.CreatedAt,
		pq.Array(&conv.ParticipantIds),
	)

	return conv, err
}

func (db *PgChatRepository) FindPrivateConversation(accountId, otherId string) (Conversation, error) {
	row := db.conn.QueryRow(
		"SELECT c.id, c.type, COALESCE(c.name, ''), c.created_by, c.created_at, "+
			participantIdsSubquery+
			" FROM conversations c WHERE c.type = 'private' "+
			"AND EXISTS (SELECT 1 FROM conversation_participants p WHERE p.conversation_id = c.id AND p.account_id = $1) "+
			"AND EXISTS (SELECT 1 FROM conversation_participants p WHERE p.conversation_id = c.id AND p.account_id = $2) "+
			"AND (SELECT COUNT(*) FROM conversation_participants p WHERE p.conversation_id = c.id) = 2 "+
			"LIMIT 1",
		accountId,
		otherId,
	)

	var conv Conversation
	err := row.Scan(
		&conv.Id,
		&conv.Type,
		&conv.Name,
		&conv.CreatedBy,
		&conv.CreatedAt,
		pq.Array(&conv.ParticipantIds),
	)

	return conv, err
}

func (db *PgChatRepository) CreateConversation(params CreateConversationParams) (Conversation, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Conversation{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	createdAt := time.Now().UTC()
	if _, err := tx.Exec(
		"INSERT INTO conversations (id, type, name, created_by, created_at) VALUES ($1, $2, $3, $4, $5)",
		params.Id,
		params.Type,
		params.Name,
		params.CreatedBy,
		createdAt,
	); err != nil {
		return Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}

	for i, accountId := range params.ParticipantIds {
		if _, err := tx.Exec(
			"INSERT INTO conversation_participants (conversation_id, account_id, position) VALUES ($1, $2, $3)",
			params.Id,
			accountId,
			i,
		); err != nil {
			return Conversation{}, fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Conversation{}, fmt.Errorf("commit: %w", err)
	}

	return Conversation{
		Id:             params.Id,
		Type:           params.Type,
		Name:           params.Name,
		CreatedBy:      params.CreatedBy,
		ParticipantIds: params.ParticipantIds,
		CreatedAt:      createdAt,
	}, nil
}

func (db *PgChatRepository) ListConversations(accountId string) ([]ConversationSummary, error) {
	rows, err := db.conn.Query(
		"SELECT c.id, c.type, COALESCE(c.name, ''), c.created_by, c.created_at, "+
			participantIdsSubquery+
			" FROM conversations c "+
			"JOIN conversation_participants cp ON cp.conversation_id = c.id "+
			"WHERE cp.account_id = $1",
		accountId,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var summaries []ConversationSummary
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(
			&conv.Id,
			&conv.Type,
			&conv.Name,
			&conv.CreatedBy,
			&conv.CreatedAt,
			pq.Array(&conv.ParticipantIds),
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, ConversationSummary{Conversation: conv})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range summaries {
		if err := db.enrichSummary(&summaries[i], accountId); err != nil {
			return nil, fmt.Errorf("enrich conversation %s: %w", summaries[i].Id, err)
		}
	}

	// most recently active conversations first
	sort.SliceStable(summaries, func(i, j int) bool {
		li, lj := summaries[i].LastMessage, summaries[j].LastMessage
		switch {
		case li == nil:
			return false
		case lj == nil:
			return true
		default:
			return li.CreatedAt.After(lj.CreatedAt)
		}
	})

	return summaries, nil
}

func (db *PgChatRepository) enrichSummary(summary *ConversationSummary, accountId string) error {
	participants, err := db.getParticipantAccounts(summary.Id)
	if err != nil {
		return err
	}
	summary.Participants = participants

	last, err := db.getLastMessage(summary.Id)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if err == nil {
		summary.LastMessage = &last
	}

	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM messages m WHERE m.conversation_id = $1 AND m.sender_id <> $2 "+
			"AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.account_id = $2)",
		summary.Id,
		accountId,
	)

	return row.Scan(&summary.UnreadCount)
}

func (db *PgChatRepository) getParticipantAccounts(conversationId string) ([]Account, error) {
	rows, err := db.conn.Query(
		"SELECT a.id, a.username, a.email, a.online, a.last_seen FROM accounts a "+
			"JOIN conversation_participants p ON p.account_id = a.id "+
			"WHERE p.conversation_id = $1 ORDER BY p.position",
		conversationId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(
			&a.Id,
			&a.Username,
			&a.EmailAddress,
			&a.Online,
			&a.LastSeen,
		); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}

	return accounts, rows.Err()
}

func (db *PgChatRepository) getLastMessage(conversationId string) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT m.id, m.conversation_id, m.sender_id, m.text, m.created_at, "+
			"ARRAY(SELECT r.account_id FROM message_reads r WHERE r.message_id = m.id) "+
			"FROM messages m WHERE m.conversation_id = $1 "+
			"ORDER BY m.created_at DESC LIMIT 1",
		conversationId,
	)

	var m Message
	err := row.Scan(
		&m.Id,
		&m.ConversationId,
		&m.SenderId,
		&m.Text,
		&m.CreatedAt,
		pq.Array(&m.ReadBy),
	)

	return m, err
}

func (db *PgChatRepository) CreateMessage(msg Message) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO messages (id, conversation_id, sender_id, text, created_at) VALUES ($1, $2, $3, $4, $5)",
		msg.Id,
		msg.ConversationId,
		msg.SenderId,
		msg.Text,
		msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	for _, readerId := range msg.ReadBy {
		if _, err := tx.Exec(
			"INSERT INTO message_reads (message_id, account_id, read_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
			msg.Id,
			readerId,
			msg.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert message read: %w", err)
		}
	}

	return tx.Commit()
}

// MarkMessagesRead unions readerId into the read set of every message in the
// conversation not sent by readerId. The read set only grows; repeated calls
// converge on the same set.
func (db *PgChatRepository) MarkMessagesRead(conversationId, readerId string) (int, error) {
	res, err := db.conn.Exec(
		"INSERT INTO message_reads (message_id, account_id, read_at) "+
			"SELECT m.id, $2, $3 FROM messages m "+
			"WHERE m.conversation_id = $1 AND m.sender_id <> $2 "+
			"ON CONFLICT DO NOTHING",
		conversationId,
		readerId,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}

	updated, err := res.RowsAffected()
	return int(updated), err
}

func (db *PgChatRepository) GetMessages(conversationId string) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT m.id, m.conversation_id, m.sender_id, m.text, m.created_at, "+
			"ARRAY(SELECT r.account_id FROM message_reads r WHERE r.message_id = m.id) "+
			"FROM messages m WHERE m.conversation_id = $1 "+
			"ORDER BY m.created_at ASC",
		conversationId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.Id,
			&m.ConversationId,
			&m.SenderId,
			&m.Text,
			&m.CreatedAt,
			pq.Array(&m.ReadBy),
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}
