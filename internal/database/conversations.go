package database

import (
	"time"
)

// GetConversation looks up the conversation for an unordered pair of users.
// Storage is keyed on the ordered pair, so both orderings are checked.
func (db *PgMessengerRepository) GetConversation(userA, userB int) (Conversation, error) {
	row := db.conn.QueryRow(
		"SELECT id, user1_id, user2_id, created_at, last_message_at FROM conversations "+
			"WHERE (user1_id = $1 AND user2_id = $2) OR (user1_id = $2 AND user2_id = $1) LIMIT 1",
		userA,
		userB,
	)

	var c Conversation
	err := row.Scan(
		&c.Id,
		&c.User1Id,
		&c.User2Id,
		&c.CreatedAt,
		&c.LastMessageAt,
	)

	return c, err
}

func (db *PgMessengerRepository) GetConversationById(id int) (Conversation, error) {
	row := db.conn.QueryRow(
		"SELECT id, user1_id, user2_id, created_at, last_message_at FROM conversations "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var c Conversation
	err := row.Scan(
		&c.Id,
		&c.User1Id,
		&c.User2Id,
		&c.CreatedAt,
		&c.LastMessageAt,
	)

	return c, err
}

// CreateConversation inserts a conversation row. Callers pass the pair
// normalized (userA < userB) so the ordered unique constraint arbitrates
// concurrent first contacts; the loser sees a unique violation and
// resolves it with IsUniqueViolation and a re-read.
func (db *PgMessengerRepository) CreateConversation(userA, userB int) (Conversation, error) {
	res := db.conn.QueryRow(
		"INSERT INTO conversations (user1_id, user2_id, created_at) "+
			"VALUES ($1, $2, $3) RETURNING id, user1_id, user2_id, created_at",
		userA,
		userB,
		time.Now().UTC(),
	)

	var c Conversation
	err := res.Scan(
		&c.Id,
		&c.User1Id,
		&c.User2Id,
		&c.CreatedAt,
	)

	return c, err
}

func (db *PgMessengerRepository) TouchConversation(id int, at time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE conversations SET last_message_at = $2 WHERE id = $1",
		id,
		at,
	)

	return err
}

func (db *PgMessengerRepository) ListConversations(accountId int) ([]ConversationSummary, error) {
	query := `
		SELECT
				c.id,
				a.id AS other_user_id,
				a.username AS other_username,
				a.is_online,
				COALESCE(m.content, '') AS last_message,
				c.last_message_at,
				c.created_at,
				(SELECT COUNT(*) FROM messages unread
					WHERE unread.conversation_id = c.id
					AND unread.sender_id != $1
					AND unread.is_read = FALSE) AS unread_count
		FROM conversations c
		JOIN accounts a ON a.id = CASE WHEN c.user1_id = $1 THEN c.user2_id ELSE c.user1_id END
		LEFT JOIN LATERAL (
				SELECT content FROM messages
				WHERE conversation_id = c.id
				ORDER BY sent_at DESC LIMIT 1
		) m ON TRUE
		WHERE c.user1_id = $1 OR c.user2_id = $1
		ORDER BY c.last_message_at DESC NULLS LAST;
`

	rows, err := db.conn.Query(query, accountId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries = make([]ConversationSummary, 0)
	for rows.Next() {
		var s ConversationSummary
		if err = rows.Scan(
			&s.Id,
			&s.OtherUserId,
			&s.OtherUsername,
			&s.OtherOnline,
			&s.LastMessage,
			&s.LastMessageAt,
			&s.CreatedAt,
			&s.UnreadCount,
		); err != nil {
			break
		}

		summaries = append(summaries, s)
	}

	return summaries, err
}

func (db *PgMessengerRepository) DeleteConversation(id int) error {
	// messages cascade via the conversation foreign key
	_, err := db.conn.Exec("DELETE FROM conversations WHERE id = $1", id)

	return err
}
