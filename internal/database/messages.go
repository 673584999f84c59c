package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// nullableId maps the zero id sentinel to SQL NULL for optional foreign keys.
func nullableId(id int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(id), Valid: id != 0}
}

func (db *PgMessengerRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (content, sender_id, conversation_id, group_id, kind, reply_to_id, sent_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) "+
			"RETURNING id, content, sender_id, COALESCE(conversation_id, 0), COALESCE(group_id, 0), kind, "+
			"COALESCE(reply_to_id, 0), is_read, sent_at",
		params.Content,
		params.SenderId,
		nullableId(params.ConversationId),
		nullableId(params.GroupId),
		params.Kind,
		nullableId(params.ReplyToId),
		params.SentAt,
	)

	var m Message
	err := res.Scan(
		&m.Id,
		&m.Content,
		&m.SenderId,
		&m.ConversationId,
		&m.GroupId,
		&m.Kind,
		&m.ReplyToId,
		&m.IsRead,
		&m.SentAt,
	)

	return m, err
}

const messageSelect = "SELECT m.id, m.content, m.sender_id, a.username, COALESCE(m.conversation_id, 0), " +
	"COALESCE(m.group_id, 0), m.kind, COALESCE(m.reply_to_id, 0), m.is_read, m.read_at, m.sent_at " +
	"FROM messages m JOIN accounts a ON a.id = m.sender_id "

func scanMessage(row *sql.Row) (Message, error) {
	var m Message
	err := row.Scan(
		&m.Id,
		&m.Content,
		&m.SenderId,
		&m.SenderName,
		&m.ConversationId,
		&m.GroupId,
		&m.Kind,
		&m.ReplyToId,
		&m.IsRead,
		&m.ReadAt,
		&m.SentAt,
	)

	return m, err
}

func (db *PgMessengerRepository) GetMessageById(id int) (Message, error) {
	row := db.conn.QueryRow(messageSelect+"WHERE m.id = $1 LIMIT 1", id)

	return scanMessage(row)
}

func (db *PgMessengerRepository) MarkMessageRead(messageId int, at time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE messages SET is_read = TRUE, read_at = $2 WHERE id = $1 AND is_read = FALSE",
		messageId,
		at,
	)

	return err
}

// MarkConversationRead flips every unread message the reader received in
// the conversation. Messages the reader sent are untouched.
func (db *PgMessengerRepository) MarkConversationRead(conversationId, readerId int, at time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE messages SET is_read = TRUE, read_at = $3 "+
			"WHERE conversation_id = $1 AND sender_id != $2 AND is_read = FALSE",
		conversationId,
		readerId,
		at,
	)

	return err
}

func (db *PgMessengerRepository) listMessages(where string, id, page, pageSize int) ([]Message, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}

	rows, err := db.conn.Query(
		messageSelect+where+" ORDER BY m.sent_at DESC LIMIT $2 OFFSET $3",
		id,
		pageSize,
		(page-1)*pageSize,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, pageSize)
	for rows.Next() {
		var m Message
		if err = rows.Scan(
			&m.Id,
			&m.Content,
			&m.SenderId,
			&m.SenderName,
			&m.ConversationId,
			&m.GroupId,
			&m.Kind,
			&m.ReplyToId,
			&m.IsRead,
			&m.ReadAt,
			&m.SentAt,
		); err != nil {
			break
		}

		messages = append(messages, m)
	}

	return messages, err
}

// ListConversationMessages returns a page of messages newest first. Callers
// presenting history oldest first reverse the page themselves.
func (db *PgMessengerRepository) ListConversationMessages(conversationId, page, pageSize int) ([]Message, error) {
	return db.listMessages("WHERE m.conversation_id = $1", conversationId, page, pageSize)
}

func (db *PgMessengerRepository) ListGroupMessages(groupId, page, pageSize int) ([]Message, error) {
	return db.listMessages("WHERE m.group_id = $1", groupId, page, pageSize)
}

// SearchMessages matches content by substring within the conversations and
// groups the account belongs to, with optional scope filters. Returns the
// page of matches plus the total match count.
func (db *PgMessengerRepository) SearchMessages(params SearchMessagesParams) ([]Message, int, error) {
	conditions := []string{
		"(m.conversation_id IN (SELECT id FROM conversations WHERE user1_id = $1 OR user2_id = $1) " +
			"OR m.group_id IN (SELECT group_id FROM group_members WHERE account_id = $1))",
	}
	args := []any{params.AccountId}

	if params.Query != "" {
		args = append(args, params.Query)
		conditions = append(conditions, fmt.Sprintf("m.content ILIKE '%%' || $%d || '%%'", len(args)))
	}
	if params.ConversationId != 0 {
		args = append(args, params.ConversationId)
		conditions = append(conditions, fmt.Sprintf("m.conversation_id = $%d", len(args)))
	}
	if params.GroupId != 0 {
		args = append(args, params.GroupId)
		conditions = append(conditions, fmt.Sprintf("m.group_id = $%d", len(args)))
	}
	if params.SenderId != 0 {
		args = append(args, params.SenderId)
		conditions = append(conditions, fmt.Sprintf("m.sender_id = $%d", len(args)))
	}
	if params.From != nil {
		args = append(args, *params.From)
		conditions = append(conditions, fmt.Sprintf("m.sent_at >= $%d", len(args)))
	}
	if params.To != nil {
		args = append(args, *params.To)
		conditions = append(conditions, fmt.Sprintf("m.sent_at <= $%d", len(args)))
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM messages m JOIN accounts a ON a.id = m.sender_id " + where
	if err := db.conn.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, pageSize := params.Page, params.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}

	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf("%s%s ORDER BY m.sent_at DESC LIMIT $%d OFFSET $%d",
		messageSelect, where, len(args)-1, len(args))

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, pageSize)
	for rows.Next() {
		var m Message
		if err = rows.Scan(
			&m.Id,
			&m.Content,
			&m.SenderId,
			&m.SenderName,
			&m.ConversationId,
			&m.GroupId,
			&m.Kind,
			&m.ReplyToId,
			&m.IsRead,
			&m.ReadAt,
			&m.SentAt,
		); err != nil {
			break
		}

		messages = append(messages, m)
	}

	return messages, total, err
}
