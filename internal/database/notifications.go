package database

import (
	"database/sql"
	"time"
)

func (db *PgMessengerRepository) CreateNotification(params CreateNotificationParams) (Notification, error) {
	res := db.conn.QueryRow(
		"INSERT INTO notifications (account_id, from_account_id, title, body, kind, related_id, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) "+
			"RETURNING id, account_id, COALESCE(from_account_id, 0), title, COALESCE(body, ''), kind, "+
			"COALESCE(related_id, 0), is_read, created_at",
		params.AccountId,
		nullableId(params.FromAccountId),
		params.Title,
		sql.NullString{String: params.Body, Valid: params.Body != ""},
		params.Kind,
		nullableId(params.RelatedId),
		time.Now().UTC(),
	)

	var n Notification
	err := res.Scan(
		&n.Id,
		&n.AccountId,
		&n.FromAccountId,
		&n.Title,
		&n.Body,
		&n.Kind,
		&n.RelatedId,
		&n.IsRead,
		&n.CreatedAt,
	)

	return n, err
}

func (db *PgMessengerRepository) ListNotifications(accountId, page, pageSize int, unreadOnly bool) ([]Notification, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	query := "SELECT n.id, n.account_id, COALESCE(n.from_account_id, 0), COALESCE(a.username, ''), " +
		"n.title, COALESCE(n.body, ''), n.kind, COALESCE(n.related_id, 0), n.is_read, n.created_at " +
		"FROM notifications n LEFT JOIN accounts a ON a.id = n.from_account_id " +
		"WHERE n.account_id = $1"
	if unreadOnly {
		query += " AND n.is_read = FALSE"
	}
	query += " ORDER BY n.created_at DESC LIMIT $2 OFFSET $3"

	rows, err := db.conn.Query(query, accountId, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications = make([]Notification, 0, pageSize)
	for rows.Next() {
		var n Notification
		if err = rows.Scan(
			&n.Id,
			&n.AccountId,
			&n.FromAccountId,
			&n.FromUsername,
			&n.Title,
			&n.Body,
			&n.Kind,
			&n.RelatedId,
			&n.IsRead,
			&n.CreatedAt,
		); err != nil {
			break
		}

		notifications = append(notifications, n)
	}

	return notifications, err
}

func (db *PgMessengerRepository) CountUnreadNotifications(accountId int) (int, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM notifications WHERE account_id = $1 AND is_read = FALSE",
		accountId,
	)

	var count int
	err := row.Scan(&count)

	return count, err
}

func (db *PgMessengerRepository) MarkNotificationRead(id, accountId int) error {
	_, err := db.conn.Exec(
		"UPDATE notifications SET is_read = TRUE WHERE id = $1 AND account_id = $2",
		id,
		accountId,
	)

	return err
}

func (db *PgMessengerRepository) MarkAllNotificationsRead(accountId int) error {
	_, err := db.conn.Exec(
		"UPDATE notifications SET is_read = TRUE WHERE account_id = $1 AND is_read = FALSE",
		accountId,
	)

	return err
}

func (db *PgMessengerRepository) DeleteNotification(id, accountId int) error {
	_, err := db.conn.Exec(
		"DELETE FROM notifications WHERE id = $1 AND account_id = $2",
		id,
		accountId,
	)

	return err
}
