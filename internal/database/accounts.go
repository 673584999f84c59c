package database

import (
	"time"
)

func (db *PgMessengerRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, full_name, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) RETURNING id, username, email, full_name",
		params.Username,
		params.EmailAddress,
		params.FullName,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.FullName,
	)

	return a, err
}

func (db *PgMessengerRepository) UpdateAccount(params UpdateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"UPDATE accounts SET username = $2, full_name = $3, password_hash = $4, updated_at = $5 "+
			"WHERE id = $1 RETURNING id, username, email, full_name",
		params.AccountId,
		params.Username,
		params.FullName,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.FullName,
	)

	return a, err
}

func (db *PgMessengerRepository) GetAccountById(accountId int) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, full_name, is_online, last_seen, created_at, updated_at "+
			"FROM accounts WHERE id = $1 LIMIT 1",
		accountId,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.FullName,
		&a.IsOnline,
		&a.LastSeen,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgMessengerRepository) GetAccountByEmail(email string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, full_name, password_hash, is_online, last_seen "+
			"FROM accounts WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.FullName,
		&a.PasswordHash,
		&a.IsOnline,
		&a.LastSeen,
	)

	return a, err
}

func (db *PgMessengerRepository) ListAccounts(excludeId int) ([]Account, error) {
	rows, err := db.conn.Query(
		"SELECT id, username, full_name, is_online, last_seen FROM accounts "+
			"WHERE id != $1 ORDER BY username",
		excludeId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts = make([]Account, 0)
	for rows.Next() {
		var a Account
		if err = rows.Scan(&a.Id, &a.Username, &a.FullName, &a.IsOnline, &a.LastSeen); err != nil {
			break
		}

		accounts = append(accounts, a)
	}

	return accounts, err
}

func (db *PgMessengerRepository) SearchAccounts(query string, excludeId int) ([]Account, error) {
	rows, err := db.conn.Query(
		"SELECT id, username, full_name, is_online, last_seen FROM accounts "+
			"WHERE id != $1 AND (username ILIKE '%' || $2 || '%' OR full_name ILIKE '%' || $2 || '%') "+
			"ORDER BY username LIMIT 50",
		excludeId,
		query,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts = make([]Account, 0)
	for rows.Next() {
		var a Account
		if err = rows.Scan(&a.Id, &a.Username, &a.FullName, &a.IsOnline, &a.LastSeen); err != nil {
			break
		}

		accounts = append(accounts, a)
	}

	return accounts, err
}

func (db *PgMessengerRepository) SetPresence(accountId int, online bool, at time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE accounts SET is_online = $2, last_seen = $3 WHERE id = $1",
		accountId,
		online,
		at,
	)

	return err
}

func (db *PgMessengerRepository) CreateSession(connectionId string, accountId int, connectedAt time.Time) error {
	_, err := db.conn.Exec(
		"INSERT INTO sessions (connection_id, account_id, connected_at) VALUES ($1, $2, $3)",
		connectionId,
		accountId,
		connectedAt,
	)

	return err
}

func (db *PgMessengerRepository) DeleteSession(connectionId string) error {
	_, err := db.conn.Exec(
		"DELETE FROM sessions WHERE connection_id = $1",
		connectionId,
	)

	return err
}
