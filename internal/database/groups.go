package database

import (
	"time"
)

const addGroupMemberQuery = "INSERT INTO group_members (group_id, account_id, is_admin, joined_at) " +
	"VALUES ($1, $2, $3, $4) RETURNING id, group_id, account_id, is_admin, joined_at"

// CreateGroup inserts the group and its initial membership in one
// transaction. The creator always becomes a member with the admin flag set.
func (db *PgMessengerRepository) CreateGroup(params CreateGroupParams) (Group, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Group{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO groups (name, description, creator_id, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, name, description, creator_id, created_at",
		params.Name,
		params.Description,
		params.CreatorId,
		time.Now().UTC(),
	)

	var group Group
	err = res.Scan(
		&group.Id,
		&group.Name,
		&group.Description,
		&group.CreatorId,
		&group.CreatedAt,
	)
	if err != nil {
		return Group{}, err
	}

	_, err = tx.Exec(
		"INSERT INTO group_members (group_id, account_id, is_admin, joined_at) VALUES ($1, $2, TRUE, $3)",
		group.Id,
		params.CreatorId,
		time.Now().UTC(),
	)
	if err != nil {
		return Group{}, err
	}

	for _, memberId := range params.MemberIds {
		if memberId == params.CreatorId {
			continue
		}

		_, err = tx.Exec(
			"INSERT INTO group_members (group_id, account_id, is_admin, joined_at) VALUES ($1, $2, FALSE, $3)",
			group.Id,
			memberId,
			time.Now().UTC(),
		)
		if err != nil {
			return Group{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return Group{}, err
	}

	return group, nil
}

func (db *PgMessengerRepository) GetGroupById(id int) (Group, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, description, creator_id, created_at FROM groups WHERE id = $1 LIMIT 1",
		id,
	)

	var group Group
	err := row.Scan(
		&group.Id,
		&group.Name,
		&group.Description,
		&group.CreatorId,
		&group.CreatedAt,
	)

	return group, err
}

func (db *PgMessengerRepository) DeleteGroup(id int) error {
	// members and messages cascade via foreign keys
	_, err := db.conn.Exec("DELETE FROM groups WHERE id = $1", id)

	return err
}

func (db *PgMessengerRepository) ListGroups(accountId int) ([]Group, error) {
	rows, err := db.conn.Query(
		"SELECT g.id, g.name, g.description, g.creator_id, g.created_at FROM groups g "+
			"JOIN group_members gm ON gm.group_id = g.id WHERE gm.account_id = $1 ORDER BY g.name",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups = make([]Group, 0)
	for rows.Next() {
		var g Group
		if err = rows.Scan(&g.Id, &g.Name, &g.Description, &g.CreatorId, &g.CreatedAt); err != nil {
			break
		}

		groups = append(groups, g)
	}

	return groups, err
}

func (db *PgMessengerRepository) ListGroupMembers(groupId int) ([]GroupMember, error) {
	rows, err := db.conn.Query(
		"SELECT gm.id, gm.group_id, gm.account_id, a.username, a.is_online, gm.is_admin, gm.joined_at "+
			"FROM group_members gm JOIN accounts a ON a.id = gm.account_id "+
			"WHERE gm.group_id = $1 ORDER BY gm.joined_at",
		groupId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members = make([]GroupMember, 0)
	for rows.Next() {
		var m GroupMember
		if err = rows.Scan(&m.Id, &m.GroupId, &m.AccountId, &m.Username, &m.IsOnline, &m.IsAdmin, &m.JoinedAt); err != nil {
			break
		}

		members = append(members, m)
	}

	return members, err
}

func (db *PgMessengerRepository) IsGroupMember(groupId, accountId int) bool {
	res := db.conn.QueryRow(
		"SELECT id FROM group_members WHERE group_id = $1 AND account_id = $2 LIMIT 1",
		groupId,
		accountId,
	)

	var id int
	return res.Scan(&id) == nil
}

func (db *PgMessengerRepository) IsGroupAdmin(groupId, accountId int) bool {
	res := db.conn.QueryRow(
		"SELECT id FROM group_members WHERE group_id = $1 AND account_id = $2 AND is_admin = TRUE LIMIT 1",
		groupId,
		accountId,
	)

	var id int
	return res.Scan(&id) == nil
}

func (db *PgMessengerRepository) AddGroupMember(groupId, accountId int, isAdmin bool) (GroupMember, error) {
	res := db.conn.QueryRow(
		addGroupMemberQuery,
		groupId,
		accountId,
		isAdmin,
		time.Now().UTC(),
	)

	var m GroupMember
	err := res.Scan(
		&m.Id,
		&m.GroupId,
		&m.AccountId,
		&m.IsAdmin,
		&m.JoinedAt,
	)

	return m, err
}

func (db *PgMessengerRepository) RemoveGroupMember(groupId, accountId int) error {
	_, err := db.conn.Exec(
		"DELETE FROM group_members WHERE group_id = $1 AND account_id = $2",
		groupId,
		accountId,
	)

	return err
}

// PromoteOldestMember grants the admin flag to the longest-standing member
// of the group. Called when the last admin is removed or leaves so the
// group never ends up adminless.
func (db *PgMessengerRepository) PromoteOldestMember(groupId int) error {
	_, err := db.conn.Exec(
		"UPDATE group_members SET is_admin = TRUE WHERE id = ("+
			"SELECT id FROM group_members WHERE group_id = $1 ORDER BY joined_at LIMIT 1)",
		groupId,
	)

	return err
}
