package database

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

func (db *PgMessengerRepository) CreateMedia(params CreateMediaParams) (Media, error) {
	res := db.conn.QueryRow(
		"INSERT INTO media (file_name, stored_path, thumbnail_path, content_type, size_bytes, kind, uploader_id, uploaded_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8) "+
			"RETURNING id, file_name, stored_path, COALESCE(thumbnail_path, ''), content_type, size_bytes, kind, uploader_id, uploaded_at",
		params.FileName,
		params.StoredPath,
		sql.NullString{String: params.ThumbnailPath, Valid: params.ThumbnailPath != ""},
		params.ContentType,
		params.SizeBytes,
		params.Kind,
		params.UploaderId,
		time.Now().UTC(),
	)

	return scanMedia(res)
}

const mediaSelect = "SELECT md.id, md.file_name, md.stored_path, COALESCE(md.thumbnail_path, ''), " +
	"md.content_type, md.size_bytes, md.kind, md.uploader_id, md.uploaded_at "

func scanMedia(row *sql.Row) (Media, error) {
	var m Media
	err := row.Scan(
		&m.Id,
		&m.FileName,
		&m.StoredPath,
		&m.ThumbnailPath,
		&m.ContentType,
		&m.SizeBytes,
		&m.Kind,
		&m.UploaderId,
		&m.UploadedAt,
	)

	return m, err
}

func (db *PgMessengerRepository) GetMediaById(id int) (Media, error) {
	row := db.conn.QueryRow(mediaSelect+"FROM media md WHERE md.id = $1 LIMIT 1", id)

	return scanMedia(row)
}

func (db *PgMessengerRepository) DeleteMedia(id int) error {
	_, err := db.conn.Exec("DELETE FROM media WHERE id = $1", id)

	return err
}

// GetMediaOwnedBy filters the requested media ids down to those uploaded by
// uploaderId. Ids owned by someone else are simply absent from the result.
func (db *PgMessengerRepository) GetMediaOwnedBy(mediaIds []int, uploaderId int) ([]Media, error) {
	if len(mediaIds) == 0 {
		return []Media{}, nil
	}

	rows, err := db.conn.Query(
		mediaSelect+"FROM media md WHERE md.id = ANY($1) AND md.uploader_id = $2 ORDER BY md.id",
		pq.Array(mediaIds),
		uploaderId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var media = make([]Media, 0, len(mediaIds))
	for rows.Next() {
		var m Media
		if err = rows.Scan(
			&m.Id,
			&m.FileName,
			&m.StoredPath,
			&m.ThumbnailPath,
			&m.ContentType,
			&m.SizeBytes,
			&m.Kind,
			&m.UploaderId,
			&m.UploadedAt,
		); err != nil {
			break
		}

		media = append(media, m)
	}

	return media, err
}

func (db *PgMessengerRepository) AttachMediaToMessage(messageId, mediaId int) error {
	_, err := db.conn.Exec(
		"INSERT INTO message_media (message_id, media_id) VALUES ($1, $2)",
		messageId,
		mediaId,
	)

	return err
}

func (db *PgMessengerRepository) ListMessageMedia(messageId int) ([]Media, error) {
	rows, err := db.conn.Query(
		mediaSelect+"FROM message_media mm JOIN media md ON md.id = mm.media_id "+
			"WHERE mm.message_id = $1 ORDER BY mm.id",
		messageId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var media = make([]Media, 0)
	for rows.Next() {
		var m Media
		if err = rows.Scan(
			&m.Id,
			&m.FileName,
			&m.StoredPath,
			&m.ThumbnailPath,
			&m.ContentType,
			&m.SizeBytes,
			&m.Kind,
			&m.UploaderId,
			&m.UploadedAt,
		); err != nil {
			break
		}

		media = append(media, m)
	}

	return media, err
}
