package storage

import (
	"context"
	"errors"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
)

// CreateMessage persists m unless sender and receiver blocked each other, touches sender activity
// and returns the stored message. Block check and insert run under the pair advisory lock,
// so a block committed earlier is always observed.
func (s *Store) CreateMessage(ctx context.Context, m NewMessage) (Message, error) {
	s.logger.Debugf("Creating message from user (id: %d) to user (id: %d)", m.SenderID, m.ReceiverID)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Message{}, err
	}
	// error handling can be omitted for rollback according docs
	defer tx.Rollback(context.Background())

	if err := lockPair(ctx, tx, m.SenderID, m.ReceiverID); err != nil {
		return Message{}, err
	}

	blocked, err := isBlocked(ctx, tx, m.SenderID, m.ReceiverID)
	if err != nil {
		return Message{}, err
	}
	if blocked {
		return Message{}, ErrBlocked
	}

	out := Message{
		SenderID:      m.SenderID,
		ReceiverID:    m.ReceiverID,
		Text:          m.Text,
		VoiceDuration: m.VoiceDuration,
	}
	if m.VoiceURL != "" {
		v := m.VoiceURL
		out.VoiceURL = &v
	}
	if m.ImageURL != "" {
		v := m.ImageURL
		out.ImageURL = &v
	}

	var duration pgtype.Int4
	if m.VoiceDuration != nil {
		duration = pgtype.Int4{Int: *m.VoiceDuration, Status: pgtype.Present}
	} else {
		duration = pgtype.Int4{Status: pgtype.Null}
	}

	sql := `insert into private_messages (sender_id, receiver_id, text, voice_url, voice_duration, image_url)
			values ($1, $2, $3, nullif($4, ''), $5, nullif($6, ''))
			returning id, created_at`
	err = tx.QueryRow(ctx, sql, m.SenderID, m.ReceiverID, m.Text, m.VoiceURL, duration, m.ImageURL).
		Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return Message{}, ErrUserNotExist
		}
		return Message{}, err
	}
	out.CreatedAt = out.CreatedAt.UTC()

	sql = "update users set last_activity = now() where id = $1 returning username, avatar_url"
	var avatar pgtype.Text
	err = tx.QueryRow(ctx, sql, m.SenderID).Scan(&out.Sender.Username, &avatar)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, ErrUserNotExist
		}
		return Message{}, err
	}
	out.Sender.AvatarURL = textPtr(avatar)

	if err := tx.Commit(ctx); err != nil {
		return Message{}, err
	}

	s.logger.Debugf("Created message with id %d", out.ID)

	return out, nil
}

// MessagesBetween marks every unread message addressed to reader by other as read and returns
// the latest limit messages of the pair in both directions, sorted from earliest to latest.
// Equal creation times are ordered by id.
func (s *Store) MessagesBetween(ctx context.Context, reader, other int64, limit int) ([]Message, error) {
	s.logger.Debugf("Retrieving %d messages between users (id: %d) and (id: %d)", limit, reader, other)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(context.Background())

	sql := `update private_messages
			   set is_read = true
			 where receiver_id = $1
			   and sender_id = $2
			   and is_read = false`
	tag, err := tx.Exec(ctx, sql, reader, other)
	if err != nil {
		return nil, err
	}

	sql = `select id, sender_id, receiver_id, text, voice_url, voice_duration, image_url, is_read, created_at,
				  username, avatar_url
			 from (
				select pm.id,
					   pm.sender_id,
					   pm.receiver_id,
					   pm.text,
					   pm.voice_url,
					   pm.voice_duration,
					   pm.image_url,
					   pm.is_read,
					   pm.created_at,
					   u.username,
					   u.avatar_url
				  from private_messages pm
				  join users u
					on u.id = pm.sender_id
				 where (pm.sender_id = $1 and pm.receiver_id = $2)
					or (pm.sender_id = $2 and pm.receiver_id = $1)
				 order by pm.created_at desc, pm.id desc
				 limit $3
			 ) as last_messages
			order by created_at asc, id asc`

	rows, err := tx.Query(ctx, sql, reader, other, limit)
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		var voiceURL, imageURL, senderName, senderAvatar pgtype.Text
		var voiceDuration pgtype.Int4
		err = rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &voiceURL, &voiceDuration, &imageURL,
			&m.IsRead, &m.CreatedAt, &senderName, &senderAvatar)
		if err != nil {
			rows.Close()
			return nil, err
		}
		m.VoiceURL = textPtr(voiceURL)
		m.VoiceDuration = int4Ptr(voiceDuration)
		m.ImageURL = textPtr(imageURL)
		m.CreatedAt = m.CreatedAt.UTC()
		m.Sender = Sender{Username: textValue(senderName), AvatarURL: textPtr(senderAvatar)}
		messages = append(messages, m)
	}
	rows.Close()

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.logger.Debugf("Retrieved %d messages, marked %d as read", len(messages), tag.RowsAffected())

	return messages, nil
}

// DeleteMessage removes message with provided id if it was sent by requester
func (s *Store) DeleteMessage(ctx context.Context, id, requester int64) error {
	s.logger.Debugf("Deleting message (id: %d) by user (id: %d)", id, requester)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(context.Background())

	var sender int64
	err = tx.QueryRow(ctx, "select sender_id from private_messages where id = $1 for update", id).Scan(&sender)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMessageNotExist
		}
		return err
	}

	if sender != requester {
		return ErrNotMessageOwner
	}

	if _, err := tx.Exec(ctx, "delete from private_messages where id = $1", id); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
