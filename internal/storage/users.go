package storage

import (
	"context"
	"errors"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"time"
)

const userColumns = `id, coalesce(phone, ''), username, avatar_url, bio, custom_status, coalesce(energy, 0),
	coalesce(is_banned, false), last_activity, latitude, longitude, city, push_token`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (User, error) {
	var u User
	var avatar, bio, status, city, token pgtype.Text
	var lastActivity pgtype.Timestamptz
	var lat, lon pgtype.Float8
	err := row.Scan(&u.ID, &u.Phone, &u.Username, &avatar, &bio, &status, &u.Energy, &u.IsBanned,
		&lastActivity, &lat, &lon, &city, &token)
	if err != nil {
		return User{}, err
	}

	u.AvatarURL = textValue(avatar)
	u.Bio = textValue(bio)
	u.CustomStatus = textValue(status)
	u.City = textValue(city)
	u.PushToken = textPtr(token)
	u.LastActivity = timePtr(lastActivity)
	u.Latitude = float8Ptr(lat)
	u.Longitude = float8Ptr(lon)

	return u, nil
}

// UserByID returns user with provided id
func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	s.logger.Debugf("Retrieving user (id: %d)", id)

	u, err := scanUser(s.db.QueryRow(ctx, "select "+userColumns+" from users where id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotExist
		}
		return User{}, err
	}

	return u, nil
}

// TouchActivity sets last activity of user to the current database time and returns it
func (s *Store) TouchActivity(ctx context.Context, id int64) (time.Time, error) {
	var ts time.Time
	err := s.db.QueryRow(ctx, "update users set last_activity = now() where id = $1 returning last_activity", id).Scan(&ts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrUserNotExist
		}
		return time.Time{}, err
	}

	return ts.UTC(), nil
}

// UpdateProfile applies non-nil fields of upd, touches activity and returns updated user
func (s *Store) UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (User, error) {
	s.logger.Debugf("Updating profile of user (id: %d)", id)

	username := pgtype.Text{Status: pgtype.Null}
	if upd.Username != nil {
		username = pgtype.Text{String: *upd.Username, Status: pgtype.Present}
	}
	status := pgtype.Text{Status: pgtype.Null}
	if upd.CustomStatus != nil {
		status = pgtype.Text{String: *upd.CustomStatus, Status: pgtype.Present}
	}

	sql := `update users
			   set username = coalesce($2, username),
				   custom_status = coalesce($3, custom_status),
				   last_activity = now()
			 where id = $1
		 returning ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, sql, id, username, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotExist
		}
		return User{}, err
	}

	return u, nil
}

// SetPushToken stores push delivery token of user, nil token clears it
func (s *Store) SetPushToken(ctx context.Context, id int64, token *string) error {
	value := pgtype.Text{Status: pgtype.Null}
	if token != nil {
		value = pgtype.Text{String: *token, Status: pgtype.Present}
	}

	tag, err := s.db.Exec(ctx, "update users set push_token = $2 where id = $1", id, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotExist
	}

	return nil
}
