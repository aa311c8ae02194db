package storage

import (
	"context"
	"github.com/jackc/pgx/v4"
)

type userBulk struct {
	rows []NewUser
	idx  int
}

func copyFromUsers(rows []NewUser) pgx.CopyFromSource {
	return &userBulk{
		rows: rows,
		idx:  -1,
	}
}

func (ub *userBulk) Next() bool {
	ub.idx++
	return ub.idx < len(ub.rows)
}

func (ub *userBulk) Values() ([]interface{}, error) {
	u := ub.rows[ub.idx]
	return []interface{}{u.Phone, u.Username, u.AvatarURL, u.Latitude, u.Longitude, u.City}, nil
}

func (ub *userBulk) Err() error {
	return nil
}

// SeedUsers bulk inserts users via COPY and returns number of inserted rows
func (s *Store) SeedUsers(ctx context.Context, users []NewUser) (int64, error) {
	s.logger.Debugf("Seeding %d users", len(users))

	columns := []string{"phone", "username", "avatar_url", "latitude", "longitude", "city"}
	return s.db.CopyFrom(ctx, pgx.Identifier{"users"}, columns, copyFromUsers(users))
}
