package storage

import (
	"context"
	"errors"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func isBlocked(ctx context.Context, q querier, a, b int64) (bool, error) {
	var blocked bool
	sql := `select exists(
				select 1
				  from blacklist
				 where (user_id = $1 and blocked_user_id = $2)
					or (user_id = $2 and blocked_user_id = $1)
			)`
	err := q.QueryRow(ctx, sql, a, b).Scan(&blocked)
	return blocked, err
}

// IsBlocked reports whether either user of the pair blocked the other one
func (s *Store) IsBlocked(ctx context.Context, a, b int64) (bool, error) {
	return isBlocked(ctx, s.db, a, b)
}

// Block records that user blocked another user, repeated calls are no-op
func (s *Store) Block(ctx context.Context, user, blocked int64) error {
	s.logger.Debugf("User (id: %d) blocks user (id: %d)", user, blocked)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(context.Background())

	if err := lockPair(ctx, tx, user, blocked); err != nil {
		return err
	}

	sql := `insert into blacklist (user_id, blocked_user_id) values ($1, $2)
			on conflict (user_id, blocked_user_id) do nothing`
	if _, err := tx.Exec(ctx, sql, user, blocked); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrUserNotExist
		}
		return err
	}

	return tx.Commit(ctx)
}

// Unblock removes block recorded by user, block recorded by the other side stays in force
func (s *Store) Unblock(ctx context.Context, user, blocked int64) error {
	s.logger.Debugf("User (id: %d) unblocks user (id: %d)", user, blocked)

	_, err := s.db.Exec(ctx, "delete from blacklist where user_id = $1 and blocked_user_id = $2", user, blocked)
	return err
}
