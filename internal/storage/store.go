package storage

import (
	"auxchat/internal/storage/zapadapter"
	"context"
	"errors"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
	"time"
)

var (
	ErrUserNotExist    = errors.New("user does not exist")
	ErrMessageNotExist = errors.New("message does not exist")
	ErrNotMessageOwner = errors.New("message belongs to another user")
	ErrBlocked         = errors.New("users blocked each other")
)

// Store defines fields used in db interaction processes
type Store struct {
	logger *zap.SugaredLogger
	db     *pgxpool.Pool
}

// New sets provided zap.Logger via zapadapter to pgxpool.Pool and returns instance of Store struct
func New(ctx context.Context, logger *zap.SugaredLogger, cfg Config, opts ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	config.ConnConfig.Logger = zapadapter.NewLogger(logger.Desugar())
	config.ConnConfig.LogLevel = pgx.LogLevelWarn
	if cfg.ConnectTimeout > 0 {
		config.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	for _, opt := range opts {
		opt.apply(config)
	}

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Store{
		logger: logger,
		db:     pool,
	}, nil
}

// Ping checks that at least one connection can be acquired
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes all pool connections
func (s *Store) Close() {
	s.db.Close()
}

// pairLockKey derives the advisory lock key shared by both directions of a user pair
func pairLockKey(a, b int64) int64 {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo<<32 | hi&0xffffffff
}

// lockPair serializes transactions touching the same unordered user pair until tx ends
func lockPair(ctx context.Context, tx pgx.Tx, a, b int64) error {
	_, err := tx.Exec(ctx, "select pg_advisory_xact_lock($1)", pairLockKey(a, b))
	return err
}

func textPtr(t pgtype.Text) *string {
	if t.Status != pgtype.Present {
		return nil
	}
	s := t.String
	return &s
}

func textValue(t pgtype.Text) string {
	if t.Status != pgtype.Present {
		return ""
	}
	return t.String
}

func int4Ptr(i pgtype.Int4) *int32 {
	if i.Status != pgtype.Present {
		return nil
	}
	v := i.Int
	return &v
}

func float8Ptr(f pgtype.Float8) *float64 {
	if f.Status != pgtype.Present {
		return nil
	}
	v := f.Float
	return &v
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if ts.Status != pgtype.Present {
		return nil
	}
	v := ts.Time.UTC()
	return &v
}
