package storage

import (
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestDSN(t *testing.T) {
	config := Config{
		User:     "a",
		Password: "b",
		Host:     "c",
		Port:     5432,
		DBName:   "d",
	}
	expected := "user=a password=b host=c port=5432 dbname=d sslmode=disable"
	actual := config.DSN()
	require.Equal(t, expected, actual)
}

func TestDSN_SSLMode(t *testing.T) {
	config := Config{
		User:     "a",
		Password: "b",
		Host:     "c",
		Port:     6432,
		DBName:   "d",
		SSLMode:  "require",
	}
	expected := "user=a password=b host=c port=6432 dbname=d sslmode=require"
	require.Equal(t, expected, config.DSN())
}

func TestOptions(t *testing.T) {
	config, err := pgxpool.ParseConfig(Config{Host: "localhost", Port: 5432}.DSN())
	require.NoError(t, err)

	ConnectionTimeout(7 * time.Second).apply(config)
	MaxConns(3).apply(config)

	require.Equal(t, 7*time.Second, config.ConnConfig.ConnectTimeout)
	require.Equal(t, int32(3), config.MaxConns)
}
