package main

import (
	"github.com/stretchr/testify/require"
	"math/rand"
	"testing"
)

func TestTestUsers(t *testing.T) {
	users := testUsers(6, rand.New(rand.NewSource(1)))
	require.Len(t, users, 6)

	for i, u := range users {
		c := seedCities[i%len(seedCities)]
		require.Equal(t, c.name, u.City)
		require.Equal(t, c.latitude, *u.Latitude)
		require.Equal(t, c.longitude, *u.Longitude)
		require.Len(t, u.Phone, 12)
		require.NotEmpty(t, u.Username)
	}

	// each user owns its coordinates
	*users[0].Latitude = 0
	require.Equal(t, seedCities[0].latitude, *users[4].Latitude)
}
