package main

import (
	"auxchat/internal/storage"
	"context"
	"fmt"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"log"
	"math/rand"
	"time"
)

type seedConfig struct {
	TestUsers int `env:"SEED_TEST_USERS" envDefault:"0"`
}

type city struct {
	name      string
	latitude  float64
	longitude float64
}

var seedCities = []city{
	{"Lyantor", 61.6167, 72.1667},
	{"Surgut", 61.25, 73.4167},
	{"Nizhnevartovsk", 60.9344, 76.5531},
	{"Tyumen", 57.1522, 65.5272},
}

// testUsers builds n users spread over seedCities with random unique-enough phones
func testUsers(n int, rnd *rand.Rand) []storage.NewUser {
	users := make([]storage.NewUser, 0, n)
	for i := 0; i < n; i++ {
		c := seedCities[i%len(seedCities)]
		lat, lon := c.latitude, c.longitude
		users = append(users, storage.NewUser{
			Phone:     fmt.Sprintf("+7900%07d", rnd.Intn(10_000_000)),
			Username:  fmt.Sprintf("Test user %d (%s)", i+1, c.name),
			AvatarURL: fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=test%d", i+1),
			Latitude:  &lat,
			Longitude: &lon,
			City:      c.name,
		})
	}
	return users
}

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("zap.NewDevelopment: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	var (
		storageCfg storage.Config
		seedCfg    seedConfig
	)
	if err := env.Parse(&storageCfg); err != nil {
		sugar.Fatalf("Cannot parse env config: %v", err)
	}
	if err := env.Parse(&seedCfg); err != nil {
		sugar.Fatalf("Cannot parse env config: %v", err)
	}

	ctx := context.Background()

	store, err := storage.New(ctx, sugar, storageCfg, storage.ConnectionTimeout(storageCfg.ConnectTimeout), storage.MaxConns(2))
	if err != nil {
		sugar.Fatalf("Cannot create Store instance: %v", err)
	}
	defer store.Close()

	applied, err := store.Migrate(ctx)
	if err != nil {
		sugar.Fatalf("Cannot apply migrations: %v", err)
	}
	sugar.Infof("Applied %d migrations", applied)

	if seedCfg.TestUsers > 0 {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		n, err := store.SeedUsers(ctx, testUsers(seedCfg.TestUsers, rnd))
		if err != nil {
			sugar.Fatalf("Cannot seed test users: %v", err)
		}
		sugar.Infof("Seeded %d test users", n)
	}
}
