package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"orderbookfeed/config"
	"orderbookfeed/pkg/storage/postgres"
)

// go test -v --run ^TestPostgresInvalidDSN$
func TestPostgresInvalidDSN(t *testing.T) {
	invalidDSN := "host=invalid.invalid port=5432 user=fail password=fail dbname=fail sslmode=disable connect_timeout=2"

	_, err := postgres.NewClient(invalidDSN)
	if err == nil {
		t.Fatal("expected error for invalid DSN, got nil")
	}
}

// Requires a local Postgres; set ORDERBOOK_PG_TEST=1 to run.
// go test -v --run ^TestPostgresClientWithConfig$
func TestPostgresClientWithConfig(t *testing.T) {
	if os.Getenv("ORDERBOOK_PG_TEST") == "" {
		t.Skip("ORDERBOOK_PG_TEST not set")
	}

	cfg := config.PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "yourpw",
		DBName:   "orderbookfeed_test",
		SSLMode:  "disable",
		CreateDB: true,

		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 1 * time.Hour,
	}

	client, err := postgres.InitializeAndMigrate(cfg, "dev")
	if err != nil {
		t.Fatalf("failed to initialize Postgres client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if !client.IsHealthy(ctx) {
		t.Fatal("expected healthy DB connection")
	}
}
