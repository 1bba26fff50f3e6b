package sqlstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shopsquad/internal/services"
	"shopsquad/internal/store"
	"shopsquad/internal/store/sqlstore"
	"shopsquad/internal/store/storetest"
)

// Set TEST_DATABASE_URL to a disposable PostgreSQL database to run these.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(sqlstore.Models()...))
	return db
}

func truncate(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Exec("TRUNCATE party_products, party_participants, parties CASCADE").Error)
}

func TestBackend(t *testing.T) {
	db := openTestDB(t)

	storetest.Run(t, func(t *testing.T) store.Backend {
		truncate(t, db)
		s, err := sqlstore.New(context.Background(), db, nil, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestBackendWithRedisNotifier(t *testing.T) {
	db := openTestDB(t)

	storetest.Run(t, func(t *testing.T) store.Backend {
		truncate(t, db)

		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		s, err := sqlstore.New(context.Background(), db, services.NewRedisNotifier(client, nil), nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
