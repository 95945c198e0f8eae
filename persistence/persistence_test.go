package persistence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/roulette/bet"
	"github.com/wfunc/roulette/models"
)

// openTestDatabases returns both implementations against the database named by
// ROULETTE_TEST_POSTGRES_DSN, or skips.
func openTestDatabases(t *testing.T) map[string]Database {
	t.Helper()
	dsn := os.Getenv("ROULETTE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ROULETTE_TEST_POSTGRES_DSN not set")
	}

	gormDB, err := NewGormPostgreSQL(dsn)
	require.NoError(t, err)
	sqlDB, err := NewPostgreSQL(dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		gormDB.Close()
		sqlDB.Close()
	})
	return map[string]Database{"gorm": gormDB, "sql": sqlDB}
}

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"host=db port=5432 user=u password=p dbname=roulette sslmode=disable",
		DSN("db", 5432, "u", "p", "roulette", ""))
	assert.Contains(t, DSN("db", 5432, "u", "p", "roulette", "require"), "sslmode=require")
}

func TestDatabase_Users(t *testing.T) {
	for name, db := range openTestDatabases(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := "user-" + name

			require.NoError(t, db.SaveUser(ctx, &models.User{PlayerID: id, SecretHash: []byte("h1"), Role: "player"}))
			require.NoError(t, db.SaveUser(ctx, &models.User{PlayerID: id, SecretHash: []byte("h2"), Role: "observer"}))

			got, err := db.LoadUser(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, []byte("h2"), got.SecretHash)
			assert.Equal(t, "observer", got.Role)

			_, err = db.LoadUser(ctx, "missing-"+name)
			assert.ErrorIs(t, err, ErrRecordNotFound)
		})
	}
}

func TestDatabase_PreviousRound(t *testing.T) {
	for name, db := range openTestDatabases(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			bets := []bet.Entry{{Position: bet.Red, Amount: 10}, {Position: "17", Amount: 5}}
			first := models.NewRoundRecord("a", "p", bets, 17, bet.Settle(bets, 17), time.Unix(1700000000, 0).UTC())
			second := models.NewRoundRecord("b", "p", bets, 0, bet.Settle(bets, 0), time.Unix(1700000100, 0).UTC())

			require.NoError(t, db.SavePreviousRound(ctx, first))
			require.NoError(t, db.SavePreviousRound(ctx, second))

			got, err := db.LoadPreviousRound(ctx)
			require.NoError(t, err)
			assert.Equal(t, "b", got.ID)
			assert.Equal(t, second.FailedBets, got.FailedBets)
			assert.True(t, second.CreatedAt.Equal(got.CreatedAt))
		})
	}
}
