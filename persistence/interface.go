// persistence/interface.go
package persistence

import (
	"context"
	"fmt"

	"github.com/wfunc/roulette/models"
)

// Database stores credentials and the single previous round.
type Database interface {
	LoadUser(ctx context.Context, playerID string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	SavePreviousRound(ctx context.Context, record *models.RoundRecord) error
	LoadPreviousRound(ctx context.Context) (*models.RoundRecord, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)

// DSN builds a libpq connection string.
func DSN(host string, port int, user, password, dbname, sslmode string) string {
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)
}
