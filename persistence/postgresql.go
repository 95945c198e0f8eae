// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/wfunc/roulette/models"
)

// PostgreSQL is the database/sql implementation, for deployments that do not
// want the ORM.
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(dsn string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables creates the same tables the gorm implementation migrates.
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            player_id TEXT UNIQUE NOT NULL,
            secret_hash BYTEA NOT NULL,
            role TEXT NOT NULL DEFAULT 'observer',
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
            deleted_at TIMESTAMPTZ
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS previous_round (
            id BIGINT PRIMARY KEY,
            round_id TEXT NOT NULL,
            player_id TEXT NOT NULL,
            result BIGINT NOT NULL,
            bets JSONB NOT NULL,
            successful_bets JSONB NOT NULL,
            failed_bets JSONB NOT NULL,
            total_win BIGINT NOT NULL,
            played_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )
    `)
	return err
}

func (p *PostgreSQL) LoadUser(ctx context.Context, playerID string) (*models.User, error) {
	user := models.User{PlayerID: playerID}
	query := `SELECT secret_hash, role FROM users WHERE player_id = $1 AND deleted_at IS NULL`
	err := p.db.QueryRowContext(ctx, query, playerID).Scan(&user.SecretHash, &user.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (p *PostgreSQL) SaveUser(ctx context.Context, user *models.User) error {
	query := `
        INSERT INTO users (player_id, secret_hash, role)
        VALUES ($1, $2, $3)
        ON CONFLICT (player_id)
        DO UPDATE SET secret_hash = $2, role = $3, updated_at = CURRENT_TIMESTAMP
    `
	_, err := p.db.ExecContext(ctx, query, user.PlayerID, user.SecretHash, user.Role)
	return err
}

func (p *PostgreSQL) SavePreviousRound(ctx context.Context, record *models.RoundRecord) error {
	bets, err := json.Marshal(record.Bets)
	if err != nil {
		return err
	}
	successful, err := json.Marshal(record.SuccessfulBets)
	if err != nil {
		return err
	}
	failed, err := json.Marshal(record.FailedBets)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO previous_round (id, round_id, player_id, result, bets, successful_bets, failed_bets, total_win, played_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id)
        DO UPDATE SET round_id = $2, player_id = $3, result = $4, bets = $5,
            successful_bets = $6, failed_bets = $7, total_win = $8, played_at = $9,
            updated_at = CURRENT_TIMESTAMP
    `
	_, err = p.db.ExecContext(ctx, query, models.PreviousRoundID, record.ID, record.PlayerID,
		record.Result, bets, successful, failed, record.TotalWin, record.CreatedAt)
	return err
}

func (p *PostgreSQL) LoadPreviousRound(ctx context.Context) (*models.RoundRecord, error) {
	var (
		rec                      models.RoundRecord
		bets, successful, failed []byte
	)
	query := `
        SELECT round_id, player_id, result, bets, successful_bets, failed_bets, total_win, played_at
        FROM previous_round WHERE id = $1
    `
	err := p.db.QueryRowContext(ctx, query, models.PreviousRoundID).Scan(
		&rec.ID, &rec.PlayerID, &rec.Result, &bets, &successful, &failed, &rec.TotalWin, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(bets, &rec.Bets); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(successful, &rec.SuccessfulBets); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(failed, &rec.FailedBets); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
