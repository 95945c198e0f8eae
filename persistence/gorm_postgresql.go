// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/roulette/logger"
	"github.com/wfunc/roulette/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL opens dsn and migrates the schema.
func NewGormPostgreSQL(dsn string) (*GormPostgreSQL, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// newGormLogger routes slow-query warnings through zap.
func newGormLogger() gormlogger.Interface {
	return gormlogger.New(
		zap.NewStdLog(logger.Log.Desugar()),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormUser{},
		&models.GormPreviousRound{},
	)
}

func (p *GormPostgreSQL) LoadUser(ctx context.Context, playerID string) (*models.User, error) {
	var user models.GormUser
	err := p.db.WithContext(ctx).Where("player_id = ?", playerID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return user.User(), nil
}

// SaveUser inserts or replaces the credential for user.PlayerID.
func (p *GormPostgreSQL) SaveUser(ctx context.Context, user *models.User) error {
	row := models.GormUser{
		PlayerID:   user.PlayerID,
		SecretHash: user.SecretHash,
		Role:       user.Role,
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"secret_hash", "role", "updated_at"}),
	}).Create(&row).Error
}

// SavePreviousRound overwrites the single previous-round row.
func (p *GormPostgreSQL) SavePreviousRound(ctx context.Context, record *models.RoundRecord) error {
	return p.db.WithContext(ctx).Save(record.ToGorm()).Error
}

func (p *GormPostgreSQL) LoadPreviousRound(ctx context.Context) (*models.RoundRecord, error) {
	var row models.GormPreviousRound
	err := p.db.WithContext(ctx).First(&row, models.PreviousRoundID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.Record(), nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
