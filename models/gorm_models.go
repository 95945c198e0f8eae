// models/gorm_models.go
package models

import (
	"time"

	"github.com/wfunc/roulette/bet"
	"gorm.io/gorm"
)

// GormUser 玩家凭证
type GormUser struct {
	gorm.Model
	PlayerID   string `gorm:"uniqueIndex;not null"`
	SecretHash []byte `gorm:"not null"`
	Role       string `gorm:"not null;default:observer"`
}

func (GormUser) TableName() string {
	return "users"
}

// PreviousRoundID is the primary key of the single previous-round row.
const PreviousRoundID = 1

// GormPreviousRound holds the last completed round. There is only ever one row.
type GormPreviousRound struct {
	ID             uint        `gorm:"primaryKey;autoIncrement:false"`
	RoundID        string      `gorm:"not null"`
	PlayerID       string      `gorm:"not null"`
	Result         int         `gorm:"not null"`
	Bets           []bet.Entry `gorm:"serializer:json;type:jsonb;not null"`
	SuccessfulBets []bet.Entry `gorm:"serializer:json;type:jsonb;not null"`
	FailedBets     []bet.Entry `gorm:"serializer:json;type:jsonb;not null"`
	TotalWin       int64       `gorm:"not null"`
	PlayedAt       time.Time   `gorm:"not null"`
	UpdatedAt      time.Time
}

func (GormPreviousRound) TableName() string {
	return "previous_round"
}

// ToGorm converts r to its storage row.
func (r *RoundRecord) ToGorm() *GormPreviousRound {
	return &GormPreviousRound{
		ID:             PreviousRoundID,
		RoundID:        r.ID,
		PlayerID:       r.PlayerID,
		Result:         r.Result,
		Bets:           r.Bets,
		SuccessfulBets: r.SuccessfulBets,
		FailedBets:     r.FailedBets,
		TotalWin:       r.TotalWin,
		PlayedAt:       r.CreatedAt,
	}
}

// Record converts the row back into a RoundRecord.
func (m *GormPreviousRound) Record() *RoundRecord {
	return &RoundRecord{
		ID:             m.RoundID,
		PlayerID:       m.PlayerID,
		Result:         m.Result,
		Bets:           m.Bets,
		SuccessfulBets: m.SuccessfulBets,
		FailedBets:     m.FailedBets,
		TotalWin:       m.TotalWin,
		CreatedAt:      m.PlayedAt,
	}
}

func (m *GormUser) User() *User {
	return &User{PlayerID: m.PlayerID, SecretHash: m.SecretHash, Role: m.Role}
}
