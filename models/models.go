// models/models.go
package models

import (
	"time"

	"github.com/wfunc/roulette/bet"
)

// RoundRecord is the immutable result of one settled bet list.
type RoundRecord struct {
	ID             string      `json:"id"`
	PlayerID       string      `json:"playerId"`
	Result         int         `json:"result"`
	Bets           []bet.Entry `json:"bets"`
	SuccessfulBets []bet.Entry `json:"successfulBets"`
	FailedBets     []bet.Entry `json:"failedBets"`
	TotalWin       int64       `json:"totalWin"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// NewRoundRecord builds a record from a settlement. bets is copied.
func NewRoundRecord(id, playerID string, bets []bet.Entry, result int, s bet.Settlement, createdAt time.Time) *RoundRecord {
	return &RoundRecord{
		ID:             id,
		PlayerID:       playerID,
		Result:         result,
		Bets:           append([]bet.Entry(nil), bets...),
		SuccessfulBets: s.Successful,
		FailedBets:     s.Failed,
		TotalWin:       s.TotalWin,
		CreatedAt:      createdAt,
	}
}

// PendingRound is what the player sees of a record before asking for the result.
// It never carries the outcome.
type PendingRound struct {
	ID        string      `json:"id"`
	PlayerID  string      `json:"playerId"`
	Bets      []bet.Entry `json:"bets"`
	Stake     int64       `json:"stake"`
	Pending   bool        `json:"pending"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Pending returns the redacted view of r.
func (r *RoundRecord) Pending() PendingRound {
	return PendingRound{
		ID:        r.ID,
		PlayerID:  r.PlayerID,
		Bets:      r.Bets,
		Stake:     bet.Stake(r.Bets),
		Pending:   true,
		CreatedAt: r.CreatedAt,
	}
}

// User is a stored credential.
type User struct {
	PlayerID   string
	SecretHash []byte
	Role       string
}
