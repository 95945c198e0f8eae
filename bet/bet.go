// Package bet classifies roulette positions and settles bet lists against a drawn outcome.
// Everything here is pure: no I/O, no state.
package bet

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidBet is returned by Validate for a bet list that cannot be settled.
var ErrInvalidBet = errors.New("invalid bet")

// Class is the family a position label belongs to.
type Class int

const (
	ClassUnknown Class = iota
	ClassStraight
	ClassDozen
	ClassColumn
	ClassHalf
	ClassParity
	ClassColor
)

func (c Class) String() string {
	switch c {
	case ClassStraight:
		return "straight"
	case ClassDozen:
		return "dozen"
	case ClassColumn:
		return "column"
	case ClassHalf:
		return "half"
	case ClassParity:
		return "parity"
	case ClassColor:
		return "color"
	default:
		return "unknown"
	}
}

// Outside position labels.
const (
	FirstDozen  = "1st12"
	SecondDozen = "2nd12"
	ThirdDozen  = "3rd12"
	Column1     = "2to1_0"
	Column2     = "2to1_1"
	Column3     = "2to1_2"
	Low         = "1to18"
	High        = "19to36"
	Even        = "EVEN"
	Odd         = "ODD"
	Red         = "RED"
	Black       = "BLACK"
)

const maxNumber = 36

// Limits on a single submission. With MaxEntries stakes of MaxAmount each, the
// largest total payout (MaxEntries * MaxAmount * 36) stays far below int64 range.
const (
	MaxAmount  int64 = 1_000_000_000_000
	MaxEntries       = 1000
)

var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

var blackNumbers = map[int]bool{
	2: true, 4: true, 6: true, 8: true, 10: true, 11: true, 13: true, 15: true, 17: true,
	20: true, 22: true, 24: true, 26: true, 28: true, 29: true, 31: true, 33: true, 35: true,
}

// Entry is a single stake on a position. Duplicate positions in one list are
// independent entries.
type Entry struct {
	Position string `json:"position"`
	Amount   int64  `json:"amount"`
}

// Settlement is the outcome of settling a bet list.
// Successful entries carry the full returned amount (stake + winnings);
// Failed entries are the submitted entries unchanged.
type Settlement struct {
	Successful []Entry `json:"successfulBets"`
	Failed     []Entry `json:"failedBets"`
	TotalWin   int64   `json:"totalWin"`
}

// straightNumber parses a canonical straight-up label ("0".."36").
// Non-canonical spellings such as "07" or "+7" are not straight bets.
func straightNumber(position string) (int, bool) {
	n, err := strconv.Atoi(position)
	if err != nil || n < 0 || n > maxNumber || strconv.Itoa(n) != position {
		return 0, false
	}
	return n, true
}

// Classify returns the class of a position label, or ClassUnknown.
func Classify(position string) Class {
	switch position {
	case FirstDozen, SecondDozen, ThirdDozen:
		return ClassDozen
	case Column1, Column2, Column3:
		return ClassColumn
	case Low, High:
		return ClassHalf
	case Even, Odd:
		return ClassParity
	case Red, Black:
		return ClassColor
	}
	if _, ok := straightNumber(position); ok {
		return ClassStraight
	}
	return ClassUnknown
}

// IsWinningBet reports whether position wins for outcome.
// Zero only ever matches the straight-up "0" bet. Unknown labels never win.
func IsWinningBet(position string, outcome int) bool {
	switch position {
	case FirstDozen:
		return outcome >= 1 && outcome <= 12
	case SecondDozen:
		return outcome >= 13 && outcome <= 24
	case ThirdDozen:
		return outcome >= 25 && outcome <= 36
	case Low:
		return outcome >= 1 && outcome <= 18
	case High:
		return outcome >= 19 && outcome <= 36
	case Even:
		return outcome != 0 && outcome%2 == 0
	case Odd:
		return outcome%2 == 1
	case Red:
		return redNumbers[outcome]
	case Black:
		return blackNumbers[outcome]
	case Column1:
		return outcome != 0 && outcome%3 == 1
	case Column2:
		return outcome != 0 && outcome%3 == 2
	case Column3:
		return outcome != 0 && outcome%3 == 0
	}
	n, ok := straightNumber(position)
	return ok && n == outcome
}

// PayoutMultiplier returns the winnings multiplier for position (35 for 35:1).
// Unknown labels pay nothing.
func PayoutMultiplier(position string) int64 {
	switch Classify(position) {
	case ClassStraight:
		return 35
	case ClassDozen, ClassColumn:
		return 2
	case ClassHalf, ClassParity, ClassColor:
		return 1
	default:
		return 0
	}
}

// Payout is the amount returned to the player for a winning entry.
func Payout(e Entry) int64 {
	return e.Amount + e.Amount*PayoutMultiplier(e.Position)
}

// Validate checks that a bet list is non-empty and within MaxEntries, every
// label is recognized and every stake is in 1..MaxAmount.
func Validate(entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: no entries", ErrInvalidBet)
	}
	if len(entries) > MaxEntries {
		return fmt.Errorf("%w: %d entries, at most %d allowed", ErrInvalidBet, len(entries), MaxEntries)
	}
	for i, e := range entries {
		if Classify(e.Position) == ClassUnknown {
			return fmt.Errorf("%w: entry %d: unrecognized position %q", ErrInvalidBet, i, e.Position)
		}
		if e.Amount <= 0 {
			return fmt.Errorf("%w: entry %d: amount must be positive, got %d", ErrInvalidBet, i, e.Amount)
		}
		if e.Amount > MaxAmount {
			return fmt.Errorf("%w: entry %d: amount %d exceeds maximum %d", ErrInvalidBet, i, e.Amount, MaxAmount)
		}
	}
	return nil
}

// Settle partitions entries into winners and losers for outcome.
// Order within each partition follows the submitted order. Callers validate
// first; an entry whose payout would overflow is settled as failed.
func Settle(entries []Entry, outcome int) Settlement {
	s := Settlement{
		Successful: make([]Entry, 0, len(entries)),
		Failed:     make([]Entry, 0, len(entries)),
	}
	for _, e := range entries {
		if !IsWinningBet(e.Position, outcome) || e.Amount <= 0 || e.Amount > MaxAmount {
			s.Failed = append(s.Failed, e)
			continue
		}
		paid := Entry{Position: e.Position, Amount: Payout(e)}
		s.Successful = append(s.Successful, paid)
		s.TotalWin += paid.Amount
	}
	return s
}

// Stake is the sum of all amounts in entries.
func Stake(entries []Entry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Amount
	}
	return total
}
