package monitor

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/roulette/auth"
	"github.com/wfunc/roulette/bet"
	"github.com/wfunc/roulette/models"
	"github.com/wfunc/roulette/network"
)

func TestMonitor_SessionsByRole(t *testing.T) {
	m := NewMonitor("test")

	m.SessionOpened(auth.RolePlayer)
	m.SessionOpened(auth.RoleObserver)
	m.SessionOpened(auth.RoleObserver)
	m.SessionClosed(auth.RoleObserver)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Metrics().Sessions.WithLabelValues("player")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Metrics().Sessions.WithLabelValues("observer")))
}

func TestMonitor_RoundSettled(t *testing.T) {
	m := NewMonitor("test")
	bets := []bet.Entry{{Position: bet.Red, Amount: 10}, {Position: "17", Amount: 5}, {Position: bet.Even, Amount: 2}}
	rec := models.NewRoundRecord("r", "p", bets, 17, bet.Settle(bets, 17), time.Now())

	m.RoundSettled(rec)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Metrics().RoundsSettled))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Metrics().BetsSettled.WithLabelValues("won")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Metrics().BetsSettled.WithLabelValues("lost")))
	assert.Equal(t, 17.0, testutil.ToFloat64(m.Metrics().StakeTotal))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.Metrics().PayoutTotal))
}

func TestMonitor_RoundSettledIgnoresNegativeTotals(t *testing.T) {
	m := NewMonitor("test")
	rec := &models.RoundRecord{
		Bets:     []bet.Entry{{Position: bet.Red, Amount: -5}},
		TotalWin: -1,
	}

	assert.NotPanics(t, func() { m.RoundSettled(rec) })
	assert.Zero(t, testutil.ToFloat64(m.Metrics().StakeTotal))
	assert.Zero(t, testutil.ToFloat64(m.Metrics().PayoutTotal))
}

func TestMonitor_Handler(t *testing.T) {
	m := NewMonitor("roulette")
	m.MessageReceived(network.EventBet)
	m.StaleSignal(network.EventIdle)
	m.Refused("capacity")
	m.ObserveDispatch(time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `roulette_messages_received_total{event="bet"} 1`)
	assert.Contains(t, string(body), `roulette_stale_signals_total{event="idle"} 1`)
	assert.Contains(t, string(body), `roulette_refusals_total{reason="capacity"} 1`)
	assert.Contains(t, string(body), "roulette_uptime_seconds")
}

func TestNewMonitor_Twice(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMonitor("dup")
		NewMonitor("dup")
	})
}
