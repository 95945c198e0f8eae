package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/roulette/bet"
	"github.com/wfunc/roulette/network"
)

func TestParseCommand(t *testing.T) {
	msg, err := parseCommand("bet RED 10 17 5")
	require.NoError(t, err)
	assert.Equal(t, network.PlaceBet{Bets: []bet.Entry{{Position: "RED", Amount: 10}, {Position: "17", Amount: 5}}}, msg)

	msg, err = parseCommand("  ready ")
	require.NoError(t, err)
	assert.Equal(t, network.ReadyForResult{}, msg)

	msg, err = parseCommand("idle")
	require.NoError(t, err)
	assert.Equal(t, network.RevealComplete{}, msg)

	msg, err = parseCommand("")
	require.NoError(t, err)
	assert.Nil(t, msg)

	_, err = parseCommand("quit")
	assert.ErrorIs(t, err, errQuit)

	for _, bad := range []string{"bet", "bet RED", "bet RED ten", "spin"} {
		_, err := parseCommand(bad)
		assert.Error(t, err, bad)
		assert.NotErrorIs(t, err, errQuit)
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "message: hi", describe([]byte(`{"event":"message","data":{"text":"hi"}}`)))
	assert.Equal(t, "state: in_play", describe([]byte(`{"event":"state","data":{"roundState":"in_play"}}`)))
	assert.Equal(t, `connected: {"sessionToken":"t"}`, describe([]byte(`{"event":"connected","data":{"sessionToken":"t"}}`)))
}
