package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildUpdate(t *testing.T) {
	t.Parallel()

	// Arrange
	opts := setOptions{Symbols: " aapl, ,btc-usd ", Interval: 15, Key: "-"}

	// Act
	req, err := buildUpdate(opts)

	// Assert
	require.NoError(t, err)
	got := req.AsMap()
	require.Equal(t, []interface{}{"aapl", "btc-usd"}, got["symbols"])
	require.Equal(t, 15.0, got["refreshIntervalMinutes"])
	require.Equal(t, "", got["apiKey"])
}

func TestBuildUpdateLeavesUnsetFieldsOut(t *testing.T) {
	t.Parallel()

	req, err := buildUpdate(setOptions{Interval: -1, Key: "secret"})

	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"apiKey": "secret"}, req.AsMap())
}

func TestBuildUpdateRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := buildUpdate(setOptions{Interval: -1})

	require.ErrorIs(t, err, errEmptyUpdate)
}

func TestBuildRefresh(t *testing.T) {
	t.Parallel()

	all, err := buildRefresh(nil)
	require.NoError(t, err)
	require.Empty(t, all.GetFields())

	some, err := buildRefresh([]string{"AAPL,MSFT", "ETH-USD"})
	require.NoError(t, err)
	require.Equal(t, []interface{}{"AAPL", "MSFT", "ETH-USD"}, some.AsMap()["symbols"])
}
