package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopedFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", JSON: true, Output: &buf})

	l.WithRoom("room_1").WithCompanion("1", "Alex").LogError(errors.New("boom"), "call failed", "state", "failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "call failed", line["msg"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "room_1", line["room_id"])
	assert.Equal(t, "Alex", line["companion"])
	assert.Equal(t, "failed", line["state"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Output: &buf})

	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestEmptyScopeReturnsSameLogger(t *testing.T) {
	l := Discard()
	assert.Same(t, l, l.WithRoom(""))
	assert.Same(t, l, l.WithRequestID(""))
}

func TestRequestLevelFollowsStatus(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", JSON: true, Output: &buf})

	l.LogRequest("GET", "/api/calls/room_1", 404, 0)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.EqualValues(t, 404, line["status"])
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "chatty", Output: &buf})

	l.Debug("hidden")
	l.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
