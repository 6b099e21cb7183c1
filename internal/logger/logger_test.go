package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedactsCredentialKeys(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core))

	l.Info("provider ready", "model", "gpt-4o", "api_key", "sk-live", "telegram_token", "123:abc")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "gpt-4o", fields["model"])
	assert.Equal(t, "[REDACTED]", fields["api_key"])
	assert.Equal(t, "[REDACTED]", fields["telegram_token"])
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core)).With("session", "s-1")

	l.Warn("retrieval failed", "topic", "cardiology")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "s-1", fields["session"])
	assert.Equal(t, "cardiology", fields["topic"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("dev", "chatty")
	assert.Error(t, err)
}

func TestOddKeyValueCountKeepsTrailingValue(t *testing.T) {
	got := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	assert.Equal(t, []interface{}{"a", 1, "dangling"}, got)
}
