package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	t.Run("formats", func(t *testing.T) {
		for _, format := range []string{"console", "json", ""} {
			logger, err := New("info", format)
			require.NoError(t, err, format)
			assert.NotNil(t, logger)
		}
	})

	t.Run("level applies", func(t *testing.T) {
		logger, err := New("warn", "json")
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zap.InfoLevel))
		assert.True(t, logger.Core().Enabled(zap.ErrorLevel))
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := New("loud", "console")
		assert.Error(t, err)
		_, err = New("info", "xml")
		assert.Error(t, err)
	})
}

func TestNewWriter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, "debug")
	require.NoError(t, err)

	logger.Info("mint submitted", zap.String("tx", "0xabc"))
	require.NoError(t, logger.Sync())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "mint submitted", entry["msg"])
	assert.Equal(t, "0xabc", entry["tx"])
	assert.Equal(t, "info", entry["level"])
}
