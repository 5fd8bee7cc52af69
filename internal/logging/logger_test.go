package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/teetime-scheduler/internal/config"
)

func TestNewLogger(t *testing.T) {
	t.Run("DefaultStdout", func(t *testing.T) {
		logger, closer, err := New(config.Logging{Level: "info", Output: "stdout"}, "test")
		require.NoError(t, err)
		assert.Nil(t, closer)
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})

	t.Run("StderrConsole", func(t *testing.T) {
		logger, closer, err := New(config.Logging{Level: "debug", Output: "stderr", Format: "console"}, "test")
		require.NoError(t, err)
		assert.Nil(t, closer)
		assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
	})

	t.Run("File", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "run.log")
		logger, closer, err := New(config.Logging{Level: "warn", Output: "file", File: logPath, Format: "json"}, "test")
		require.NoError(t, err)
		require.NotNil(t, closer)
		logger.Warn().Msg("written")
		require.NoError(t, closer.Close())

		b, err := os.ReadFile(logPath)
		require.NoError(t, err)
		assert.Contains(t, string(b), `"message":"written"`)
		assert.Contains(t, string(b), `"app":"teesched"`)
	})

	t.Run("FileUnderLogDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "logs")
		logger, closer, err := New(config.Logging{Output: "file", Dir: dir, Format: "json"}, "1.2.3")
		require.NoError(t, err)
		require.NotNil(t, closer)
		logger.Info().Msg("hello")
		require.NoError(t, closer.Close())

		b, err := os.ReadFile(filepath.Join(dir, "teesched.log"))
		require.NoError(t, err)
		assert.Contains(t, string(b), `"version":"1.2.3"`)
	})

	t.Run("FileWithoutPathOrDir", func(t *testing.T) {
		_, _, err := New(config.Logging{Output: "file"}, "test")
		assert.Error(t, err)
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		logger, _, err := New(config.Logging{Level: "loud"}, "test")
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})
}
