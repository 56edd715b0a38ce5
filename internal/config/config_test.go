package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DATA_DIR", "FFMPEG_PATH", "FFPROBE_PATH", "MAX_UPLOAD_MB",
		"SWEEP_INTERVAL", "SWEEP_INITIAL_DELAY",
		"UPLOAD_RETENTION", "TEMP_RETENTION", "OUTPUT_RETENTION",
		"S3_BUCKET", "S3_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
		"LOG_FORMAT", "LOG_LEVEL",
	} {
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/tmp/mixdown", cfg.DataDir)
	assert.Equal(t, int64(200), cfg.MaxUploadMB)
	assert.Equal(t, 24*time.Hour, cfg.SweepInterval)
	assert.Equal(t, 10*time.Minute, cfg.SweepInitialDelay)
	assert.Equal(t, 7*24*time.Hour, cfg.UploadRetention)
	assert.Equal(t, 24*time.Hour, cfg.TempRetention)
	assert.Equal(t, 14*24*time.Hour, cfg.OutputRetention)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_DIR", "/var/lib/mixdown")
	t.Setenv("TEMP_RETENTION", "6h")
	t.Setenv("FFMPEG_PATH", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/var/lib/mixdown", cfg.DataDir)
	assert.Equal(t, 6*time.Hour, cfg.TempRetention)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_InvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "99999")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPort)
}

func TestValidate_NonPositiveRetention(t *testing.T) {
	clearEnv(t)
	t.Setenv("OUTPUT_RETENTION", "0s")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonPositiveRetention)
}

func TestS3Enabled(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.S3Enabled())

	cfg.S3Bucket = "mixdown-artifacts"
	assert.False(t, cfg.S3Enabled(), "bucket alone is not enough")

	cfg.S3Region = "eu-west-1"
	assert.True(t, cfg.S3Enabled())
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		cfg := &Config{LogFormat: format, LogLevel: "debug"}
		logger := cfg.NewLogger()
		require.NotNil(t, logger)
	}
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := &Config{
		Port:               8080,
		AWSAccessKeyID:     "AKIAEXAMPLE",
		AWSSecretAccessKey: "very-secret",
	}

	s := cfg.String()
	assert.NotContains(t, s, "AKIAEXAMPLE")
	assert.NotContains(t, s, "very-secret")
}
