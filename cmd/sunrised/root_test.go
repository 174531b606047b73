package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FlagsOverrideDefaults(t *testing.T) {
	cmd, opts := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", filepath.Join(t.TempDir(), "absent.yaml"),
		"--end", "06:45",
		"--fade-duration", "20m",
		"--url", "http://192.168.1.2",
		"--api-key", "abc",
		"--listen", ":8080",
		"--log-level", "debug",
	}))

	cfg, err := loadConfig(cmd, opts)
	require.NoError(t, err)

	schedule, err := cfg.Alarm.Schedule()
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour+45*time.Minute, schedule.WakeTime)
	assert.Equal(t, 20*time.Minute, schedule.FadeDuration)
	assert.Equal(t, "http://192.168.1.2", cfg.Gateway.URL)
	assert.Equal(t, "abc", cfg.Gateway.APIKey)
	assert.Equal(t, "0.0.0.0:8080", cfg.API.Addr())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_SpelledOutFadeDuration(t *testing.T) {
	cmd, opts := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", filepath.Join(t.TempDir(), "absent.yaml"),
		"--fade-duration", "1h 30min",
		"--url", "http://gw",
		"--api-key", "k",
	}))

	cfg, err := loadConfig(cmd, opts)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.Alarm.FadeDuration.Duration())
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing_gateway", []string{}},
		{"bad_end", []string{"--end", "noon", "--url", "http://gw", "--api-key", "k"}},
		{"bad_fade", []string{"--fade-duration", "long", "--url", "http://gw", "--api-key", "k"}},
		{"bad_listen", []string{"--listen", "3000", "--url", "http://gw", "--api-key", "k"}},
		{"fade_too_long", []string{"--fade-duration", "48h", "--url", "http://gw", "--api-key", "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, opts := newRootCmd()
			args := append([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}, tt.args...)
			require.NoError(t, cmd.ParseFlags(args))

			_, err := loadConfig(cmd, opts)
			assert.Error(t, err)
		})
	}
}

func TestParseListen(t *testing.T) {
	host, port, err := parseListen("127.0.0.1:3000")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.Equal(t, 3000, port)

	_, _, err = parseListen("localhost:http")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
}
