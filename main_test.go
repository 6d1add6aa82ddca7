package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/rawhttpd/internal/config"
)

func TestConfigFromArgs(t *testing.T) {
	cfg, err := configFromArgs([]string{"127.0.0.1:8000", "/srv/www"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8000", *cfg.Server.Address)
	assert.Equal(t, "/srv/www", cfg.Server.DocumentRoot)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout.Duration)
	assert.False(t, *cfg.Response.SortEntries)
	assert.False(t, *cfg.Response.StrictLineEndings)
	assert.Equal(t, config.LogLevelInfo, cfg.Logging.LogLevel)
	assert.True(t, *cfg.Logging.AccessLog.Enabled)

	cfg, err = configFromArgs([]string{":8080"})
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Server.DocumentRoot, "no root argument serves the working directory")
}

func TestConfigFromArgs_Errors(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"a", "b", "c"},
		{"", "/srv"},
		{":8080", ""},
	} {
		_, err := configFromArgs(args)
		assert.Error(t, err, "args %q", args)
	}
}
