package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig_DefaultsAndOverrides(t *testing.T) {
	c, err := ParseConfig([]byte(`
board:
  line-width: 9
  theme: futuristic
tasks:
  sweep-on-startup: false
relay:
  queue:
    write-timeout: 5s
`))
	require.NoError(t, err)

	assert.Equal(t, 9.0, c.Board.LineWidth)
	assert.Equal(t, "futuristic", c.Board.Theme)
	assert.Equal(t, "#FF0000", c.Board.LineColor)
	assert.Equal(t, 200.0, c.Board.StickyWidth)
	assert.False(t, c.Tasks.SweepOnStartup)
	assert.Equal(t, "@every 10m", c.Tasks.SweepCron)
	assert.Equal(t, 5*time.Second, c.Relay.Queue.WriteTimeout)
	assert.Equal(t, 100, c.Relay.Queue.QueueCapacity)
	assert.Equal(t, "sqlite", c.Database.Type)
	assert.Equal(t, "storage", c.Assets.Root)

	_, ok := c.TokenConfig()
	assert.False(t, ok)
	assert.True(t, c.RelayActor().Privileged())
}

func TestConfig_SaveAndLoad(t *testing.T) {
	c, err := ParseConfig([]byte(`security: {auth-token-key: secret}`))
	require.NoError(t, err)
	c.File = filepath.Join(t.TempDir(), "conf", "config.yaml")
	c.Server.HttpPort = ":9999"
	require.NoError(t, c.Save())

	loaded, path, err := LoadConfig(c.File)
	require.NoError(t, err)
	assert.Equal(t, c.File, path)
	assert.Equal(t, ":9999", loaded.Server.HttpPort)

	tc, ok := loaded.TokenConfig()
	require.True(t, ok)
	assert.Equal(t, "secret", tc.SecretKey)
	assert.Equal(t, 168*time.Hour, tc.Expiry)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
