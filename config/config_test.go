package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aprsd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFlattens(t *testing.T) {
	path := writeConfig(t, `
default:
  mycall: LA7ECA
channels: aprsis, tnc
channel:
  aprsis:
    type: APRSIS
    host: rotate.aprs2.net
    port: 14580
  tnc:
    type: KISS
    baud: 9600
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "LA7ECA", cfg.Str("default.mycall", ""))
	assert.Equal(t, "rotate.aprs2.net", cfg.Str("channel.aprsis.host", ""))
	assert.Equal(t, 14580, cfg.Int("channel.aprsis.port", 0))
	assert.Equal(t, 9600, cfg.Int("channel.tnc.baud", 0))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg := New(map[string]string{
		"a": "hello",
		"b": "true",
		"c": "42",
		"d": "not a number",
	})
	assert.Equal(t, "hello", cfg.Str("a", "x"))
	assert.Equal(t, "x", cfg.Str("missing", "x"))
	assert.True(t, cfg.Bool("b", false))
	assert.True(t, cfg.Bool("missing", true))
	assert.Equal(t, 42, cfg.Int("c", 0))
	assert.Equal(t, 7, cfg.Int("d", 7))
	assert.Equal(t, 7, cfg.Int("missing", 7))
}

func TestPos(t *testing.T) {
	cfg := New(map[string]string{
		"good":  "59.9139, 10.7522",
		"tight": "59.9139,10.7522",
		"bad":   "59.9139",
		"junk":  "a,b",
	})

	lat, lon, ok := cfg.Pos("good")
	require.True(t, ok)
	assert.InDelta(t, 59.9139, lat, 1e-9)
	assert.InDelta(t, 10.7522, lon, 1e-9)

	_, _, ok = cfg.Pos("tight")
	assert.True(t, ok)
	_, _, ok = cfg.Pos("bad")
	assert.False(t, ok)
	_, _, ok = cfg.Pos("junk")
	assert.False(t, ok)
	_, _, ok = cfg.Pos("missing")
	assert.False(t, ok)
}
