package appconfig

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultStoreUsesUserConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME only steers os.UserConfigDir on linux")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	s, err := NewDefaultStore()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sonosctl", "config.json"), s.Path())

	cfg, err := s.Load()
	require.NoError(t, err, "a missing file loads as defaults")
	assert.Equal(t, Config{}.Normalize(), cfg)
}
