package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/STop211650/sonosctl/internal/appconfig"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempConfigStore(t *testing.T) *appconfig.FileStore {
	t.Helper()
	store, err := appconfig.NewFileStore(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	orig := newConfigStore
	t.Cleanup(func() { newConfigStore = orig })
	newConfigStore = func() (appconfig.Store, error) { return store, nil }
	return store
}

func runConfigCmd(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	var out captureWriter
	cmd.SetOut(&out)
	cmd.SetErr(newDiscardWriter())
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestConfigSetGetUnset(t *testing.T) {
	store := useTempConfigStore(t)
	flags := &rootFlags{Timeout: 2 * time.Second, Format: formatPlain}

	runConfigCmd(t, newConfigSetCmd(flags), "defaultRoom", "Office")
	runConfigCmd(t, newConfigSetCmd(flags), "timeout", "3s")

	out := runConfigCmd(t, newConfigGetCmd(flags))
	assert.Equal(t, "defaultRoom=Office\ndefaultIP=\nformat=\ntimeout=3s\n", out)

	out = runConfigCmd(t, newConfigGetCmd(flags), "defaultRoom")
	assert.Equal(t, "defaultRoom=Office\n", out)

	runConfigCmd(t, newConfigUnsetCmd(flags), "defaultRoom")

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.DefaultRoom)
	assert.Equal(t, "3s", cfg.Timeout)
}

func TestConfigSetRejectsInvalidValue(t *testing.T) {
	store := useTempConfigStore(t)
	flags := &rootFlags{Timeout: 2 * time.Second, Format: formatPlain}

	cmd := newConfigSetCmd(flags)
	cmd.SetOut(newDiscardWriter())
	cmd.SetErr(newDiscardWriter())
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	cmd.SetArgs([]string{"format", "xml"})
	require.ErrorContains(t, cmd.ExecuteContext(context.Background()), "invalid format")

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, appconfig.Config{}, cfg)
}

func TestConfigGetJSONAndPath(t *testing.T) {
	store := useTempConfigStore(t)
	flags := &rootFlags{Timeout: 2 * time.Second, Format: formatJSON}
	require.NoError(t, store.Save(appconfig.Config{DefaultIP: "192.168.1.50", Format: "tsv"}))

	out := runConfigCmd(t, newConfigGetCmd(flags))
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "192.168.1.50", got["defaultIP"])
	assert.Equal(t, "tsv", got["format"])

	out = runConfigCmd(t, newConfigPathCmd(flags))
	assert.Contains(t, out, store.Path())
}
