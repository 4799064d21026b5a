package cli

import (
	"fmt"
	"strings"

	"github.com/STop211650/sonosctl/internal/appconfig"
	"github.com/spf13/cobra"
)

var newConfigStore = func() (appconfig.Store, error) { return appconfig.NewDefaultStore() }

func newConfigCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change stored defaults",
		Long: `Keeps defaults for the global flags in sonosctl/config.json under the user
config directory (~/.config on Linux).

Keys: ` + strings.Join(appconfig.Keys, ", ") + `.
Command-line flags and SONOS_* environment variables take precedence.`,
	}
	cmd.AddCommand(
		newConfigGetCmd(flags),
		newConfigSetCmd(flags),
		newConfigUnsetCmd(flags),
		newConfigPathCmd(flags),
	)
	return cmd
}

func loadConfig() (appconfig.Store, appconfig.Config, error) {
	s, err := newConfigStore()
	if err != nil {
		return nil, appconfig.Config{}, err
	}
	cfg, err := s.Load()
	return s, cfg, err
}

// updateConfig applies fn to the stored config and saves it. Nothing is
// written when fn fails.
func updateConfig(fn func(cfg *appconfig.Config) error) error {
	s, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := fn(&cfg); err != nil {
		return err
	}
	return s.Save(cfg)
}

func newConfigPathCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where the config file lives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newConfigStore()
			if err != nil {
				return err
			}
			if isJSON(flags) {
				return writeJSON(cmd, map[string]string{"path": s.Path()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Path())
			return nil
		},
	}
}

func newConfigGetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "get [key]",
		Short:     "Print all stored values, or one key",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: appconfig.Keys,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			names := appconfig.Keys
			if len(args) == 1 {
				names = []string{strings.TrimSpace(args[0])}
			}

			values := make(map[string]string, len(names))
			for _, name := range names {
				if values[name], err = cfg.Get(name); err != nil {
					return err
				}
			}
			if isJSON(flags) {
				return writeJSON(cmd, values)
			}
			w := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintf(w, "%s=%s\n", name, values[name])
			}
			return nil
		},
	}
}

func newConfigSetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Store a default",
		Example:   "  sonos config set defaultRoom Kitchen\n  sonos config set timeout 3s",
		Args:      cobra.ExactArgs(2),
		ValidArgs: appconfig.Keys,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, value := strings.TrimSpace(args[0]), args[1]
			if err := updateConfig(func(cfg *appconfig.Config) error { return cfg.Set(name, value) }); err != nil {
				return err
			}
			return writeOK(cmd, flags, "config.set", map[string]any{"key": name, "value": value})
		},
	}
}

func newConfigUnsetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "unset <key>",
		Short:     "Remove a stored default",
		Args:      cobra.ExactArgs(1),
		ValidArgs: appconfig.Keys,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if err := updateConfig(func(cfg *appconfig.Config) error { return cfg.Unset(name) }); err != nil {
				return err
			}
			return writeOK(cmd, flags, "config.unset", map[string]any{"key": name})
		},
	}
}
