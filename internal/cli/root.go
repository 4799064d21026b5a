package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/STop211650/sonosctl/internal/appconfig"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

const (
	envPrefix      = "SONOS"
	defaultTimeout = 5 * time.Second
)

type rootFlags struct {
	IP      string
	Name    string
	Timeout time.Duration
	Format  string
	JSON    bool
	Debug   bool
}

var loadAppConfig = func() (appconfig.Config, error) {
	s, err := appconfig.NewDefaultStore()
	if err != nil {
		return appconfig.Config{}, err
	}
	return s.Load()
}

func Execute() error {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	rootCmd, _, err := newRootCmd()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// newRootCmd builds the command tree. Flag defaults come from the config
// file; SONOS_* environment variables override those, and explicit flags
// override both.
func newRootCmd() (*cobra.Command, *rootFlags, error) {
	cfg, err := loadAppConfig()
	if err != nil {
		return nil, nil, err
	}
	cfg = cfg.Normalize()

	flags := &rootFlags{}
	env := viper.New()
	env.SetEnvPrefix(envPrefix)
	env.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	env.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:          "sonos",
		Short:        "Control Sonos speakers from the command line",
		Long:         "Control Sonos speakers over your local network (UPnP/SOAP): discover devices, show status, control playback, manage the queue and grouping.",
		Example:      "  sonos discover\n  sonos status --name \"Kitchen\"\n  sonos play --name \"Kitchen\" http://radio.example/stream.mp3\n  sonos queue next --ip 192.168.1.20 x-file-cifs://nas/music/track.flac\n  sonos volume set --name \"Kitchen\" 25",
		SilenceUsage: true,
		Version:      Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return applyEnv(cmd, env, flags)
		},
	}
	rootCmd.SetVersionTemplate("sonos {{.Version}}\n")

	timeout := defaultTimeout
	if d := cfg.TimeoutDuration(); d > 0 {
		timeout = d
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.IP, "ip", cfg.DefaultIP, "Target speaker IP address")
	pf.StringVar(&flags.Name, "name", cfg.DefaultRoom, "Target speaker name")
	pf.DurationVar(&flags.Timeout, "timeout", timeout, "Timeout for discovery and network calls")
	pf.StringVar(&flags.Format, "format", cfg.Format, "Output format: plain|json|tsv")
	pf.BoolVar(&flags.JSON, "json", false, "Shorthand for --format json")
	pf.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	if err := env.BindPFlags(pf); err != nil {
		return nil, nil, err
	}

	rootCmd.AddCommand(newDiscoverCmd(flags))
	rootCmd.AddCommand(newSearchCmd(flags))
	rootCmd.AddCommand(newStatusCmd(flags))
	rootCmd.AddCommand(newPlayCmd(flags))
	rootCmd.AddCommand(newPauseCmd(flags))
	rootCmd.AddCommand(newStopCmd(flags))
	rootCmd.AddCommand(newNextCmd(flags))
	rootCmd.AddCommand(newPrevCmd(flags))
	rootCmd.AddCommand(newQueueCmd(flags))
	rootCmd.AddCommand(newVolumeCmd(flags))
	rootCmd.AddCommand(newMuteCmd(flags))
	rootCmd.AddCommand(newGroupCmd(flags))
	rootCmd.AddCommand(newConfigCmd(flags))

	return rootCmd, flags, nil
}

// applyEnv resolves each persistent flag through viper so an unset flag falls
// back to its SONOS_* variable before the config default.
func applyEnv(cmd *cobra.Command, env *viper.Viper, flags *rootFlags) error {
	flags.IP = strings.TrimSpace(env.GetString("ip"))
	flags.Name = strings.TrimSpace(env.GetString("name"))
	flags.Timeout = env.GetDuration("timeout")
	flags.JSON = env.GetBool("json")
	flags.Debug = env.GetBool("debug")

	if flags.Timeout <= 0 {
		return errors.New("--timeout must be positive")
	}

	format, err := parseFormat(strings.ToLower(strings.TrimSpace(env.GetString("format"))))
	if err != nil {
		return err
	}
	if flags.JSON {
		format = formatJSON
	}
	flags.Format = format

	if flags.Debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	return nil
}

func validateTarget(flags *rootFlags) error {
	if flags.IP == "" && flags.Name == "" {
		return errors.New("provide --ip or --name (or run `sonos discover`)")
	}
	return nil
}

func resolveTargetCoordinatorIP(ctx context.Context, flags *rootFlags) (string, error) {
	if err := validateTarget(flags); err != nil {
		return "", err
	}

	// An explicit IP may be a group member; commands must go to the
	// coordinator, but an unreachable topology is not fatal.
	if flags.IP != "" {
		top, err := newSonosClient(flags.IP, flags.Timeout).GetTopology(ctx)
		if err != nil {
			slog.Debug("resolve: topology lookup failed, using ip as-is", "ip", flags.IP, "err", err.Error())
			return flags.IP, nil
		}
		if coordIP, ok := top.CoordinatorIPFor(flags.IP); ok {
			return coordIP, nil
		}
		return flags.IP, nil
	}

	devs, err := sonosDiscover(ctx, discoverOptions(flags, false))
	if err != nil {
		return "", err
	}
	if len(devs) == 0 {
		return "", errors.New("no speakers found")
	}

	top, err := newSonosClient(devs[0].IP, flags.Timeout).GetTopology(ctx)
	if err != nil {
		return "", err
	}
	coordIP, ok := top.CoordinatorIPForName(flags.Name)
	if !ok {
		return "", errors.New("speaker name not found in topology: " + flags.Name)
	}
	return coordIP, nil
}
