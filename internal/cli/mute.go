package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/STop211650/sonosctl/internal/sonos"
	"github.com/spf13/cobra"
)

// muteTargets decides the mute state to send given the current one.
var muteTargets = map[string]func(current bool) bool{
	"on":     func(bool) bool { return true },
	"off":    func(bool) bool { return false },
	"toggle": func(current bool) bool { return !current },
}

func newMuteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "mute <get|on|off|toggle>",
		Short:     "Read or change mute",
		Long:      "Reads or sets RenderingControl mute on the group coordinator.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"get", "on", "off", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := strings.ToLower(strings.TrimSpace(args[0]))
			target, isSet := muteTargets[mode]
			if !isSet && mode != "get" {
				return fmt.Errorf("unknown mute mode %q (want get, on, off or toggle)", mode)
			}

			ctx := cmd.Context()
			c, err := coordinatorClient(ctx, flags)
			if err != nil {
				return err
			}
			if !isSet {
				muted, err := c.GetMute(ctx)
				if err != nil {
					return err
				}
				return writeValue(cmd, flags, "mute", muted)
			}

			want, err := resolveMute(ctx, c, mode, target)
			if err != nil {
				return err
			}
			if err := c.SetMute(ctx, want); err != nil {
				return err
			}
			return writeOK(cmd, flags, "mute."+mode, map[string]any{"mute": want})
		},
	}
}

// resolveMute only reads the current state when the target depends on it.
func resolveMute(ctx context.Context, c *sonos.Client, mode string, target func(bool) bool) (bool, error) {
	if mode != "toggle" {
		return target(false), nil
	}
	muted, err := c.GetMute(ctx)
	if err != nil {
		return false, err
	}
	return target(muted), nil
}
