package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newVolumeCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volume",
		Short: "Read or change the group volume",
		Long:  "Reads or sets RenderingControl volume on the group coordinator. Levels run from 0 to 100.",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Print the current volume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := coordinatorClient(ctx, flags)
			if err != nil {
				return err
			}
			level, err := c.GetVolume(ctx)
			if err != nil {
				return err
			}
			return writeValue(cmd, flags, "volume", level)
		},
	}

	set := &cobra.Command{
		Use:     "set <0-100>",
		Short:   "Set the volume",
		Long:    "Sets the volume. Levels outside 0-100 are clamped before they are sent.",
		Example: "  sonos volume set --name Kitchen 25",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("volume must be a whole number, got %q", args[0])
			}
			ctx := cmd.Context()
			c, err := coordinatorClient(ctx, flags)
			if err != nil {
				return err
			}
			if err := c.SetVolume(ctx, level); err != nil {
				return err
			}
			return writeOK(cmd, flags, "volume.set", map[string]any{"volume": level})
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}
