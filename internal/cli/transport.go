package cli

import (
	"context"
	"strings"

	"github.com/STop211650/sonosctl/internal/sonos"
	"github.com/spf13/cobra"
)

func newPlayCmd(flags *rootFlags) *cobra.Command {
	var meta string
	var radio bool
	var title string

	cmd := &cobra.Command{
		Use:   "play [uri]",
		Short: "Resume playback, or play a URI",
		Long: "Without arguments, sends AVTransport.Play to the group coordinator.\n\n" +
			"With a URI, sets it as the transport source (SetAVTransportURI) and then plays. " +
			"--meta passes DIDL-Lite metadata through; --radio rewrites http(s) streams to x-rincon-mp3radio and builds station metadata from --title.",
		Example: "  sonos play --name Kitchen\n" +
			"  sonos play --name Kitchen http://radio.example/stream.mp3 --radio --title \"Example FM\"",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := coordinatorClient(ctx, flags)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				if err := c.Play(ctx); err != nil {
					return err
				}
				return writeOK(cmd, flags, "play", nil)
			}

			uri := strings.TrimSpace(args[0])
			if radio {
				uri = sonos.ForceRadioURI(uri)
				if meta == "" {
					meta = sonos.BuildRadioMeta(title)
				}
			}
			// PlayTrack sends metadata verbatim; DIDL has to travel escaped.
			track := sonos.Track{URI: uri, Metadata: sonos.EscapeXML(meta)}
			if err := c.PlayTrack(ctx, track); err != nil {
				return err
			}
			return writeOK(cmd, flags, "play", map[string]any{"uri": track.URI})
		},
	}
	cmd.Flags().StringVar(&meta, "meta", "", "DIDL-Lite metadata for the URI")
	cmd.Flags().BoolVar(&radio, "radio", false, "Play the URI as an internet radio stream")
	cmd.Flags().StringVar(&title, "title", "", "Station title used with --radio")
	return cmd
}

// newTransportCmd builds a no-argument command that sends one transport
// action to the coordinator.
func newTransportCmd(flags *rootFlags, use, short, long string, do func(*sonos.Client, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := coordinatorClient(ctx, flags)
			if err != nil {
				return err
			}
			if err := do(c, ctx); err != nil {
				return err
			}
			return writeOK(cmd, flags, use, nil)
		},
	}
}

func newPauseCmd(flags *rootFlags) *cobra.Command {
	return newTransportCmd(flags, "pause", "Pause playback", "Sends AVTransport.Pause to the group coordinator.", (*sonos.Client).Pause)
}

func newStopCmd(flags *rootFlags) *cobra.Command {
	return newTransportCmd(flags, "stop", "Stop playback", "Sends AVTransport.Stop to the group coordinator.", (*sonos.Client).Stop)
}

func newNextCmd(flags *rootFlags) *cobra.Command {
	return newTransportCmd(flags, "next", "Skip to next track", "Sends AVTransport.Next to the group coordinator.", (*sonos.Client).Next)
}

func newPrevCmd(flags *rootFlags) *cobra.Command {
	return newTransportCmd(flags, "prev", "Go to previous track",
		"Sends AVTransport.Previous to the group coordinator. When there is no previous track the current one restarts.",
		(*sonos.Client).PreviousOrRestart)
}
