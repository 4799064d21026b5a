package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/STop211650/sonosctl/internal/sonos"
	"github.com/spf13/cobra"
)

type queueClient interface {
	QueueNext(ctx context.Context, t sonos.Track) error
	AddURIToQueue(ctx context.Context, uri, meta string, desiredFirstTrackNumber int, enqueueAsNext bool) (int, error)
	RemoveAllTracksFromQueue(ctx context.Context) error
	RemoveTrackFromQueue(ctx context.Context, position int) error
	PlayQueuePosition(ctx context.Context, position int) error
}

var newQueueClient = func(ctx context.Context, flags *rootFlags) (queueClient, error) {
	return coordinatorClient(ctx, flags)
}

func newQueueCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the playback queue",
	}
	cmd.AddCommand(newQueueNextCmd(flags))
	cmd.AddCommand(newQueueAddCmd(flags))
	cmd.AddCommand(newQueueClearCmd(flags))
	cmd.AddCommand(newQueuePlayCmd(flags))
	cmd.AddCommand(newQueueRemoveCmd(flags))
	return cmd
}

// runQueue validates the target, builds the client and runs fn with it.
func runQueue(cmd *cobra.Command, flags *rootFlags, fn func(ctx context.Context, c queueClient) error) error {
	if err := validateTarget(flags); err != nil {
		return err
	}
	ctx := cmd.Context()
	c, err := newQueueClient(ctx, flags)
	if err != nil {
		return err
	}
	return fn(ctx, c)
}

func parsePosition(arg string) (int, error) {
	pos, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, errors.New("pos must be an integer (1-based)")
	}
	return pos, nil
}

func newQueueNextCmd(flags *rootFlags) *cobra.Command {
	var meta string
	cmd := &cobra.Command{
		Use:   "next <uri>",
		Short: "Set the transport URI without starting playback",
		Long:  "Sends SetAVTransportURI with the given URI and optional DIDL-Lite metadata. Playback state is left alone; run `sonos play` to start.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			track := sonos.Track{URI: strings.TrimSpace(args[0]), Metadata: meta}
			return runQueue(cmd, flags, func(ctx context.Context, c queueClient) error {
				if err := c.QueueNext(ctx, track); err != nil {
					return err
				}
				return writeOK(cmd, flags, "queue.next", map[string]any{"uri": track.URI})
			})
		},
	}
	cmd.Flags().StringVar(&meta, "meta", "", "DIDL-Lite metadata for the URI")
	return cmd
}

func newQueueAddCmd(flags *rootFlags) *cobra.Command {
	var meta string
	var asNext bool
	var position int
	cmd := &cobra.Command{
		Use:   "add <uri>",
		Short: "Append a URI to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if position < 0 {
				return errors.New("--pos must be >= 0")
			}
			uri := strings.TrimSpace(args[0])
			return runQueue(cmd, flags, func(ctx context.Context, c queueClient) error {
				first, err := c.AddURIToQueue(ctx, uri, meta, position, asNext)
				if err != nil {
					return err
				}
				if isJSON(flags) {
					return writeOK(cmd, flags, "queue.add", map[string]any{"uri": uri, "position": first})
				}
				writePlainLine(cmd, flags, fmt.Sprintf("queued at position %d", first))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&meta, "meta", "", "DIDL-Lite metadata for the URI")
	cmd.Flags().BoolVar(&asNext, "next", false, "Insert after the current track")
	cmd.Flags().IntVar(&position, "pos", 0, "Desired 1-based position (0 appends)")
	return cmd
}

func newQueueClearCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:          "clear",
		Short:        "Clear the queue",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueue(cmd, flags, func(ctx context.Context, c queueClient) error {
				if err := c.RemoveAllTracksFromQueue(ctx); err != nil {
					return err
				}
				return writeOK(cmd, flags, "queue.clear", nil)
			})
		},
	}
}

func newQueuePlayCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:          "play <pos>",
		Short:        "Play a queue entry (1-based)",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			return runQueue(cmd, flags, func(ctx context.Context, c queueClient) error {
				if err := c.PlayQueuePosition(ctx, pos); err != nil {
					return err
				}
				return writeOK(cmd, flags, "queue.play", map[string]any{"pos": pos})
			})
		},
	}
}

func newQueueRemoveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:          "remove <pos>",
		Short:        "Remove a queue entry (1-based)",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			return runQueue(cmd, flags, func(ctx context.Context, c queueClient) error {
				if err := c.RemoveTrackFromQueue(ctx, pos); err != nil {
					return err
				}
				return writeOK(cmd, flags, "queue.remove", map[string]any{"pos": pos})
			})
		},
	}
}
