package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/STop211650/sonosctl/internal/sonos"
	"github.com/spf13/cobra"
)

type statusClient interface {
	GetDeviceDescription(ctx context.Context) (sonos.Device, error)
	GetTransportInfo(ctx context.Context) (sonos.TransportInfo, error)
	GetPositionInfo(ctx context.Context) (sonos.PositionInfo, error)
	GetVolume(ctx context.Context) (int, error)
	GetMute(ctx context.Context) (bool, error)
}

var newStatusClient = func(ctx context.Context, flags *rootFlags) (statusClient, error) {
	return coordinatorClient(ctx, flags)
}

type statusOutput struct {
	Device    sonos.Device        `json:"device"`
	Transport sonos.TransportInfo `json:"transport"`
	Position  sonos.PositionInfo  `json:"position"`
	Volume    int                 `json:"volume"`
	Mute      bool                `json:"mute"`
}

// collectStatus queries each service independently. A partial answer is still
// printed; only a speaker that answers nothing is an error.
func collectStatus(ctx context.Context, c statusClient) (statusOutput, error) {
	var out statusOutput
	var errs []error
	note := func(what string, err error) {
		if err != nil {
			slog.Debug("status: query failed", "what", what, "err", err.Error())
			errs = append(errs, fmt.Errorf("%s: %w", what, err))
		}
	}

	var err error
	out.Device, err = c.GetDeviceDescription(ctx)
	note("device", err)
	out.Transport, err = c.GetTransportInfo(ctx)
	note("transport", err)
	out.Position, err = c.GetPositionInfo(ctx)
	note("position", err)
	out.Volume, err = c.GetVolume(ctx)
	note("volume", err)
	out.Mute, err = c.GetMute(ctx)
	note("mute", err)

	if len(errs) == 5 {
		return statusOutput{}, errors.Join(errs...)
	}
	return out, nil
}

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:          "status",
		Aliases:      []string{"now"},
		Short:        "Show current playback status",
		Long:         "Prints coordinator status: transport state, track URI and position, volume and mute. Use --format json for machine-readable output.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateTarget(flags); err != nil {
				return err
			}
			ctx := cmd.Context()
			c, err := newStatusClient(ctx, flags)
			if err != nil {
				return err
			}
			st, err := collectStatus(ctx, c)
			if err != nil {
				return err
			}

			if isJSON(flags) {
				return writeJSON(cmd, st)
			}

			rows := statusRows(st)
			if isTSV(flags) {
				for _, r := range rows {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r[0], r[1])
				}
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "Speaker:\t%s (%s)\n", st.Device.Name, st.Device.IP)
			for _, r := range rows[2:] {
				_, _ = fmt.Fprintf(w, "%s:\t%s\n", statusLabels[r[0]], r[1])
			}
			return w.Flush()
		},
	}
}

var statusLabels = map[string]string{
	"model":            "Model",
	"udn":              "UDN",
	"state":            "State",
	"transport_status": "Status",
	"track":            "Track",
	"uri":              "URI",
	"time":             "Time",
	"duration":         "Duration",
	"volume":           "Volume",
	"mute":             "Mute",
}

// statusRows lists key/value pairs in display order; the first two are
// always speaker and ip.
func statusRows(st statusOutput) [][2]string {
	rows := [][2]string{
		{"speaker", st.Device.Name},
		{"ip", st.Device.IP},
	}
	if st.Device.Model != "" {
		rows = append(rows, [2]string{"model", st.Device.Model})
	}
	if st.Device.UDN != "" {
		rows = append(rows, [2]string{"udn", st.Device.UDN})
	}
	rows = append(rows, [2]string{"state", st.Transport.State})
	if st.Transport.Status != "" && st.Transport.Status != "OK" {
		rows = append(rows, [2]string{"transport_status", st.Transport.Status})
	}
	rows = append(rows,
		[2]string{"track", st.Position.Track},
		[2]string{"uri", st.Position.TrackURI},
		[2]string{"time", st.Position.RelTime},
		[2]string{"duration", st.Position.TrackDuration},
		[2]string{"volume", fmt.Sprint(st.Volume)},
		[2]string{"mute", fmt.Sprint(st.Mute)},
	)
	return rows
}
