package cli

import (
	"fmt"
	"sync"

	"github.com/STop211650/sonosctl/internal/sonos"
	"github.com/spf13/cobra"
)

type searchHit struct {
	IP    string `json:"ip"`
	Model string `json:"model,omitempty"`
	UDN   string `json:"udn,omitempty"`
}

func newSearchCmd(flags *rootFlags) *cobra.Command {
	var forever bool
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Print speakers as they answer SSDP",
		Long:  "Repeats the SSDP M-SEARCH query and prints each speaker once, as soon as it answers. Stops after --timeout, or on Ctrl+C with --forever.",
		Example: "  sonos search\n" +
			"  sonos search --timeout 10s --format json\n" +
			"  sonos search --forever",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := sonos.SearchOptions{Timeout: flags.Timeout}
			if forever {
				opts.Timeout = 0
			}

			var mu sync.Mutex
			var writeErr error
			found := 0
			s := searchFunc(ctx, opts, func(dev sonos.Device, model string) {
				mu.Lock()
				defer mu.Unlock()
				found++
				if writeErr == nil {
					writeErr = writeSearchHit(cmd, flags, searchHit{IP: dev.IP, Model: model, UDN: dev.UDN})
				}
			})

			select {
			case <-s.Timeout():
			case <-ctx.Done():
			}
			stopped := make(chan struct{})
			s.Destroy(func() { close(stopped) })
			<-stopped

			mu.Lock()
			defer mu.Unlock()
			if writeErr != nil {
				return writeErr
			}
			if found == 0 && !isJSON(flags) {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "no speakers answered")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&forever, "forever", false, "Ignore --timeout and search until interrupted")
	return cmd
}

func writeSearchHit(cmd *cobra.Command, flags *rootFlags, hit searchHit) error {
	if isJSON(flags) {
		return writeJSONLine(cmd, hit)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", hit.IP, hit.Model, hit.UDN)
	return err
}
