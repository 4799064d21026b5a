package cli

import (
	"errors"
	"fmt"

	"github.com/STop211650/sonosctl/internal/sonos"
	"github.com/spf13/cobra"
)

func newDiscoverCmd(flags *rootFlags) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List the speakers in the household",
		Long: `Finds one speaker over SSDP and reads the household topology from it.
When multicast is blocked the local /24 subnets are scanned instead.

Plain and tsv output print one "name<TAB>ip<TAB>udn" line per speaker.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := sonosDiscover(cmd.Context(), discoverOptions(flags, all))
			if err != nil {
				return err
			}
			if isJSON(flags) {
				if devices == nil {
					devices = []sonos.Device{}
				}
				return writeJSON(cmd, devices)
			}
			if len(devices) == 0 {
				return errors.New("no speakers found")
			}
			w := cmd.OutOrStdout()
			for _, d := range devices {
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.IP, d.UDN)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include bonded surrounds and subs")
	return cmd
}
