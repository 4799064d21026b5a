package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/STop211650/sonosctl/internal/sonos"
	"github.com/spf13/cobra"
)

type topologyGetter interface {
	GetTopology(ctx context.Context) (sonos.Topology, error)
}

type groupingClient interface {
	JoinGroup(ctx context.Context, coordinatorUUID string) error
	LeaveGroup(ctx context.Context) error
}

// newTopologyGetter asks the --ip speaker for the household topology when one
// is given, otherwise the first discovered speaker.
var newTopologyGetter = func(ctx context.Context, flags *rootFlags) (topologyGetter, error) {
	if ip := strings.TrimSpace(flags.IP); ip != "" {
		return newSonosClient(ip, flags.Timeout), nil
	}
	devs, err := sonosDiscover(ctx, discoverOptions(flags, false))
	if err != nil {
		return nil, err
	}
	if len(devs) == 0 {
		return nil, errors.New("no speakers found")
	}
	return newSonosClient(devs[0].IP, flags.Timeout), nil
}

var newGroupingClient = func(ip string, flags *rootFlags) groupingClient {
	return newSonosClient(ip, flags.Timeout)
}

func newGroupCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Inspect and control grouping",
	}
	cmd.AddCommand(newGroupStatusCmd(flags))
	cmd.AddCommand(newGroupJoinCmd(flags))
	cmd.AddCommand(newGroupLeaveCmd(flags))
	return cmd
}

func fetchTopology(ctx context.Context, flags *rootFlags) (sonos.Topology, error) {
	tg, err := newTopologyGetter(ctx, flags)
	if err != nil {
		return sonos.Topology{}, err
	}
	return tg.GetTopology(ctx)
}

func newGroupStatusCmd(flags *rootFlags) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:          "status",
		Short:        "Show current groups and members",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			top, err := fetchTopology(cmd.Context(), flags)
			if err != nil {
				return err
			}
			groups := visibleGroups(top.Groups, all)

			switch {
			case isJSON(flags):
				return writeJSON(cmd, map[string]any{"groups": groups})
			case isTSV(flags):
				for _, g := range groups {
					for _, m := range g.Members {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\n", g.ID, g.Coordinator.Name, m.Name, m.IP, memberRole(m))
					}
				}
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			for _, g := range groups {
				_, _ = fmt.Fprintf(w, "Group:\t%s\t(%s)\n", g.Coordinator.Name, g.Coordinator.IP)
				for _, m := range g.Members {
					mark := " "
					if m.IsCoordinator {
						mark = "*"
					}
					_, _ = fmt.Fprintf(w, "  %s\t%s\t(%s)\n", mark, m.Name, m.IP)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include invisible/bonded devices")
	return cmd
}

// visibleGroups copies groups, dropping invisible members unless all is set.
// Groups left without members are omitted.
func visibleGroups(groups []sonos.Group, all bool) []sonos.Group {
	out := make([]sonos.Group, 0, len(groups))
	for _, g := range groups {
		members := make([]sonos.Member, 0, len(g.Members))
		for _, m := range g.Members {
			if all || m.IsVisible {
				members = append(members, m)
			}
		}
		if len(members) == 0 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool {
			if members[i].IsCoordinator != members[j].IsCoordinator {
				return members[i].IsCoordinator
			}
			return members[i].Name < members[j].Name
		})
		g.Members = members
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Coordinator.Name < out[j].Coordinator.Name })
	return out
}

func memberRole(m sonos.Member) string {
	if m.IsCoordinator {
		return "coordinator"
	}
	return "member"
}

func newGroupJoinCmd(flags *rootFlags) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:          "join --to <name-or-ip>",
		Short:        "Join another group",
		Long:         "Makes the target speaker (via --name/--ip) join the group coordinated by --to.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateTarget(flags); err != nil {
				return err
			}
			to = strings.TrimSpace(to)
			if to == "" {
				return errors.New("--to is required")
			}

			top, err := fetchTopology(cmd.Context(), flags)
			if err != nil {
				return err
			}
			joiner, err := resolveMember(top, flags.Name, flags.IP)
			if err != nil {
				return err
			}
			dest, err := resolveMember(top, to, "")
			if err != nil {
				return err
			}

			destGroup, ok := top.GroupForIP(dest.IP)
			if !ok {
				return errors.New("destination speaker not found in any group")
			}
			if joinerGroup, ok := top.GroupForIP(joiner.IP); ok && joinerGroup.ID == destGroup.ID {
				return writeOK(cmd, flags, "group.join", map[string]any{"joiner": joiner, "to": dest, "skipped": true})
			}
			if destGroup.Coordinator.UUID == "" {
				return errors.New("destination group coordinator UUID missing")
			}

			if err := newGroupingClient(joiner.IP, flags).JoinGroup(cmd.Context(), destGroup.Coordinator.UUID); err != nil {
				return err
			}
			if err := writeOK(cmd, flags, "group.join", map[string]any{"joiner": joiner, "to": dest}); err != nil {
				return err
			}
			writePlainLine(cmd, flags, fmt.Sprintf("%s joined %s", joiner.Name, destGroup.Coordinator.Name))
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Speaker name or IP whose group to join")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newGroupLeaveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:          "leave",
		Aliases:      []string{"unjoin"},
		Short:        "Leave the current group",
		Long:         "Makes the target speaker (via --name/--ip) the coordinator of its own standalone group.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateTarget(flags); err != nil {
				return err
			}
			top, err := fetchTopology(cmd.Context(), flags)
			if err != nil {
				return err
			}
			member, err := resolveMember(top, flags.Name, flags.IP)
			if err != nil {
				return err
			}
			if err := newGroupingClient(member.IP, flags).LeaveGroup(cmd.Context()); err != nil {
				return err
			}
			if err := writeOK(cmd, flags, "group.leave", map[string]any{"member": member}); err != nil {
				return err
			}
			writePlainLine(cmd, flags, member.Name+" left its group")
			return nil
		},
	}
}

// resolveMember prefers an explicit IP, then an exact or case-insensitive
// name, then a unique case-insensitive substring of a room name.
func resolveMember(top sonos.Topology, name, ip string) (sonos.Member, error) {
	if ip = strings.TrimSpace(ip); ip != "" {
		mem, ok := top.FindByIP(ip)
		if !ok {
			return sonos.Member{}, errors.New("speaker ip not found in topology: " + ip)
		}
		return mem, nil
	}

	name = strings.TrimSpace(name)
	if mem, err := top.ResolveMember(name); err == nil {
		return mem, nil
	}

	needle := strings.ToLower(name)
	var matches []string
	if needle != "" {
		for k := range top.ByName {
			if strings.Contains(strings.ToLower(k), needle) {
				matches = append(matches, k)
			}
		}
	}
	switch len(matches) {
	case 0:
		return sonos.Member{}, errors.New("speaker name not found in topology: " + name)
	case 1:
		return top.ByName[matches[0]], nil
	default:
		sort.Strings(matches)
		return sonos.Member{}, fmt.Errorf("ambiguous speaker name %q; matches: %s", name, strings.Join(matches, ", "))
	}
}
