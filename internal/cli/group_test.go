package cli

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/STop211650/sonosctl/internal/sonos"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTopologyGetter struct {
	top sonos.Topology
	err error
}

func (f *fakeTopologyGetter) GetTopology(ctx context.Context) (sonos.Topology, error) {
	return f.top, f.err
}

type fakeGroupingClient struct {
	ip         string
	joinedUUID string
	joinCalls  int
	leaveCalls int
	err        error
}

func (f *fakeGroupingClient) JoinGroup(ctx context.Context, coordinatorUUID string) error {
	f.joinCalls++
	f.joinedUUID = coordinatorUUID
	return f.err
}

func (f *fakeGroupingClient) LeaveGroup(ctx context.Context) error {
	f.leaveCalls++
	return f.err
}

type captureWriter struct {
	b []byte
}

func (w *captureWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

func (w *captureWriter) String() string {
	return string(w.b)
}

type discardWriter struct{}

func newDiscardWriter() *discardWriter { return &discardWriter{} }

func (w *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// householdTopology has Living Room grouped with Kitchen, a standalone
// Bedroom and an invisible Sub bonded to Living Room.
func householdTopology() sonos.Topology {
	lr := sonos.Member{Name: "Living Room", IP: "192.168.1.10", UUID: "RINCON_LR1400", IsCoordinator: true, IsVisible: true}
	kitchen := sonos.Member{Name: "Kitchen", IP: "192.168.1.11", UUID: "RINCON_K1400", IsVisible: true}
	sub := sonos.Member{Name: "Sub", IP: "192.168.1.12", UUID: "RINCON_SUB1400"}
	bed := sonos.Member{Name: "Bedroom", IP: "192.168.1.20", UUID: "RINCON_BED1400", IsCoordinator: true, IsVisible: true}

	top := sonos.Topology{
		Groups: []sonos.Group{
			{ID: "RINCON_LR1400:1", Coordinator: lr, Members: []sonos.Member{kitchen, sub, lr}},
			{ID: "RINCON_BED1400:7", Coordinator: bed, Members: []sonos.Member{bed}},
		},
		ByName: map[string]sonos.Member{},
		ByIP:   map[string]sonos.Member{},
	}
	for _, m := range []sonos.Member{lr, kitchen, bed} {
		top.ByName[m.Name] = m
		top.ByIP[m.IP] = m
	}
	top.ByIP[sub.IP] = sub
	return top
}

type groupHarness struct {
	clients map[string]*fakeGroupingClient
}

func newGroupHarness(t *testing.T, top sonos.Topology, clientErr error) *groupHarness {
	t.Helper()
	h := &groupHarness{clients: map[string]*fakeGroupingClient{}}

	origTG, origGC := newTopologyGetter, newGroupingClient
	t.Cleanup(func() {
		newTopologyGetter = origTG
		newGroupingClient = origGC
	})
	newTopologyGetter = func(ctx context.Context, flags *rootFlags) (topologyGetter, error) {
		return &fakeTopologyGetter{top: top}, nil
	}
	newGroupingClient = func(ip string, flags *rootFlags) groupingClient {
		c := &fakeGroupingClient{ip: ip, err: clientErr}
		h.clients[ip] = c
		return c
	}
	return h
}

func runGroupCmd(cmd *cobra.Command, args ...string) (string, error) {
	var out captureWriter
	cmd.SetOut(&out)
	cmd.SetErr(newDiscardWriter())
	cmd.SetArgs(args)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestResolveMember(t *testing.T) {
	top := householdTopology()
	top.ByName["Home Office"] = sonos.Member{Name: "Home Office", IP: "192.168.1.30"}
	top.ByName["Office"] = sonos.Member{Name: "Office", IP: "192.168.1.31"}

	tests := []struct {
		name    string
		room    string
		ip      string
		wantIP  string
		wantErr string
	}{
		{name: "exact", room: "Kitchen", wantIP: "192.168.1.11"},
		{name: "case insensitive", room: "living room", wantIP: "192.168.1.10"},
		{name: "ip flag", ip: "192.168.1.20", wantIP: "192.168.1.20"},
		{name: "ip as name", room: "192.168.1.11", wantIP: "192.168.1.11"},
		{name: "unique substring", room: "bed", wantIP: "192.168.1.20"},
		{name: "ambiguous substring", room: "offi", wantErr: "ambiguous speaker name"},
		{name: "unknown", room: "Garage", wantErr: "not found"},
		{name: "unknown ip", ip: "10.0.0.1", wantErr: "speaker ip not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem, err := resolveMember(top, tt.room, tt.ip)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIP, mem.IP)
		})
	}
}

func TestResolveMemberAmbiguousListsMatches(t *testing.T) {
	top := sonos.Topology{ByName: map[string]sonos.Member{
		"Office":      {Name: "Office"},
		"Home Office": {Name: "Home Office"},
	}}
	_, err := resolveMember(top, "ffic", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matches: Home Office, Office")
}

func TestGroupJoinByName(t *testing.T) {
	h := newGroupHarness(t, householdTopology(), nil)
	flags := &rootFlags{Name: "Bedroom", Timeout: 2 * time.Second, Format: formatJSON}

	out, err := runGroupCmd(newGroupJoinCmd(flags), "--to", "Kitchen")
	require.NoError(t, err)

	c := h.clients["192.168.1.20"]
	require.NotNil(t, c, "join must be sent to the joining speaker")
	assert.Equal(t, 1, c.joinCalls)
	assert.Equal(t, "RINCON_LR1400", c.joinedUUID)
	assert.Contains(t, out, `"action": "group.join"`)
}

func TestGroupJoinSameGroupSkips(t *testing.T) {
	h := newGroupHarness(t, householdTopology(), nil)
	flags := &rootFlags{Name: "Kitchen", Timeout: 2 * time.Second, Format: formatJSON}

	out, err := runGroupCmd(newGroupJoinCmd(flags), "--to", "Living Room")
	require.NoError(t, err)
	assert.Empty(t, h.clients)
	assert.Contains(t, out, `"skipped": true`)
}

func TestGroupJoinRequiresTo(t *testing.T) {
	newGroupHarness(t, householdTopology(), nil)
	flags := &rootFlags{Name: "Bedroom", Timeout: 2 * time.Second}

	_, err := runGroupCmd(newGroupJoinCmd(flags))
	require.Error(t, err)
}

func TestGroupJoinRequiresTarget(t *testing.T) {
	h := newGroupHarness(t, householdTopology(), nil)
	_, err := runGroupCmd(newGroupJoinCmd(&rootFlags{Timeout: 2 * time.Second}), "--to", "Kitchen")
	require.Error(t, err)
	assert.Empty(t, h.clients)
}

func TestGroupLeaveByIP(t *testing.T) {
	h := newGroupHarness(t, householdTopology(), nil)
	flags := &rootFlags{IP: "192.168.1.11", Timeout: 2 * time.Second, Format: formatPlain}

	out, err := runGroupCmd(newGroupLeaveCmd(flags))
	require.NoError(t, err)
	require.Contains(t, h.clients, "192.168.1.11")
	assert.Equal(t, 1, h.clients["192.168.1.11"].leaveCalls)
	assert.Equal(t, "Kitchen left its group\n", out)
}

func TestGroupLeaveErrorPropagates(t *testing.T) {
	newGroupHarness(t, householdTopology(), errors.New("upnp error 800"))
	flags := &rootFlags{Name: "Kitchen", Timeout: 2 * time.Second}

	_, err := runGroupCmd(newGroupLeaveCmd(flags))
	require.ErrorContains(t, err, "upnp error 800")
}

func TestGroupStatusJSON(t *testing.T) {
	newGroupHarness(t, householdTopology(), nil)
	flags := &rootFlags{Timeout: 2 * time.Second, Format: formatJSON}

	out, err := runGroupCmd(newGroupStatusCmd(flags))
	require.NoError(t, err)

	var got struct {
		Groups []sonos.Group `json:"groups"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Groups, 2)
	assert.Equal(t, "Bedroom", got.Groups[0].Coordinator.Name)
	lr := got.Groups[1]
	require.Len(t, lr.Members, 2)
	assert.Equal(t, "Living Room", lr.Members[0].Name, "coordinator listed first")
	assert.Equal(t, "Kitchen", lr.Members[1].Name)
}

func TestGroupStatusHidesInvisibleByDefault(t *testing.T) {
	newGroupHarness(t, householdTopology(), nil)
	flags := &rootFlags{Timeout: 2 * time.Second, Format: formatPlain}

	out, err := runGroupCmd(newGroupStatusCmd(flags))
	require.NoError(t, err)
	assert.Contains(t, out, "Living Room")
	assert.NotContains(t, out, "Sub")
}

func TestGroupStatusAllShowsInvisible(t *testing.T) {
	newGroupHarness(t, householdTopology(), nil)
	flags := &rootFlags{Timeout: 2 * time.Second, Format: formatTSV}

	out, err := runGroupCmd(newGroupStatusCmd(flags), "--all")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "RINCON_BED1400:7\tBedroom\tBedroom\t192.168.1.20\tcoordinator", lines[0])
	assert.Contains(t, out, "Sub\t192.168.1.12\tmember")
}

func TestGroupStatusTopologyError(t *testing.T) {
	orig := newTopologyGetter
	t.Cleanup(func() { newTopologyGetter = orig })
	newTopologyGetter = func(ctx context.Context, flags *rootFlags) (topologyGetter, error) {
		return &fakeTopologyGetter{err: errors.New("zone group state missing in response")}, nil
	}

	_, err := runGroupCmd(newGroupStatusCmd(&rootFlags{Timeout: time.Second}))
	require.ErrorContains(t, err, "zone group state missing")
}
