package sonos

import (
	"context"
	"encoding/xml"
	"errors"
	"strings"
)

// Member is one speaker in the household as reported by ZoneGroupTopology.
// Bonded surrounds and subs appear as invisible members.
type Member struct {
	Name          string `json:"name"`
	IP            string `json:"ip"`
	UUID          string `json:"uuid"`
	Location      string `json:"location"`
	IsVisible     bool   `json:"isVisible"`
	IsCoordinator bool   `json:"isCoordinator"`
}

type Group struct {
	ID          string   `json:"id"`
	Coordinator Member   `json:"coordinator"`
	Members     []Member `json:"members"`
}

// Topology is a snapshot of the household's groups with lookup indexes.
// ByName prefers a visible member when several share a room name.
type Topology struct {
	Groups []Group           `json:"groups"`
	ByName map[string]Member `json:"-"`
	ByIP   map[string]Member `json:"-"`
	byUUID map[string]Member
}

func (c *Client) GetTopology(ctx context.Context) (Topology, error) {
	resp, err := c.soapCall(ctx, zoneGroupTopologyService, "GetZoneGroupState", nil)
	if err != nil {
		return Topology{}, err
	}
	state := resp["ZoneGroupState"]
	if state == "" {
		return Topology{}, errors.New("zone group state missing in response")
	}
	return parseZoneGroupStateXML(state)
}

// zoneGroupState accepts both the current <ZoneGroupState><ZoneGroups>
// nesting and older firmware that puts <ZoneGroup> at the top level.
type zoneGroupState struct {
	Nested []zoneGroup `xml:"ZoneGroups>ZoneGroup"`
	Flat   []zoneGroup `xml:"ZoneGroup"`
}

type zoneGroup struct {
	ID          string       `xml:"ID,attr"`
	Coordinator string       `xml:"Coordinator,attr"`
	Members     []zoneMember `xml:"ZoneGroupMember"`
}

type zoneMember struct {
	UUID       string       `xml:"UUID,attr"`
	ZoneName   string       `xml:"ZoneName,attr"`
	Location   string       `xml:"Location,attr"`
	Invisible  string       `xml:"Invisible,attr"`
	Satellites []zoneMember `xml:"Satellite"`
}

func parseZoneGroupStateXML(payload string) (Topology, error) {
	var state zoneGroupState
	if err := xml.Unmarshal([]byte(payload), &state); err != nil {
		return Topology{}, err
	}
	groups := state.Nested
	if len(groups) == 0 {
		groups = state.Flat
	}

	t := Topology{
		ByName: map[string]Member{},
		ByIP:   map[string]Member{},
		byUUID: map[string]Member{},
	}
	for _, zg := range groups {
		g := Group{ID: zg.ID}
		for _, zm := range zg.Members {
			// Satellites follow the member they are bonded to.
			for _, m := range append([]zoneMember{zm}, zm.Satellites...) {
				mem, ok := newMember(m, zg.Coordinator)
				if !ok {
					continue
				}
				t.index(mem)
				if mem.IsCoordinator {
					g.Coordinator = mem
				}
				g.Members = append(g.Members, mem)
			}
		}
		if g.Coordinator.UUID == "" && len(g.Members) > 0 {
			g.Coordinator = g.Members[0]
			g.Coordinator.IsCoordinator = true
		}
		t.Groups = append(t.Groups, g)
	}
	return t, nil
}

// newMember drops entries whose Location has no usable host.
func newMember(m zoneMember, coordinatorUUID string) (Member, bool) {
	ip, err := hostToIP(m.Location)
	if err != nil {
		return Member{}, false
	}
	return Member{
		Name:          m.ZoneName,
		IP:            ip,
		UUID:          m.UUID,
		Location:      m.Location,
		IsVisible:     m.Invisible != "1",
		IsCoordinator: m.UUID != "" && m.UUID == coordinatorUUID,
	}, true
}

func (t Topology) index(mem Member) {
	if mem.Name != "" {
		if prev, ok := t.ByName[mem.Name]; !ok || (mem.IsVisible && !prev.IsVisible) {
			t.ByName[mem.Name] = mem
		}
	}
	t.ByIP[mem.IP] = mem
	if mem.UUID != "" {
		t.byUUID[mem.UUID] = mem
	}
}

// FindByUUID looks up a member by its RINCON_ identifier.
func (t Topology) FindByUUID(uuid string) (Member, bool) {
	mem, ok := t.byUUID[uuid]
	return mem, ok
}

func (t Topology) FindByName(name string) (Member, bool) {
	mem, ok := t.ByName[name]
	return mem, ok
}

func (t Topology) FindByIP(ip string) (Member, bool) {
	mem, ok := t.ByIP[ip]
	return mem, ok
}

func (t Topology) findByNameFold(name string) (Member, bool) {
	if mem, ok := t.ByName[name]; ok {
		return mem, true
	}
	for k, mem := range t.ByName {
		if strings.EqualFold(k, name) {
			return mem, true
		}
	}
	return Member{}, false
}

func (t Topology) GroupForIP(ip string) (Group, bool) {
	for _, g := range t.Groups {
		for _, m := range g.Members {
			if m.IP == ip {
				return g, true
			}
		}
	}
	return Group{}, false
}

// GroupForName matches the room name case-insensitively.
func (t Topology) GroupForName(name string) (Group, bool) {
	mem, ok := t.findByNameFold(name)
	if !ok {
		return Group{}, false
	}
	return t.GroupForIP(mem.IP)
}

// CoordinatorIPFor returns the IP commands for ip's group must be sent to.
// A group with no coordinator address falls back to ip itself.
func (t Topology) CoordinatorIPFor(ip string) (string, bool) {
	g, ok := t.GroupForIP(ip)
	if !ok {
		return "", false
	}
	if g.Coordinator.IP == "" {
		return ip, true
	}
	return g.Coordinator.IP, true
}

func (t Topology) CoordinatorIPForName(name string) (string, bool) {
	mem, ok := t.findByNameFold(name)
	if !ok {
		return "", false
	}
	return t.CoordinatorIPFor(mem.IP)
}

func (t Topology) CoordinatorUUIDForIP(ip string) (string, bool) {
	g, ok := t.GroupForIP(ip)
	return g.Coordinator.UUID, ok && g.Coordinator.UUID != ""
}

func (t Topology) CoordinatorUUIDForName(name string) (string, bool) {
	g, ok := t.GroupForName(name)
	return g.Coordinator.UUID, ok && g.Coordinator.UUID != ""
}
