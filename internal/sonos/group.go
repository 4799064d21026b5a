package sonos

import (
	"context"
	"errors"
	"fmt"
)

func JoinURI(coordinatorUUID string) (string, error) {
	if coordinatorUUID == "" {
		return "", errors.New("coordinator UUID is required")
	}
	return "x-rincon:" + coordinatorUUID, nil
}

// JoinGroup makes this speaker follow the group coordinated by
// coordinatorUUID by pointing its transport at x-rincon:<uuid>.
func (c *Client) JoinGroup(ctx context.Context, coordinatorUUID string) error {
	uri, err := JoinURI(coordinatorUUID)
	if err != nil {
		return err
	}
	return c.QueueNext(ctx, TrackFromURI(uri))
}

// LeaveGroup ungroups this speaker, making it the coordinator of a standalone group.
func (c *Client) LeaveGroup(ctx context.Context) error {
	return c.BecomeCoordinatorOfStandaloneGroup(ctx)
}

// ResolveMember finds a speaker by room name (case-insensitive) or IP.
func (t Topology) ResolveMember(nameOrIP string) (Member, error) {
	if mem, ok := t.FindByIP(nameOrIP); ok {
		return mem, nil
	}
	if mem, ok := t.findByNameFold(nameOrIP); ok {
		return mem, nil
	}
	return Member{}, fmt.Errorf("speaker not found in topology: %s", nameOrIP)
}
