package sonos

import (
	"context"
	"fmt"
	"strconv"
)

// renderingControl sends action for the master channel of instance 0.
func (c *Client) renderingControl(ctx context.Context, action string, extra ...Arg) (map[string]string, error) {
	args := instanceArgs(append([]Arg{{Name: "Channel", Value: "Master"}}, extra...)...)
	return c.soapCall(ctx, renderingControlService, action, args)
}

// GetVolume reports the master volume, 0 to 100.
func (c *Client) GetVolume(ctx context.Context) (int, error) {
	resp, err := c.renderingControl(ctx, "GetVolume")
	if err != nil {
		return 0, err
	}
	level, err := strconv.Atoi(resp["CurrentVolume"])
	if err != nil {
		return 0, fmt.Errorf("unexpected CurrentVolume %q", resp["CurrentVolume"])
	}
	return level, nil
}

// SetVolume clamps level into 0..100 before sending it.
func (c *Client) SetVolume(ctx context.Context, level int) error {
	level = max(0, min(level, 100))
	_, err := c.renderingControl(ctx, "SetVolume", Arg{Name: "DesiredVolume", Value: strconv.Itoa(level)})
	return err
}

func (c *Client) GetMute(ctx context.Context) (bool, error) {
	resp, err := c.renderingControl(ctx, "GetMute")
	if err != nil {
		return false, err
	}
	return resp["CurrentMute"] == "1", nil
}

func (c *Client) SetMute(ctx context.Context, mute bool) error {
	_, err := c.renderingControl(ctx, "SetMute", Arg{Name: "DesiredMute", Value: boolArg(mute)})
	return err
}

func boolArg(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
