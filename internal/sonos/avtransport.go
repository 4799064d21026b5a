package sonos

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

func instanceArgs(extra ...Arg) []Arg {
	return append([]Arg{{Name: "InstanceID", Value: "0"}}, extra...)
}

func transportArgs() []Arg {
	return instanceArgs(Arg{Name: "Speed", Value: "1"})
}

func (c *Client) avTransport(ctx context.Context, action string, args []Arg) (map[string]string, error) {
	return c.soapCall(ctx, avTransportService, action, args)
}

func (c *Client) Play(ctx context.Context) error {
	_, err := c.avTransport(ctx, "Play", transportArgs())
	return err
}

func (c *Client) Pause(ctx context.Context) error {
	_, err := c.avTransport(ctx, "Pause", transportArgs())
	return err
}

func (c *Client) Stop(ctx context.Context) error {
	_, err := c.avTransport(ctx, "Stop", transportArgs())
	return err
}

func (c *Client) Next(ctx context.Context) error {
	_, err := c.avTransport(ctx, "Next", transportArgs())
	return err
}

func (c *Client) Previous(ctx context.Context) error {
	_, err := c.avTransport(ctx, "Previous", transportArgs())
	return err
}

// PreviousOrRestart goes to the previous track, or restarts the current one
// when the speaker has nothing to go back to (radio, first queue entry).
func (c *Client) PreviousOrRestart(ctx context.Context) error {
	err := c.Previous(ctx)
	var upnpErr *UPnPError
	if err == nil || !errors.As(err, &upnpErr) {
		return err
	}
	switch upnpErr.Code {
	case "701", "711":
		return c.SeekRelTime(ctx, "0:00:00")
	default:
		return err
	}
}

func (c *Client) SeekRelTime(ctx context.Context, hhmmss string) error {
	_, err := c.avTransport(ctx, "Seek", instanceArgs(
		Arg{Name: "Unit", Value: "REL_TIME"},
		Arg{Name: "Target", Value: hhmmss},
	))
	return err
}

func (c *Client) SeekTrackNumber(ctx context.Context, oneBasedTrackNumber int) error {
	_, err := c.avTransport(ctx, "Seek", instanceArgs(
		Arg{Name: "Unit", Value: "TRACK_NR"},
		Arg{Name: "Target", Value: strconv.Itoa(oneBasedTrackNumber)},
	))
	return err
}

// SetAVTransportURI points the transport at uri. meta is entity-escaped.
func (c *Client) SetAVTransportURI(ctx context.Context, uri, meta string) error {
	return c.setAVTransportURI(ctx, uri, meta, false)
}

func (c *Client) setAVTransportURI(ctx context.Context, uri, meta string, rawMeta bool) error {
	_, err := c.avTransport(ctx, "SetAVTransportURI", instanceArgs(
		Arg{Name: "CurrentURI", Value: uri},
		Arg{Name: "CurrentURIMetaData", Value: meta, Raw: rawMeta},
	))
	return err
}

// Track is a URI the speaker can play, optionally with DIDL-Lite metadata.
// A Track with only URI set sends empty CurrentURIMetaData. QueueNext escapes
// Metadata; PlayTrack sends it as written, so callers escape it themselves
// (see EscapeXML).
type Track struct {
	URI      string `json:"uri"`
	Metadata string `json:"metadata,omitempty"`
}

func TrackFromURI(uri string) Track {
	return Track{URI: uri}
}

var errTrackURIRequired = errors.New("track uri is required")

// QueueNext points the transport at t without starting playback. The
// metadata is entity-escaped.
func (c *Client) QueueNext(ctx context.Context, t Track) error {
	if strings.TrimSpace(t.URI) == "" {
		return errTrackURIRequired
	}
	return c.SetAVTransportURI(ctx, t.URI, t.Metadata)
}

func (c *Client) BecomeCoordinatorOfStandaloneGroup(ctx context.Context) error {
	_, err := c.avTransport(ctx, "BecomeCoordinatorOfStandaloneGroup", instanceArgs())
	return err
}

func (c *Client) AddURIToQueue(ctx context.Context, enqueuedURI, enqueuedMeta string, desiredFirstTrackNumber int, enqueueAsNext bool) (firstTrackNumber int, err error) {
	asNext := "0"
	if enqueueAsNext {
		asNext = "1"
	}
	resp, err := c.avTransport(ctx, "AddURIToQueue", instanceArgs(
		Arg{Name: "EnqueuedURI", Value: enqueuedURI},
		Arg{Name: "EnqueuedURIMetaData", Value: enqueuedMeta},
		Arg{Name: "DesiredFirstTrackNumberEnqueued", Value: strconv.Itoa(desiredFirstTrackNumber)},
		Arg{Name: "EnqueueAsNext", Value: asNext},
	))
	if err != nil {
		return 0, err
	}
	v := resp["FirstTrackNumberEnqueued"]
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func (c *Client) RemoveAllTracksFromQueue(ctx context.Context) error {
	_, err := c.avTransport(ctx, "RemoveAllTracksFromQueue", instanceArgs())
	return err
}

// RemoveTrackFromQueue removes the 1-based queue position.
func (c *Client) RemoveTrackFromQueue(ctx context.Context, position int) error {
	if position < 1 {
		return errors.New("position must be >= 1")
	}
	_, err := c.avTransport(ctx, "RemoveTrackFromQueue", instanceArgs(
		Arg{Name: "ObjectID", Value: "Q:0/" + strconv.Itoa(position)},
		Arg{Name: "UpdateID", Value: "0"},
	))
	return err
}

// QueueURI is the transport URI that selects a speaker's own queue.
func QueueURI(speakerUUID string) string {
	return "x-rincon-queue:" + speakerUUID + "#0"
}

// PlayQueuePosition switches the coordinator to its queue, seeks to the
// 1-based position and starts playback.
func (c *Client) PlayQueuePosition(ctx context.Context, position int) error {
	if position < 1 {
		return errors.New("position must be >= 1")
	}
	dev, err := c.GetDeviceDescription(ctx)
	if err != nil {
		return err
	}
	if dev.UDN == "" {
		return errors.New("speaker UDN missing from device description")
	}
	if err := c.SetAVTransportURI(ctx, QueueURI(dev.UDN), ""); err != nil {
		return err
	}
	if err := c.SeekTrackNumber(ctx, position); err != nil {
		return err
	}
	return c.Play(ctx)
}

type PositionInfo struct {
	Track         string `json:"track"`
	TrackURI      string `json:"trackURI"`
	TrackMeta     string `json:"trackMeta,omitempty"`
	TrackDuration string `json:"trackDuration"`
	RelTime       string `json:"relTime"`
}

func (c *Client) GetPositionInfo(ctx context.Context) (PositionInfo, error) {
	resp, err := c.avTransport(ctx, "GetPositionInfo", instanceArgs())
	if err != nil {
		return PositionInfo{}, err
	}
	return PositionInfo{
		Track:         resp["Track"],
		TrackURI:      resp["TrackURI"],
		TrackMeta:     resp["TrackMetaData"],
		TrackDuration: resp["TrackDuration"],
		RelTime:       resp["RelTime"],
	}, nil
}

type TransportInfo struct {
	State  string `json:"state"`
	Status string `json:"status"`
	Speed  string `json:"speed"`
}

func (c *Client) GetTransportInfo(ctx context.Context) (TransportInfo, error) {
	resp, err := c.avTransport(ctx, "GetTransportInfo", instanceArgs())
	if err != nil {
		return TransportInfo{}, err
	}
	return TransportInfo{
		State:  resp["CurrentTransportState"],
		Status: resp["CurrentTransportStatus"],
		Speed:  resp["CurrentSpeed"],
	}, nil
}
