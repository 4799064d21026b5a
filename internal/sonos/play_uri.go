package sonos

import (
	"context"
	"fmt"
	"strings"
)

const mp3RadioScheme = "x-rincon-mp3radio"

// ForceRadioURI rewrites the scheme of uri to x-rincon-mp3radio so the
// speaker buffers it as a live stream. Anything without a scheme is returned
// trimmed but otherwise untouched.
func ForceRadioURI(uri string) string {
	uri = strings.TrimSpace(uri)
	scheme, rest, ok := strings.Cut(uri, ":")
	if !ok || scheme == "" {
		return uri
	}
	return mp3RadioScheme + ":" + rest
}

// radioItem is the DIDL-Lite the speaker shows for a station. The desc
// element marks it as a TuneIn-style broadcast.
const radioItem = `<DIDL-Lite xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/" xmlns:r="urn:schemas-rinconnetworks-com:metadata-1-0/" xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/">` +
	`<item id="R:0/0/0" parentID="R:0/0" restricted="true">` +
	`<dc:title>%s</dc:title>` +
	`<upnp:class>object.item.audioItem.audioBroadcast</upnp:class>` +
	`<desc id="cdudn" nameSpace="urn:schemas-rinconnetworks-com:metadata-1-0/">SA_RINCON65031_</desc>` +
	`</item></DIDL-Lite>`

// BuildRadioMeta returns station metadata for title, or "" when title is
// blank. The result is DIDL-Lite markup, not yet escaped for SOAP.
func BuildRadioMeta(title string) string {
	if title = strings.TrimSpace(title); title == "" {
		return ""
	}
	return fmt.Sprintf(radioItem, xmlEscapeText(title))
}

// PlayTrack sets t as the transport URI and, once the speaker has accepted
// it, starts playback. Play is not sent when the first call fails.
// t.Metadata goes into CurrentURIMetaData as written.
func (c *Client) PlayTrack(ctx context.Context, t Track) error {
	if strings.TrimSpace(t.URI) == "" {
		return errTrackURIRequired
	}
	if err := c.setAVTransportURI(ctx, t.URI, t.Metadata, true); err != nil {
		return err
	}
	return c.Play(ctx)
}

func (c *Client) PlayURI(ctx context.Context, uri, meta string) error {
	return c.PlayTrack(ctx, Track{URI: uri, Metadata: meta})
}
