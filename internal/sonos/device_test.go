package sonos

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kitchenDescription = `<?xml version="1.0" encoding="utf-8"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <device>
    <deviceType>urn:schemas-upnp-org:device:ZonePlayer:1</deviceType>
    <manufacturer>Sonos, Inc.</manufacturer>
    <modelNumber>S14</modelNumber>
    <roomName>Kitchen</roomName>
    <UDN>uuid:RINCON_KITCHEN01400</UDN>
  </device>
</root>`

func descriptionServer(t *testing.T, body string) (ip string, port int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != deviceDescriptionPath {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err = strconv.Atoi(u.Port())
	require.NoError(t, err)
	return u.Hostname(), port
}

func TestGetDeviceDescription(t *testing.T) {
	ip, port := descriptionServer(t, kitchenDescription)
	c := NewClient(ip, 0)
	c.Port = port

	dev, err := c.GetDeviceDescription(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Device{
		IP:       ip,
		Name:     "Kitchen",
		UDN:      "RINCON_KITCHEN01400",
		Location: c.baseURL() + deviceDescriptionPath,
		Model:    "S14",
	}, dev)
}

func TestGetDeviceDescriptionRejectsOtherDevices(t *testing.T) {
	ip, port := descriptionServer(t, `<root><device><deviceType>urn:dial-multiscreen-org:device:dial:1</deviceType><manufacturer>Roku</manufacturer></device></root>`)
	c := NewClient(ip, 0)
	c.Port = port

	_, err := c.GetDeviceDescription(context.Background())
	require.ErrorContains(t, err, "not a sonos ZonePlayer")
}

func TestPlayQueuePositionSelectsQueueSeeksAndPlays(t *testing.T) {
	ip, port := descriptionServer(t, kitchenDescription)
	c, reqs := recordingClient(nil)
	c.IP = ip
	c.Port = port
	c.HTTP = defaultHTTPClient(0)

	require.NoError(t, c.PlayQueuePosition(context.Background(), 3))

	require.Len(t, *reqs, 3)
	assert.Contains(t, (*reqs)[0].Body, "<CurrentURI>x-rincon-queue:RINCON_KITCHEN01400#0</CurrentURI>")
	assert.Contains(t, (*reqs)[1].Body, "<Unit>TRACK_NR</Unit><Target>3</Target>")
	assert.Equal(t, playBody, (*reqs)[2].Body)
}

func TestPlayQueuePositionRejectsZero(t *testing.T) {
	c, reqs := recordingClient(nil)
	require.Error(t, c.PlayQueuePosition(context.Background(), 0))
	assert.Empty(t, *reqs)
}

func TestIsLocalHost(t *testing.T) {
	assert.True(t, isLocalHost("192.168.1.10"))
	assert.True(t, isLocalHost("127.0.0.1"))
	assert.True(t, isLocalHost("169.254.3.4"))
	assert.False(t, isLocalHost("8.8.8.8"))
	assert.False(t, isLocalHost("sonos.local"))
}
