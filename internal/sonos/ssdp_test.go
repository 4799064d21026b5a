package sonos

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSSDPResponse(t *testing.T) {
	resp := "HTTP/1.1 200 OK\r\n" +
		"CACHE-CONTROL: max-age = 1800\r\n" +
		"EXT:\r\n" +
		"LOCATION: http://192.168.1.50:1400/xml/device_description.xml\r\n" +
		"SERVER: Linux UPnP/1.0 Sonos/83.1-12345 (ZPS3)\r\n" +
		"ST: urn:schemas-upnp-org:device:ZonePlayer:1\r\n" +
		"USN: uuid:RINCON_00000000000001400::urn:schemas-upnp-org:device:ZonePlayer:1\r\n" +
		"\r\n"

	parsed, ok := parseSSDPResponse([]byte(resp))
	require.True(t, ok)
	assert.Equal(t, "http://192.168.1.50:1400/xml/device_description.xml", parsed.Location)
	assert.Equal(t, "ZPS3", parsed.Model())
	assert.Equal(t, "RINCON_00000000000001400", parsed.UDN())
	assert.True(t, parsed.isZonePlayer())
}

func TestSSDPResponseModel(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{server: "Linux UPnP/1.0 Sonos/57.3-79060 (ZPS9)", want: "ZPS9"},
		{server: "Linux UPnP/1.0 Sonos/70.1-35220 (S14 )", want: "S14"},
		{server: "Linux UPnP/1.0 Sonos/70.1-35220", want: ""},
		{server: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SSDPResponse{Server: tt.server}.Model(), tt.server)
	}
}

func TestSSDPSearchPayload(t *testing.T) {
	p := string(ssdpSearchPayload())
	assert.True(t, strings.HasPrefix(p, "M-SEARCH * HTTP/1.1\r\n"))
	assert.Contains(t, p, "HOST: 239.255.255.250:1900\r\n")
	assert.Contains(t, p, "MAN: \"ssdp:discover\"\r\n")
	assert.Contains(t, p, "ST: urn:schemas-upnp-org:device:ZonePlayer:1\r\n")
	assert.True(t, strings.HasSuffix(p, "\r\n\r\n"))
}

func TestHostToIP(t *testing.T) {
	ip, err := hostToIP("http://10.0.0.7:1400/xml/device_description.xml")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", ip)
}
