package sonos

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http/httpproxy"
)

type Device struct {
	IP       string `json:"ip"`
	Name     string `json:"name"`
	UDN      string `json:"udn"`
	Location string `json:"location"`
	Model    string `json:"model,omitempty"`
}

type deviceDescription struct {
	Device struct {
		DeviceType   string `xml:"deviceType"`
		RoomName     string `xml:"roomName"`
		Manufacturer string `xml:"manufacturer"`
		ModelNumber  string `xml:"modelNumber"`
		UDN          string `xml:"UDN"`
	} `xml:"device"`
}

func fetchDeviceDescription(ctx context.Context, httpClient *http.Client, locationURL string) (Device, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locationURL, nil)
	if err != nil {
		return Device{}, err
	}
	resp, err := doRequest(ctx, httpClient, req)
	if err != nil {
		return Device{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Device{}, fmt.Errorf("device description: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return Device{}, err
	}

	var dd deviceDescription
	if err := xml.Unmarshal(b, &dd); err != nil {
		return Device{}, err
	}

	// Other UPnP gear answers M-SEARCH too.
	deviceType := strings.TrimSpace(dd.Device.DeviceType)
	manufacturer := strings.TrimSpace(dd.Device.Manufacturer)
	if deviceType != zonePlayerDeviceType && !strings.Contains(strings.ToLower(manufacturer), "sonos") {
		return Device{}, fmt.Errorf("not a sonos ZonePlayer (deviceType=%q manufacturer=%q)", deviceType, manufacturer)
	}

	ip, err := hostToIP(locationURL)
	if err != nil {
		return Device{}, err
	}
	return Device{
		IP:       ip,
		Name:     strings.TrimSpace(dd.Device.RoomName),
		UDN:      strings.TrimPrefix(strings.TrimSpace(dd.Device.UDN), "uuid:"),
		Location: locationURL,
		Model:    strings.TrimSpace(dd.Device.ModelNumber),
	}, nil
}

// defaultHTTPClient talks to speakers directly: keep-alives are off because
// Sonos firmware drops idle connections, and private addresses skip any
// configured proxy.
func defaultHTTPClient(timeout time.Duration) *http.Client {
	proxyFunc := httpproxy.FromEnvironment().ProxyFunc()
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DisableKeepAlives: true,
			Proxy: func(req *http.Request) (*url.URL, error) {
				if isLocalHost(req.URL.Hostname()) {
					return nil, nil
				}
				return proxyFunc(req.URL)
			},
		},
	}
}

func isLocalHost(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast()
}

func (c *Client) GetDeviceDescription(ctx context.Context) (Device, error) {
	location := c.baseURL() + deviceDescriptionPath
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = defaultHTTPClient(5 * time.Second)
	}
	return fetchDeviceDescription(ctx, httpClient, location)
}
