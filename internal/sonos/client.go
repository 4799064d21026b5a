package sonos

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const defaultPort = 1400

type Client struct {
	IP   string
	Port int
	HTTP *http.Client

	// Requester overrides HTTP dispatch of SOAP actions when set.
	Requester Requester
}

func NewClient(ip string, timeout time.Duration) *Client {
	return &Client{
		IP:   ip,
		Port: defaultPort,
		HTTP: defaultHTTPClient(timeout),
	}
}

func (c *Client) baseURL() string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("http://%s:%d", c.IP, port)
}

func (c *Client) requester() Requester {
	if c.Requester != nil {
		return c.Requester
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = defaultHTTPClient(5 * time.Second)
	}
	return httpRequester{httpClient: httpClient, baseURL: c.baseURL()}
}

func (c *Client) soapCall(ctx context.Context, svc service, action string, args []Arg) (map[string]string, error) {
	return c.requester().Request(ctx, newRequest(svc, action, args))
}
