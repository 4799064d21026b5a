package sonos

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func httpResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     make(http.Header),
	}
}

// soapEnvelope renders a successful response for action with inner as the
// content of the response element.
func soapEnvelope(serviceURN, action, inner string) string {
	return `<?xml version="1.0"?><s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>` +
		`<u:` + action + `Response xmlns:u="` + serviceURN + `">` + inner + `</u:` + action + `Response>` +
		`</s:Body></s:Envelope>`
}

// fakeSpeaker answers SOAP actions over HTTP. Actions without a configured
// reply get an empty success response; faults map an action to a UPnP error
// code.
type fakeSpeaker struct {
	t       *testing.T
	replies map[string]string
	faults  map[string]string

	mu     sync.Mutex
	calls  []string
	paths  []string
	bodies map[string]string
}

func (f *fakeSpeaker) RoundTrip(r *http.Request) (*http.Response, error) {
	header := strings.Trim(r.Header.Get("SOAPACTION"), `"`)
	urn, action, ok := strings.Cut(header, "#")
	if !ok || r.Method != http.MethodPost {
		f.t.Errorf("not a SOAP request: %s %q", r.Method, header)
		return httpResponse(http.StatusBadRequest, ""), nil
	}
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.calls = append(f.calls, action)
	f.paths = append(f.paths, r.URL.Path)
	if f.bodies == nil {
		f.bodies = map[string]string{}
	}
	f.bodies[action] = string(body)
	f.mu.Unlock()

	if code, ok := f.faults[action]; ok {
		return httpResponse(http.StatusInternalServerError, upnpFault(code, "")), nil
	}
	return httpResponse(http.StatusOK, soapEnvelope(urn, action, f.replies[action])), nil
}

func (f *fakeSpeaker) client() *Client {
	return &Client{
		IP:   "192.0.2.1",
		Port: 1400,
		HTTP: &http.Client{Timeout: time.Second, Transport: f},
	}
}

// swap replaces *p with v for the duration of the test.
func swap[T any](t *testing.T, p *T, v T) {
	t.Helper()
	orig := *p
	t.Cleanup(func() { *p = orig })
	*p = v
}
