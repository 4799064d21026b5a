package cli

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/STop211650/sonosctl/internal/sonos"
	"github.com/spf13/cobra"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func httpResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func soapEnvelope(serviceURN, action, inner string) string {
	return `<?xml version="1.0"?><s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>` +
		`<u:` + action + `Response xmlns:u="` + serviceURN + `">` + inner + `</u:` + action + `Response>` +
		`</s:Body></s:Envelope>`
}

func upnpFault(code string) string {
	return `<?xml version="1.0"?><s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><s:Fault>` +
		`<faultcode>s:Client</faultcode><faultstring>UPnPError</faultstring><detail>` +
		`<UPnPError xmlns="urn:schemas-upnp-org:control-1-0"><errorCode>` + code + `</errorCode></UPnPError>` +
		`</detail></s:Fault></s:Body></s:Envelope>`
}

// fakeSpeaker answers every client the commands build. Without a topology
// GetZoneGroupState fails, so an --ip target is used as-is.
type fakeSpeaker struct {
	t        *testing.T
	topology string
	replies  map[string]string
	faults   map[string]string

	mu     sync.Mutex
	calls  []string
	hosts  []string
	bodies map[string]string
}

func useFakeSpeaker(t *testing.T) *fakeSpeaker {
	t.Helper()
	fs := &fakeSpeaker{t: t, replies: map[string]string{}, faults: map[string]string{}}
	stubSonosClient(t, fs)
	return fs
}

// stubSonosClient routes every client the command builds through rt.
func stubSonosClient(t *testing.T, rt http.RoundTripper) {
	t.Helper()
	orig := newSonosClient
	t.Cleanup(func() { newSonosClient = orig })
	newSonosClient = func(ip string, timeout time.Duration) *sonos.Client {
		return &sonos.Client{IP: ip, Port: 1400, HTTP: &http.Client{Timeout: timeout, Transport: rt}}
	}
}

func (f *fakeSpeaker) RoundTrip(r *http.Request) (*http.Response, error) {
	urn, action, ok := strings.Cut(strings.Trim(r.Header.Get("SOAPACTION"), `"`), "#")
	if !ok {
		f.t.Errorf("request without SOAPACTION: %s", r.URL)
		return httpResponse(http.StatusBadRequest, ""), nil
	}
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.calls = append(f.calls, action)
	f.hosts = append(f.hosts, r.URL.Hostname())
	if f.bodies == nil {
		f.bodies = map[string]string{}
	}
	f.bodies[action] = string(body)
	f.mu.Unlock()

	if action == "GetZoneGroupState" {
		if f.topology == "" {
			return httpResponse(http.StatusInternalServerError, ""), nil
		}
		return httpResponse(http.StatusOK, soapEnvelope(urn, action, "<ZoneGroupState><![CDATA["+f.topology+"]]></ZoneGroupState>")), nil
	}
	if code, ok := f.faults[action]; ok {
		return httpResponse(http.StatusInternalServerError, upnpFault(code)), nil
	}
	return httpResponse(http.StatusOK, soapEnvelope(urn, action, f.replies[action])), nil
}

// actions lists the calls made after target resolution.
func (f *fakeSpeaker) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c != "GetZoneGroupState" {
			out = append(out, c)
		}
	}
	return out
}

func runCmd(cmd *cobra.Command, args ...string) (string, error) {
	var out captureWriter
	cmd.SetOut(&out)
	cmd.SetErr(newDiscardWriter())
	cmd.SetArgs(args)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}
