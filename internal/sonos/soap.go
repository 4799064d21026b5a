package sonos

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type UPnPError struct {
	Code        string
	Description string
}

func (e *UPnPError) Error() string {
	if e.Description == "" {
		return "upnp error " + e.Code
	}
	return fmt.Sprintf("upnp error %s: %s", e.Code, e.Description)
}

// Arg is a single action argument. Speakers expect arguments in the order the
// service declares them, so callers pass a slice rather than a map.
type Arg struct {
	Name  string
	Value string
	// Raw sends Value verbatim. The caller is responsible for it being valid
	// element content.
	Raw bool
}

func (a Arg) content() string {
	if a.Raw {
		return a.Value
	}
	return xmlEscapeText(a.Value)
}

// Request is one SOAP action ready for dispatch.
//
// Body holds only the action element (<u:Play xmlns:u="...">...</u:Play>);
// the envelope is added by the HTTP requester.
type Request struct {
	Endpoint    string
	Action      string
	Body        string
	ResponseTag string
}

// Requester dispatches a Request and returns the direct children of the
// action response element.
type Requester interface {
	Request(ctx context.Context, req Request) (map[string]string, error)
}

type RequesterFunc func(ctx context.Context, req Request) (map[string]string, error)

func (f RequesterFunc) Request(ctx context.Context, req Request) (map[string]string, error) {
	return f(ctx, req)
}

func newRequest(svc service, action string, args []Arg) Request {
	return Request{
		Endpoint:    svc.control,
		Action:      fmt.Sprintf("%q", svc.urn+"#"+action),
		Body:        buildActionBody(svc.urn, action, args),
		ResponseTag: "u:" + action + "Response",
	}
}

const maxResponseBody = 4 << 20

// httpRequester posts requests to a speaker's control endpoints.
type httpRequester struct {
	httpClient *http.Client
	baseURL    string
}

func (h httpRequester) Request(ctx context.Context, r Request) (map[string]string, error) {
	endpointURL := h.baseURL + r.Endpoint
	body := buildSOAPEnvelope(r.Body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPACTION", r.Action)

	start := time.Now()
	slog.Debug("soap: request", "action", r.Action, "endpoint", endpointURL)
	resp, err := doRequest(ctx, h.httpClient, req)
	if err != nil {
		slog.Debug("soap: request failed", "action", r.Action, "endpoint", endpointURL, "elapsed", time.Since(start).String(), "err", err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, err
	}
	slog.Debug("soap: response", "action", r.Action, "status", resp.StatusCode, "bytes", len(raw), "elapsed", time.Since(start).String())

	switch resp.StatusCode {
	case http.StatusOK:
		return parseSOAPResponse(raw)
	case http.StatusInternalServerError:
		if upnpErr, ok := parseUPnPError(raw); ok {
			return nil, upnpErr
		}
	}
	return nil, fmt.Errorf("soap http %s", resp.Status)
}

// buildActionBody renders the action element with args in order. Values are
// entity-escaped.
func buildActionBody(serviceURN, action string, args []Arg) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<u:%s xmlns:u="%s">`, action, xmlEscapeText(serviceURN))
	for _, a := range args {
		tag := xmlEscapeTag(a.Name)
		fmt.Fprintf(&b, "<%s>%s</%s>", tag, a.content(), tag)
	}
	fmt.Fprintf(&b, "</u:%s>", action)
	return b.String()
}

const (
	soapEnvNS        = "http://schemas.xmlsoap.org/soap/envelope/"
	soapEnvelopeHead = `<?xml version="1.0"?><s:Envelope xmlns:s="` + soapEnvNS + `" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/"><s:Body>`
	soapEnvelopeTail = `</s:Body></s:Envelope>`
)

func buildSOAPEnvelope(actionBody string) []byte {
	return []byte(soapEnvelopeHead + actionBody + soapEnvelopeTail)
}

// parseSOAPResponse collects the text of each direct child of the action
// response element inside <s:Body>. Deeper elements are ignored.
func parseSOAPResponse(raw []byte) (map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	out := map[string]string{}

	// depth is -1 outside the body, 1 on the response element and 2 on its
	// children.
	depth := -1
	var field string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth < 0 {
				if t.Name.Space == soapEnvNS && t.Name.Local == "Body" {
					depth = 0
				}
				continue
			}
			depth++
			if depth == 2 {
				field = t.Name.Local
				out[field] = ""
			}
		case xml.EndElement:
			if depth < 0 {
				continue
			}
			if depth == 2 {
				field = ""
			}
			depth--
		case xml.CharData:
			if depth == 2 && field != "" {
				out[field] += string(t)
			}
		}
	}
}

type soapFault struct {
	Body struct {
		Fault struct {
			Detail struct {
				UPnPError struct {
					Code        string `xml:"errorCode"`
					Description string `xml:"errorDescription"`
				} `xml:"UPnPError"`
			} `xml:"detail"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

// parseUPnPError extracts the UPnPError detail of a SOAP fault.
func parseUPnPError(raw []byte) (*UPnPError, bool) {
	var f soapFault
	if err := xml.Unmarshal(raw, &f); err != nil {
		return nil, false
	}
	detail := f.Body.Fault.Detail.UPnPError
	code := strings.TrimSpace(detail.Code)
	desc := strings.TrimSpace(detail.Description)
	if code == "" && desc == "" {
		return nil, false
	}
	return &UPnPError{Code: code, Description: desc}, true
}

var xmlEntities = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// xmlEscapeText escapes the characters that matter inside element text and
// double-quoted attributes. Spaces and other printable runes pass through, so
// URIs like ".../Do You Mind.mp3" reach the speaker as written.
func xmlEscapeText(s string) string {
	return xmlEntities.Replace(s)
}

// EscapeXML entity-escapes s for use as element text, e.g. DIDL-Lite
// metadata handed to PlayTrack, which sends metadata unescaped.
func EscapeXML(s string) string {
	return xmlEscapeText(s)
}

func xmlEscapeTag(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return r
		case r >= 'a' && r <= 'z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '_' || r == '-':
			return r
		default:
			return -1
		}
	}, s)
}
