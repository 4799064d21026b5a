package sonos

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/ipv4"
)

const (
	ssdpMulticastAddr = "239.255.255.250:1900"
	ssdpSendRepeats   = 3
)

// SSDPResponse is the interesting subset of an M-SEARCH reply.
type SSDPResponse struct {
	Location string
	USN      string
	ST       string
	Server   string
}

// Model extracts the hardware model Sonos reports in the SERVER header,
// e.g. "Linux UPnP/1.0 Sonos/83.1-12345 (ZPS3)" -> "ZPS3".
func (r SSDPResponse) Model() string {
	open := strings.LastIndexByte(r.Server, '(')
	end := strings.LastIndexByte(r.Server, ')')
	if open < 0 || end <= open {
		return ""
	}
	return strings.TrimSpace(r.Server[open+1 : end])
}

// UDN returns the RINCON_ identifier from the USN header.
func (r SSDPResponse) UDN() string {
	usn := strings.TrimPrefix(strings.TrimSpace(r.USN), "uuid:")
	if i := strings.Index(usn, "::"); i >= 0 {
		usn = usn[:i]
	}
	return usn
}

func (r SSDPResponse) isZonePlayer() bool {
	return strings.Contains(r.ST, "ZonePlayer") || strings.Contains(strings.ToLower(r.Server), "sonos")
}

func ssdpSearchPayload() []byte {
	return []byte(strings.Join([]string{
		"M-SEARCH * HTTP/1.1",
		"HOST: " + ssdpMulticastAddr,
		`MAN: "ssdp:discover"`,
		"MX: 1",
		"ST: " + zonePlayerDeviceType,
		"", "",
	}, "\r\n"))
}

// ssdpListen sends M-SEARCH and hands every parsed reply to found until ctx
// ends. With resend > 0 the query is repeated at that interval. The returned
// error is ctx.Err() on a normal stop.
func ssdpListen(ctx context.Context, resend time.Duration, found func(SSDPResponse)) error {
	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	dst, err := net.ResolveUDPAddr("udp4", ssdpMulticastAddr)
	if err != nil {
		return err
	}
	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetMulticastTTL(2); err != nil {
		slog.Debug("ssdp: set multicast ttl", "err", err.Error())
	}

	payload := ssdpSearchPayload()
	send := func() error {
		// UDP is unreliable, send multiple times.
		for i := 0; i < ssdpSendRepeats; i++ {
			if _, err := pc.WriteTo(payload, nil, dst); err != nil {
				return err
			}
		}
		return nil
	}
	if err := send(); err != nil {
		return err
	}
	nextSend := time.Now().Add(resend)

	buf := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if resend > 0 && time.Now().After(nextSend) {
			if err := send(); err != nil {
				slog.Debug("ssdp: resend failed", "err", err.Error())
			}
			nextSend = time.Now().Add(resend)
		}

		_ = pc.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, _, _, err := pc.ReadFrom(buf)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			return err
		}
		res, ok := parseSSDPResponse(buf[:n])
		if !ok || res.Location == "" {
			continue
		}
		found(res)
	}
}

func ssdpDiscover(ctx context.Context, timeout time.Duration) ([]SSDPResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	byLocation := map[string]SSDPResponse{}
	err := ssdpListen(ctx, 0, func(r SSDPResponse) {
		byLocation[r.Location] = r
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	out := make([]SSDPResponse, 0, len(byLocation))
	for _, v := range byLocation {
		out = append(out, v)
	}
	return out, nil
}

func parseSSDPResponse(b []byte) (SSDPResponse, bool) {
	// HTTP-like, CRLF line endings.
	s := bufio.NewScanner(bytes.NewReader(b))
	s.Split(bufio.ScanLines)

	if !s.Scan() {
		return SSDPResponse{}, false
	}
	first := strings.TrimSpace(s.Text())
	if !strings.HasPrefix(first, "HTTP/") {
		return SSDPResponse{}, false
	}

	headers := map[string]string{}
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			break
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	return SSDPResponse{
		Location: headers["location"],
		USN:      headers["usn"],
		ST:       headers["st"],
		Server:   headers["server"],
	}, true
}

func hostToIP(location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("location host missing: %q", location)
	}
	return host, nil
}
