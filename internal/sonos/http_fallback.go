package sonos

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

// maxReplayBody bounds how much of a request body is buffered so it can be
// sent a second time through curl.
const maxReplayBody = 2 << 20

// Some hosts (VPN clients, macOS local network privacy) let curl reach a
// speaker while Go's dialer times out. A timed-out request to a LAN address
// is replayed once through curl.
var curlRoundTripFunc = curlRoundTrip

func doRequest(ctx context.Context, httpClient *http.Client, req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err == nil || !shouldCurlFallback(req, err) {
		return resp, err
	}

	timeout := fallbackTimeout(ctx, httpClient.Timeout)
	slog.Debug("http: retrying through curl", "url", req.URL.String(), "timeout", timeout.String(), "err", err.Error())
	if body != nil {
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	resp, curlErr := curlRoundTripFunc(ctx, req, timeout)
	if curlErr != nil {
		return nil, fmt.Errorf("%w (curl fallback failed: %v)", err, curlErr)
	}
	return resp, nil
}

// bufferBody reads the request body into memory and rewires Body/GetBody so
// it can be sent more than once.
func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	b, err := io.ReadAll(io.LimitReader(req.Body, maxReplayBody+1))
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	if len(b) > maxReplayBody {
		return nil, fmt.Errorf("request body too large to replay: %d bytes", len(b))
	}
	req.Body = io.NopCloser(bytes.NewReader(b))
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(b)), nil }
	return b, nil
}

// fallbackTimeout is whichever is shorter of the client timeout and the time
// left on ctx, or 5s when neither is set.
func fallbackTimeout(ctx context.Context, clientTimeout time.Duration) time.Duration {
	timeout := clientTimeout
	if dl, ok := ctx.Deadline(); ok {
		if remain := time.Until(dl); remain > 0 && (timeout <= 0 || remain < timeout) {
			timeout = remain
		}
	}
	if timeout <= 0 {
		return 5 * time.Second
	}
	return timeout
}

func shouldCurlFallback(req *http.Request, err error) bool {
	if req.URL == nil || (req.URL.Scheme != "http" && req.URL.Scheme != "https") {
		return false
	}
	return isLocalHost(req.URL.Hostname()) && isTimeout(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "Client.Timeout exceeded")
}

func curlRoundTrip(ctx context.Context, req *http.Request, timeout time.Duration) (*http.Response, error) {
	curlPath, err := exec.LookPath("curl")
	if err != nil {
		return nil, err
	}

	secs := fmt.Sprintf("%.3f", timeout.Seconds())
	args := []string{
		"--silent", "--show-error", "--include",
		"--max-time", secs,
		"--connect-timeout", secs,
		"--request", req.Method,
		// Suppress "Expect: 100-continue" for bodies over 1KiB.
		"--header", "Expect:",
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			args = append(args, "--header", k+": "+v)
		}
	}

	cmd := exec.CommandContext(ctx, curlPath)
	if req.Body != nil && req.Body != http.NoBody {
		args = append(args, "--data-binary", "@-")
		cmd.Stdin = req.Body
	}
	cmd.Args = append(cmd.Args, append(args, req.URL.String())...)

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("curl: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("curl: %w", err)
	}
	return parseCurlResponse(out, req)
}

// parseCurlResponse reads the response curl printed with --include. Interim
// 1xx responses precede the final one and are skipped.
func parseCurlResponse(out []byte, req *http.Request) (*http.Response, error) {
	br := bufio.NewReader(bytes.NewReader(out))
	for {
		resp, err := http.ReadResponse(br, req)
		if err != nil {
			return nil, fmt.Errorf("parse curl response: %w", err)
		}
		if resp.StatusCode >= 100 && resp.StatusCode < 200 && resp.StatusCode != http.StatusSwitchingProtocols {
			continue
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("parse curl response: %w", err)
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))
		resp.ContentLength = int64(len(body))
		return resp, nil
	}
}
