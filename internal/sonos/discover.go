package sonos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants"
	"golang.org/x/time/rate"
)

type DiscoverOptions struct {
	Timeout          time.Duration
	IncludeInvisible bool
}

const (
	defaultDiscoverTimeout = 5 * time.Second
	maxTopologyCandidates  = 3
	scanWorkers            = 128
	scanProbesPerSecond    = 512
	scanProbeTimeout       = 250 * time.Millisecond
)

// Seams for tests.
var (
	ssdpDiscoverFunc              = ssdpDiscover
	scanAnySpeakerIPFunc          = scanAnySpeakerIP
	discoverViaTopologyFunc       = discoverViaTopology
	discoverViaTopologyFromIPFunc = discoverViaTopologyFromIP

	localIPv4AddrsFunc         = localIPv4Addrs
	isPortOpenFunc             = isPortOpen
	fetchDeviceDescriptionFunc = fetchDeviceDescription
	netInterfacesFunc          = net.Interfaces
	ifaceAddrsFunc             = func(iface net.Interface) ([]net.Addr, error) { return iface.Addrs() }
)

func Discover(ctx context.Context, opts DiscoverOptions) ([]Device, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultDiscoverTimeout
	}

	ssdpResults, err := ssdpDiscoverFunc(ctx, timeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Debug("discover: ssdp failed", "err", err.Error())
	}

	// Not every speaker answers M-SEARCH reliably, but any one of them knows
	// the whole household.
	out, err := discoverViaTopologyFunc(ctx, timeout, ssdpResults, opts.IncludeInvisible)
	if err == nil && len(out) > 0 {
		return out, nil
	}

	if anyIP, scanErr := scanAnySpeakerIPFunc(ctx, timeout); scanErr == nil && anyIP != "" {
		out, topErr := discoverViaTopologyFromIPFunc(ctx, timeout, anyIP, opts.IncludeInvisible)
		if topErr == nil && len(out) > 0 {
			return out, nil
		}
	} else if scanErr != nil {
		slog.Debug("discover: subnet scan failed", "err", scanErr.Error())
	}

	// Last resort: resolve each SSDP response directly.
	httpClient := defaultHTTPClient(timeout)
	byIP := map[string]Device{}
	for _, r := range ssdpResults {
		if r.Location == "" {
			continue
		}
		dev, err := fetchDeviceDescription(ctx, httpClient, r.Location)
		if err != nil || dev.IP == "" {
			continue
		}
		if dev.Name == "" {
			dev.Name = dev.IP
		}
		if dev.Model == "" {
			dev.Model = r.Model()
		}
		byIP[dev.IP] = dev
	}

	return sortDevices(byIP), nil
}

func devicesFromTopology(top Topology, includeInvisible bool) map[string]Device {
	byIP := map[string]Device{}
	for _, g := range top.Groups {
		for _, m := range g.Members {
			if !includeInvisible && !m.IsVisible {
				continue
			}
			name := strings.TrimSpace(m.Name)
			if name == "" {
				name = m.IP
			}
			byIP[m.IP] = Device{
				IP:       m.IP,
				Name:     name,
				UDN:      m.UUID,
				Location: m.Location,
			}
		}
	}
	return byIP
}

func discoverViaTopologyFromIP(ctx context.Context, timeout time.Duration, ip string, includeInvisible bool) ([]Device, error) {
	top, err := NewClient(ip, timeout).GetTopology(ctx)
	if err != nil {
		return nil, err
	}
	return sortDevices(devicesFromTopology(top, includeInvisible)), nil
}

func discoverViaTopology(ctx context.Context, timeout time.Duration, results []SSDPResponse, includeInvisible bool) ([]Device, error) {
	candidates := make([]string, 0, len(results))
	seen := map[string]struct{}{}
	for _, r := range results {
		ip, err := hostToIP(r.Location)
		if err != nil || ip == "" {
			continue
		}
		if _, ok := seen[ip]; ok {
			continue
		}
		seen[ip] = struct{}{}
		candidates = append(candidates, ip)
	}
	if len(candidates) == 0 {
		return nil, errors.New("no ssdp candidates")
	}
	sort.Strings(candidates)

	// A speaker that just rebooted can report a partial household, so ask a
	// few and keep the largest view.
	var best map[string]Device
	asked := 0
	for _, ip := range candidates {
		if asked == maxTopologyCandidates {
			break
		}
		top, err := NewClient(ip, timeout).GetTopology(ctx)
		if err != nil {
			slog.Debug("discover: topology failed", "ip", ip, "err", err.Error())
			continue
		}
		asked++
		best = preferDeviceSet(best, devicesFromTopology(top, includeInvisible))
	}
	if len(best) == 0 {
		return nil, errors.New("topology discovery failed")
	}
	return sortDevices(best), nil
}

// preferDeviceSet keeps the larger of two views; equal-sized views are merged
// without overwriting entries already in best.
func preferDeviceSet(best, candidate map[string]Device) map[string]Device {
	switch {
	case len(candidate) > len(best):
		return candidate
	case len(candidate) < len(best):
		return best
	}
	for ip, d := range candidate {
		if _, ok := best[ip]; !ok {
			best[ip] = d
		}
	}
	return best
}

func sortDevices(byIP map[string]Device) []Device {
	out := make([]Device, 0, len(byIP))
	for _, d := range byIP {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].IP < out[j].IP
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// scanAnySpeakerIP probes every /24 the host is attached to for port 1400
// and returns the first address that serves a Sonos device description.
func scanAnySpeakerIP(ctx context.Context, timeout time.Duration) (string, error) {
	addrs, err := localIPv4AddrsFunc()
	if err != nil {
		return "", err
	}
	candidates := subnetCandidates(addrs)
	if len(candidates) == 0 {
		return "", errors.New("no local IPv4 addresses found")
	}

	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := ants.NewPool(scanWorkers)
	if err != nil {
		return "", err
	}
	defer pool.Release()

	limiter := rate.NewLimiter(rate.Limit(scanProbesPerSecond), scanWorkers)
	httpClient := defaultHTTPClient(2 * time.Second)
	found := make(chan string, 1)

	var wg sync.WaitGroup
	for _, ip := range candidates {
		if err := limiter.Wait(scanCtx); err != nil {
			break
		}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if scanCtx.Err() != nil || !isPortOpenFunc(ip, defaultPort, scanProbeTimeout) {
				return
			}
			location := fmt.Sprintf("http://%s:%d%s", ip, defaultPort, deviceDescriptionPath)
			if _, err := fetchDeviceDescriptionFunc(scanCtx, httpClient, location); err != nil {
				return
			}
			select {
			case found <- ip:
				cancel()
			default:
			}
		})
		if err != nil {
			wg.Done()
			break
		}
	}
	wg.Wait()

	select {
	case ip := <-found:
		return ip, nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", errors.New("no sonos speakers found on local subnets")
}

func subnetCandidates(addrs []net.IP) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, ip := range addrs {
		prefix := ipTo24Prefix(ip)
		if prefix == "" {
			continue
		}
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		for host := 1; host <= 254; host++ {
			out = append(out, fmt.Sprintf("%s.%d", prefix, host))
		}
	}
	return out
}

func localIPv4Addrs() ([]net.IP, error) {
	ifaces, err := netInterfacesFunc()
	if err != nil {
		return nil, err
	}
	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifaceAddrsFunc(iface)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok || ipNet.IP == nil {
				continue
			}
			if ip4 := ipNet.IP.To4(); ip4 != nil {
				ips = append(ips, ip4)
			}
		}
	}
	return ips, nil
}

func ipTo24Prefix(ip net.IP) string {
	ip4 := ip.To4()
	if ip4 == nil {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d", ip4[0], ip4[1], ip4[2])
}

func isPortOpen(ip string, port int, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.Dial("tcp", net.JoinHostPort(ip, fmt.Sprint(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
