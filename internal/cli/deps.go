package cli

import (
	"context"
	"time"

	"github.com/STop211650/sonosctl/internal/sonos"
)

// Dependency injection points for tests.
var (
	newSonosClient = func(ip string, timeout time.Duration) *sonos.Client {
		return sonos.NewClient(ip, timeout)
	}
	sonosDiscover = sonos.Discover
	searchFunc    = sonos.Search
)

func discoverOptions(flags *rootFlags, includeInvisible bool) sonos.DiscoverOptions {
	return sonos.DiscoverOptions{Timeout: flags.Timeout, IncludeInvisible: includeInvisible}
}

func coordinatorClient(ctx context.Context, flags *rootFlags) (*sonos.Client, error) {
	ip, err := resolveTargetCoordinatorIP(ctx, flags)
	if err != nil {
		return nil, err
	}
	return newSonosClient(ip, flags.Timeout), nil
}
