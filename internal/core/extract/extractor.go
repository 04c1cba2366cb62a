// Package extract turns channel stream URLs into a deduplicated set of
// probeable literal IP endpoints. It performs no network access.
package extract

import (
	"net/netip"
	"net/url"
	"sort"
	"strings"

	"github.com/streamlens/streamlens/internal/core"
)

// Policy controls which literal addresses become probe candidates.
// Each flag toggles independently.
type Policy struct {
	ExcludeLocalhost     bool
	ExcludePrivateRanges bool
	IncludeIPv4          bool
	IncludeIPv6          bool
}

// DefaultPolicy probes public IPv4 literals and skips loopback.
func DefaultPolicy() Policy {
	return Policy{
		ExcludeLocalhost: true,
		IncludeIPv4:      true,
	}
}

var privateRanges = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

// Extract returns the unique literal-IP endpoints found in the channels'
// stream URLs, filtered by policy. Channels with absent or malformed URLs,
// or with domain-name hosts, contribute nothing. The result is sorted by
// address so identical input always yields identical output.
func Extract(channels []core.Channel, policy Policy) []core.Endpoint {
	seen := make(map[string]core.Endpoint)

	for _, ch := range channels {
		ep, ok := candidate(ch.URL, policy)
		if !ok {
			continue
		}
		seen[ep.Address] = ep
	}

	endpoints := make([]core.Endpoint, 0, len(seen))
	for _, ep := range seen {
		endpoints = append(endpoints, ep)
	}
	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].Address < endpoints[j].Address
	})

	return endpoints
}

func candidate(rawURL string, policy Policy) (core.Endpoint, bool) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return core.Endpoint{}, false
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return core.Endpoint{}, false
	}

	host := parsed.Hostname()
	if host == "" {
		return core.Endpoint{}, false
	}

	if policy.ExcludeLocalhost && strings.EqualFold(host, "localhost") {
		return core.Endpoint{}, false
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// Domain names are never probed here.
		return core.Endpoint{}, false
	}
	addr = addr.Unmap()

	if policy.ExcludeLocalhost && addr.IsLoopback() {
		return core.Endpoint{}, false
	}

	if addr.Is4() {
		if !policy.IncludeIPv4 {
			return core.Endpoint{}, false
		}
		if policy.ExcludePrivateRanges && inPrivateRange(addr) {
			return core.Endpoint{}, false
		}
		return core.Endpoint{Address: addr.String(), Family: core.FamilyIPv4}, true
	}

	if !policy.IncludeIPv6 {
		return core.Endpoint{}, false
	}
	return core.Endpoint{Address: addr.String(), Family: core.FamilyIPv6}, true
}

func inPrivateRange(addr netip.Addr) bool {
	for _, prefix := range privateRanges {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
