//go:build !windows

package recon

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"

	"github.com/HerbHall/lanwatch/pkg/models"
)

// mdnsDefaultServices lists well-known mDNS service types to query.
var mdnsDefaultServices = []string{
	"_http._tcp",
	"_ssh._tcp",
	"_smb._tcp",
	"_ipp._tcp",
	"_printer._tcp",
	"_airplay._tcp",
	"_googlecast._tcp",
	"_hap._tcp",
	"_workstation._tcp",
}

// MDNSResolver collects hostnames announced over mDNS/Bonjour so discovery
// can name hosts that have no reverse DNS entry.
type MDNSResolver struct {
	logger  *zap.Logger
	timeout time.Duration
}

// NewMDNSResolver creates a resolver that waits timeout per service query.
func NewMDNSResolver(logger *zap.Logger, timeout time.Duration) *MDNSResolver {
	return &MDNSResolver{
		logger:  logger,
		timeout: timeout,
	}
}

// Lookup queries each known service type and returns announced hosts keyed by IPv4 address.
func (r *MDNSResolver) Lookup(ctx context.Context) map[string]MDNSHost {
	hosts := make(map[string]MDNSHost)
	for _, svc := range mdnsDefaultServices {
		if ctx.Err() != nil {
			break
		}
		r.queryService(svc, hosts)
	}
	r.logger.Debug("mDNS lookup complete", zap.Int("hosts", len(hosts)))
	return hosts
}

// queryService queries a single mDNS service type and merges results into hosts.
func (r *MDNSResolver) queryService(service string, hosts map[string]MDNSHost) {
	entries := make(chan *mdns.ServiceEntry, 16)

	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			ip := extractIP(entry)
			if ip == "" {
				continue
			}
			hostname := strings.TrimSuffix(entry.Host, ".")
			if hostname == "" {
				hostname = entry.Name
			}
			mu.Lock()
			if _, seen := hosts[ip]; !seen {
				hosts[ip] = MDNSHost{
					Hostname:   strings.TrimSuffix(hostname, ".local"),
					DeviceType: inferDeviceTypeFromService(service),
				}
			}
			mu.Unlock()
		}
	}()

	params := mdns.DefaultParams(service)
	params.Timeout = r.timeout
	params.Entries = entries
	params.DisableIPv6 = true

	if err := mdns.Query(params); err != nil {
		r.logger.Debug("mDNS query failed",
			zap.String("service", service),
			zap.Error(err),
		)
	}
	close(entries)
	wg.Wait()
}

// extractIP returns the best IP address from an mDNS service entry.
func extractIP(entry *mdns.ServiceEntry) string {
	if entry == nil {
		return ""
	}
	if entry.AddrV4 != nil && !entry.AddrV4.IsUnspecified() {
		return entry.AddrV4.String()
	}
	// Fallback to deprecated Addr field for older mDNS implementations.
	if entry.Addr != nil && !entry.Addr.IsUnspecified() && entry.Addr.To4() != nil {
		return entry.Addr.String()
	}
	return ""
}

// inferDeviceTypeFromService guesses the device type from the mDNS service name.
func inferDeviceTypeFromService(service string) models.DeviceType {
	switch {
	case strings.Contains(service, "printer") || strings.Contains(service, "ipp"):
		return models.DeviceTypePrinter
	case strings.Contains(service, "airplay") || strings.Contains(service, "googlecast") ||
		strings.Contains(service, "hap"):
		return models.DeviceTypeIoT
	case strings.Contains(service, "workstation") || strings.Contains(service, "smb"):
		return models.DeviceTypeDesktop
	case strings.Contains(service, "ssh"):
		return models.DeviceTypeServer
	default:
		return models.DeviceTypeUnknown
	}
}
