// Package recon implements subnet discovery for the agent: an ICMP sweep of
// a CIDR, merged with the host's ARP cache and enriched with reverse DNS,
// mDNS and (optionally) SNMP identity.
package recon

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/lanwatch/pkg/models"
)

// MDNSHost is a host learned from an mDNS announcement.
type MDNSHost struct {
	Hostname   string
	DeviceType models.DeviceType
}

// ScanConfig controls a subnet sweep.
type ScanConfig struct {
	Concurrency   int
	Timeout       time.Duration
	MaxHosts      int
	MDNS          bool
	MDNSTimeout   time.Duration
	SNMPCommunity string
}

// DefaultScanConfig returns sweep settings suitable for a /24.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		Concurrency: 64,
		Timeout:     time.Second,
		MaxHosts:    1024,
		MDNS:        true,
		MDNSTimeout: time.Second,
	}
}

type (
	pingFunc       func(ctx context.Context, ip string) (rtt time.Duration, alive bool, err error)
	arpFunc        func(ctx context.Context) (map[string]string, error)
	lookupAddrFunc func(ctx context.Context, ip string) ([]string, error)
)

type hostLookup interface {
	Lookup(ctx context.Context) map[string]MDNSHost
}

type snmpQuerier interface {
	Query(ctx context.Context, ip string) (*SNMPInfo, error)
}

// Scanner discovers live hosts in a CIDR.
type Scanner struct {
	cfg    ScanConfig
	logger *zap.Logger

	ping       pingFunc
	arp        arpFunc
	lookupAddr lookupAddrFunc
	mdns       hostLookup
	snmp       snmpQuerier
}

// NewScanner creates a Scanner. Zero-valued settings fall back to DefaultScanConfig.
func NewScanner(cfg ScanConfig, logger *zap.Logger) *Scanner {
	def := DefaultScanConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxHosts <= 0 {
		cfg.MaxHosts = def.MaxHosts
	}
	if cfg.MDNSTimeout <= 0 {
		cfg.MDNSTimeout = def.MDNSTimeout
	}

	s := &Scanner{
		cfg:        cfg,
		logger:     logger,
		arp:        ReadARPTable,
		lookupAddr: net.DefaultResolver.LookupAddr,
	}
	s.ping = s.pingOnce
	if cfg.MDNS {
		s.mdns = NewMDNSResolver(logger.Named("mdns"), cfg.MDNSTimeout)
	}
	if cfg.SNMPCommunity != "" {
		s.snmp = NewSNMPEnricher(cfg.SNMPCommunity, cfg.Timeout)
	}
	return s
}

// Discover sweeps cidr and returns the live hosts sorted by address.
// Enrichment failures for a single host are logged and that host is skipped.
func (s *Scanner) Discover(ctx context.Context, cidr string) ([]models.DiscoveredDevice, error) {
	hosts, err := HostsInCIDR(cidr, s.cfg.MaxHosts)
	if err != nil {
		return nil, err
	}
	prefix := netip.MustParsePrefix(cidr).Masked()

	start := time.Now()
	alive, sweepErr := s.sweep(ctx, hosts)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	methods := make(map[string]models.DiscoveryMethod, len(alive))
	for ip := range alive {
		methods[ip] = models.DiscoveryICMP
	}

	arpTable, err := s.arp(ctx)
	if err != nil {
		s.logger.Debug("ARP table unavailable", zap.Error(err))
	}
	for ip := range arpTable {
		addr, perr := netip.ParseAddr(ip)
		if perr != nil || !prefix.Contains(addr) {
			continue
		}
		if _, ok := alive[ip]; !ok {
			alive[ip] = nil
			methods[ip] = models.DiscoveryARP
		}
	}

	if len(alive) == 0 && sweepErr != nil {
		return nil, fmt.Errorf("sweep %s: %w", cidr, sweepErr)
	}

	var announced map[string]MDNSHost
	if s.mdns != nil {
		announced = s.mdns.Lookup(ctx)
	}

	ips := make([]netip.Addr, 0, len(alive))
	for ip := range alive {
		ips = append(ips, netip.MustParseAddr(ip))
	}
	slices.SortFunc(ips, func(a, b netip.Addr) int { return a.Compare(b) })

	devices := make([]models.DiscoveredDevice, 0, len(ips))
	for _, addr := range ips {
		ip := addr.String()
		dev, err := s.describe(ctx, ip, alive[ip], methods[ip], arpTable[ip], announced)
		if err != nil {
			s.logger.Warn("skipping discovered host",
				zap.String("ip", ip),
				zap.Error(err),
			)
			continue
		}
		devices = append(devices, *dev)
	}

	s.logger.Info("subnet sweep complete",
		zap.String("cidr", cidr),
		zap.Int("hosts_probed", len(hosts)),
		zap.Int("devices_found", len(devices)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return devices, nil
}

// sweep pings every host with bounded concurrency. It returns the responders
// with their RTT and the first probe error seen, if any.
func (s *Scanner) sweep(ctx context.Context, hosts []netip.Addr) (map[string]*float64, error) {
	var (
		mu       sync.Mutex
		alive    = make(map[string]*float64)
		firstErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, h := range hosts {
		ip := h.String()
		g.Go(func() error {
			rtt, ok, err := s.ping(gctx, ip)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return nil
			}
			if ok {
				ms := float64(rtt) / float64(time.Millisecond)
				alive[ip] = &ms
			}
			return nil
		})
	}
	_ = g.Wait()
	return alive, firstErr
}

func (s *Scanner) describe(ctx context.Context, ip string, rtt *float64, method models.DiscoveryMethod,
	mac string, announced map[string]MDNSHost) (*models.DiscoveredDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dev := &models.DiscoveredDevice{
		IPAddress:       ip,
		MACAddress:      mac,
		DeviceType:      models.DeviceTypeUnknown,
		ResponseTimeMs:  rtt,
		DiscoveryMethod: method,
	}

	if h, ok := announced[ip]; ok {
		dev.Hostname = h.Hostname
		dev.DeviceType = h.DeviceType
		if method == models.DiscoveryARP {
			dev.DiscoveryMethod = models.DiscoverymDNS
		}
	}

	if dev.Hostname == "" {
		lookupCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		names, err := s.lookupAddr(lookupCtx, ip)
		cancel()
		if err == nil && len(names) > 0 {
			dev.Hostname = strings.TrimSuffix(names[0], ".")
		}
	}

	if s.snmp != nil {
		info, err := s.snmp.Query(ctx, ip)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			s.logger.Debug("SNMP query failed", zap.String("ip", ip), zap.Error(err))
		default:
			if dev.Hostname == "" {
				dev.Hostname = info.SysName
			}
			dev.Description = info.SysDescr
		}
	}

	return dev, nil
}

// pingOnce sends a single echo request to ip using pro-bing.
func (s *Scanner) pingOnce(ctx context.Context, ip string) (time.Duration, bool, error) {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		return 0, false, fmt.Errorf("create pinger: %w", err)
	}
	pinger.Count = 1
	pinger.Timeout = s.cfg.Timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case err := <-done:
		if err != nil {
			return 0, false, err
		}
		stats := pinger.Statistics()
		return stats.AvgRtt, stats.PacketsRecv > 0, nil
	case <-ctx.Done():
		pinger.Stop()
		<-done
		return 0, false, ctx.Err()
	}
}
