package recon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// ReadARPTable returns the host's neighbour cache as IP -> MAC. On Linux the
// kernel table is read directly; elsewhere the arp command is used.
func ReadARPTable(ctx context.Context) (map[string]string, error) {
	switch runtime.GOOS {
	case "linux":
		raw, err := os.ReadFile("/proc/net/arp")
		if err != nil {
			return nil, fmt.Errorf("read /proc/net/arp: %w", err)
		}
		return ParseARPOutput(string(raw), "linux"), nil
	case "windows":
		out, err := exec.CommandContext(ctx, "arp", "-a").Output()
		if err != nil {
			return nil, fmt.Errorf("arp -a: %w", err)
		}
		return ParseARPOutput(string(out), "windows"), nil
	case "darwin", "freebsd":
		out, err := exec.CommandContext(ctx, "arp", "-an").Output()
		if err != nil {
			return nil, fmt.Errorf("arp -an: %w", err)
		}
		return ParseARPOutput(string(out), "darwin"), nil
	default:
		return map[string]string{}, nil
	}
}

// ParseARPOutput parses neighbour-table text in the given platform's format.
// Incomplete, zero and broadcast entries are skipped; MACs are normalized to
// upper-case colon-separated form.
func ParseARPOutput(output, platform string) map[string]string {
	table := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		var ip, mac string

		switch platform {
		case "linux":
			// IP address  HW type  Flags  HW address  Mask  Device
			if len(fields) < 6 || fields[0] == "IP" || fields[2] == "0x0" {
				continue
			}
			ip, mac = fields[0], fields[3]
		case "windows":
			if len(fields) < 3 || (fields[2] != "dynamic" && fields[2] != "static") {
				continue
			}
			ip, mac = fields[0], fields[1]
		case "darwin":
			// ? (192.168.1.1) at aa:bb:cc:dd:ee:ff on en0 ...
			if len(fields) < 4 || fields[2] != "at" {
				continue
			}
			ip = strings.Trim(fields[1], "()")
			mac = fields[3]
		default:
			return table
		}

		mac = normalizeMAC(mac)
		if mac == "" || mac == "00:00:00:00:00:00" || mac == "FF:FF:FF:FF:FF:FF" {
			continue
		}
		table[ip] = mac
	}
	return table
}

// normalizeMAC converts any common MAC notation to AA:BB:CC:DD:EE:FF.
// Returns empty string if mac is not a 6-octet address.
func normalizeMAC(mac string) string {
	mac = strings.ReplaceAll(mac, "-", ":")
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return ""
	}
	for i, p := range parts {
		if len(p) == 0 || len(p) > 2 {
			return ""
		}
		if len(p) == 1 {
			p = "0" + p
		}
		parts[i] = strings.ToUpper(p)
	}
	return strings.Join(parts, ":")
}
