package recon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

const (
	oidSysDescr = ".1.3.6.1.2.1.1.1.0"
	oidSysName  = ".1.3.6.1.2.1.1.5.0"
)

// SNMPInfo is the identity a device reports over SNMP.
type SNMPInfo struct {
	SysName  string
	SysDescr string
}

// SNMPEnricher queries discovered hosts for sysName and sysDescr using SNMP v2c.
type SNMPEnricher struct {
	community string
	timeout   time.Duration
}

// NewSNMPEnricher returns an enricher using the given read community.
func NewSNMPEnricher(community string, timeout time.Duration) *SNMPEnricher {
	return &SNMPEnricher{community: community, timeout: timeout}
}

// Query fetches the system group identity of ip.
func (e *SNMPEnricher) Query(ctx context.Context, ip string) (*SNMPInfo, error) {
	g := &gosnmp.GoSNMP{
		Target:    ip,
		Port:      161,
		Community: e.community,
		Version:   gosnmp.Version2c,
		Timeout:   e.timeout,
		Retries:   0,
		Context:   ctx,
	}
	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s: %w", ip, err)
	}
	defer g.Conn.Close()

	pkt, err := g.Get([]string{oidSysDescr, oidSysName})
	if err != nil {
		return nil, fmt.Errorf("snmp get %s: %w", ip, err)
	}
	return snmpInfoFromPDUs(pkt.Variables), nil
}

func snmpInfoFromPDUs(vars []gosnmp.SnmpPDU) *SNMPInfo {
	info := &SNMPInfo{}
	for _, v := range vars {
		if v.Type != gosnmp.OctetString {
			continue
		}
		raw, ok := v.Value.([]byte)
		if !ok {
			continue
		}
		val := strings.TrimSpace(string(raw))
		switch v.Name {
		case oidSysDescr:
			info.SysDescr = val
		case oidSysName:
			info.SysName = val
		}
	}
	return info
}
