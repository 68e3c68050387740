package recon

import (
	"testing"

	"github.com/gosnmp/gosnmp"
)

func TestSNMPInfoFromPDUs(t *testing.T) {
	vars := []gosnmp.SnmpPDU{
		{Name: oidSysDescr, Type: gosnmp.OctetString, Value: []byte("RouterOS RB4011 ")},
		{Name: oidSysName, Type: gosnmp.OctetString, Value: []byte("core-router")},
		{Name: ".1.3.6.1.2.1.1.3.0", Type: gosnmp.TimeTicks, Value: uint32(1234)},
		{Name: oidSysName, Type: gosnmp.NoSuchObject},
	}

	info := snmpInfoFromPDUs(vars)
	if info.SysDescr != "RouterOS RB4011" {
		t.Errorf("SysDescr = %q, want trimmed descr", info.SysDescr)
	}
	if info.SysName != "core-router" {
		t.Errorf("SysName = %q, want core-router", info.SysName)
	}
}

func TestSNMPInfoFromPDUs_Empty(t *testing.T) {
	info := snmpInfoFromPDUs(nil)
	if info.SysName != "" || info.SysDescr != "" {
		t.Errorf("info = %+v, want empty", info)
	}
}
