package restarter

import "testing"

func TestDetect_ReturnsNamedRestarter(t *testing.T) {
	r := Detect()
	if r == nil {
		t.Fatal("Detect() returned nil, expected a Restarter")
	}
	if r.Name() == "" {
		t.Error("Name() returned empty string")
	}
	t.Logf("detected restarter: %s", r.Name())
}
