//go:build windows

package recon

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// MDNSResolver is a no-op stub on Windows where multicast DNS is not
// reliably supported.
type MDNSResolver struct{}

// NewMDNSResolver returns a no-op mDNS resolver on Windows.
func NewMDNSResolver(_ *zap.Logger, _ time.Duration) *MDNSResolver {
	return &MDNSResolver{}
}

// Lookup always returns an empty map on Windows.
func (r *MDNSResolver) Lookup(_ context.Context) map[string]MDNSHost {
	return map[string]MDNSHost{}
}
