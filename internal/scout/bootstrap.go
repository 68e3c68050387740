package scout

import (
	"context"

	"go.uber.org/zap"

	"github.com/HerbHall/lanwatch/internal/recon"
	"github.com/HerbHall/lanwatch/pkg/models"
)

// bootstrap registers the host's primary network as a segment when the agent
// starts with auto-scan on and nothing assigned. It runs once after a short
// warm-up so the first heartbeat can deliver existing assignments.
func (a *Agent) bootstrap(ctx context.Context) error {
	if !a.config.AutoScan {
		return nil
	}
	if !sleep(ctx, a.warmUp) {
		return nil
	}
	a.autoRegister(ctx)
	return nil
}

func (a *Agent) autoRegister(ctx context.Context) {
	if n := a.segments.Len(); n > 0 {
		a.logger.Debug("segments already assigned; skipping auto-scan", zap.Int("segments", n))
		return
	}

	network, err := a.detect()
	if err != nil {
		a.logger.Warn("auto-scan: no local network detected; waiting for manual assignment", zap.Error(err))
		return
	}

	req := models.AutoSegmentRequest{
		CIDR:          network.CIDR,
		Name:          recon.SegmentName(network),
		InterfaceName: network.InterfaceName,
	}
	seg, err := a.cp.RegisterAutoSegment(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn("auto-scan: registering segment failed",
				zap.String("cidr", req.CIDR),
				zap.Error(err),
			)
		}
		return
	}

	a.segments.Add(*seg)
	a.metrics.SetSegments(a.segments.Len())
	a.logger.Info("auto-scan: registered local network",
		zap.String("segment_id", seg.ID),
		zap.String("cidr", seg.CIDR),
		zap.String("name", seg.Name),
	)
}
