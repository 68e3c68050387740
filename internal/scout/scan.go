package scout

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/lanwatch/internal/history"
	"github.com/HerbHall/lanwatch/pkg/models"
)

// scanLoop checks every few seconds for segments whose interval has elapsed
// and scans them one after another.
func (a *Agent) scanLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.scanTick)
	defer ticker.Stop()

	for {
		a.scanDue(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (a *Agent) scanDue(ctx context.Context) {
	for _, id := range a.segments.IDs() {
		if ctx.Err() != nil {
			return
		}
		seg, ok := a.segments.TryBeginScan(id, a.now())
		if !ok {
			continue
		}
		a.scanSegment(ctx, seg)
	}
}

// scanSegment discovers seg's CIDR and uploads what it finds. The caller must
// have claimed the segment; the claim is released on return.
func (a *Agent) scanSegment(ctx context.Context, seg models.Segment) {
	defer a.segments.FinishScan(seg.ID)

	log := a.logger.With(zap.String("segment_id", seg.ID), zap.String("cidr", seg.CIDR))
	start := a.now()
	journal := a.journalStart(ctx, seg, start)
	log.Info("scanning segment", zap.String("name", seg.Name))

	devices, err := a.disc.Discover(ctx, seg.CIDR)
	if err != nil {
		log.Error("segment scan failed", zap.Error(err))
		a.metrics.ScanFinished("error", a.now().Sub(start), 0)
		a.journalFinish(ctx, journal, history.StatusFailed, 0, err)
		return
	}

	if len(devices) == 0 {
		log.Info("segment scan found no devices")
		a.metrics.ScanFinished("empty", a.now().Sub(start), 0)
		a.journalFinish(ctx, journal, history.StatusCompleted, 0, nil)
		return
	}

	res, err := a.cp.UploadDiscoveredDevices(ctx, seg.ID, devices)
	if err != nil {
		log.Error("uploading discovered devices failed", zap.Int("devices", len(devices)), zap.Error(err))
		a.metrics.ScanFinished("error", a.now().Sub(start), len(devices))
		a.journalFinish(ctx, journal, history.StatusFailed, len(devices), err)
		return
	}

	log.Info("segment scan complete",
		zap.Int("devices", len(devices)),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Duration("elapsed", a.now().Sub(start)),
	)
	a.metrics.ScanFinished("success", a.now().Sub(start), len(devices))
	a.journalFinish(ctx, journal, history.StatusCompleted, len(devices), nil)
}

// journalStart records a running scan and returns its id, or "" when the
// journal is disabled or unavailable.
func (a *Agent) journalStart(ctx context.Context, seg models.Segment, start time.Time) string {
	if a.history == nil {
		return ""
	}
	rec := &models.ScanRecord{
		SegmentID: seg.ID,
		CIDR:      seg.CIDR,
		StartedAt: start.UTC().Format(time.RFC3339),
	}
	if err := a.history.Create(ctx, rec); err != nil {
		a.logger.Warn("recording scan start failed", zap.Error(err))
		return ""
	}
	return rec.ID
}

func (a *Agent) journalFinish(ctx context.Context, id, status string, devices int, scanErr error) {
	if a.history == nil || id == "" {
		return
	}
	// Journal the outcome even when shutdown interrupted the scan.
	ctx = context.WithoutCancel(ctx)

	msg := ""
	if scanErr != nil {
		msg = scanErr.Error()
	}
	if err := a.history.Finish(ctx, id, status, devices, msg); err != nil {
		a.logger.Warn("recording scan result failed", zap.String("scan_id", id), zap.Error(err))
		return
	}
	if _, err := a.history.Prune(ctx, history.DefaultRetention); err != nil {
		a.logger.Warn("pruning scan history failed", zap.Error(err))
	}
}
