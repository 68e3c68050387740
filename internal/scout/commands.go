package scout

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/HerbHall/lanwatch/pkg/models"
)

type commandRecord struct {
	ack   models.CommandAck
	acked bool
}

// handleCommands runs each new remote command once and acknowledges it. A
// command seen again is not re-run; its acknowledgement is re-sent only if
// the earlier attempt failed.
func (a *Agent) handleCommands(ctx context.Context, cmds []models.Command) {
	for _, cmd := range cmds {
		if cmd.ID == "" {
			continue
		}
		if rec, ok := a.commands[cmd.ID]; ok {
			if !rec.acked {
				rec.acked = a.ack(ctx, cmd, rec.ack)
			}
			continue
		}

		ack, after := a.runCommand(ctx, cmd)
		rec := &commandRecord{ack: ack}
		a.commands[cmd.ID] = rec
		a.metrics.CommandHandled(string(cmd.Type), ack.Status)
		rec.acked = a.ack(ctx, cmd, ack)

		if after != nil {
			after()
		}
	}
}

func (a *Agent) ack(ctx context.Context, cmd models.Command, ack models.CommandAck) bool {
	if err := a.cp.AckCommand(ctx, cmd.ID, ack); err != nil {
		a.logger.Warn("command acknowledgement failed",
			zap.String("command_id", cmd.ID),
			zap.String("type", string(cmd.Type)),
			zap.Error(err),
		)
		return false
	}
	return true
}

// runCommand executes cmd and returns its acknowledgement. after, when set,
// must run once the acknowledgement has been sent.
func (a *Agent) runCommand(ctx context.Context, cmd models.Command) (ack models.CommandAck, after func()) {
	log := a.logger.With(zap.String("command_id", cmd.ID), zap.String("type", string(cmd.Type)))

	switch cmd.Type {
	case models.CommandScanNow:
		ids := a.segments.IDs()
		if cmd.SegmentID != "" {
			if !a.segments.Has(cmd.SegmentID) {
				return models.CommandAck{
					Status:  models.CommandStatusFailed,
					Message: fmt.Sprintf("segment %s is not assigned to this agent", cmd.SegmentID),
				}, nil
			}
			ids = []string{cmd.SegmentID}
		}
		if len(ids) == 0 {
			return models.CommandAck{Status: models.CommandStatusFailed, Message: "no segments assigned"}, nil
		}
		log.Info("on-demand scan requested", zap.Strings("segments", ids))
		a.scanAsync(ctx, ids)
		return models.CommandAck{
			Status:  models.CommandStatusAccepted,
			Message: fmt.Sprintf("scan queued for %d segment(s)", len(ids)),
		}, nil

	case models.CommandRestart:
		r := a.restart()
		if r == nil {
			return models.CommandAck{Status: models.CommandStatusFailed, Message: "restart not supported on this host"}, nil
		}
		log.Info("restart requested", zap.String("restarter", r.Name()))
		return models.CommandAck{
				Status:  models.CommandStatusAccepted,
				Message: "restarting via " + r.Name(),
			}, func() {
				if err := r.Restart(ctx); err != nil {
					log.Error("restart failed", zap.Error(err))
				}
			}

	default:
		log.Warn("unsupported remote command")
		return models.CommandAck{
			Status:  models.CommandStatusUnsupported,
			Message: fmt.Sprintf("command type %q is not supported", cmd.Type),
		}, nil
	}
}

// scanAsync scans the given segments in the background, skipping any that
// are already being scanned.
func (a *Agent) scanAsync(ctx context.Context, ids []string) {
	a.scans.Add(1)
	go func() {
		defer a.scans.Done()
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("on-demand scan panicked", zap.Any("panic", r), zap.Stack("stack"))
			}
		}()
		for _, id := range ids {
			if ctx.Err() != nil {
				return
			}
			seg, ok := a.segments.BeginManualScan(id, a.now())
			if !ok {
				a.logger.Info("segment busy or removed; skipping on-demand scan", zap.String("segment_id", id))
				continue
			}
			a.scanSegment(ctx, seg)
		}
	}()
}
