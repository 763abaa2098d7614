package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"reef-chat/contract"
	"reef-chat/observability"
)

var _ contract.Worker = (*HeartbeatWorker)(nil)

// HeartbeatWorker periodically logs process health (CPU, RAM) together
// with the hub counters, so a stalled or leaking server is visible from
// the logs alone.
type HeartbeatWorker struct {
	log        *slog.Logger
	interval   time.Duration
	monitoring *observability.MonitoringManager
}

func NewHeartbeatWorker(log *slog.Logger, interval time.Duration,
	monitoring *observability.MonitoringManager) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, interval: interval, monitoring: monitoring}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := getSelfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			stats := w.monitoring.GetLatest()
			w.log.Info("Heartbeat",
				"ram_bytes", rss,
				"cpu_percent", cpu,
				"active_sessions", stats.ActiveSessions,
				"messages_posted", stats.MessagesPosted,
				"messages_removed", stats.MessagesRemoved,
				"storage_errors", stats.StorageErrors,
				"events_fanned", stats.EventsFanned)
		}
	}
}

// getSelfStats retrieves technical metrics (Memory and CPU) for the given process.
func getSelfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
