package observability

import (
	"sync/atomic"
	"time"
)

// MonitoringStats is a point-in-time snapshot of the hub's counters.
type MonitoringStats struct {
	MessagesPosted  uint64 `json:"messages_posted"`
	MessagesRemoved uint64 `json:"messages_removed"`
	StorageErrors   uint64 `json:"storage_errors"`
	EventsFanned    uint64 `json:"events_fanned"`
	ActiveSessions  int64  `json:"active_sessions"`
	At              string `json:"at"`
}

// MonitoringManager aggregates hub telemetry through atomic counters so
// workers never contend on a lock to report.
type MonitoringManager struct {
	messagesPosted  atomic.Uint64
	messagesRemoved atomic.Uint64
	storageErrors   atomic.Uint64
	eventsFanned    atomic.Uint64
	activeSessions  atomic.Int64
}

func NewMonitoringManager() *MonitoringManager {
	return &MonitoringManager{}
}

func (mm *MonitoringManager) IncrMessagesPosted()  { mm.messagesPosted.Add(1) }
func (mm *MonitoringManager) IncrMessagesRemoved() { mm.messagesRemoved.Add(1) }
func (mm *MonitoringManager) IncrStorageErrors()   { mm.storageErrors.Add(1) }
func (mm *MonitoringManager) IncrEventsFanned()    { mm.eventsFanned.Add(1) }
func (mm *MonitoringManager) SessionOpened()       { mm.activeSessions.Add(1) }
func (mm *MonitoringManager) SessionClosed()       { mm.activeSessions.Add(-1) }

// GetLatest snapshots all counters.
func (mm *MonitoringManager) GetLatest() MonitoringStats {
	return MonitoringStats{
		MessagesPosted:  mm.messagesPosted.Load(),
		MessagesRemoved: mm.messagesRemoved.Load(),
		StorageErrors:   mm.storageErrors.Load(),
		EventsFanned:    mm.eventsFanned.Load(),
		ActiveSessions:  mm.activeSessions.Load(),
		At:              time.Now().UTC().Format(time.RFC3339),
	}
}
