package sink

import (
	"context"

	"reef-chat/contract"
	"reef-chat/domain/event"
	"reef-chat/observability"
)

var _ contract.EventSink = (*MonitoringSink)(nil)

// MonitoringSink counts every fanned-out event so the heartbeat log can
// report broadcast volume.
type MonitoringSink struct {
	monitoring *observability.MonitoringManager
}

func NewMonitoringSink(monitoring *observability.MonitoringManager) *MonitoringSink {
	return &MonitoringSink{monitoring: monitoring}
}

func (s *MonitoringSink) Consume(_ context.Context, _ event.DomainEvent) error {
	s.monitoring.IncrEventsFanned()
	return nil
}
