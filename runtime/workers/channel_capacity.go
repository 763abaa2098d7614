package workers

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"reef-chat/contract"
)

var _ contract.Worker = (*ChannelCapacityWorker)(nil)

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelCapacityWorker periodically reports the fill level of the hub's
// channels: the shared event channel and every room command channel.
// Reading len(channel) and cap(channel) is non-blocking, so sampling never
// interferes with dispatch. A saturated channel here explains dropped
// commands long before users complain.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	channels       func() []NamedChannel
	metricInterval time.Duration
}

// NewChannelCapacityWorker takes a snapshot function rather than a fixed
// list because room channels are created lazily while the hub runs.
func NewChannelCapacityWorker(log *slog.Logger,
	channels func() []NamedChannel, metricInterval time.Duration) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log:            log,
		channels:       channels,
		metricInterval: metricInterval,
	}
}

func (w ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping capacity sampling")
			return ctx.Err()
		case <-ticker.C:
			for _, nc := range w.channels() {
				v := reflect.ValueOf(nc.Channel)
				// Verify if this is a channel
				if v.Kind() != reflect.Chan {
					w.log.Error("Provided object is not a channel", "name", nc.Name)
					continue
				}
				capacity := v.Cap()
				length := v.Len()
				if capacity > 0 && length*2 >= capacity {
					w.log.Warn("Channel running hot",
						"name", nc.Name, "length", length, "capacity", capacity)
					continue
				}
				w.log.Debug("Channel capacity",
					"name", nc.Name, "length", length, "capacity", capacity)
			}
		}
	}
}
