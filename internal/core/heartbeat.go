package core

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// DefaultHeartbeatInterval is how often connections are probed.
const DefaultHeartbeatInterval = 30 * time.Second

// HeartbeatMonitor periodically asks the hub to sweep its connections. The
// monitor never touches registry or membership state itself; eviction goes
// through the same dispatcher path as every other mutation.
type HeartbeatMonitor struct {
	hub      *Hub
	interval time.Duration
	clk      clock.Clock
	log      zerolog.Logger
}

// NewHeartbeatMonitor constructs a monitor on the hub's clock.
func NewHeartbeatMonitor(hub *Hub, interval time.Duration, logger *zerolog.Logger) *HeartbeatMonitor {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &HeartbeatMonitor{
		hub:      hub,
		interval: interval,
		clk:      hub.clk,
		log:      logger.With().Str("component", "heartbeat").Logger(),
	}
}

// Run ticks until the context is cancelled. The ticker is stopped
// synchronously on cancellation, no timer leaks past Run returning.
func (m *HeartbeatMonitor) Run(ctx context.Context) {
	ticker := m.clk.Ticker(m.interval)
	defer ticker.Stop()

	m.log.Info().Dur("interval", m.interval).Msg("heartbeat monitor started")
	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("heartbeat monitor stopped")
			return
		case <-ticker.C:
			m.hub.RequestHeartbeat()
		}
	}
}
