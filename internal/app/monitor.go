package app

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/rtcworker/internal/core"
	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const DefaultMonitorInterval = time.Second

// BufferedAmountMonitor periodically reports the buffered amount of every
// open data channel.
type BufferedAmountMonitor struct {
	interval time.Duration
	channels *Directory[string, *channelRecord]
	notifier core.Notifier

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

func NewBufferedAmountMonitor(interval time.Duration, channels *Directory[string, *channelRecord], notifier core.Notifier) *BufferedAmountMonitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	return &BufferedAmountMonitor{
		interval: interval,
		channels: channels,
		notifier: notifier,
	}
}

// Start launches the reporting goroutine. It is a no-op once started or stopped.
func (m *BufferedAmountMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil || m.stopped {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx)
}

// Stop cancels the goroutine and waits for it to exit. Safe to call repeatedly.
func (m *BufferedAmountMonitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Debug().Str("module", "app.session").Msg("buffered amount monitor stopped")
}

func (m *BufferedAmountMonitor) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.report()
		}
	}
}

func (m *BufferedAmountMonitor) report() {
	for ref, rec := range m.channels.Snapshot() {
		if rec.Channel.ReadyState() != webrtc.DataChannelStateOpen {
			continue
		}
		m.notifier.Notify(ref, domain.EventBufferedAmount, rec.Channel.BufferedAmount())
	}
}
