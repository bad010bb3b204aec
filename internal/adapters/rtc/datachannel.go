package rtc

import (
	"sync"

	"github.com/dkeye/rtcworker/internal/core"
	"github.com/pion/webrtc/v4"
)

// DataChannel adapts a pion data channel to core.DataChannel.
// pion has no closing event, so it is synthesized: once when a local Close
// starts, or right before the close event for a remote close.
type DataChannel struct {
	*webrtc.DataChannel

	mu          sync.RWMutex
	observer    core.DataChannelObserver
	closingOnce sync.Once
}

func NewDataChannel(dc *webrtc.DataChannel) *DataChannel {
	d := &DataChannel{DataChannel: dc}

	dc.OnOpen(func() {
		if o := d.getObserver(); o != nil {
			o.OnOpen()
		}
	})
	dc.OnClose(func() {
		d.fireClosing()
		if o := d.getObserver(); o != nil {
			o.OnClose()
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if o := d.getObserver(); o != nil {
			o.OnMessage(msg)
		}
	})
	dc.OnBufferedAmountLow(func() {
		if o := d.getObserver(); o != nil {
			o.OnBufferedAmountLow()
		}
	})
	return d
}

func (d *DataChannel) getObserver() core.DataChannelObserver {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.observer
}

func (d *DataChannel) SetObserver(o core.DataChannelObserver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observer = o
}

func (d *DataChannel) fireClosing() {
	d.closingOnce.Do(func() {
		if o := d.getObserver(); o != nil {
			o.OnClosing()
		}
	})
}

func (d *DataChannel) Close() error {
	d.fireClosing()
	return d.DataChannel.Close()
}
