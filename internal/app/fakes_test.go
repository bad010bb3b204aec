package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dkeye/rtcworker/internal/app/media"
	"github.com/dkeye/rtcworker/internal/app/sfu"
	"github.com/dkeye/rtcworker/internal/core"
	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

type fakeTransceiver struct {
	mu          sync.Mutex
	mid         string
	kind        domain.Kind
	direction   webrtc.RTPTransceiverDirection
	deactivated int
	sender      webrtc.StatsReport
	receiver    webrtc.StatsReport
}

func (t *fakeTransceiver) Mid() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mid
}

func (t *fakeTransceiver) setMid(mid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mid = mid
}

func (t *fakeTransceiver) Kind() domain.Kind { return t.kind }

func (t *fakeTransceiver) Direction() webrtc.RTPTransceiverDirection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.direction
}

func (t *fakeTransceiver) Deactivate() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deactivated++
	t.direction = webrtc.RTPTransceiverDirectionInactive
	return nil
}

func (t *fakeTransceiver) SenderStats() webrtc.StatsReport   { return t.sender }
func (t *fakeTransceiver) ReceiverStats() webrtc.StatsReport { return t.receiver }

type fakeEngine struct {
	mu           sync.Mutex
	observer     core.EngineObserver
	local        *webrtc.SessionDescription
	remote       *webrtc.SessionDescription
	transceivers []*fakeTransceiver
	channels     []*fakeDataChannel
	tracks       []webrtc.TrackLocal
	stats        webrtc.StatsReport
	remoteErr    error
	closed       int
}

func newFakeEngine() *fakeEngine { return &fakeEngine{stats: webrtc.StatsReport{}} }

func (e *fakeEngine) CreateOffer() (webrtc.SessionDescription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	lines := []string{"v=0"}
	for _, t := range e.transceivers {
		lines = append(lines, fmt.Sprintf("m=%s a=%s", t.Kind(), t.Direction()))
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: strings.Join(lines, "\n")}, nil
}

func (e *fakeEngine) CreateAnswer() (webrtc.SessionDescription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.remote == nil {
		return webrtc.SessionDescription{}, errors.New("no remote description")
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (e *fakeEngine) SetLocalDescription(d webrtc.SessionDescription) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.local = &d
	return nil
}

func (e *fakeEngine) SetRemoteDescription(d webrtc.SessionDescription) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.remoteErr != nil {
		return e.remoteErr
	}
	e.remote = &d
	return nil
}

func (e *fakeEngine) LocalDescription() *webrtc.SessionDescription {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local
}

func (e *fakeEngine) AddTransceiver(track webrtc.TrackLocal) (core.Transceiver, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := &fakeTransceiver{
		kind:      domain.Kind(track.Kind().String()),
		direction: webrtc.RTPTransceiverDirectionSendonly,
	}
	e.tracks = append(e.tracks, track)
	e.transceivers = append(e.transceivers, t)
	return t, nil
}

func (e *fakeEngine) AddTransceiverFromKind(kind domain.Kind, direction webrtc.RTPTransceiverDirection) (core.Transceiver, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := &fakeTransceiver{kind: kind, direction: direction}
	e.transceivers = append(e.transceivers, t)
	return t, nil
}

func (e *fakeEngine) Transceivers() []core.Transceiver {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.Transceiver, 0, len(e.transceivers))
	for _, t := range e.transceivers {
		out = append(out, t)
	}
	return out
}

func (e *fakeEngine) CreateDataChannel(label string, init *webrtc.DataChannelInit) (core.DataChannel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	dc := &fakeDataChannel{
		id:        init.ID,
		label:     label,
		ordered:    init.Ordered == nil || *init.Ordered,
		negotiated: init.Negotiated != nil && *init.Negotiated,
		lifetime:   init.MaxPacketLifeTime,
		retrans:    init.MaxRetransmits,
		state:      webrtc.DataChannelStateConnecting,
		threshold:  0,
	}
	if init.Protocol != nil {
		dc.protocol = *init.Protocol
	}
	e.channels = append(e.channels, dc)
	return dc, nil
}

func (e *fakeEngine) Stats() webrtc.StatsReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *fakeEngine) SetObserver(o core.EngineObserver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = o
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
	return nil
}

func (e *fakeEngine) closeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

type fakeDataChannel struct {
	mu         sync.Mutex
	id         *uint16
	label      string
	protocol   string
	ordered    bool
	negotiated bool
	lifetime   *uint16
	retrans    *uint16
	state      webrtc.DataChannelState
	buffered   uint64
	threshold  uint64
	texts      []string
	binary     [][]byte
	closed     int
	observer   core.DataChannelObserver
}

func (d *fakeDataChannel) ID() *uint16                { return d.id }
func (d *fakeDataChannel) Label() string              { return d.label }
func (d *fakeDataChannel) Protocol() string           { return d.protocol }
func (d *fakeDataChannel) Ordered() bool              { return d.ordered }
func (d *fakeDataChannel) MaxPacketLifeTime() *uint16 { return d.lifetime }
func (d *fakeDataChannel) MaxRetransmits() *uint16    { return d.retrans }

func (d *fakeDataChannel) ReadyState() webrtc.DataChannelState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *fakeDataChannel) setState(s webrtc.DataChannelState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = s
}

func (d *fakeDataChannel) BufferedAmount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffered
}

func (d *fakeDataChannel) BufferedAmountLowThreshold() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.threshold
}

func (d *fakeDataChannel) SetBufferedAmountLowThreshold(v uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.threshold = v
}

func (d *fakeDataChannel) SendText(s string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, s)
	d.buffered += uint64(len(s))
	return nil
}

func (d *fakeDataChannel) Send(b []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.binary = append(d.binary, b)
	d.buffered += uint64(len(b))
	return nil
}

// Close mirrors the rtc adapter: closing fires synchronously, close comes
// later from the engine.
func (d *fakeDataChannel) Close() error {
	d.mu.Lock()
	d.closed++
	d.state = webrtc.DataChannelStateClosing
	o := d.observer
	d.mu.Unlock()
	if o != nil {
		o.OnClosing()
	}
	return nil
}

func (d *fakeDataChannel) SetObserver(o core.DataChannelObserver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observer = o
}

func (d *fakeDataChannel) getObserver() core.DataChannelObserver {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.observer
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []domain.Outbound
}

func (n *fakeNotifier) Notify(target any, event domain.Event, data any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, domain.Outbound{Target: target, Event: event, Data: data})
}

// events returns the notifications sent to target with the given event.
func (n *fakeNotifier) events(target any, event domain.Event) []domain.Outbound {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Outbound
	for _, o := range n.sent {
		if o.Target == target && o.Event == event {
			out = append(out, o)
		}
	}
	return out
}

type idleStream struct {
	codec webrtc.RTPCodecCapability
	done  <-chan struct{}
}

func (s idleStream) Codec() webrtc.RTPCodecCapability { return s.codec }

func (s idleStream) NextSample() (pionmedia.Sample, error) {
	<-s.done
	return pionmedia.Sample{}, io.EOF
}

type fakeDemuxer struct {
	done chan struct{}
	once sync.Once
}

func (d *fakeDemuxer) Has(domain.Kind) bool { return true }

func (d *fakeDemuxer) Stream(kind domain.Kind) (sfu.ElementaryStream, error) {
	codec := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	if kind == domain.KindVideo {
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	}
	return idleStream{codec: codec, done: d.done}, nil
}

func (d *fakeDemuxer) Close() error {
	d.once.Do(func() { close(d.done) })
	return nil
}

type fakeOpener struct {
	mu     sync.Mutex
	opened int
}

func (o *fakeOpener) Open(context.Context, media.Source) (media.Demuxer, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened++
	return &fakeDemuxer{done: make(chan struct{})}, nil
}

func (o *fakeOpener) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened
}
