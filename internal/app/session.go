package app

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/dkeye/rtcworker/internal/app/media"
	"github.com/dkeye/rtcworker/internal/core"
	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Sources resolves addTrack requests into live tracks.
type Sources interface {
	Resolve(ctx context.Context, req media.Request) (*media.Track, error)
	Close()
}

type transceiverRecord struct {
	Kind        domain.Kind
	Track       *media.Track
	Transceiver core.Transceiver
}

type channelRecord struct {
	Channel core.DataChannel
}

type Options struct {
	// PID is the notification target for connection-level events.
	PID             int
	MonitorInterval time.Duration
}

// Session owns the engine and every engine-facing record of one worker.
type Session struct {
	engine   core.Engine
	factory  core.EngineFactory
	sources  Sources
	notifier core.Notifier
	pid      int

	transceivers *Directory[string, *transceiverRecord]
	channels     *Directory[string, *channelRecord]
	monitor      *BufferedAmountMonitor

	closeOnce sync.Once
}

func NewSession(engine core.Engine, factory core.EngineFactory, sources Sources, notifier core.Notifier, opts Options) *Session {
	s := &Session{
		engine:       engine,
		factory:      factory,
		sources:      sources,
		notifier:     notifier,
		pid:          opts.PID,
		transceivers: NewDirectory[string, *transceiverRecord](),
		channels:     NewDirectory[string, *channelRecord](),
	}
	s.monitor = NewBufferedAmountMonitor(opts.MonitorInterval, s.channels, notifier)
	engine.SetObserver(s)
	s.monitor.Start()
	return s
}

// Close stops outgoing tracks, then cached pipelines, then the engine, then
// the monitor. Later calls do nothing.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		for _, rec := range s.transceivers.Drain() {
			rec.Track.Stop()
		}
		s.sources.Close()
		if err := s.engine.Close(); err != nil {
			log.Warn().Err(err).Str("module", "app.session").Msg("engine close error")
		}
		s.monitor.Stop()
		log.Info().Str("module", "app.session").Msg("session closed")
	})
}

func (s *Session) OnTrack(kind domain.Kind, trackID string) {
	log.Info().
		Str("module", "app.session").
		Str("kind", string(kind)).
		Str("track_id", trackID).
		Msg("remote track")
}

func (s *Session) OnICEConnectionStateChange(state webrtc.ICEConnectionState) {
	s.notifier.Notify(s.pid, domain.EventICEConnectionStateChange, state.String())
}

func (s *Session) OnICEGatheringStateChange(state webrtc.ICEGatheringState) {
	s.notifier.Notify(s.pid, domain.EventICEGatheringStateChange, state.String())
}

func (s *Session) OnSignalingStateChange(state webrtc.SignalingState) {
	s.notifier.Notify(s.pid, domain.EventSignalingStateChange, state.String())
}

// channelObserver translates the events of one data channel into
// notifications targeted at its reference.
type channelObserver struct {
	s   *Session
	ref string
	dc  core.DataChannel
}

func (o *channelObserver) OnOpen()    { o.s.notifier.Notify(o.ref, domain.EventOpen, nil) }
func (o *channelObserver) OnClosing() { o.s.notifier.Notify(o.ref, domain.EventClosing, nil) }

// OnClose emits close only if this event removed the record; a local close
// request that got there first already did.
func (o *channelObserver) OnClose() {
	if _, ok := o.s.channels.RemoveIf(o.ref, o.owns); ok {
		o.s.notifier.Notify(o.ref, domain.EventClose, nil)
	}
}

func (o *channelObserver) OnMessage(msg webrtc.DataChannelMessage) {
	if msg.IsString {
		o.s.notifier.Notify(o.ref, domain.EventMessage, string(msg.Data))
		return
	}
	o.s.notifier.Notify(o.ref, domain.EventBinary, base64.StdEncoding.EncodeToString(msg.Data))
}

func (o *channelObserver) OnBufferedAmountLow() {
	o.s.notifier.Notify(o.ref, domain.EventBufferedAmountLow, nil)
}

func (o *channelObserver) owns(rec *channelRecord) bool { return rec.Channel == o.dc }

// TransceiverView and DataChannelView are read-only session introspection rows.
type TransceiverView struct {
	TrackID   string `json:"trackId"`
	Kind      string `json:"kind"`
	Direction string `json:"direction"`
	Mid       string `json:"mid"`
}

type DataChannelView struct {
	Ref            string `json:"ref"`
	Label          string `json:"label"`
	ReadyState     string `json:"readyState"`
	BufferedAmount uint64 `json:"bufferedAmount"`
}

func (s *Session) Transceivers() []TransceiverView {
	snap := s.transceivers.Snapshot()
	out := make([]TransceiverView, 0, len(snap))
	for id, rec := range snap {
		out = append(out, TransceiverView{
			TrackID:   id,
			Kind:      string(rec.Kind),
			Direction: rec.Transceiver.Direction().String(),
			Mid:       rec.Transceiver.Mid(),
		})
	}
	return out
}

func (s *Session) DataChannels() []DataChannelView {
	snap := s.channels.Snapshot()
	out := make([]DataChannelView, 0, len(snap))
	for ref, rec := range snap {
		out = append(out, DataChannelView{
			Ref:            ref,
			Label:          rec.Channel.Label(),
			ReadyState:     rec.Channel.ReadyState().String(),
			BufferedAmount: rec.Channel.BufferedAmount(),
		})
	}
	return out
}
