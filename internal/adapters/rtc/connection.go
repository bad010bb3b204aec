package rtc

import (
	"sync"

	"github.com/dkeye/rtcworker/internal/core"
	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// DefaultWebRTCConfig is used when the host passes no RTCConfiguration.
func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// NewAPI builds a pion API with the default codecs and interceptors and
// routes pion's own logs through loggerFactory.
func NewAPI(loggerFactory logging.LoggerFactory) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, err
	}
	se := webrtc.SettingEngine{LoggerFactory: loggerFactory}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(se),
	), nil
}

// NewFactory returns a core.EngineFactory creating connections on api.
func NewFactory(api *webrtc.API, cfg webrtc.Configuration) core.EngineFactory {
	return func() (core.Engine, error) {
		return NewWebRTCConnection(api, cfg)
	}
}

// WebRTCConnection implements core.Engine on top of a pion PeerConnection.
type WebRTCConnection struct {
	pc *webrtc.PeerConnection

	mu       sync.RWMutex
	observer core.EngineObserver
}

func NewWebRTCConnection(api *webrtc.API, cfg webrtc.Configuration) (*WebRTCConnection, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	c := &WebRTCConnection{pc: pc}
	c.bind()
	return c, nil
}

func (c *WebRTCConnection) bind() {
	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Debug().Str("module", "rtc").Str("ice_state", s.String()).Msg("ICE state")
		if o := c.getObserver(); o != nil {
			o.OnICEConnectionStateChange(s)
		}
	})

	c.pc.OnICEGatheringStateChange(func(s webrtc.ICEGatheringState) {
		log.Debug().Str("module", "rtc").Str("gathering_state", s.String()).Msg("ICE gathering state")
		if o := c.getObserver(); o != nil {
			o.OnICEGatheringStateChange(s)
		}
	})

	c.pc.OnSignalingStateChange(func(s webrtc.SignalingState) {
		log.Debug().Str("module", "rtc").Str("signaling_state", s.String()).Msg("signaling state")
		if o := c.getObserver(); o != nil {
			o.OnSignalingStateChange(s)
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Debug().
			Str("module", "rtc").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		if o := c.getObserver(); o != nil {
			o.OnTrack(domain.Kind(track.Kind().String()), track.ID())
		}
		go drainRemote(track)
	})
}

func (c *WebRTCConnection) getObserver() core.EngineObserver {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.observer
}

func (c *WebRTCConnection) SetObserver(o core.EngineObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
}

func (c *WebRTCConnection) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *WebRTCConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *WebRTCConnection) SetLocalDescription(d webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(d)
}

func (c *WebRTCConnection) SetRemoteDescription(d webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(d)
}

func (c *WebRTCConnection) LocalDescription() *webrtc.SessionDescription {
	return c.pc.LocalDescription()
}

// AddTransceiver attaches track on a send-only transceiver, so detaching the
// track later leaves the transceiver inactive.
func (c *WebRTCConnection) AddTransceiver(track webrtc.TrackLocal) (core.Transceiver, error) {
	t, err := c.pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendonly,
	})
	if err != nil {
		return nil, err
	}
	go drainRTCP(t.Sender())
	return &transceiver{pc: c.pc, t: t}, nil
}

func (c *WebRTCConnection) AddTransceiverFromKind(kind domain.Kind, direction webrtc.RTPTransceiverDirection) (core.Transceiver, error) {
	t, err := c.pc.AddTransceiverFromKind(webrtc.NewRTPCodecType(string(kind)), webrtc.RTPTransceiverInit{
		Direction: direction,
	})
	if err != nil {
		return nil, err
	}
	return &transceiver{pc: c.pc, t: t}, nil
}

func (c *WebRTCConnection) Transceivers() []core.Transceiver {
	ts := c.pc.GetTransceivers()
	out := make([]core.Transceiver, 0, len(ts))
	for _, t := range ts {
		out = append(out, &transceiver{pc: c.pc, t: t})
	}
	return out
}

func (c *WebRTCConnection) CreateDataChannel(label string, init *webrtc.DataChannelInit) (core.DataChannel, error) {
	dc, err := c.pc.CreateDataChannel(label, init)
	if err != nil {
		return nil, err
	}
	return NewDataChannel(dc), nil
}

func (c *WebRTCConnection) Stats() webrtc.StatsReport {
	return c.pc.GetStats()
}

func (c *WebRTCConnection) Close() error {
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("close error")
		return err
	}
	log.Info().Str("module", "rtc").Msg("closed")
	return nil
}

// drainRTCP keeps reading RTCP for a sender so interceptors can process it.
func drainRTCP(sender *webrtc.RTPSender) {
	if sender == nil {
		return
	}
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
