package core

import (
	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Engine is one peer connection instance.
type Engine interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	// LocalDescription returns nil until a local description is set.
	LocalDescription() *webrtc.SessionDescription

	// AddTransceiver binds a local track to a new send-only transceiver.
	AddTransceiver(track webrtc.TrackLocal) (Transceiver, error)
	AddTransceiverFromKind(kind domain.Kind, direction webrtc.RTPTransceiverDirection) (Transceiver, error)
	Transceivers() []Transceiver

	// CreateDataChannel creates a channel negotiated out-of-band.
	CreateDataChannel(label string, init *webrtc.DataChannelInit) (DataChannel, error)

	Stats() webrtc.StatsReport

	// SetObserver registers the single receiver of engine events.
	SetObserver(EngineObserver)
	Close() error
}

// EngineFactory builds a fresh Engine, e.g. a scratch one for capability probing.
type EngineFactory func() (Engine, error)

// EngineObserver receives connection-level engine events.
type EngineObserver interface {
	OnTrack(kind domain.Kind, trackID string)
	OnICEConnectionStateChange(webrtc.ICEConnectionState)
	OnICEGatheringStateChange(webrtc.ICEGatheringState)
	OnSignalingStateChange(webrtc.SignalingState)
}

type Transceiver interface {
	// Mid is empty until the transceiver is negotiated.
	Mid() string
	Kind() domain.Kind
	Direction() webrtc.RTPTransceiverDirection
	// Deactivate stops sending: the transceiver goes inactive and its track is detached.
	Deactivate() error
	SenderStats() webrtc.StatsReport
	ReceiverStats() webrtc.StatsReport
}

type DataChannel interface {
	ID() *uint16
	Label() string
	Protocol() string
	Ordered() bool
	MaxPacketLifeTime() *uint16
	MaxRetransmits() *uint16
	ReadyState() webrtc.DataChannelState
	BufferedAmount() uint64
	BufferedAmountLowThreshold() uint64
	SetBufferedAmountLowThreshold(uint64)

	SendText(string) error
	Send([]byte) error
	Close() error

	SetObserver(DataChannelObserver)
}

// DataChannelObserver receives per-channel lifecycle and message events.
type DataChannelObserver interface {
	OnOpen()
	OnClosing()
	OnClose()
	OnMessage(webrtc.DataChannelMessage)
	OnBufferedAmountLow()
}
