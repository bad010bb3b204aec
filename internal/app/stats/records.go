package stats

import "github.com/pion/webrtc/v4"

type InboundRTP struct {
	Timestamp       float64 `json:"timestamp"`
	Type            string  `json:"type"`
	ID              string  `json:"id"`
	SSRC            uint32  `json:"ssrc"`
	Kind            string  `json:"kind"`
	TransportID     string  `json:"transportId"`
	PacketsReceived uint64  `json:"packetsReceived"`
	PacketsLost     int64   `json:"packetsLost"`
	Jitter          float64 `json:"jitter"`
}

type OutboundRTP struct {
	Timestamp   float64 `json:"timestamp"`
	Type        string  `json:"type"`
	ID          string  `json:"id"`
	SSRC        uint32  `json:"ssrc"`
	Kind        string  `json:"kind"`
	TransportID string  `json:"transportId"`
	PacketsSent uint64  `json:"packetsSent"`
	BytesSent   uint64  `json:"bytesSent"`
	TrackID     string  `json:"trackId"`
}

type RemoteInboundRTP struct {
	Timestamp       float64 `json:"timestamp"`
	Type            string  `json:"type"`
	ID              string  `json:"id"`
	SSRC            uint32  `json:"ssrc"`
	Kind            string  `json:"kind"`
	TransportID     string  `json:"transportId"`
	PacketsReceived uint64  `json:"packetsReceived"`
	PacketsLost     int64   `json:"packetsLost"`
	Jitter          float64 `json:"jitter"`
	RoundTripTime   float64 `json:"roundTripTime"`
	FractionLost    float64 `json:"fractionLost"`
}

type RemoteOutboundRTP struct {
	Timestamp       float64 `json:"timestamp"`
	Type            string  `json:"type"`
	ID              string  `json:"id"`
	SSRC            uint32  `json:"ssrc"`
	Kind            string  `json:"kind"`
	TransportID     string  `json:"transportId"`
	PacketsSent     uint64  `json:"packetsSent"`
	BytesSent       uint64  `json:"bytesSent"`
	RemoteTimestamp float64 `json:"remoteTimestamp"`
}

type Transport struct {
	Timestamp       float64 `json:"timestamp"`
	Type            string  `json:"type"`
	ID              string  `json:"id"`
	PacketsSent     uint64  `json:"packetsSent"`
	PacketsReceived uint64  `json:"packetsReceived"`
	BytesSent       uint64  `json:"bytesSent"`
	BytesReceived   uint64  `json:"bytesReceived"`
	ICERole         string  `json:"iceRole"`
	DTLSState       string  `json:"dtlsState"`
}

func ProjectInbound(s webrtc.InboundRTPStreamStats) InboundRTP {
	return InboundRTP{
		Timestamp:       epoch(s.Timestamp),
		Type:            string(s.Type),
		ID:              s.ID,
		SSRC:            uint32(s.SSRC),
		Kind:            s.Kind,
		TransportID:     s.TransportID,
		PacketsReceived: uint64(s.PacketsReceived),
		PacketsLost:     int64(s.PacketsLost),
		Jitter:          s.Jitter,
	}
}

func ProjectOutbound(s webrtc.OutboundRTPStreamStats) OutboundRTP {
	return OutboundRTP{
		Timestamp:   epoch(s.Timestamp),
		Type:        string(s.Type),
		ID:          s.ID,
		SSRC:        uint32(s.SSRC),
		Kind:        s.Kind,
		TransportID: s.TransportID,
		PacketsSent: uint64(s.PacketsSent),
		BytesSent:   uint64(s.BytesSent),
		TrackID:     s.TrackID,
	}
}

func ProjectRemoteInbound(s webrtc.RemoteInboundRTPStreamStats) RemoteInboundRTP {
	return RemoteInboundRTP{
		Timestamp:       epoch(s.Timestamp),
		Type:            string(s.Type),
		ID:              s.ID,
		SSRC:            uint32(s.SSRC),
		Kind:            s.Kind,
		TransportID:     s.TransportID,
		PacketsReceived: uint64(s.PacketsReceived),
		PacketsLost:     int64(s.PacketsLost),
		Jitter:          s.Jitter,
		RoundTripTime:   s.RoundTripTime,
		FractionLost:    s.FractionLost,
	}
}

func ProjectRemoteOutbound(s webrtc.RemoteOutboundRTPStreamStats) RemoteOutboundRTP {
	return RemoteOutboundRTP{
		Timestamp:       epoch(s.Timestamp),
		Type:            string(s.Type),
		ID:              s.ID,
		SSRC:            uint32(s.SSRC),
		Kind:            s.Kind,
		TransportID:     s.TransportID,
		PacketsSent:     uint64(s.PacketsSent),
		BytesSent:       uint64(s.BytesSent),
		RemoteTimestamp: epoch(s.RemoteTimestamp),
	}
}

func ProjectTransport(s webrtc.TransportStats) Transport {
	return Transport{
		Timestamp:       epoch(s.Timestamp),
		Type:            string(s.Type),
		ID:              s.ID,
		PacketsSent:     uint64(s.PacketsSent),
		PacketsReceived: uint64(s.PacketsReceived),
		BytesSent:       uint64(s.BytesSent),
		BytesReceived:   uint64(s.BytesReceived),
		ICERole:         s.ICERole.String(),
		DTLSState:       s.DTLSState.String(),
	}
}
