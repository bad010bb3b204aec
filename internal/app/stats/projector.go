// Package stats projects pion stats records onto the worker's wire schema.
//
// Each projection keeps a fixed field set. Record types outside the requested
// kinds, and types with no projection at all, are dropped.
package stats

import "github.com/pion/webrtc/v4"

// Kinds is a set of stats record types to keep.
type Kinds map[webrtc.StatsType]struct{}

func NewKinds(types ...webrtc.StatsType) Kinds {
	k := make(Kinds, len(types))
	for _, t := range types {
		k[t] = struct{}{}
	}
	return k
}

func (k Kinds) Has(t webrtc.StatsType) bool {
	_, ok := k[t]
	return ok
}

var (
	TransportKinds = NewKinds(
		webrtc.StatsTypeInboundRTP,
		webrtc.StatsTypeOutboundRTP,
		webrtc.StatsTypeRemoteInboundRTP,
		webrtc.StatsTypeRemoteOutboundRTP,
		webrtc.StatsTypeTransport,
	)
	SenderKinds = NewKinds(
		webrtc.StatsTypeOutboundRTP,
		webrtc.StatsTypeRemoteInboundRTP,
		webrtc.StatsTypeTransport,
	)
	ReceiverKinds = NewKinds(
		webrtc.StatsTypeInboundRTP,
		webrtc.StatsTypeRemoteOutboundRTP,
		webrtc.StatsTypeTransport,
	)
)

// Project maps every record of report whose type is in kinds, keyed by stats id.
func Project(report webrtc.StatsReport, kinds Kinds) map[string]any {
	out := make(map[string]any, len(report))
	for id, s := range report {
		rec, t, ok := project(s)
		if !ok || !kinds.Has(t) {
			continue
		}
		out[id] = rec
	}
	return out
}

func project(s webrtc.Stats) (any, webrtc.StatsType, bool) {
	switch v := s.(type) {
	case webrtc.InboundRTPStreamStats:
		return ProjectInbound(v), webrtc.StatsTypeInboundRTP, true
	case webrtc.OutboundRTPStreamStats:
		return ProjectOutbound(v), webrtc.StatsTypeOutboundRTP, true
	case webrtc.RemoteInboundRTPStreamStats:
		return ProjectRemoteInbound(v), webrtc.StatsTypeRemoteInboundRTP, true
	case webrtc.RemoteOutboundRTPStreamStats:
		return ProjectRemoteOutbound(v), webrtc.StatsTypeRemoteOutboundRTP, true
	case webrtc.TransportStats:
		return ProjectTransport(v), webrtc.StatsTypeTransport, true
	default:
		return nil, "", false
	}
}

// epoch converts a pion timestamp (milliseconds) to epoch seconds.
func epoch(ts webrtc.StatsTimestamp) float64 {
	return float64(ts) / 1000
}
