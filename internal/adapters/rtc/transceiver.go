package rtc

import (
	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/pion/webrtc/v4"
)

type transceiver struct {
	pc *webrtc.PeerConnection
	t  *webrtc.RTPTransceiver
}

func (t *transceiver) Mid() string { return t.t.Mid() }

func (t *transceiver) Kind() domain.Kind { return domain.Kind(t.t.Kind().String()) }

func (t *transceiver) Direction() webrtc.RTPTransceiverDirection { return t.t.Direction() }

func (t *transceiver) Deactivate() error {
	sender := t.t.Sender()
	if sender == nil {
		return nil
	}
	return t.pc.RemoveTrack(sender)
}

// SenderStats narrows the connection stats to the streams this transceiver sends.
func (t *transceiver) SenderStats() webrtc.StatsReport {
	ssrcs := map[webrtc.SSRC]struct{}{}
	if sender := t.t.Sender(); sender != nil {
		for _, enc := range sender.GetParameters().Encodings {
			ssrcs[enc.SSRC] = struct{}{}
		}
	}
	return filterBySSRC(t.pc.GetStats(), ssrcs)
}

// ReceiverStats narrows the connection stats to the streams this transceiver receives.
func (t *transceiver) ReceiverStats() webrtc.StatsReport {
	ssrcs := map[webrtc.SSRC]struct{}{}
	if receiver := t.t.Receiver(); receiver != nil {
		for _, track := range receiver.Tracks() {
			ssrcs[track.SSRC()] = struct{}{}
		}
	}
	return filterBySSRC(t.pc.GetStats(), ssrcs)
}

// filterBySSRC keeps transport records and the RTP stream records whose SSRC
// is in ssrcs. Other record types are left for the projector to drop.
func filterBySSRC(report webrtc.StatsReport, ssrcs map[webrtc.SSRC]struct{}) webrtc.StatsReport {
	out := make(webrtc.StatsReport, len(report))
	for id, s := range report {
		var ssrc webrtc.SSRC
		switch v := s.(type) {
		case webrtc.TransportStats:
			out[id] = v
			continue
		case webrtc.InboundRTPStreamStats:
			ssrc = v.SSRC
		case webrtc.OutboundRTPStreamStats:
			ssrc = v.SSRC
		case webrtc.RemoteInboundRTPStreamStats:
			ssrc = v.SSRC
		case webrtc.RemoteOutboundRTPStreamStats:
			ssrc = v.SSRC
		default:
			continue
		}
		if _, ok := ssrcs[ssrc]; ok {
			out[id] = s
		}
	}
	return out
}
