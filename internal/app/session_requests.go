package app

import (
	"context"
	"fmt"

	"github.com/dkeye/rtcworker/internal/app/media"
	"github.com/dkeye/rtcworker/internal/app/stats"
	"github.com/dkeye/rtcworker/internal/core"
	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type requestHandler func(ctx context.Context, s *Session, req domain.Request) (any, error)

// withData decodes and validates the payload before calling fn.
func withData[T any](fn func(*Session, context.Context, T) (any, error)) requestHandler {
	return func(ctx context.Context, s *Session, req domain.Request) (any, error) {
		in, err := decode[T](req.Data)
		if err != nil {
			return nil, err
		}
		return fn(s, ctx, in)
	}
}

func noData(fn func(*Session, context.Context) (any, error)) requestHandler {
	return func(ctx context.Context, s *Session, _ domain.Request) (any, error) {
		return fn(s, ctx)
	}
}

var requestHandlers = map[domain.Method]requestHandler{
	domain.MethodGetRtpCapabilities:   noData((*Session).getRtpCapabilities),
	domain.MethodGetLocalDescription:  noData((*Session).getLocalDescription),
	domain.MethodAddTrack:             withData((*Session).addTrack),
	domain.MethodRemoveTrack:          withData((*Session).removeTrack),
	domain.MethodSetLocalDescription:  withData((*Session).setLocalDescription),
	domain.MethodSetRemoteDescription: withData((*Session).setRemoteDescription),
	domain.MethodCreateOffer:          noData((*Session).createOffer),
	domain.MethodCreateAnswer:         noData((*Session).createAnswer),
	domain.MethodGetMid:               withData((*Session).getMid),
	domain.MethodGetTransportStats:    noData((*Session).getTransportStats),
	domain.MethodGetSenderStats:       withData((*Session).getSenderStats),
	domain.MethodGetReceiverStats:     withData((*Session).getReceiverStats),
	domain.MethodCreateDataChannel: func(ctx context.Context, s *Session, req domain.Request) (any, error) {
		in, err := decode[domain.DataChannelParams](req.Data)
		if err != nil {
			return nil, err
		}
		return s.createDataChannel(req.Internal.Ref(), in)
	},
}

// HandleRequest runs the handler for req.Method and returns the reply data.
func (s *Session) HandleRequest(ctx context.Context, req domain.Request) (any, error) {
	h, ok := requestHandlers[req.Method]
	if !ok {
		return nil, fmt.Errorf("unknown method %q: %w", req.Method, domain.ErrUnknownOperation)
	}
	return h(ctx, s, req)
}

// getRtpCapabilities reports the SDP a scratch engine offers for one
// send-only audio and one send-only video transceiver.
func (s *Session) getRtpCapabilities(context.Context) (any, error) {
	scratch, err := s.factory()
	if err != nil {
		return nil, domain.EngineFailure(err)
	}
	defer func() {
		if err := scratch.Close(); err != nil {
			log.Warn().Err(err).Str("module", "app.session").Msg("scratch engine close error")
		}
	}()

	for _, kind := range []domain.Kind{domain.KindAudio, domain.KindVideo} {
		if _, err := scratch.AddTransceiverFromKind(kind, webrtc.RTPTransceiverDirectionSendonly); err != nil {
			return nil, domain.EngineFailure(err)
		}
	}
	offer, err := scratch.CreateOffer()
	if err != nil {
		return nil, domain.EngineFailure(err)
	}
	return offer.SDP, nil
}

func (s *Session) getLocalDescription(context.Context) (any, error) {
	d := s.engine.LocalDescription()
	if d == nil {
		return nil, nil
	}
	return toWire(*d), nil
}

func (s *Session) addTrack(ctx context.Context, in domain.AddTrackData) (any, error) {
	track, err := s.sources.Resolve(ctx, media.Request{
		Kind:       in.Kind,
		SourceType: in.SourceType,
		Value:      in.SourceValue,
		Format:     in.Format,
		Options:    in.Options,
	})
	if err != nil {
		return nil, err
	}

	t, err := s.engine.AddTransceiver(track.Local())
	if err != nil {
		track.Stop()
		return nil, domain.EngineFailure(err)
	}
	s.transceivers.PutIfAbsent(track.ID, &transceiverRecord{
		Kind:        in.Kind,
		Track:       track,
		Transceiver: t,
	})

	log.Info().
		Str("module", "app.session").
		Str("track_id", track.ID).
		Str("kind", string(in.Kind)).
		Str("source_type", string(in.SourceType)).
		Msg("track added")
	return domain.TrackRef{TrackID: track.ID}, nil
}

func (s *Session) removeTrack(_ context.Context, in domain.TrackRef) (any, error) {
	rec, ok := s.transceivers.Remove(in.TrackID)
	if !ok {
		return nil, fmt.Errorf("%w: track %q", domain.ErrNotFound, in.TrackID)
	}
	err := rec.Transceiver.Deactivate()
	rec.Track.Stop()
	if err != nil {
		return nil, domain.EngineFailure(err)
	}
	log.Info().Str("module", "app.session").Str("track_id", in.TrackID).Msg("track removed")
	return nil, nil
}

func (s *Session) setLocalDescription(_ context.Context, in domain.SessionDescription) (any, error) {
	if err := s.engine.SetLocalDescription(fromWire(in)); err != nil {
		return nil, domain.EngineFailure(err)
	}
	return nil, nil
}

func (s *Session) setRemoteDescription(_ context.Context, in domain.SessionDescription) (any, error) {
	if err := s.engine.SetRemoteDescription(fromWire(in)); err != nil {
		return nil, domain.EngineFailure(err)
	}
	return nil, nil
}

func (s *Session) createOffer(context.Context) (any, error) {
	d, err := s.engine.CreateOffer()
	if err != nil {
		return nil, domain.EngineFailure(err)
	}
	return toWire(d), nil
}

func (s *Session) createAnswer(context.Context) (any, error) {
	d, err := s.engine.CreateAnswer()
	if err != nil {
		return nil, domain.EngineFailure(err)
	}
	return toWire(d), nil
}

// getMid replies without data while the transceiver has no mid.
func (s *Session) getMid(_ context.Context, in domain.TrackRef) (any, error) {
	rec, ok := s.transceivers.Get(in.TrackID)
	if !ok {
		return nil, fmt.Errorf("%w: track %q", domain.ErrNotFound, in.TrackID)
	}
	if mid := rec.Transceiver.Mid(); mid != "" {
		return mid, nil
	}
	return nil, nil
}

func (s *Session) getTransportStats(context.Context) (any, error) {
	return s.TransportStats(), nil
}

// TransportStats projects the connection-wide stats report.
func (s *Session) TransportStats() map[string]any {
	return stats.Project(s.engine.Stats(), stats.TransportKinds)
}

func (s *Session) getSenderStats(_ context.Context, in domain.MidRef) (any, error) {
	t, err := s.transceiverByMid(in.Mid)
	if err != nil {
		return nil, err
	}
	return stats.Project(t.SenderStats(), stats.SenderKinds), nil
}

func (s *Session) getReceiverStats(_ context.Context, in domain.MidRef) (any, error) {
	t, err := s.transceiverByMid(in.Mid)
	if err != nil {
		return nil, err
	}
	return stats.Project(t.ReceiverStats(), stats.ReceiverKinds), nil
}

func (s *Session) transceiverByMid(mid string) (core.Transceiver, error) {
	for _, t := range s.engine.Transceivers() {
		if t.Mid() == mid {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: no transceiver with mid %q", domain.ErrNotFound, mid)
}

// createDataChannel creates a channel registered under ref, negotiated
// out-of-band on the stream id the host picked.
func (s *Session) createDataChannel(ref string, in domain.DataChannelParams) (any, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: missing internal.channelRef", domain.ErrValidation)
	}
	if _, ok := s.channels.Get(ref); ok {
		return nil, fmt.Errorf("%w: data channel %q already exists", domain.ErrValidation, ref)
	}

	negotiated := true
	init := &webrtc.DataChannelInit{
		Ordered:           in.Ordered,
		MaxPacketLifeTime: in.MaxPacketLifeTime,
		MaxRetransmits:    in.MaxRetransmits,
		ID:                in.ID,
		Negotiated:        &negotiated,
	}
	if in.Protocol != "" {
		init.Protocol = &in.Protocol
	}

	dc, err := s.engine.CreateDataChannel(in.Label, init)
	if err != nil {
		return nil, domain.EngineFailure(err)
	}
	if !s.channels.PutIfAbsent(ref, &channelRecord{Channel: dc}) {
		_ = dc.Close()
		return nil, fmt.Errorf("%w: data channel %q already exists", domain.ErrValidation, ref)
	}
	dc.SetObserver(&channelObserver{s: s, ref: ref, dc: dc})

	log.Info().
		Str("module", "app.session").
		Str("channel_ref", ref).
		Str("label", in.Label).
		Msg("data channel created")
	return snapshot(dc), nil
}

func snapshot(dc core.DataChannel) domain.DataChannelSnapshot {
	return domain.DataChannelSnapshot{
		StreamID:                   dc.ID(),
		Ordered:                    dc.Ordered(),
		MaxPacketLifeTime:          dc.MaxPacketLifeTime(),
		MaxRetransmits:             dc.MaxRetransmits(),
		Label:                      dc.Label(),
		Protocol:                   dc.Protocol(),
		ReadyState:                 dc.ReadyState().String(),
		BufferedAmount:             dc.BufferedAmount(),
		BufferedAmountLowThreshold: dc.BufferedAmountLowThreshold(),
	}
}

func toWire(d webrtc.SessionDescription) domain.SessionDescription {
	return domain.SessionDescription{Type: d.Type.String(), SDP: d.SDP}
}

func fromWire(d domain.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(d.Type), SDP: d.SDP}
}

