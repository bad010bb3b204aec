package app

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/rs/zerolog/log"
)

type notificationHandler func(s *Session, ctx context.Context, n domain.Notification) error

var notificationHandlers = map[domain.Event]notificationHandler{
	domain.EventEnableTrack:                     (*Session).trackToggle,
	domain.EventDisableTrack:                    (*Session).trackToggle,
	domain.EventDataChannelSend:                 (*Session).sendText,
	domain.EventDataChannelSendBinary:           (*Session).sendBinary,
	domain.EventDataChannelClose:                (*Session).closeDataChannel,
	domain.EventDataChannelSetBufferedAmountLow: (*Session).setBufferedAmountLowThreshold,
}

// HandleNotification runs the handler for n.Event. Failures are for the
// caller to log; nothing is replied.
func (s *Session) HandleNotification(ctx context.Context, n domain.Notification) error {
	h, ok := notificationHandlers[n.Event]
	if !ok {
		return fmt.Errorf("unknown event %q: %w", n.Event, domain.ErrUnknownOperation)
	}
	return h(s, ctx, n)
}

func (s *Session) trackToggle(_ context.Context, n domain.Notification) error {
	log.Warn().Str("module", "app.session").Str("event", string(n.Event)).Msg("track toggling is not supported, ignoring")
	return nil
}

func (s *Session) sendText(_ context.Context, n domain.Notification) error {
	rec, ref, err := s.channel(n.Internal)
	if err != nil {
		return err
	}
	text, err := decodeValue[string](n.Data)
	if err != nil {
		return err
	}
	if err := rec.Channel.SendText(text); err != nil {
		return domain.EngineFailure(err)
	}
	s.notifier.Notify(ref, domain.EventBufferedAmount, rec.Channel.BufferedAmount())
	return nil
}

func (s *Session) sendBinary(_ context.Context, n domain.Notification) error {
	rec, ref, err := s.channel(n.Internal)
	if err != nil {
		return err
	}
	encoded, err := decodeValue[string](n.Data)
	if err != nil {
		return err
	}
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("%w: binary payload: %v", domain.ErrValidation, err)
	}
	if err := rec.Channel.Send(payload); err != nil {
		return domain.EngineFailure(err)
	}
	s.notifier.Notify(ref, domain.EventBufferedAmount, rec.Channel.BufferedAmount())
	return nil
}

// closeDataChannel removes the record if present and closes the channel.
// A channel already removed by its own close event is left alone.
func (s *Session) closeDataChannel(_ context.Context, n domain.Notification) error {
	ref := n.Internal.Ref()
	if ref == "" {
		return fmt.Errorf("%w: missing internal.channelRef", domain.ErrValidation)
	}
	rec, ok := s.channels.Remove(ref)
	if !ok {
		log.Debug().Str("module", "app.session").Str("channel_ref", ref).Msg("data channel already closed")
		return nil
	}
	err := rec.Channel.Close()
	s.notifier.Notify(ref, domain.EventClose, nil)
	if err != nil {
		return domain.EngineFailure(err)
	}
	return nil
}

func (s *Session) setBufferedAmountLowThreshold(_ context.Context, n domain.Notification) error {
	rec, _, err := s.channel(n.Internal)
	if err != nil {
		return err
	}
	threshold, err := decodeValue[uint64](n.Data)
	if err != nil {
		return err
	}
	rec.Channel.SetBufferedAmountLowThreshold(threshold)
	return nil
}

func (s *Session) channel(in domain.Internal) (*channelRecord, string, error) {
	ref := in.Ref()
	if ref == "" {
		return nil, "", fmt.Errorf("%w: missing internal.channelRef", domain.ErrValidation)
	}
	rec, ok := s.channels.Get(ref)
	if !ok {
		return nil, ref, fmt.Errorf("%w: data channel %q", domain.ErrNotFound, ref)
	}
	return rec, ref, nil
}
