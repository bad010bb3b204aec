package sfu

import (
	"context"
	"sync"

	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// RelayManager holds at most one relay per media kind of a source pipeline.
type RelayManager struct {
	source string

	mu     sync.RWMutex
	relays map[domain.Kind]*Relay
}

func NewRelayManager(source string) *RelayManager {
	return &RelayManager{
		source: source,
		relays: make(map[domain.Kind]*Relay),
	}
}

// StartRelay creates the relay for kind and starts its loop.
// An existing relay for kind is kept and returned.
func (m *RelayManager) StartRelay(ctx context.Context, kind domain.Kind, src ElementaryStream) *Relay {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.relays[kind]; ok {
		return old
	}

	logger := log.With().
		Str("module", "sfu").
		Str("source", m.source).
		Str("kind", string(kind)).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(src, cancel)
	m.relays[kind] = relay

	logger.Info().Str("codec", src.Codec().MimeType).Msg("starting relay loop")
	go relay.loop(relayCtx, &logger)
	return relay
}

// Codec returns the codec of the relay for kind.
func (m *RelayManager) Codec(kind domain.Kind) (webrtc.RTPCodecCapability, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	relay, ok := m.relays[kind]
	if !ok {
		return webrtc.RTPCodecCapability{}, false
	}
	return relay.Src.Codec(), true
}

// AddSubscriber attaches ot to the relay for kind.
func (m *RelayManager) AddSubscriber(kind domain.Kind, ot *OutTrack) bool {
	m.mu.RLock()
	relay, ok := m.relays[kind]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	relay.AddOutTrack(ot)
	return true
}

// MarkSubscriberDelete marks the OutTrack id of the relay for kind as TrackStateDelete.
func (m *RelayManager) MarkSubscriberDelete(kind domain.Kind, id string) {
	m.mu.RLock()
	relay, ok := m.relays[kind]
	m.mu.RUnlock()
	if !ok {
		return
	}

	relay.mu.RLock()
	ot, ok := relay.outTracks[id]
	relay.mu.RUnlock()
	if !ok {
		return
	}
	ot.MarkDelete()
}

// HasRelay reports whether a relay exists for kind.
func (m *RelayManager) HasRelay(kind domain.Kind) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.relays[kind]
	return ok
}

// StopAll cancels every relay and removes it from the manager.
// Loops blocked in NextSample exit once their source is closed.
func (m *RelayManager) StopAll() []*Relay {
	m.mu.Lock()
	relays := make([]*Relay, 0, len(m.relays))
	for kind, relay := range m.relays {
		relays = append(relays, relay)
		delete(m.relays, kind)
	}
	m.mu.Unlock()

	for _, relay := range relays {
		relay.markAllDelete()
		relay.cancel()
	}
	return relays
}
