package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/rtcworker/internal/app/sfu"
	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const streamID = "rtcworker"

type pipeline struct {
	key    string
	demux  Demuxer
	relays *sfu.RelayManager

	mu        sync.Mutex
	closeOnce sync.Once
}

func newPipeline(key string, demux Demuxer) *pipeline {
	return &pipeline{
		key:    key,
		demux:  demux,
		relays: sfu.NewRelayManager(key),
	}
}

// subscribe returns a new track fed by the relay for kind, starting the
// relay on first use. onStop runs after the track is detached.
func (p *pipeline) subscribe(ctx context.Context, kind domain.Kind, onStop func()) (*Track, error) {
	if !p.demux.Has(kind) {
		return nil, fmt.Errorf("%w: source %s has no %s stream", domain.ErrValidation, p.key, kind)
	}

	p.mu.Lock()
	if !p.relays.HasRelay(kind) {
		stream, err := p.demux.Stream(kind)
		if err != nil {
			p.mu.Unlock()
			return nil, fmt.Errorf("%w: %s %s stream: %w", domain.ErrValidation, p.key, kind, err)
		}
		p.relays.StartRelay(ctx, kind, stream)
	}
	p.mu.Unlock()

	codec, _ := p.relays.Codec(kind)
	id := domain.NewTrackID(kind)
	local, err := webrtc.NewTrackLocalStaticSample(codec, id, streamID)
	if err != nil {
		return nil, err
	}
	p.relays.AddSubscriber(kind, sfu.NewOutTrack(id, local))

	return &Track{
		ID:    id,
		Kind:  kind,
		local: local,
		stop: func() {
			p.relays.MarkSubscriberDelete(kind, id)
			if onStop != nil {
				onStop()
			}
		},
	}, nil
}

// close stops the relays, then the demuxer, which unblocks relay reads.
func (p *pipeline) close() {
	p.closeOnce.Do(func() {
		p.relays.StopAll()
		if err := p.demux.Close(); err != nil {
			log.Warn().Err(err).Str("module", "app.media").Str("source", p.key).Msg("pipeline close error")
			return
		}
		log.Debug().Str("module", "app.media").Str("source", p.key).Msg("pipeline closed")
	})
}
