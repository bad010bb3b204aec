package sfu

import (
	"context"
	"errors"
	"io"
	"maps"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"
)

// ElementaryStream yields the encoded samples of one media kind.
type ElementaryStream interface {
	Codec() webrtc.RTPCodecCapability
	// NextSample blocks for the next sample; io.EOF ends the stream.
	NextSample() (media.Sample, error)
}

type Relay struct {
	Src ElementaryStream

	mu        sync.RWMutex
	outTracks map[string]*OutTrack

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRelay(src ElementaryStream, cancel context.CancelFunc) *Relay {
	return &Relay{
		Src:       src,
		outTracks: make(map[string]*OutTrack),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// loop reads samples from the source and forwards them to all OutTracks,
// pacing writes by sample duration.
func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger) {
	defer close(r.done)
	next := time.Now()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, marking all out tracks for delete")
			r.markAllDelete()
			return
		default:
		}
		sample, err := r.Src.NextSample()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info().Msg("source ended")
			} else {
				logger.Error().Err(err).Msg("relay read sample error, stopping")
			}
			r.markAllDelete()
			return
		}
		r.forward(sample, logger)

		next = next.Add(sample.Duration)
		if wait := time.Until(next); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
	}
}

func (r *Relay) forward(sample media.Sample, logger *zerolog.Logger) {
	r.mu.RLock()
	snapshot := make(map[string]*OutTrack, len(r.outTracks))
	maps.Copy(snapshot, r.outTracks)
	r.mu.RUnlock()

	dirty := make([]string, 0, len(snapshot))
	for id, ot := range snapshot {
		switch ot.GetState() {
		case TrackStateDelete:
			dirty = append(dirty, id)
		case TrackStateOk:
			if err := ot.Track.WriteSample(sample); err != nil {
				logger.Error().
					Err(err).
					Str("track_id", id).
					Msg("relay write sample error, marking outtrack as delete")
				ot.MarkDelete()
				dirty = append(dirty, id)
			}
		}
	}

	// Cleanup is done outside the RLock.
	if len(dirty) > 0 {
		r.cleanupDeleted(dirty)
	}
}

func (r *Relay) cleanupDeleted(dirty []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range dirty {
		delete(r.outTracks, id)
	}
}

func (r *Relay) markAllDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ot := range r.outTracks {
		ot.MarkDelete()
	}
}

func (r *Relay) AddOutTrack(ot *OutTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outTracks[ot.ID] = ot
}

// Done is closed once the relay loop has returned.
func (r *Relay) Done() <-chan struct{} { return r.done }
