// Package media turns source descriptors into live local tracks.
//
// A source is opened once as a pipeline. Each media kind of a pipeline is
// decoded once and fanned out through an sfu relay to every track
// subscribed to that kind.
package media

import (
	"context"
	"sync"

	"github.com/dkeye/rtcworker/internal/app/sfu"
	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Request describes the track an addTrack call asks for.
type Request struct {
	Kind       domain.Kind
	SourceType domain.SourceType
	Value      string
	Format     string
	Options    map[string]any
}

// Source is a Request with platform defaults applied, ready to open.
type Source struct {
	Type    domain.SourceType
	Kind    domain.Kind
	Value   string
	Format  string
	Options map[string]any
}

// Opener opens a source as a Demuxer. ctx bounds opening only; the
// demuxer lives until Close.
type Opener interface {
	Open(ctx context.Context, src Source) (Demuxer, error)
}

// Demuxer exposes the elementary streams of one opened source.
type Demuxer interface {
	Has(kind domain.Kind) bool
	// Stream is called at most once per kind.
	Stream(kind domain.Kind) (sfu.ElementaryStream, error)
	Close() error
}

// Track is one local track fed by a pipeline.
type Track struct {
	ID   string
	Kind domain.Kind

	local    *webrtc.TrackLocalStaticSample
	stopOnce sync.Once
	stop     func()
}

func (t *Track) Local() webrtc.TrackLocal { return t.local }

// Stop detaches the track from its pipeline. Safe to call more than once.
func (t *Track) Stop() {
	t.stopOnce.Do(func() {
		if t.stop != nil {
			t.stop()
		}
	})
}
