package media

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry resolves source descriptors into tracks. File and url pipelines
// are cached by source for the registry's lifetime; device pipelines are
// opened per track and stopped with it.
type Registry struct {
	opener Opener

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	files   map[string]*pipeline
	urls    map[string]*pipeline
	devices map[*pipeline]struct{}
	closed  bool
}

func NewRegistry(opener Opener) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		opener:  opener,
		ctx:     ctx,
		cancel:  cancel,
		files:   make(map[string]*pipeline),
		urls:    make(map[string]*pipeline),
		devices: make(map[*pipeline]struct{}),
	}
}

func (r *Registry) Resolve(ctx context.Context, req Request) (*Track, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: invalid kind %q", domain.ErrValidation, req.Kind)
	}
	switch req.SourceType {
	case domain.SourceDevice:
		return r.resolveDevice(ctx, req)
	case domain.SourceFile, domain.SourceURL:
		return r.resolveCached(ctx, req)
	default:
		return nil, fmt.Errorf("%w: invalid sourceType %q", domain.ErrValidation, req.SourceType)
	}
}

func (r *Registry) resolveDevice(ctx context.Context, req Request) (*Track, error) {
	src, err := deviceSource(req)
	if err != nil {
		return nil, err
	}
	demux, err := r.open(ctx, src)
	if err != nil {
		return nil, err
	}
	p := newPipeline(src.Value, demux)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		p.close()
		return nil, errClosed
	}
	r.devices[p] = struct{}{}
	r.mu.Unlock()

	track, err := p.subscribe(r.ctx, req.Kind, func() { r.dropDevice(p) })
	if err != nil {
		r.dropDevice(p)
		return nil, err
	}
	return track, nil
}

func (r *Registry) resolveCached(ctx context.Context, req Request) (*Track, error) {
	if req.Value == "" {
		return nil, fmt.Errorf("%w: sourceValue is required for %s sources", domain.ErrValidation, req.SourceType)
	}
	key := req.Value
	table := r.urls
	if req.SourceType == domain.SourceFile {
		abs, err := filepath.Abs(req.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		key = abs
		table = r.files
	}

	r.mu.Lock()
	p, ok := table[key]
	r.mu.Unlock()

	if !ok {
		demux, err := r.open(ctx, Source{
			Type:    req.SourceType,
			Kind:    req.Kind,
			Value:   key,
			Format:  req.Format,
			Options: req.Options,
		})
		if err != nil {
			return nil, err
		}
		opened := newPipeline(key, demux)

		r.mu.Lock()
		switch existing, raced := table[key]; {
		case r.closed:
			r.mu.Unlock()
			opened.close()
			return nil, errClosed
		case raced:
			r.mu.Unlock()
			opened.close()
			p = existing
		default:
			table[key] = opened
			r.mu.Unlock()
			p = opened
			log.Info().Str("module", "app.media").Str("source_type", string(req.SourceType)).Str("source", key).Msg("pipeline opened")
		}
	}

	return p.subscribe(r.ctx, req.Kind, nil)
}

func (r *Registry) open(ctx context.Context, src Source) (Demuxer, error) {
	demux, err := r.opener.Open(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s %s: %w", domain.ErrValidation, src.Type, src.Value, err)
	}
	return demux, nil
}

func (r *Registry) dropDevice(p *pipeline) {
	r.mu.Lock()
	delete(r.devices, p)
	r.mu.Unlock()
	p.close()
}

// Cached reports how many pipelines are cached for sourceType.
func (r *Registry) Cached(sourceType domain.SourceType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch sourceType {
	case domain.SourceFile:
		return len(r.files)
	case domain.SourceURL:
		return len(r.urls)
	case domain.SourceDevice:
		return len(r.devices)
	}
	return 0
}

// Close stops every pipeline. Tracks still attached stop receiving samples.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	pipelines := make([]*pipeline, 0, len(r.files)+len(r.urls)+len(r.devices))
	for _, p := range r.files {
		pipelines = append(pipelines, p)
	}
	for _, p := range r.urls {
		pipelines = append(pipelines, p)
	}
	for p := range r.devices {
		pipelines = append(pipelines, p)
	}
	clear(r.files)
	clear(r.urls)
	clear(r.devices)
	r.mu.Unlock()

	r.cancel()
	for _, p := range pipelines {
		p.close()
	}
	log.Info().Str("module", "app.media").Int("pipelines", len(pipelines)).Msg("registry closed")
}
