package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"sync"

	"github.com/dkeye/rtcworker/internal/app/sfu"
	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FFmpeg opens sources through ffmpeg subprocesses that transcode each kind
// to Ogg/Opus or IVF/VP8 on stdout. ffprobe decides which kinds a file or
// url provides; a device provides the kind it was opened for.
type FFmpeg struct {
	Path      string
	ProbePath string
}

func (f FFmpeg) Open(ctx context.Context, src Source) (Demuxer, error) {
	kinds := map[domain.Kind]struct{}{src.Kind: {}}
	if src.Type != domain.SourceDevice {
		probed, err := f.probe(ctx, src)
		if err != nil {
			return nil, err
		}
		kinds = probed
	}
	return &ffmpegDemuxer{
		bin:   f.Path,
		src:   src,
		kinds: kinds,
		logger: log.With().
			Str("module", "app.media").
			Str("source", src.Value).
			Logger(),
	}, nil
}

func (f FFmpeg) probe(ctx context.Context, src Source) (map[domain.Kind]struct{}, error) {
	args := []string{"-v", "error", "-show_entries", "stream=codec_type", "-of", "json"}
	if src.Format != "" {
		args = append(args, "-f", src.Format)
	}
	args = append(args, src.Value)

	out, err := exec.CommandContext(ctx, f.ProbePath, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("ffprobe: %s", exitErr.Stderr)
		}
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (map[domain.Kind]struct{}, error) {
	var res struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, fmt.Errorf("ffprobe output: %w", err)
	}
	kinds := make(map[domain.Kind]struct{}, 2)
	for _, s := range res.Streams {
		if k := domain.Kind(s.CodecType); k.Valid() {
			kinds[k] = struct{}{}
		}
	}
	return kinds, nil
}

// ffmpegArgs builds the command line transcoding the first stream of kind.
func ffmpegArgs(src Source, kind domain.Kind) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if src.Format != "" {
		args = append(args, "-f", src.Format)
	}
	keys := make([]string, 0, len(src.Options))
	for k := range src.Options {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		args = append(args, "-"+k, fmt.Sprint(src.Options[k]))
	}
	args = append(args, "-i", src.Value)

	switch kind {
	case domain.KindAudio:
		args = append(args,
			"-map", "0:a:0",
			"-c:a", "libopus", "-ar", "48000", "-ac", "2",
			"-page_duration", "20000",
			"-f", "ogg", "pipe:1",
		)
	case domain.KindVideo:
		args = append(args,
			"-map", "0:v:0",
			"-c:v", "libvpx", "-deadline", "realtime", "-cpu-used", "8", "-b:v", "1M",
			"-f", "ivf", "pipe:1",
		)
	}
	return args
}

type ffmpegDemuxer struct {
	bin    string
	src    Source
	kinds  map[domain.Kind]struct{}
	logger zerolog.Logger

	mu     sync.Mutex
	procs  []*exec.Cmd
	closed bool
}

func (d *ffmpegDemuxer) Has(kind domain.Kind) bool {
	_, ok := d.kinds[kind]
	return ok
}

func (d *ffmpegDemuxer) Stream(kind domain.Kind) (sfu.ElementaryStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errClosed
	}

	cmd := exec.Command(d.bin, ffmpegArgs(d.src, kind)...)
	cmd.Stderr = d.logger.With().Str("kind", string(kind)).Logger()
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	d.procs = append(d.procs, cmd)
	d.logger.Debug().Str("kind", string(kind)).Int("pid", cmd.Process.Pid).Msg("ffmpeg started")

	if kind == domain.KindAudio {
		return &oggStream{in: stdout}, nil
	}
	return &ivfStream{in: stdout, codec: vp8Codec}, nil
}

// Close kills every ffmpeg process and waits for it to exit.
func (d *ffmpegDemuxer) Close() error {
	d.mu.Lock()
	d.closed = true
	procs := d.procs
	d.procs = nil
	d.mu.Unlock()

	for _, cmd := range procs {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
	return nil
}
