package media

import (
	"context"

	"github.com/dkeye/rtcworker/internal/domain"
)

// Pipelines is the default Opener: files pion reads natively are opened
// directly, everything else goes through ffmpeg.
type Pipelines struct {
	FFmpeg FFmpeg
}

func NewPipelines(ffmpegPath, ffprobePath string) Pipelines {
	return Pipelines{FFmpeg: FFmpeg{Path: ffmpegPath, ProbePath: ffprobePath}}
}

func (o Pipelines) Open(ctx context.Context, src Source) (Demuxer, error) {
	if src.Type == domain.SourceFile && src.Format == "" && nativeFormat(src.Value) {
		return openNative(src.Value)
	}
	return o.FFmpeg.Open(ctx, src)
}
