package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dkeye/rtcworker/internal/app/sfu"
	"github.com/dkeye/rtcworker/internal/domain"
	"github.com/pion/webrtc/v4/pkg/media/h264reader"
)

// fileDemuxer is a single-stream file pion can read without transcoding.
type fileDemuxer struct {
	kind   domain.Kind
	f      *os.File
	stream sfu.ElementaryStream
}

func (d *fileDemuxer) Has(kind domain.Kind) bool { return kind == d.kind }

func (d *fileDemuxer) Stream(kind domain.Kind) (sfu.ElementaryStream, error) {
	if kind != d.kind {
		return nil, fmt.Errorf("no %s stream", kind)
	}
	return d.stream, nil
}

func (d *fileDemuxer) Close() error { return d.f.Close() }

// nativeFormat reports whether path has an extension read natively.
func nativeFormat(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ogg", ".opus", ".ivf", ".h264", ".264":
		return true
	}
	return false
}

func openNative(path string) (Demuxer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	d := &fileDemuxer{f: f}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ogg", ".opus":
		d.kind = domain.KindAudio
		d.stream = &oggStream{in: f}
	case ".ivf":
		d.kind = domain.KindVideo
		d.stream, err = newIVFStream(f)
	case ".h264", ".264":
		d.kind = domain.KindVideo
		var r *h264reader.H264Reader
		if r, err = h264reader.NewReader(f); err == nil {
			d.stream = &h264Stream{r: r}
		}
	default:
		err = errors.New("unsupported file format")
	}
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return d, nil
}
