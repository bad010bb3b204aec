package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/h264reader"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

const h264FrameDuration = time.Second / 30

var (
	opusCodec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	vp8Codec  = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	h264Codec = webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeH264,
		ClockRate:   90000,
		SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
	}
)

// oggStream reads Opus packets out of an Ogg stream. The ID header is
// parsed on the first read so a slow producer never blocks the caller that
// starts the stream.
type oggStream struct {
	in      io.Reader
	started bool

	pending [][]byte
	partial []byte
}

func (s *oggStream) Codec() webrtc.RTPCodecCapability { return opusCodec }

func (s *oggStream) NextSample() (media.Sample, error) {
	if !s.started {
		if _, _, err := oggreader.NewWith(s.in); err != nil {
			return media.Sample{}, err
		}
		s.started = true
	}
	for len(s.pending) == 0 {
		if err := s.readPage(); err != nil {
			return media.Sample{}, err
		}
	}
	pkt := s.pending[0]
	s.pending = s.pending[1:]
	return media.Sample{Data: pkt, Duration: opusPacketDuration(pkt)}, nil
}

// readPage splits one page into packets along its lacing values. A packet
// whose last segment is 255 bytes long continues on the next page. Comment
// headers are dropped.
func (s *oggStream) readPage() error {
	header := make([]byte, oggPageHeaderLen)
	if _, err := io.ReadFull(s.in, header); err != nil {
		return err
	}
	if string(header[:4]) != "OggS" {
		return errBadOggPage
	}
	lacing := make([]byte, header[26])
	if _, err := io.ReadFull(s.in, lacing); err != nil {
		return truncated(err)
	}
	size := 0
	for _, l := range lacing {
		size += int(l)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(s.in, payload); err != nil {
		return truncated(err)
	}

	if header[5]&oggContinuedPacket == 0 {
		s.partial = nil
	}
	off := 0
	for _, l := range lacing {
		s.partial = append(s.partial, payload[off:off+int(l)]...)
		off += int(l)
		if l == 255 {
			continue
		}
		pkt := s.partial
		s.partial = nil
		if isOpusHeader(pkt) {
			continue
		}
		s.pending = append(s.pending, pkt)
	}
	return nil
}

const (
	oggPageHeaderLen   = 27
	oggContinuedPacket = 0x01
)

var errBadOggPage = errors.New("ogg: bad page capture pattern")

func truncated(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func isOpusHeader(pkt []byte) bool {
	return bytes.HasPrefix(pkt, []byte("OpusTags")) || bytes.HasPrefix(pkt, []byte("OpusHead"))
}

// opusPacketDuration reads the frame size and count from the TOC byte.
func opusPacketDuration(pkt []byte) time.Duration {
	if len(pkt) == 0 {
		return 0
	}
	toc := pkt[0]
	config := toc >> 3
	var frame time.Duration
	switch {
	case config < 12:
		frame = [4]time.Duration{10, 20, 40, 60}[config%4] * time.Millisecond
	case config < 16:
		frame = [2]time.Duration{10, 20}[config%2] * time.Millisecond
	default:
		frame = [4]time.Duration{2500, 5000, 10000, 20000}[config%4] * time.Microsecond
	}
	switch toc & 0x03 {
	case 0:
		return frame
	case 1, 2:
		return 2 * frame
	default:
		if len(pkt) < 2 {
			return 0
		}
		return time.Duration(pkt[1]&0x3f) * frame
	}
}

// ivfStream reads VP8, VP9 or AV1 frames. Durations come from the raw frame
// timestamps in the file timebase.
type ivfStream struct {
	in    io.Reader
	codec webrtc.RTPCodecCapability

	started  bool
	num, den uint64
	last     uint64
	seen     bool
}

func newIVFStream(in io.Reader) (*ivfStream, error) {
	s := &ivfStream{in: in}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ivfStream) init() error {
	_, header, err := ivfreader.NewWith(s.in)
	if err != nil {
		return err
	}
	s.started = true
	s.num, s.den = uint64(header.TimebaseNumerator), uint64(header.TimebaseDenominator)
	if s.codec.MimeType == "" {
		s.codec = ivfCodec(header.FourCC)
	}
	return nil
}

func ivfCodec(fourCC string) webrtc.RTPCodecCapability {
	switch fourCC {
	case "VP90":
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP9, ClockRate: 90000}
	case "AV01":
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeAV1, ClockRate: 90000}
	default:
		return vp8Codec
	}
}

func (s *ivfStream) Codec() webrtc.RTPCodecCapability { return s.codec }

// NextSample reads the 12-byte frame header itself: ivfreader rescales the
// timestamp, and pacing needs the pts in timebase units.
func (s *ivfStream) NextSample() (media.Sample, error) {
	if !s.started {
		if err := s.init(); err != nil {
			return media.Sample{}, err
		}
	}
	var hdr [ivfFrameHeaderLen]byte
	if _, err := io.ReadFull(s.in, hdr[:]); err != nil {
		return media.Sample{}, err
	}
	size := binary.LittleEndian.Uint32(hdr[:4])
	pts := binary.LittleEndian.Uint64(hdr[4:])
	frame := make([]byte, size)
	if _, err := io.ReadFull(s.in, frame); err != nil {
		return media.Sample{}, truncated(err)
	}

	var d time.Duration
	if s.seen && pts > s.last && s.den != 0 {
		d = time.Duration((pts-s.last)*s.num) * time.Second / time.Duration(s.den)
	}
	s.last = pts
	s.seen = true
	return media.Sample{Data: frame, Duration: d}, nil
}

const ivfFrameHeaderLen = 12

// h264Stream reads Annex B NAL units at a fixed frame rate. Only the first
// slice of a picture advances the clock; parameter sets, SEI and further
// slices share the picture's timestamp.
type h264Stream struct {
	r *h264reader.H264Reader
}

func (s *h264Stream) Codec() webrtc.RTPCodecCapability { return h264Codec }

func (s *h264Stream) NextSample() (media.Sample, error) {
	nal, err := s.r.NextNAL()
	if err != nil {
		return media.Sample{}, err
	}
	var d time.Duration
	if startsPicture(nal) {
		d = h264FrameDuration
	}
	return media.Sample{Data: nal.Data, Duration: d}, nil
}

// startsPicture reports a VCL NAL whose first_mb_in_slice is zero, i.e. the
// slice header begins with a set bit.
func startsPicture(nal *h264reader.NAL) bool {
	if nal.UnitType < h264reader.NalUnitTypeCodedSliceNonIdr || nal.UnitType > h264reader.NalUnitTypeCodedSliceIdr {
		return false
	}
	return len(nal.Data) > 1 && nal.Data[1]&0x80 != 0
}
