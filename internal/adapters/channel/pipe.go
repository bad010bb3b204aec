// Package channel implements core.Channel transports to the host process.
package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/dkeye/rtcworker/internal/core"
	"github.com/rs/zerolog/log"
)

const DefaultMaxMessageSize = 4 << 20

var (
	ErrClosed  = errors.New("channel closed")
	ErrFraming = errors.New("bad netstring framing")
)

// maxLengthDigits bounds the length prefix of a netstring.
const maxLengthDigits = 10

type readResult struct {
	frame core.Frame
	err   error
}

// Pipe is a netstring-framed channel ("<len>:<payload>,") over a reader and
// a writer. Reads run on one goroutine so Receive can honour ctx; writes are
// serialized so frames never interleave.
type Pipe struct {
	r       *bufio.Reader
	w       io.Writer
	closers []io.Closer
	max     int

	readOnce sync.Once
	results  chan readResult
	done     chan struct{}

	wmu       sync.Mutex
	closeOnce sync.Once
}

func NewPipe(r io.Reader, w io.Writer, maxSize int, closers ...io.Closer) *Pipe {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &Pipe{
		r:       bufio.NewReader(r),
		w:       w,
		closers: closers,
		max:     maxSize,
		results: make(chan readResult),
		done:    make(chan struct{}),
	}
}

// OpenPipe wraps two inherited file descriptors.
func OpenPipe(readFD, writeFD, maxSize int) (*Pipe, error) {
	rf := os.NewFile(uintptr(readFD), "channel-read")
	wf := os.NewFile(uintptr(writeFD), "channel-write")
	if rf == nil || wf == nil {
		return nil, fmt.Errorf("invalid channel fds %d/%d", readFD, writeFD)
	}
	log.Info().Str("module", "channel").Int("read_fd", readFD).Int("write_fd", writeFD).Msg("pipe channel open")
	return NewPipe(rf, wf, maxSize, rf, wf), nil
}

func (p *Pipe) Receive(ctx context.Context) (core.Frame, error) {
	p.readOnce.Do(func() { go p.readLoop() })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, ErrClosed
	case res := <-p.results:
		return res.frame, res.err
	}
}

func (p *Pipe) readLoop() {
	for {
		frame, err := p.readFrame()
		select {
		case p.results <- readResult{frame: frame, err: err}:
		case <-p.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (p *Pipe) readFrame() (core.Frame, error) {
	var n int
	digits := 0
	for {
		b, err := p.r.ReadByte()
		if err != nil {
			if digits > 0 && errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if b == ':' {
			break
		}
		if b < '0' || b > '9' || digits == maxLengthDigits {
			return nil, fmt.Errorf("%w: bad length", ErrFraming)
		}
		n = n*10 + int(b-'0')
		digits++
	}
	if digits == 0 {
		return nil, fmt.Errorf("%w: empty length", ErrFraming)
	}
	if n > p.max {
		return nil, fmt.Errorf("%w: message of %d bytes exceeds limit %d", ErrFraming, n, p.max)
	}

	buf := make([]byte, n+1)
	if _, err := io.ReadFull(p.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if buf[n] != ',' {
		return nil, fmt.Errorf("%w: missing terminator", ErrFraming)
	}
	return buf[:n], nil
}

func (p *Pipe) Send(ctx context.Context, f core.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(f) > p.max {
		return fmt.Errorf("message of %d bytes exceeds limit %d", len(f), p.max)
	}
	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	buf := make([]byte, 0, len(f)+16)
	buf = strconv.AppendInt(buf, int64(len(f)), 10)
	buf = append(buf, ':')
	buf = append(buf, f...)
	buf = append(buf, ',')

	p.wmu.Lock()
	defer p.wmu.Unlock()
	_, err := p.w.Write(buf)
	return err
}

func (p *Pipe) Close() error {
	var errs []error
	p.closeOnce.Do(func() {
		close(p.done)
		for _, c := range p.closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		log.Info().Str("module", "channel").Msg("pipe channel closed")
	})
	return errors.Join(errs...)
}
