package fft

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Format describes raw interleaved PCM the way the daemon advertises
// it: sample rate, bit depth, and channel count.
type Format struct {
	Rate     int
	Bits     int
	Channels int
}

// ParseFormat parses a "44100:16:2" style triple.
func ParseFormat(s string) (Format, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Format{}, fmt.Errorf("invalid format %q: want rate:bits:channels", s)
	}
	var f Format
	var err error
	if f.Rate, err = strconv.Atoi(parts[0]); err != nil || f.Rate <= 0 {
		return Format{}, fmt.Errorf("invalid sample rate in %q", s)
	}
	if f.Bits, err = strconv.Atoi(parts[1]); err != nil {
		return Format{}, fmt.Errorf("invalid bit depth in %q", s)
	}
	switch f.Bits {
	case 8, 16, 32:
	default:
		return Format{}, fmt.Errorf("unsupported bit depth %d in %q", f.Bits, s)
	}
	if f.Channels, err = strconv.Atoi(parts[2]); err != nil || f.Channels <= 0 {
		return Format{}, fmt.Errorf("invalid channel count in %q", s)
	}
	return f, nil
}

// frameSize returns the byte width of one interleaved frame.
func (f Format) frameSize() int { return f.Bits / 8 * f.Channels }

// FIFOSource reads PCM from the daemon's named-pipe output. The pipe
// is opened non-blocking so a paused daemon never wedges the worker,
// and it is reopened on EOF because the daemon recreates its end
// between tracks.
type FIFOSource struct {
	path   string
	format Format
	logger zerolog.Logger

	mu   sync.Mutex
	file *os.File
	stop chan struct{}
	done chan struct{}
}

// FIFOConfig configures a FIFOSource.
type FIFOConfig struct {
	Path   string
	Format string
	Logger zerolog.Logger
}

// NewFIFOSource validates the format triple and returns a source for
// the named pipe. The pipe itself is not opened until Start.
func NewFIFOSource(cfg FIFOConfig) (*FIFOSource, error) {
	format, err := ParseFormat(cfg.Format)
	if err != nil {
		return nil, &Error{Op: "fifo format", Err: err}
	}
	if cfg.Path == "" {
		return nil, errorf("fifo open", "no pipe path configured")
	}
	return &FIFOSource{
		path:   cfg.Path,
		format: format,
		logger: cfg.Logger.With().Str("component", "fifo").Logger(),
	}, nil
}

func (s *FIFOSource) Name() string    { return "fifo" }
func (s *FIFOSource) SampleRate() int { return s.format.Rate }

// Start opens the pipe and spawns the reader worker.
func (s *FIFOSource) Start(ring *Ring) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}
	file, err := openPipe(s.path)
	if err != nil {
		return &Error{Op: "fifo open", Err: err}
	}
	s.file = file
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(ring, s.stop, s.done)
	return nil
}

// Stop terminates the worker and closes the pipe. Idempotent.
func (s *FIFOSource) Stop() error {
	s.mu.Lock()
	if s.stop == nil {
		s.mu.Unlock()
		return nil
	}
	stop, done := s.stop, s.done
	s.stop = nil
	s.mu.Unlock()

	close(stop)
	<-done
	return nil
}

func openPipe(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDONLY|syscall.O_NONBLOCK, 0)
}

func (s *FIFOSource) run(ring *Ring, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		if s.file != nil {
			s.file.Close()
			s.file = nil
		}
		s.mu.Unlock()
	}()

	frame := s.format.frameSize()
	raw := make([]byte, 4096*frame)
	pending := 0
	samples := make([]float64, 0, 4096)

	for {
		select {
		case <-stop:
			return
		default:
		}

		// O_NONBLOCK keeps open(2) from waiting for a writer; the
		// deadline keeps Read from parking past a Stop.
		s.file.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, err := s.file.Read(raw[pending:])
		if n > 0 {
			pending += n
			whole := pending / frame * frame
			samples = decodeFrames(samples[:0], raw[:whole], s.format)
			ring.Write(samples)
			copy(raw, raw[whole:pending])
			pending -= whole
			continue
		}
		switch {
		case errors.Is(err, syscall.EAGAIN), errors.Is(err, os.ErrDeadlineExceeded):
			// No writer active; back off briefly.
			if !sleepOrStop(5*time.Millisecond, stop) {
				return
			}
		case err == nil || errors.Is(err, io.EOF):
			// The daemon closed its end between tracks. A pipe with
			// no writer at all reads EOF on every attempt, so the
			// reopen loop has to be paced.
			if !sleepOrStop(100*time.Millisecond, stop) {
				return
			}
			if !s.reopen(stop) {
				return
			}
		default:
			s.logger.Warn().Err(err).Msg("pipe read failed, reopening")
			if !s.reopen(stop) {
				return
			}
		}
	}
}

func (s *FIFOSource) reopen(stop <-chan struct{}) bool {
	s.mu.Lock()
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	s.mu.Unlock()

	for {
		file, err := openPipe(s.path)
		if err == nil {
			s.mu.Lock()
			s.file = file
			s.mu.Unlock()
			return true
		}
		if !sleepOrStop(250*time.Millisecond, stop) {
			return false
		}
	}
}

func sleepOrStop(d time.Duration, stop <-chan struct{}) bool {
	select {
	case <-stop:
		return false
	case <-time.After(d):
		return true
	}
}

// decodeFrames converts interleaved PCM frames to mono samples in
// [-1, 1], averaging across channels. raw must hold whole frames.
func decodeFrames(dst []float64, raw []byte, f Format) []float64 {
	frame := f.frameSize()
	width := f.Bits / 8
	for off := 0; off+frame <= len(raw); off += frame {
		var sum float64
		for ch := 0; ch < f.Channels; ch++ {
			sum += decodeSample(raw[off+ch*width:], f.Bits)
		}
		dst = append(dst, sum/float64(f.Channels))
	}
	return dst
}

func decodeSample(b []byte, bits int) float64 {
	switch bits {
	case 8:
		return float64(int8(b[0])) / 128
	case 16:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
	default:
		// 32-bit PCM is IEEE float.
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
}
