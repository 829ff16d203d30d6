package fft

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// stubSource fills the ring with a fixed tone as soon as it starts.
type stubSource struct {
	name    string
	rate    int
	freq    float64
	started int
	stopped int
}

func (s *stubSource) Name() string    { return s.name }
func (s *stubSource) SampleRate() int { return s.rate }
func (s *stubSource) Stop() error     { s.stopped++; return nil }

func (s *stubSource) Start(ring *Ring) error {
	s.started++
	samples := make([]float64, ring.Cap())
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * s.freq * float64(i) / float64(s.rate))
	}
	ring.Write(samples)
	return nil
}

// failingSource never opens.
type failingSource struct{}

func (failingSource) Name() string    { return "broken" }
func (failingSource) SampleRate() int { return 44100 }
func (failingSource) Stop() error     { return nil }

func (failingSource) Start(ring *Ring) error {
	return errorf("open", "no such device")
}

func waitFrame(t *testing.T, e *Engine) []float64 {
	t.Helper()
	select {
	case frame := <-e.Frames():
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("no frame within 2s")
		return nil
	}
}

func TestEngineFrameShape(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	src := &stubSource{name: "stub", rate: 44100, freq: 440}
	if err := e.Start(Config{WindowSize: 1024, TargetFPS: 60, Bins: 24}, src); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	frame := waitFrame(t, e)
	if len(frame) != 24 {
		t.Fatalf("frame length = %d, want 24", len(frame))
	}
	for i, v := range frame {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			t.Errorf("bin %d = %v, want finite and non-negative", i, v)
		}
	}
}

// A 440 Hz tone should concentrate energy in the band containing
// 440 Hz rather than the top of the spectrum.
func TestEngineTonePlacement(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	src := &stubSource{name: "stub", rate: 44100, freq: 440}
	if err := e.Start(Config{WindowSize: 2048, TargetFPS: 60, Bins: 16}, src); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	// Let smoothing settle over a few frames.
	var frame []float64
	for i := 0; i < 5; i++ {
		frame = waitFrame(t, e)
	}

	peak := 0
	for i, v := range frame {
		if v > frame[peak] {
			peak = i
		}
	}
	if peak >= len(frame)/2 {
		t.Errorf("peak band = %d of %d, expected the lower half for 440 Hz", peak, len(frame))
	}
}

func TestEngineSourceSwitch(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	first := &stubSource{name: "fifo", rate: 44100, freq: 440}
	if err := e.Start(Config{WindowSize: 1024, TargetFPS: 60, Bins: 12}, first); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFrame(t, e)

	second := &stubSource{name: "system-audio", rate: 48000, freq: 880}
	if err := e.Restart(Config{WindowSize: 1024, TargetFPS: 60, Bins: 12}, second); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	defer e.Stop()

	if first.stopped == 0 {
		t.Error("old source not stopped on restart")
	}
	if second.started != 1 {
		t.Errorf("new source started %d times", second.started)
	}
	frame := waitFrame(t, e)
	if len(frame) != 12 {
		t.Errorf("frame length = %d after switch", len(frame))
	}
	if st := e.Status(); st.State != EngineRunning {
		t.Errorf("state = %v after restart", st.State)
	}
}

func TestEngineSourceFailureReported(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	err := e.Start(Config{WindowSize: 512, Bins: 8}, failingSource{})
	if err == nil {
		t.Fatal("Start succeeded with a broken source")
	}
	var fftErr *Error
	if !errors.As(err, &fftErr) {
		t.Errorf("error type %T", err)
	}
	st := e.Status()
	if st.State != EngineFailed || st.Err == nil {
		t.Errorf("status = %+v, want failed with error", st)
	}
	// The engine must stay stopped; Stop on a never-started engine
	// is a no-op.
	e.Stop()
}

func TestEngineRejectsBadWindow(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	src := &stubSource{name: "stub", rate: 44100, freq: 440}
	if err := e.Start(Config{WindowSize: 1000, Bins: 8}, src); err == nil {
		t.Fatal("window size 1000 accepted")
	}
	if src.started != 0 {
		t.Error("source started despite invalid config")
	}
}

func TestEngineStopIdempotent(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	src := &stubSource{name: "stub", rate: 44100, freq: 440}
	if err := e.Start(Config{WindowSize: 512, Bins: 8}, src); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.Stop()
	e.Stop()
	if src.stopped != 1 {
		t.Errorf("source stopped %d times", src.stopped)
	}
	if st := e.Status(); st.State != EngineStopped {
		t.Errorf("state = %v", st.State)
	}
}

func TestRingSnapshot(t *testing.T) {
	r := NewRing(8)
	dst := make([]float64, 4)
	if r.Snapshot(dst) {
		t.Error("snapshot succeeded on an empty ring")
	}

	r.Write([]float64{1, 2, 3, 4, 5})
	if !r.Snapshot(dst) {
		t.Fatal("snapshot failed with enough samples")
	}
	want := []float64{2, 3, 4, 5}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst = %v, want %v", dst, want)
		}
	}

	// Wrap around and take the newest window again.
	r.Write([]float64{6, 7, 8, 9, 10, 11})
	if !r.Snapshot(dst) {
		t.Fatal("snapshot failed after wrap")
	}
	want = []float64{8, 9, 10, 11}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst = %v, want %v", dst, want)
		}
	}
}

// A pipe with no writer reads EOF on every attempt; the worker must
// pace its reopen loop rather than spin a core while nothing plays.
func TestFIFOSourceIdlePipeStaysQuiet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.fifo")
	if err := syscall.Mkfifo(path, 0o600); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}
	src, err := NewFIFOSource(FIFOConfig{Path: path, Format: "44100:16:2", Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewFIFOSource: %v", err)
	}
	ring := NewRing(4096)
	if err := src.Start(ring); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer src.Stop()

	var before, after syscall.Rusage
	syscall.Getrusage(syscall.RUSAGE_SELF, &before)
	time.Sleep(500 * time.Millisecond)
	syscall.Getrusage(syscall.RUSAGE_SELF, &after)
	burned := time.Duration(after.Utime.Nano()-before.Utime.Nano()) +
		time.Duration(after.Stime.Nano()-before.Stime.Nano())
	if burned > 200*time.Millisecond {
		t.Fatalf("cpu time %v over 500ms with an idle pipe", burned)
	}

	// A writer showing up later must still get read.
	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open write end: %v", err)
	}
	defer w.Close()
	buf := make([]byte, 4096)
	deadline := time.Now().Add(2 * time.Second)
	for ring.Total() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no samples decoded after the writer appeared")
		}
		if _, err := w.Write(buf); err != nil {
			t.Fatalf("pipe write: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"44100:16:2", Format{44100, 16, 2}, false},
		{"48000:32:1", Format{48000, 32, 1}, false},
		{"22050:8:2", Format{22050, 8, 2}, false},
		{"44100:24:2", Format{}, true},
		{"44100:16", Format{}, true},
		{"x:16:2", Format{}, true},
		{"44100:16:0", Format{}, true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestDecodeFramesMonoMixdown(t *testing.T) {
	// One 16-bit stereo frame: left = max positive, right = 0.
	raw := []byte{0xff, 0x7f, 0x00, 0x00}
	out := decodeFrames(nil, raw, Format{Rate: 44100, Bits: 16, Channels: 2})
	if len(out) != 1 {
		t.Fatalf("got %d samples", len(out))
	}
	if out[0] < 0.49 || out[0] > 0.51 {
		t.Errorf("mixdown = %v, want ~0.5", out[0])
	}
}

func TestBinEdgesMonotonic(t *testing.T) {
	for _, bins := range []int{1, 8, 24, 64} {
		edges := binEdges(bins, 1024, 44100)
		if len(edges) != bins+1 {
			t.Fatalf("bins=%d: %d edges", bins, len(edges))
		}
		for i := 1; i < len(edges); i++ {
			if edges[i] <= edges[i-1] {
				t.Fatalf("bins=%d: edges not strictly increasing: %v", bins, edges)
			}
		}
		if edges[len(edges)-1] > 512 {
			t.Errorf("bins=%d: top edge %d beyond Nyquist bin", bins, edges[len(edges)-1])
		}
	}
}

// A low sample rate puts the 20 Hz bound several FFT bins up while a
// band count near windowSize/2 leaves no slack; the lowest bands must
// still come out with positive width and finite magnitudes.
func TestBinEdgesCrowdedLowEnd(t *testing.T) {
	const (
		bins       = 2039
		windowSize = 4096
		sampleRate = 8000
	)
	edges := binEdges(bins, windowSize, sampleRate)
	if edges[0] < 0 {
		t.Fatalf("edges[0] = %d", edges[0])
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			t.Fatalf("edges not strictly increasing at %d: %d, %d", i, edges[i-1], edges[i])
		}
	}
	if top := edges[len(edges)-1]; top > windowSize/2 {
		t.Fatalf("top edge %d beyond Nyquist bin", top)
	}

	b := newBinner(windowSize, bins, sampleRate, defaultSmoothing)
	samples := make([]float64, windowSize)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * 440 * float64(i) / sampleRate)
	}
	out := b.process(samples)
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			t.Fatalf("bin %d = %v, want finite and non-negative", i, v)
		}
	}
}
