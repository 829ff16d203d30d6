package fft

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum bins span lowFreq up to the Nyquist frequency on a log
// scale; anything below lowFreq is inaudible rumble.
const lowFreq = 20.0

// defaultSmoothing blends each frame with the previous one to keep the
// bars from flickering at full frame rate.
const defaultSmoothing = 0.65

type binner struct {
	fft       *fourier.FFT
	window    []float64
	coeffs    []complex128
	mags      []float64
	edges     []int
	prev      []float64
	smoothing float64
}

func newBinner(windowSize, bins, sampleRate int, smoothing float64) *binner {
	b := &binner{
		fft:       fourier.NewFFT(windowSize),
		window:    hannWindow(windowSize),
		coeffs:    make([]complex128, windowSize/2+1),
		mags:      make([]float64, windowSize/2+1),
		edges:     binEdges(bins, windowSize, sampleRate),
		prev:      make([]float64, bins),
		smoothing: smoothing,
	}
	return b
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// binEdges maps each of the bins output bands to a half-open range of
// FFT bins, log-spaced from lowFreq to Nyquist. Every band covers at
// least one FFT bin; when the log spacing crowds the low end the
// lower bound gives way rather than any band collapsing to zero width.
func binEdges(bins, windowSize, sampleRate int) []int {
	nyquist := float64(sampleRate) / 2
	hzPerBin := float64(sampleRate) / float64(windowSize)
	ratio := nyquist / lowFreq

	edges := make([]int, bins+1)
	for i := 0; i <= bins; i++ {
		freq := lowFreq * math.Pow(ratio, float64(i)/float64(bins))
		edges[i] = int(freq / hzPerBin)
	}
	limit := windowSize / 2
	for i := 1; i <= bins; i++ {
		if edges[i] <= edges[i-1] {
			edges[i] = edges[i-1] + 1
		}
		if edges[i] > limit {
			edges[i] = limit
		}
	}
	// Walking the clamped tail back down needs bins free slots below
	// the top edge, including slot zero for the lowest band.
	if edges[bins] < bins {
		edges[bins] = bins
	}
	for i := bins - 1; i >= 0; i-- {
		if edges[i] >= edges[i+1] {
			edges[i] = edges[i+1] - 1
		}
	}
	return edges
}

// process consumes one window of samples and returns a freshly
// allocated frame of len(prev) band magnitudes.
func (b *binner) process(samples []float64) []float64 {
	windowed := make([]float64, len(samples))
	for i, s := range samples {
		windowed[i] = s * b.window[i]
	}
	b.fft.Coefficients(b.coeffs, windowed)

	scale := 2 / float64(len(samples))
	for i, c := range b.coeffs {
		b.mags[i] = cmplx.Abs(c) * scale
	}

	out := make([]float64, len(b.prev))
	for i := range out {
		lo, hi := b.edges[i], b.edges[i+1]
		var sum float64
		for j := lo; j < hi; j++ {
			sum += b.mags[j]
		}
		v := sum / float64(hi-lo)
		out[i] = b.smoothing*b.prev[i] + (1-b.smoothing)*v
	}
	copy(b.prev, out)
	return out
}
