// Package fft turns raw PCM from the music daemon into spectrum frames
// for the visualizer. A Source worker feeds samples into a lock-free
// ring; a transformer worker driven at the target frame rate snapshots
// the newest window, runs a windowed FFT, and bins the magnitudes into
// a fixed number of log-spaced bands.
package fft
