package fft

import "fmt"

// Source feeds mono float64 samples in [-1, 1] into a ring. Start is
// expected to spawn whatever worker the source needs and return once
// samples can begin flowing; Stop releases the underlying descriptor
// or device and is safe to call more than once.
type Source interface {
	Name() string
	SampleRate() int
	Start(ring *Ring) error
	Stop() error
}

// Error reports a source or configuration failure. The engine surfaces
// it through its status and stays stopped.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fft: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func errorf(op, format string, args ...interface{}) *Error {
	return &Error{Op: op, Err: fmt.Errorf(format, args...)}
}
