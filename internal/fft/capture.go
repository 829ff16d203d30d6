package fft

import (
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
)

const (
	captureRate     = 44100
	captureChannels = 2
)

// CaptureSource records from the system audio graph, optionally bound
// to a named device. Samples arrive on the audio callback thread and
// are pushed straight into the ring.
type CaptureSource struct {
	deviceName string
	logger     zerolog.Logger

	mu     sync.Mutex
	actx   *malgo.AllocatedContext
	device *malgo.Device
}

// CaptureConfig configures a CaptureSource. An empty Device selects
// the system default.
type CaptureConfig struct {
	Device string
	Logger zerolog.Logger
}

func NewCaptureSource(cfg CaptureConfig) *CaptureSource {
	return &CaptureSource{
		deviceName: cfg.Device,
		logger:     cfg.Logger.With().Str("component", "capture").Logger(),
	}
}

func (s *CaptureSource) Name() string    { return "system-audio" }
func (s *CaptureSource) SampleRate() int { return captureRate }

// ListCaptureDevices enumerates the names of the capture devices the
// system audio graph exposes.
func ListCaptureDevices() ([]string, error) {
	actx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, &Error{Op: "audio context", Err: err}
	}
	defer func() {
		actx.Uninit()
		actx.Free()
	}()

	infos, err := actx.Devices(malgo.Capture)
	if err != nil {
		return nil, &Error{Op: "device enumeration", Err: err}
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

// Start initialises the audio context, resolves the configured device,
// and begins capturing into the ring.
func (s *CaptureSource) Start(ring *Ring) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device != nil {
		return nil
	}

	actx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return &Error{Op: "audio context", Err: err}
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = captureChannels
	deviceConfig.SampleRate = captureRate
	deviceConfig.Alsa.NoMMap = 1

	if s.deviceName != "" {
		id, err := findCaptureDevice(actx, s.deviceName)
		if err != nil {
			actx.Uninit()
			actx.Free()
			return err
		}
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	samples := make([]float64, 0, 4096)
	onRecv := func(_, input []byte, frames uint32) {
		samples = decodeFrames(samples[:0], input, Format{
			Rate:     captureRate,
			Bits:     16,
			Channels: captureChannels,
		})
		ring.Write(samples)
	}

	device, err := malgo.InitDevice(actx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		actx.Uninit()
		actx.Free()
		return &Error{Op: "capture device", Err: err}
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		actx.Uninit()
		actx.Free()
		return &Error{Op: "capture start", Err: err}
	}

	s.actx = actx
	s.device = device
	s.logger.Debug().Str("device", s.deviceName).Msg("capture started")
	return nil
}

// Stop releases the device and audio context. Idempotent.
func (s *CaptureSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return nil
	}
	s.device.Uninit()
	s.device = nil
	s.actx.Uninit()
	s.actx.Free()
	s.actx = nil
	return nil
}

func findCaptureDevice(actx *malgo.AllocatedContext, name string) (malgo.DeviceID, error) {
	infos, err := actx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceID{}, &Error{Op: "device enumeration", Err: err}
	}
	for _, info := range infos {
		if strings.EqualFold(info.Name(), name) {
			return info.ID, nil
		}
	}
	return malgo.DeviceID{}, errorf("capture device", "no capture device named %q", name)
}
