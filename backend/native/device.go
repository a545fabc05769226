package native

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/gpures/gpucore"
)

func init() {
	gpucore.Register("noop", func() (gpucore.Device, error) {
		return NewNoop()
	})
}

// Errors returned by the native device.
var (
	// ErrNilDevice is returned when New is called without a HAL device or queue.
	ErrNilDevice = errors.New("native: HAL device or queue is nil")

	// ErrNoAdapter is returned when the HAL instance reports no adapter.
	ErrNoAdapter = errors.New("native: no adapter available")

	// ErrNoHALProvider is returned when a provider does not expose HAL objects.
	ErrNoHALProvider = errors.New("native: provider does not expose HAL types")

	// ErrForeignObject is returned when an object created by another
	// device is passed in.
	ErrForeignObject = errors.New("native: object does not belong to this device")

	// ErrOutOfRange is returned when a transfer exceeds the resource size.
	ErrOutOfRange = errors.New("native: transfer out of range")

	// ErrUnsupportedFormat is returned for texture formats without a known
	// texel size.
	ErrUnsupportedFormat = errors.New("native: unsupported texture format")

	// ErrTimeout is returned when the GPU does not finish within the
	// readback timeout.
	ErrTimeout = errors.New("native: timed out waiting for GPU")
)

// DefaultReadbackTimeout bounds fence waits for transfers and passes.
const DefaultReadbackTimeout = 5 * time.Second

// pollInterval is the sleep between queue completion polls.
const pollInterval = 100 * time.Microsecond

// Option configures a Device.
type Option func(*options)

type options struct {
	timeout time.Duration
	wgsl    bool
}

func defaultOptions() options {
	return options{timeout: DefaultReadbackTimeout}
}

// WithReadbackTimeout sets how long readbacks and passes wait for the GPU.
// Non-positive values keep the default.
func WithReadbackTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithWGSL passes WGSL sources to the HAL without compiling them to SPIR-V.
func WithWGSL() Option {
	return func(o *options) {
		o.wgsl = true
	}
}

// Device implements gpucore.Device over a HAL device and queue.
//
// Thread Safety:
// All methods are safe for concurrent use. Queue submissions are
// serialized by an internal mutex.
type Device struct {
	device hal.Device
	queue  hal.Queue

	// submitMu serializes encoder submission and fence waits.
	submitMu sync.Mutex

	mu      sync.RWMutex
	timeout time.Duration
	wgsl    bool

	// release destroys HAL objects owned by this Device. Nil when the
	// device is shared with another owner.
	release func()
	closed  bool
}

// Compile-time interface check.
var _ gpucore.Device = (*Device)(nil)

// New wraps an existing HAL device and queue. The caller keeps ownership:
// Close does not destroy them.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Device{
		device:  device,
		queue:   queue,
		timeout: o.timeout,
		wgsl:    o.wgsl,
	}, nil
}

// NewFromProvider shares the device of a host application. The provider
// must implement HalDevice() any and HalQueue() any returning hal.Device
// and hal.Queue.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHALProvider)
	}
	d, err := New(device, queue, opts...)
	if err != nil {
		return nil, err
	}
	slogger().Debug("native: using shared device from provider")
	return d, nil
}

// NewNoop opens a headless device on the noop HAL. The returned Device owns
// the HAL instance and device; Close releases them.
func NewNoop(opts ...Option) (*Device, error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("native: create noop instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open noop adapter: %w", err)
	}

	d, err := New(openDev.Device, openDev.Queue, opts...)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.release = func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	slogger().Info("native: opened noop device")
	return d, nil
}

// SetLogger routes this package's log output to l.
func (d *Device) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// SetReadbackTimeout changes the fence wait bound. Non-positive values are
// ignored.
func (d *Device) SetReadbackTimeout(t time.Duration) {
	if t <= 0 {
		return
	}
	d.mu.Lock()
	d.timeout = t
	d.mu.Unlock()
}

// ReadbackTimeout returns the current fence wait bound.
func (d *Device) ReadbackTimeout() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.timeout
}

// HAL returns the wrapped HAL device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) {
	return d.device, d.queue
}

// Close releases HAL objects owned by the Device. Devices wrapping a
// caller-owned HAL device only mark themselves closed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.release != nil {
		d.release()
		d.release = nil
	}
	return nil
}

// submit ends encoding, submits the command buffer and polls until the
// queue reports it complete or the readback timeout passes.
func (d *Device) submit(encoder hal.CommandEncoder) error {
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	d.submitMu.Lock()
	defer d.submitMu.Unlock()

	index, err := d.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("native: submit: %w", err)
	}
	deadline := time.Now().Add(d.ReadbackTimeout())
	for d.queue.PollCompleted() < index {
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		time.Sleep(pollInterval)
	}
	return nil
}

// newEncoder creates a command encoder that has begun encoding.
func (d *Device) newEncoder(label string) (hal.CommandEncoder, error) {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}
	return encoder, nil
}
