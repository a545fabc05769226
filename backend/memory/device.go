// Package memory provides a pure-Go gpucore.Device that keeps every
// resource in host memory.
//
// The memory device is the reference collaborator for tests and for running
// gpures without a GPU. Buffers and textures are byte slices, passes are
// executed when their encoder ends, and every device call is appended to an
// inspectable call log. Compute dispatches run registered Go kernels, and
// render passes apply their color attachment clears.
//
// Faults can be injected with FailNextCreate and FailNextTransfer.
//
// Importing the package registers it under the name "memory":
//
//	import _ "github.com/gogpu/gpures/backend/memory"
//
//	dev, err := gpucore.Open("memory")
package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpures/gpucore"
)

func init() {
	gpucore.Register("memory", func() (gpucore.Device, error) {
		return New(), nil
	})
}

// Errors returned by the memory device.
var (
	// ErrForeignObject is returned when an object created by another
	// device is passed in.
	ErrForeignObject = errors.New("memory: object does not belong to this device")

	// ErrDestroyed is returned when a destroyed object is used.
	ErrDestroyed = errors.New("memory: object already destroyed")

	// ErrOutOfRange is returned when a transfer exceeds the resource size.
	ErrOutOfRange = errors.New("memory: transfer out of range")

	// ErrInvalidDescriptor is returned when a descriptor is inconsistent.
	ErrInvalidDescriptor = errors.New("memory: invalid descriptor")

	// ErrInjected is the default error used by fault injection.
	ErrInjected = errors.New("memory: injected fault")
)

// TransferStats counts completed transfers.
type TransferStats struct {
	BufferWrites  int
	BufferReads   int
	TextureWrites int
	TextureReads  int
}

// Device is an in-memory gpucore.Device.
//
// Thread Safety:
// All methods are safe for concurrent use.
type Device struct {
	mu sync.Mutex

	calls     []string
	creates   map[string]int
	live      int
	transfers TransferStats
	kernels   map[string]Kernel

	failCreate   error
	failTransfer error
}

// Compile-time interface check.
var _ gpucore.Device = (*Device)(nil)

// New creates an empty memory device.
func New() *Device {
	return &Device{
		creates: make(map[string]int),
		kernels: make(map[string]Kernel),
	}
}

// --------------------------------------------------------------------------
// Inspection and fault injection
// --------------------------------------------------------------------------

// Calls returns a copy of the call log.
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// ResetCalls clears the call log.
func (d *Device) ResetCalls() {
	d.mu.Lock()
	d.calls = nil
	d.mu.Unlock()
}

// Creates returns how many objects of kind were created successfully.
// Kinds are the gpucore type names: "Buffer", "Texture", "Sampler",
// "BindGroupLayout", "BindGroup", "PipelineLayout", "ShaderModule",
// "ComputePipeline", "RenderPipeline".
func (d *Device) Creates(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.creates[kind]
}

// Live returns the number of created objects not yet destroyed.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// Transfers returns transfer counters.
func (d *Device) Transfers() TransferStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transfers
}

// FailNextCreate makes the next Create* call fail with err.
// A nil err uses ErrInjected.
func (d *Device) FailNextCreate(err error) {
	if err == nil {
		err = ErrInjected
	}
	d.mu.Lock()
	d.failCreate = err
	d.mu.Unlock()
}

// FailNextTransfer makes the next Write*/Read* call fail with err.
// A nil err uses ErrInjected.
func (d *Device) FailNextTransfer(err error) {
	if err == nil {
		err = ErrInjected
	}
	d.mu.Lock()
	d.failTransfer = err
	d.mu.Unlock()
}

// logLocked appends a formatted call. Must be called with mu held.
func (d *Device) logLocked(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

// beginCreateLocked consumes an injected creation fault.
// Must be called with mu held.
func (d *Device) beginCreateLocked(kind, label string) error {
	if err := d.failCreate; err != nil {
		d.failCreate = nil
		d.logLocked("Create%s(%s) failed", kind, label)
		return err
	}
	return nil
}

// createdLocked records a successful creation. Must be called with mu held.
func (d *Device) createdLocked(kind, label string) {
	d.creates[kind]++
	d.live++
	d.logLocked("Create%s(%s)", kind, label)
}

// destroyLocked marks o destroyed. Must be called with mu held.
func (d *Device) destroyLocked(kind string, o *object) {
	if o == nil || o.destroyed {
		return
	}
	o.destroyed = true
	d.live--
	d.logLocked("Destroy%s(%s)", kind, o.label)
}

// beginTransferLocked consumes an injected transfer fault.
// Must be called with mu held.
func (d *Device) beginTransferLocked() error {
	if err := d.failTransfer; err != nil {
		d.failTransfer = nil
		return err
	}
	return nil
}

// alive reports an error if o was destroyed.
func alive(o *object) error {
	if o.destroyed {
		return fmt.Errorf("%w: %s", ErrDestroyed, o.label)
	}
	return nil
}

// foreign builds the error for an object of the wrong type.
func foreign(v any) error {
	return fmt.Errorf("%w: %T", ErrForeignObject, v)
}

func asBuffer(v gpucore.Buffer) (*Buffer, error) {
	b, ok := v.(*Buffer)
	if !ok || b == nil {
		return nil, foreign(v)
	}
	return b, alive(&b.object)
}

func asTexture(v gpucore.Texture) (*Texture, error) {
	t, ok := v.(*Texture)
	if !ok || t == nil {
		return nil, foreign(v)
	}
	return t, alive(&t.object)
}

func asSampler(v gpucore.Sampler) (*Sampler, error) {
	s, ok := v.(*Sampler)
	if !ok || s == nil {
		return nil, foreign(v)
	}
	return s, alive(&s.object)
}

func asBindGroupLayout(v gpucore.BindGroupLayout) (*BindGroupLayout, error) {
	l, ok := v.(*BindGroupLayout)
	if !ok || l == nil {
		return nil, foreign(v)
	}
	return l, alive(&l.object)
}

func asBindGroup(v gpucore.BindGroup) (*BindGroup, error) {
	g, ok := v.(*BindGroup)
	if !ok || g == nil {
		return nil, foreign(v)
	}
	return g, alive(&g.object)
}

func asPipelineLayout(v gpucore.PipelineLayout) (*PipelineLayout, error) {
	l, ok := v.(*PipelineLayout)
	if !ok || l == nil {
		return nil, foreign(v)
	}
	return l, alive(&l.object)
}

func asShaderModule(v gpucore.ShaderModule) (*ShaderModule, error) {
	m, ok := v.(*ShaderModule)
	if !ok || m == nil {
		return nil, foreign(v)
	}
	return m, alive(&m.object)
}

func asComputePipeline(v gpucore.ComputePipeline) (*ComputePipeline, error) {
	p, ok := v.(*ComputePipeline)
	if !ok || p == nil {
		return nil, foreign(v)
	}
	return p, alive(&p.object)
}

func asRenderPipeline(v gpucore.RenderPipeline) (*RenderPipeline, error) {
	p, ok := v.(*RenderPipeline)
	if !ok || p == nil {
		return nil, foreign(v)
	}
	return p, alive(&p.object)
}
