package memory

// Kernel is a Go function standing in for a compute shader entry point.
//
// Kernels run synchronously when the compute pass that dispatched them
// ends, with the device lock held. They must not call back into the
// device.
type Kernel func(k *KernelContext)

// KernelContext exposes the dispatch size and the bound buffers to a
// Kernel.
type KernelContext struct {
	// Workgroups is the dispatch size in workgroups.
	Workgroups [3]uint32

	groups map[uint32]*BindGroup
}

// Buffer returns the contents of the buffer bound at (group, binding),
// limited to the bound range. Writes through the returned slice update
// the device buffer. Returns nil if nothing is bound there.
func (k *KernelContext) Buffer(group, binding uint32) []byte {
	g, ok := k.groups[group]
	if !ok {
		return nil
	}
	for _, e := range g.entries {
		if e.Binding != binding || e.Buffer == nil {
			continue
		}
		b, ok := e.Buffer.(*Buffer)
		if !ok {
			return nil
		}
		end := b.Size()
		if e.Size != 0 {
			end = e.Offset + e.Size
		}
		return b.data[e.Offset:end]
	}
	return nil
}

// SetKernel registers fn as the implementation of the compute entry point
// name. Dispatches of pipelines whose entry point has no kernel are only
// logged.
func (d *Device) SetKernel(name string, fn Kernel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fn == nil {
		delete(d.kernels, name)
		return
	}
	d.kernels[name] = fn
}
