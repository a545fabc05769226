// Package resource provides the typed handle system and the concurrent
// containers that own live device objects.
//
// # Handles
//
// A Handle[T] is an opaque numeric identity tagged with the kind of object
// it refers to. Handles are minted by a Source[T], a monotonic counter that
// never repeats a value. Handles carry no payload and are cheap to copy,
// compare and hash, so command lists and descriptors can store them
// freely.
//
// # Tables
//
// Table[T] maps handles to objects the caller owns directly, such as raw
// buffers and textures:
//
//	buffers := resource.NewTable[gpucore.Buffer]()
//	h := buffers.Push(buf)
//	buf, ok := buffers.Get(h)
//
// # Descriptor caches
//
// Cache[D, T] deduplicates immutable objects by their descriptor. A
// descriptor implements Descriptor by returning a canonical key; two
// descriptors with equal keys resolve to one live object:
//
//	layouts := resource.NewCache[BindGroupLayoutDescriptor, gpucore.BindGroupLayout]()
//	h, err := layouts.GetOrCreate(desc, func() (gpucore.BindGroupLayout, error) {
//		return device.CreateBindGroupLayout(resolved)
//	})
//
// Creation is serialized per key, so concurrent requests for the same
// descriptor never create duplicate device objects.
//
// Looking up a handle that is not present never panics. Lookup-style
// methods return an error wrapping ErrHandleNotFound.
package resource
