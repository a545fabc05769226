// Command gpuresdemo runs a compute pass and a render pass through gpures
// and saves the rendered texture as a PNG.
package main

import (
	"encoding/binary"
	"flag"
	"image/png"
	"log"
	"log/slog"
	"math"
	"os"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpures"
	"github.com/gogpu/gpures/backend/memory"
	_ "github.com/gogpu/gpures/backend/native"
	"github.com/gogpu/gpures/gpucore"
)

const scaleWGSL = `
@group(0) @binding(0) var<storage, read_write> data: array<f32>;

@compute @workgroup_size(64)
fn scale(@builtin(global_invocation_id) id: vec3<u32>) {
    data[id.x] = data[id.x] * 2.0;
}
`

const fillWGSL = `
@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    let x = f32(i32(i) - 1);
    let y = f32(i32(i & 1u) * 2 - 1);
    return vec4<f32>(x, y, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.5, 0.0, 1.0);
}
`

func main() {
	var (
		configPath = flag.String("config", "", "TOML config file")
		backend    = flag.String("backend", "", "registered backend (overrides config)")
		size       = flag.Uint("size", 64, "texture width and height")
		output     = flag.String("output", "gpures.png", "output file")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		gpures.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg := gpures.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = gpures.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	inst, err := gpures.Open(*backend, gpures.WithConfig(cfg))
	if err != nil {
		log.Fatalf("Failed to open backend: %v", err)
	}
	defer inst.Close()

	if dev, ok := inst.Device().(*memory.Device); ok {
		dev.SetKernel("scale", scaleKernel)
	}

	if err := runCompute(inst); err != nil {
		log.Fatalf("Compute failed: %v", err)
	}
	if err := runRender(inst, uint32(*size), *output); err != nil {
		log.Fatalf("Render failed: %v", err)
	}

	s := inst.Stats()
	log.Printf("Objects: %d buffers, %d textures, %d pipelines (%d cache hits)\n",
		s.Buffers, s.Textures, s.ComputePipelines.Entries+s.RenderPipelines.Entries,
		s.BindGroups.Hits+s.ComputePipelines.Hits+s.ShaderModules.Hits)
}

func runCompute(inst *gpures.Instance) error {
	data, err := gpures.NewStorageBufferFrom(inst, "values", &gpures.Float32s{1, 2, 3, 4}, 0)
	if err != nil {
		return err
	}
	ep := &gpures.ComputeEntryPoint{
		Label:  "scale",
		Source: scaleWGSL,
		Entry:  "scale",
		Layouts: []gpures.BindGroupLayoutDescriptor{{
			Label:   "scale",
			Entries: []gpures.BindGroupLayoutEntry{gpures.StorageEntry(0, gpucore.ShaderStageCompute)},
		}},
		Bindings: gpures.Bindings{{gpures.Bind(0, data.Binding())}},
	}

	// The second run reuses every cached object.
	for range 2 {
		if err := inst.ExecuteCompute(ep, 1, 1, 1); err != nil {
			return err
		}
	}

	out := make(gpures.Float32s, 4)
	if err := data.Load(0, &out); err != nil {
		return err
	}
	log.Printf("Compute: %v\n", out)
	return nil
}

func runRender(inst *gpures.Instance, size uint32, output string) error {
	target, err := gpures.NewTexture2D(inst, "target", size, size,
		gputypes.TextureFormatRGBA8Unorm, gputypes.TextureUsageRenderAttachment)
	if err != nil {
		return err
	}
	depth, err := gpures.NewTexture2D(inst, "depth", size, size,
		gputypes.TextureFormatDepth32Float, gputypes.TextureUsageRenderAttachment)
	if err != nil {
		return err
	}
	defer depth.Release()

	depthState := gputypes.DefaultDepthStencilState(gputypes.TextureFormatDepth32Float)
	ep := &gpures.RenderEntryPoint{
		Label:         "fill",
		Source:        fillWGSL,
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		Targets: []gputypes.ColorTargetState{{
			Format:    gputypes.TextureFormatRGBA8Unorm,
			WriteMask: gputypes.ColorWriteMaskAll,
		}},
		DepthStencil: &depthState,
	}

	pass, err := gpures.NewRenderPass(inst, ep,
		gpures.ClearAttachment(target.Handle(), gputypes.Color{R: 0.1, G: 0.2, B: 0.4, A: 1}))
	if err != nil {
		return err
	}
	pass.SetDepthStencil(gpures.ClearDepth(depth.Handle(), 1))
	pass.Draw(3, 1, 0, 0)
	if err := pass.Finish(); err != nil {
		return err
	}

	img, err := target.Image()
	if err != nil {
		return err
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("Render saved to %s (%dx%d)\n", output, size, size)
	return nil
}

// scaleKernel stands in for scaleWGSL on the memory backend.
func scaleKernel(k *memory.KernelContext) {
	b := k.Buffer(0, 0)
	for i := 0; i+4 <= len(b); i += 4 {
		v := math.Float32frombits(binary.LittleEndian.Uint32(b[i:]))
		binary.LittleEndian.PutUint32(b[i:], math.Float32bits(2*v))
	}
}
