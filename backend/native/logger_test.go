package native

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpures/gpucore"
)

func TestDeviceSetLogger(t *testing.T) {
	if slogger().Enabled(t.Context(), slog.LevelError) {
		t.Fatal("native logging should be silent by default")
	}

	var out bytes.Buffer
	d := newNoopDevice(t)
	d.SetLogger(slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { d.SetLogger(nil) })

	if _, err := d.CreateBuffer(&gpucore.BufferDescriptor{Label: "logged", Size: 16, Usage: gputypes.BufferUsageStorage}); err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}
	if !strings.Contains(out.String(), "label=logged") {
		t.Errorf("log = %q, want the buffer label", out.String())
	}

	d.SetLogger(nil)
	if slogger().Enabled(t.Context(), slog.LevelError) {
		t.Error("SetLogger(nil) should restore silence")
	}
}
