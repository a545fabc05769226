package gpures

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/gpures/backend/memory"
)

// syncBuffer is a bytes.Buffer safe for concurrent writes.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func debugLogger(w *syncBuffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestDefaultLoggerIsSilent(t *testing.T) {
	assert.False(t, Logger().Enabled(t.Context(), slog.LevelError))
}

func TestSetLogger(t *testing.T) {
	var out syncBuffer
	SetLogger(debugLogger(&out))
	t.Cleanup(func() { SetLogger(nil) })

	inst, _ := newTestInstance(t)
	_, err := inst.CreateOrGetShaderModule(ShaderModuleDescriptor{Label: "main", Source: "fn main() {}"})
	require.NoError(t, err)

	log := out.String()
	assert.Contains(t, log, "gpures: instance created")
	assert.Contains(t, log, "gpures: cache miss, created")
	assert.Contains(t, log, "label=main")

	SetLogger(nil)
	assert.False(t, Logger().Enabled(t.Context(), slog.LevelError))
}

func TestWithLoggerOverridesPackageLogger(t *testing.T) {
	var own, pkg syncBuffer
	SetLogger(debugLogger(&pkg))
	t.Cleanup(func() { SetLogger(nil) })

	inst, err := NewInstance(memory.New(), WithLogger(debugLogger(&own)))
	require.NoError(t, err)
	defer inst.Close()

	_, err = inst.CreateBuffer(BufferDescriptor{Label: "mine", Size: 4})
	require.NoError(t, err)

	assert.Contains(t, own.String(), "label=mine")
	assert.False(t, strings.Contains(pkg.String(), "label=mine"))
}

func TestCacheHitIsLogged(t *testing.T) {
	var out syncBuffer
	inst, err := NewInstance(memory.New(), WithLogger(debugLogger(&out)))
	require.NoError(t, err)
	defer inst.Close()

	desc := SamplerDescriptor{Label: "linear"}
	first, err := inst.CreateOrGetSampler(desc)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out.String(), "gpures: cache miss, created"))
	assert.NotContains(t, out.String(), "gpures: cache hit")

	second, err := inst.CreateOrGetSampler(desc)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	log := out.String()
	assert.Equal(t, 1, strings.Count(log, "gpures: cache miss, created"))
	assert.Equal(t, 1, strings.Count(log, "gpures: cache hit"))
	assert.Contains(t, log, "kind=sampler")
}
