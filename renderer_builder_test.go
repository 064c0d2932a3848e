package forward

import (
	"bytes"
	"testing"

	"github.com/gekko3d/forward/logging"
	"github.com/gekko3d/forward/rt/core"
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/gekko3d/forward/rt/program"
	"github.com/gekko3d/forward/rt/renderlist"
	"github.com/gekko3d/forward/rt/shaders"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLibrary struct {
	program.Library
	calls int
}

func (l *countingLibrary) Source(p *program.Parameters, m *core.Material) (gpu.ProgramSource, error) {
	l.calls++
	return l.Library.Source(p, m)
}

func TestRendererBuilderDefaults(t *testing.T) {
	r, err := NewRendererBuilder(gpu.NewRecorder()).Build()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), r.Config())
	assert.False(t, r.Logger().DebugEnabled())
}

func TestRendererBuilderUsesParts(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewLogger(&buf, "builder-test", true)
	lib := &countingLibrary{Library: shaders.New()}

	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 32, 32
	reversed := func(a, b *renderlist.Item) bool { return a.Z > b.Z }
	applied := false

	r, err := NewRendererBuilder(gpu.NewRecorder()).
		UseConfig(cfg).
		UseLogger(log).
		UseLibrary(lib).
		UseSort(reversed, nil).
		UseOption(func(*Renderer) { applied = true }).
		Build()
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Same(t, log, r.Logger())
	assert.Contains(t, buf.String(), "renderer 32x32")

	scene := core.NewScene()
	scene.Add(
		meshAt("near", core.NewBoxGeometry(1, 1, 1), core.NewBasicMaterial(mgl32.Vec3{1, 1, 1}), -3),
		meshAt("far", core.NewBoxGeometry(1, 1, 1), core.NewBasicMaterial(mgl32.Vec3{1, 1, 1}), -8),
	)
	list := r.BuildRenderList(scene, prepared(scene, testCamera()))
	items := list.Items(renderlist.Opaque)
	require.Len(t, items, 2)
	assert.Equal(t, "far", items[0].Node.Name)

	require.NoError(t, r.Render(scene, testCamera()))
	assert.Equal(t, 1, lib.calls)
}

func TestRendererBuilderRejectsConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TransmissionResolutionScale = 0
	_, err := NewRendererBuilder(gpu.NewRecorder()).UseConfig(cfg).Build()
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func prepared(scene *core.Scene, cam *core.Camera) *core.Camera {
	scene.UpdateWorldMatrices()
	cam.UpdateView()
	return cam
}
