package forward

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/gekko3d/forward/logging"
	"github.com/gekko3d/forward/rt/core"
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T, mutate func(*Config)) (*Renderer, *gpu.Recorder) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 64, 32
	if mutate != nil {
		mutate(&cfg)
	}
	rec := gpu.NewRecorder()
	r, err := New(rec, cfg)
	require.NoError(t, err)
	return r, rec
}

func testCamera() *core.Camera {
	return core.NewPerspectiveCamera(60, 2, 0.1, 100)
}

func meshAt(name string, g *core.Geometry, m *core.Material, z float32) *core.Node {
	n := core.NewMesh(name, g, m)
	n.SetPosition(mgl32.Vec3{0, 0, z})
	return n
}

func transparentBasic() *core.Material {
	m := core.NewBasicMaterial(mgl32.Vec3{0, 1, 0})
	m.Transparent = true
	m.Opacity = 0.5
	return m
}

func mainDraws(rec *gpu.Recorder) []gpu.DrawRecord {
	var out []gpu.DrawRecord
	for _, d := range rec.Draws {
		if d.Target == "" {
			out = append(out, d)
		}
	}
	return out
}

func boundTextures(d gpu.DrawRecord) []gpu.AssetID {
	var out []gpu.AssetID
	for _, id := range d.Textures {
		out = append(out, id)
	}
	return out
}

func render(t *testing.T, r *Renderer, scene *core.Scene, cam *core.Camera) Info {
	t.Helper()
	require.NoError(t, r.Render(scene, cam))
	return r.Info()
}

func mixedScene() *core.Scene {
	glass := core.NewMaterial(core.PhysicalMaterial)
	glass.Transmission = 1

	scene := core.NewScene()
	scene.Add(
		meshAt("cube", core.NewBoxGeometry(1, 1, 1), core.NewStandardMaterial(mgl32.Vec3{1, 0, 0}, 1, 0), -5),
		meshAt("quad", core.NewPlaneGeometry(1, 1), transparentBasic(), -3),
		meshAt("sphere", core.NewSphereGeometry(0.5, 8, 6), glass, -4),
	)
	return scene
}

func TestRenderDrawsBucketsInOrder(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	info := render(t, r, mixedScene(), testCamera())

	require.Len(t, rec.Draws, 4)
	assert.Equal(t, 4, info.DrawCalls)

	// The transmission pre-pass draws the opaque cube offscreen first.
	transmission := rec.Draws[0].Target
	assert.NotEmpty(t, transmission)
	main := mainDraws(rec)
	require.Len(t, main, 3)
	assert.Equal(t, rec.Draws[0].Call.Geometry, main[0].Call.Geometry)

	// Opaque cube, then the transmissive sphere sampling the pre-pass, then
	// the blended quad.
	assert.Equal(t, gpu.BlendNone, main[0].Blend)
	assert.Contains(t, boundTextures(main[1]), rec.RenderTargetTexture(transmission))
	assert.Equal(t, gpu.BlendNormal, main[2].Blend)
	assert.Equal(t, 1, rec.RenderTargets())
}

func TestRenderStreamIsDeterministic(t *testing.T) {
	frame := func() string {
		r, rec := newTestRenderer(t, nil)
		render(t, r, mixedScene(), testCamera())
		return rec.Stream()
	}
	first := frame()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, frame())
}

func TestRenderSkipsUnchangedUniforms(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	scene := mixedScene()
	cam := testCamera()

	first := render(t, r, scene, cam)
	assert.Positive(t, first.UniformUploads)
	assert.Zero(t, first.UniformsSkipped)

	rec.Reset()
	second := render(t, r, scene, cam)
	assert.Zero(t, second.UniformUploads)
	assert.Positive(t, second.UniformsSkipped)
	assert.Zero(t, rec.Count(gpu.OpSetUniform))
	assert.Zero(t, rec.Count(gpu.OpCompile))
	assert.Less(t, second.StateChanges, first.StateChanges)

	scene.FindByName("cube").Translate(mgl32.Vec3{0.5, 0, 0})
	third := render(t, r, scene, cam)
	assert.Positive(t, third.UniformUploads)
}

func TestProgramsSharedAndReleasedWithMaterials(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	red := core.NewBasicMaterial(mgl32.Vec3{1, 0, 0})
	blue := core.NewBasicMaterial(mgl32.Vec3{0, 0, 1})
	scene := core.NewScene()
	scene.Add(
		meshAt("a", core.NewBoxGeometry(1, 1, 1), red, -5),
		meshAt("b", core.NewBoxGeometry(1, 1, 1), blue, -6),
	)
	render(t, r, scene, testCamera())

	require.Equal(t, 1, r.Programs().Len())
	p := r.Programs().Programs()[0]
	assert.Equal(t, 2, p.UsedTimes())
	assert.Equal(t, 1, rec.Count(gpu.OpCompile))

	red.Dispose()
	assert.Equal(t, 1, r.Programs().Len())
	assert.Equal(t, 1, p.UsedTimes())

	blue.Dispose()
	assert.Zero(t, r.Programs().Len())
	assert.Zero(t, rec.Programs())
}

func TestMaterialChangeReplacesProgram(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	m := core.NewBasicMaterial(mgl32.Vec3{1, 1, 1})
	scene := core.NewScene()
	scene.Add(meshAt("box", core.NewBoxGeometry(1, 1, 1), m, -5))
	cam := testCamera()

	render(t, r, scene, cam)
	require.Equal(t, 1, r.Programs().Len())
	first := r.Programs().Programs()[0]

	for i := 0; i < 5; i++ {
		m.VertexColors = !m.VertexColors
		m.FlatShading = i%2 == 0
		m.NeedsUpdate()
		render(t, r, scene, cam)
		assert.Equal(t, 1, r.Programs().Len(), "change %d", i)
	}
	current := r.Programs().Programs()[0]
	assert.NotEqual(t, first.Handle, current.Handle)
	assert.Zero(t, first.UsedTimes())
	assert.Nil(t, r.Programs().Get(first.Key))
	assert.Equal(t, 1, current.UsedTimes())
	assert.Equal(t, 1, rec.Programs())
}

func TestLightCountChangeReplacesProgram(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	m := core.NewStandardMaterial(mgl32.Vec3{1, 1, 1}, 0.5, 0)
	scene := core.NewScene()
	scene.Add(meshAt("box", core.NewBoxGeometry(1, 1, 1), m, -5))
	cam := testCamera()

	render(t, r, scene, cam)
	for i := 0; i < 4; i++ {
		light := core.NewPointLight(mgl32.Vec3{1, 1, 1}, 1, 0, 2)
		light.SetPosition(mgl32.Vec3{float32(i), 2, -3})
		scene.Add(light)
		render(t, r, scene, cam)
		assert.Equal(t, 1, r.Programs().Len(), "lights %d", i+1)
	}
	assert.Equal(t, 4, r.Lights().Counts.Point)
}

func TestMaterialSharedAcrossVariantsKeepsBoth(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	m := core.NewBasicMaterial(mgl32.Vec3{1, 1, 1})
	row := meshAt("row", core.NewBoxGeometry(1, 1, 1), m, -6)
	row.Renderable.InstanceMatrices = []mgl32.Mat4{mgl32.Ident4(), mgl32.Translate3D(1, 0, 0)}
	scene := core.NewScene()
	scene.Add(meshAt("box", core.NewBoxGeometry(1, 1, 1), m, -5), row)
	cam := testCamera()

	render(t, r, scene, cam)
	render(t, r, scene, cam)
	assert.Equal(t, 2, r.Programs().Len())
	for _, p := range r.Programs().Programs() {
		assert.Equal(t, 1, p.UsedTimes())
	}

	m.Dispose()
	assert.Zero(t, r.Programs().Len())
}

func TestRendererDisposeReleasesEverything(t *testing.T) {
	r, rec := newTestRenderer(t, func(c *Config) { c.ShadowMap.Enabled = true })
	scene := mixedScene()

	m := core.NewBasicMaterial(mgl32.Vec3{1, 1, 1})
	m.Map = core.NewTexture(1, 1, gpu.FormatRGBA8, []byte{255, 255, 255, 255})
	box := meshAt("textured", core.NewBoxGeometry(1, 1, 1), m, -6)
	box.CastShadow = true
	light := core.NewDirectionalLight(mgl32.Vec3{1, 1, 1}, 1)
	light.CastShadow = true
	light.SetPosition(mgl32.Vec3{0, 10, -5})
	light.Light.Target.SetPosition(mgl32.Vec3{0, 0, -5})
	scene.Add(box, light)

	info := render(t, r, scene, testCamera())
	require.Positive(t, info.ShadowDraws)
	require.Positive(t, rec.Textures())
	require.Equal(t, 2, rec.RenderTargets())

	r.Dispose()
	assert.Zero(t, r.Programs().Len())
	assert.Zero(t, rec.Programs())
	assert.Zero(t, rec.Geometries())
	assert.Zero(t, rec.Textures())
	assert.Zero(t, rec.RenderTargets())

	// Usable again after Dispose.
	// Two opaque draws in the transmission pass and four on screen.
	rec.Reset()
	info = render(t, r, scene, testCamera())
	assert.Equal(t, 6, info.DrawCalls)
}

func shadowScene() (*core.Scene, *core.Node, *core.Node) {
	cube := meshAt("cube", core.NewBoxGeometry(1, 1, 1), core.NewStandardMaterial(mgl32.Vec3{1, 1, 1}, 1, 0), -5)
	cube.CastShadow = true
	cube.ReceiveShadow = true

	light := core.NewDirectionalLight(mgl32.Vec3{1, 1, 1}, 2)
	light.CastShadow = true
	light.SetPosition(mgl32.Vec3{0, 10, -5})
	light.Light.Target.SetPosition(mgl32.Vec3{0, 0, -5})

	scene := core.NewScene()
	scene.Add(cube, light)
	return scene, cube, light
}

func TestShadowsRenderBeforeMainPass(t *testing.T) {
	r, rec := newTestRenderer(t, func(c *Config) { c.ShadowMap.Enabled = true })
	scene, _, _ := shadowScene()
	info := render(t, r, scene, testCamera())

	require.Positive(t, info.ShadowDraws)
	assert.Equal(t, 1, info.DrawCalls)
	require.Len(t, rec.Draws, info.ShadowDraws+info.DrawCalls)

	shadow := rec.Draws[0].Target
	require.NotEmpty(t, shadow)
	for i, d := range rec.Draws {
		if i < info.ShadowDraws {
			assert.Equal(t, shadow, d.Target)
			// Front faced casters draw their back faces into the map.
			assert.Equal(t, gpu.CullFront, d.Cull)
		} else {
			assert.Empty(t, d.Target)
		}
	}

	main := mainDraws(rec)[0]
	assert.Contains(t, boundTextures(main), rec.RenderTargetTexture(shadow))
	assert.Contains(t, rec.Source(main.Program).Defines, "USE_SHADOWMAP")
	assert.Contains(t, rec.Source(main.Program).Defines, "SHADOWMAP_TYPE_PCF")
	assert.Equal(t, 1, r.Lights().Counts.DirectionalShadows)
}

func TestShadowsDisabled(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	scene, _, _ := shadowScene()
	info := render(t, r, scene, testCamera())

	assert.Zero(t, info.ShadowDraws)
	assert.Zero(t, rec.RenderTargets())
	assert.NotContains(t, rec.Source(rec.Draws[0].Program).Defines, "USE_SHADOWMAP")
	assert.Zero(t, r.Lights().Counts.Shadows())
}

func TestShadowToggleTracksCounts(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	scene, _, _ := shadowScene()
	cam := testCamera()

	render(t, r, scene, cam)
	assert.Zero(t, r.Lights().Counts.Shadows())

	r.SetShadowMapEnabled(true)
	render(t, r, scene, cam)
	assert.Equal(t, 1, r.Lights().Counts.DirectionalShadows)
	assert.Contains(t, rec.Source(mainDraws(rec)[len(mainDraws(rec))-1].Program).Defines, "USE_SHADOWMAP")

	r.SetShadowMapEnabled(false)
	rec.Reset()
	info := render(t, r, scene, cam)
	assert.Zero(t, info.ShadowDraws)
	assert.Zero(t, r.Lights().Counts.Shadows())
	assert.NotContains(t, rec.Source(mainDraws(rec)[0].Program).Defines, "USE_SHADOWMAP")
}

func TestShadowManualUpdate(t *testing.T) {
	r, _ := newTestRenderer(t, func(c *Config) {
		c.ShadowMap.Enabled = true
		c.ShadowMap.AutoUpdate = false
	})
	scene, _, light := shadowScene()
	cam := testCamera()
	sh := light.Light.Shadow

	assert.Zero(t, render(t, r, scene, cam).ShadowDraws)

	sh.NeedsUpdate = true
	assert.Positive(t, render(t, r, scene, cam).ShadowDraws)
	assert.False(t, sh.NeedsUpdate)

	assert.Zero(t, render(t, r, scene, cam).ShadowDraws)
}

func TestCompileFailureIsIsolated(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	var buf bytes.Buffer
	r.SetLogger(logging.NewLogger(&buf, "forward-test", false))

	fails := 0
	rec.FailCompile = func(src gpu.ProgramSource) error {
		if strings.HasPrefix(src.Label, "standard") {
			fails++
			return &gpu.CompileError{Stage: "fragment", Log: "0:1 syntax error"}
		}
		return nil
	}

	broken := core.NewStandardMaterial(mgl32.Vec3{1, 1, 1}, 0.5, 0)
	scene := core.NewScene()
	scene.Add(
		meshAt("ok", core.NewBoxGeometry(1, 1, 1), core.NewBasicMaterial(mgl32.Vec3{1, 1, 1}), -5),
		meshAt("broken", core.NewBoxGeometry(1, 1, 1), broken, -6),
	)
	cam := testCamera()

	info := render(t, r, scene, cam)
	assert.Equal(t, 1, info.DrawCalls)
	assert.Equal(t, 1, info.Skipped)
	require.NotNil(t, broken.Diagnostics)
	assert.Equal(t, "fragment", broken.Diagnostics.Stage)
	assert.Contains(t, broken.Diagnostics.Log, "syntax error")
	assert.Contains(t, buf.String(), "failed")

	render(t, r, scene, cam)
	assert.Equal(t, 1, fails, "failed programs are cached")

	err := r.Compile(scene, cam)
	require.Error(t, err)
	var d *core.Diagnostics
	assert.True(t, errors.As(err, &d))
}

func TestCompileWarmsPrograms(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	scene := mixedScene()
	cam := testCamera()

	require.NoError(t, r.Compile(scene, cam))
	compiled := rec.Count(gpu.OpCompile)
	assert.Equal(t, 3, compiled)
	assert.Zero(t, rec.Count(gpu.OpDraw))

	render(t, r, scene, cam)
	// The transmission pre-pass needs an offscreen variant of the cube's
	// program; everything else was compiled ahead.
	assert.Equal(t, compiled+1, rec.Count(gpu.OpCompile))
}

func TestUnsupportedTextureIsDiagnosed(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	tex := core.NewTexture(1, 1, gpu.FormatDepth24, nil)
	m := core.NewBasicMaterial(mgl32.Vec3{1, 1, 1})
	m.Map = tex
	scene := core.NewScene()
	scene.Add(meshAt("box", core.NewBoxGeometry(1, 1, 1), m, -5))

	info := render(t, r, scene, testCamera())
	assert.Equal(t, 1, info.DrawCalls)
	require.NotNil(t, tex.Diagnostics)
	assert.Equal(t, "upload", tex.Diagnostics.Stage)
	assert.True(t, errors.Is(tex.Diagnostics, gpu.ErrUnsupportedFormat))
	assert.Zero(t, rec.Textures())
	assert.Empty(t, rec.Draws[0].Textures[0])
}

func TestGeometryWithoutPositionIsSkipped(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	g := core.NewGeometry()
	g.SetAttribute(core.AttrNormal, core.NewAttribute(3, []float32{0, 0, 1}))
	scene := core.NewScene()
	scene.Add(meshAt("bare", g, core.NewBasicMaterial(mgl32.Vec3{1, 1, 1}), -5))

	info := render(t, r, scene, testCamera())
	assert.Zero(t, info.DrawCalls)
	assert.Equal(t, 1, info.Skipped)
	assert.Empty(t, rec.Draws)
	require.NotNil(t, g.Diagnostics)
	assert.True(t, errors.Is(g.Diagnostics, errMissingPosition))
}

func TestDoubleSidedTransparentDrawsBackThenFront(t *testing.T) {
	r, rec := newTestRenderer(t, nil)
	m := transparentBasic()
	m.Side = core.DoubleSide
	scene := core.NewScene()
	scene.Add(meshAt("sphere", core.NewSphereGeometry(1, 8, 6), m, -5))
	cam := testCamera()

	render(t, r, scene, cam)
	require.Len(t, rec.Draws, 2)
	assert.Equal(t, gpu.CullFront, rec.Draws[0].Cull)
	assert.Equal(t, gpu.CullBack, rec.Draws[1].Cull)
	assert.Equal(t, rec.Draws[0].Program, rec.Draws[1].Program)

	m.ForceSinglePass = true
	rec.Draws = nil
	render(t, r, scene, cam)
	require.Len(t, rec.Draws, 1)
	assert.Equal(t, gpu.CullNone, rec.Draws[0].Cull)
}

func TestTransmissionTargetScaled(t *testing.T) {
	r, rec := newTestRenderer(t, func(c *Config) { c.TransmissionResolutionScale = 0.5 })
	render(t, r, mixedScene(), testCamera())

	assert.Equal(t, gpu.Viewport{Width: 32, Height: 16}, rec.Draws[0].Viewport)
	assert.Equal(t, gpu.Viewport{Width: 64, Height: 32}, mainDraws(rec)[0].Viewport)
}

func TestClippingPlanesSelectProgram(t *testing.T) {
	r, rec := newTestRenderer(t, func(c *Config) {
		c.ClippingPlanes = [][4]float32{{0, 1, 0, 0}}
	})
	m := core.NewBasicMaterial(mgl32.Vec3{1, 1, 1})
	m.ClippingPlanes = []core.Plane{core.NewPlane(mgl32.Vec3{1, 0, 0}, 0), core.NewPlane(mgl32.Vec3{-1, 0, 0}, 1)}
	m.ClipIntersection = true
	scene := core.NewScene()
	scene.Add(meshAt("box", core.NewBoxGeometry(1, 1, 1), m, -5))
	cam := testCamera()

	render(t, r, scene, cam)
	defines := rec.Source(rec.Draws[0].Program).Defines
	assert.Contains(t, defines, "NUM_CLIPPING_PLANES=1")
	assert.Contains(t, defines, "UNION_CLIPPING_PLANES=1")

	r.cfg.LocalClippingEnabled = true
	rec.Draws = nil
	render(t, r, scene, cam)
	defines = rec.Source(rec.Draws[0].Program).Defines
	assert.Contains(t, defines, "NUM_CLIPPING_PLANES=3")
	assert.Contains(t, defines, "UNION_CLIPPING_PLANES=1")
}

func TestToneMappingOnlyOnScreen(t *testing.T) {
	r, rec := newTestRenderer(t, func(c *Config) { c.ToneMapping = core.ACESFilmicToneMapping })
	scene := core.NewScene()
	scene.Add(meshAt("box", core.NewBoxGeometry(1, 1, 1), core.NewBasicMaterial(mgl32.Vec3{1, 1, 1}), -5))
	cam := testCamera()

	render(t, r, scene, cam)
	screen := rec.Source(rec.Draws[0].Program).Defines
	assert.Contains(t, screen, "TONE_MAPPING_ACES")
	assert.Contains(t, screen, "OUTPUT_SRGB")

	target, err := rec.CreateRenderTarget(gpu.RenderTargetDesc{Width: 64, Height: 32, Format: gpu.FormatRGBA16F})
	require.NoError(t, err)
	r.SetRenderTarget(target)
	rec.Draws = nil
	render(t, r, scene, cam)
	require.Len(t, rec.Draws, 1)
	assert.Equal(t, target, rec.Draws[0].Target)
	offscreen := rec.Source(rec.Draws[0].Program).Defines
	assert.False(t, slices.ContainsFunc(offscreen, func(d string) bool { return strings.HasPrefix(d, "TONE_MAPPING") }))
	assert.NotContains(t, offscreen, "OUTPUT_SRGB")
}

func TestOverrideMaterialUsesOneProgram(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	scene := core.NewScene()
	scene.Add(
		meshAt("cube", core.NewBoxGeometry(1, 1, 1), core.NewStandardMaterial(mgl32.Vec3{1, 0, 0}, 1, 0), -5),
		meshAt("quad", core.NewPlaneGeometry(1, 1), transparentBasic(), -3),
	)
	scene.OverrideMaterial = core.NewMaterial(core.NormalMaterial)

	info := render(t, r, scene, testCamera())
	assert.Equal(t, 1, r.Programs().Len())
	assert.Equal(t, 2, info.DrawCalls)
}

func TestInfoCountsPrimitives(t *testing.T) {
	r, _ := newTestRenderer(t, nil)
	scene := core.NewScene()
	scene.Add(meshAt("box", core.NewBoxGeometry(1, 1, 1), core.NewBasicMaterial(mgl32.Vec3{1, 1, 1}), -5))
	behind := meshAt("behind", core.NewBoxGeometry(1, 1, 1), core.NewBasicMaterial(mgl32.Vec3{1, 1, 1}), 5)
	scene.Add(behind)

	info := render(t, r, scene, testCamera())
	assert.Equal(t, 1, info.Frame)
	assert.Equal(t, 1, info.DrawCalls)
	assert.Equal(t, 12, info.Triangles)
	assert.Equal(t, 1, info.Culled)
	assert.Equal(t, 1, info.Geometries)
	assert.Equal(t, 1, info.Programs)

	assert.Equal(t, 2, render(t, r, scene, testCamera()).Frame)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Width = 0
	_, err = New(gpu.NewRecorder(), cfg)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
