package gpu

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCompileAssignsLocations(t *testing.T) {
	r := NewRecorder()
	h, infos, err := r.CompileProgram(ProgramSource{
		Label: "basic",
		Uniforms: []UniformDecl{
			{Name: "modelMatrix", Size: 16},
			{Name: "diffuse", Size: 3},
			{Name: "map", Sampler: true},
		},
	})
	require.NoError(t, err)
	assert.NotZero(t, h)
	require.Len(t, infos, 3)
	assert.Equal(t, UniformInfo{Name: "map", Location: 2, Sampler: true}, infos[2])
	assert.Equal(t, "basic", r.Source(h).Label)
	assert.Equal(t, 1, r.Programs())

	r.DeleteProgram(h)
	assert.Equal(t, 0, r.Programs())
}

func TestRecorderFailCompile(t *testing.T) {
	r := NewRecorder()
	r.FailCompile = func(src ProgramSource) error {
		if src.Label == "broken" {
			return &CompileError{Stage: "fragment", Log: "syntax error"}
		}
		return nil
	}
	_, _, err := r.CompileProgram(ProgramSource{Label: "broken"})
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "fragment", ce.Stage)
	assert.Equal(t, 0, r.Count(OpCompile))

	_, _, err = r.CompileProgram(ProgramSource{Label: "fine"})
	assert.NoError(t, err)
}

func TestRecorderAssets(t *testing.T) {
	r := NewRecorder()
	g, err := r.UploadGeometry("", GeometryDesc{Label: "quad"})
	require.NoError(t, err)
	assert.Equal(t, AssetID("geometry-1"), g)

	again, err := r.UploadGeometry(g, GeometryDesc{Label: "quad"})
	require.NoError(t, err)
	assert.Equal(t, g, again)

	_, err = r.UploadGeometry("nope", GeometryDesc{})
	assert.ErrorIs(t, err, ErrUnknownAsset)

	_, err = r.UploadTexture("", TextureDesc{Format: FormatDepth24})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	tex, err := r.UploadTexture("", TextureDesc{Width: 1, Height: 1, Format: FormatRGBA8, Pixels: []byte{0, 0, 0, 0}})
	require.NoError(t, err)
	assert.Equal(t, AssetID("texture-2"), tex)

	rt, err := r.CreateRenderTarget(RenderTargetDesc{Width: 4, Height: 4, Depth: true})
	require.NoError(t, err)
	assert.Equal(t, rt+"#color", r.RenderTargetTexture(rt))
	assert.Equal(t, AssetID(""), r.RenderTargetTexture(""))

	assert.Equal(t, 1, r.Geometries())
	assert.Equal(t, 1, r.Textures())
	assert.Equal(t, 1, r.RenderTargets())

	r.ReleaseGeometry(g)
	r.ReleaseTexture(tex)
	r.DeleteRenderTarget(rt)
	assert.Zero(t, r.Geometries()+r.Textures()+r.RenderTargets())
}

func TestRecorderDrawSnapshotsState(t *testing.T) {
	r := NewRecorder()
	h, _, _ := r.CompileProgram(ProgramSource{Label: "p"})
	r.UseProgram(h)
	r.SetBlending(BlendNormal, false)
	r.SetDepthWrite(false)
	r.SetCullFace(CullBack)
	r.BindTexture(0, "texture-1")
	r.SetRenderTarget("target-1")
	r.SetViewport(Viewport{Width: 8, Height: 8})
	r.Draw(DrawCall{Geometry: "geometry-1", Count: 6, Indexed: true})

	r.BindTexture(0, "texture-2")
	r.SetDepthWrite(true)
	r.Draw(DrawCall{Geometry: "geometry-1", Count: 3})

	require.Len(t, r.Draws, 2)
	first := r.Draws[0]
	assert.Equal(t, h, first.Program)
	assert.Equal(t, BlendNormal, first.Blend)
	assert.False(t, first.DepthWrite)
	assert.True(t, first.DepthTest)
	assert.Equal(t, CullBack, first.Cull)
	assert.Equal(t, AssetID("target-1"), first.Target)
	assert.Equal(t, AssetID("texture-1"), first.Textures[0])
	assert.Equal(t, 8, first.Viewport.Width)

	assert.True(t, r.Draws[1].DepthWrite)
	assert.Equal(t, AssetID("texture-2"), r.Draws[1].Textures[0])
}

func TestRecorderStreamIsDeterministic(t *testing.T) {
	frame := func(r *Recorder) {
		r.BeginFrame()
		h, _, _ := r.CompileProgram(ProgramSource{Uniforms: []UniformDecl{{Name: "a", Size: 4}}})
		r.UseProgram(h)
		r.SetUniform(h, 0, []float32{1, 2, 3, 4})
		r.SetUniformInt(h, 0, 7)
		r.Clear([4]float32{0, 0, 0, 1}, true)
		r.Draw(DrawCall{Count: 3})
		r.EndFrame()
	}
	a, b := NewRecorder(), NewRecorder()
	frame(a)
	frame(b)
	assert.Equal(t, a.Stream(), b.Stream())
	assert.Contains(t, a.Stream(), "uniform 1@0 [1 2 3 4]")

	a.Reset()
	assert.Empty(t, a.Commands)
	assert.Empty(t, a.Draws)
	assert.Equal(t, 1, a.Programs(), "reset keeps resources")
}

func TestRecorderUniformValuesAreCopied(t *testing.T) {
	r := NewRecorder()
	v := []float32{1, 2}
	r.SetUniform(1, 0, v)
	v[0] = 9
	assert.Equal(t, []float32{1, 2}, r.Commands[0].Values)
}
