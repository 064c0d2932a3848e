package shaders

import (
	_ "embed"

	"github.com/gekko3d/forward/rt/core"
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/gekko3d/forward/rt/program"
	"github.com/pkg/errors"
)

//go:embed common.wgsl
var CommonWGSL string

//go:embed vertex.wgsl
var VertexWGSL string

//go:embed basic.wgsl
var BasicWGSL string

//go:embed lit.wgsl
var LitWGSL string

//go:embed normal.wgsl
var NormalWGSL string

//go:embed depth.wgsl
var DepthWGSL string

// Library is the built-in WGSL program library. The vertex text carries
// the generated prelude, the shared helpers and the vertex stage; the
// fragment text only the fragment stage, so a backend compiles the two
// concatenated as one module.
type Library struct{}

func New() *Library { return &Library{} }

func (l *Library) Source(p *program.Parameters, m *core.Material) (gpu.ProgramSource, error) {
	uniforms := program.StandardUniforms(p)
	attributes := program.StandardAttributes(p)
	defines := p.DefineList()

	vertex := VertexWGSL
	var fragment string
	switch p.Kind {
	case core.BasicMaterial:
		fragment = BasicWGSL
	case core.NormalMaterial:
		fragment = NormalWGSL
	case core.DepthMaterial, core.DistanceMaterial:
		fragment = DepthWGSL
	case core.ToonMaterial:
		defines = append(defines, "TOON")
		fragment = LitWGSL
	case core.ShaderMaterial:
		if m == nil || m.Shader == nil || m.Shader.Fragment == "" {
			return gpu.ProgramSource{}, errors.Wrapf(program.ErrNoShader, "shader material %q", p.ShaderID)
		}
		if m.Shader.Vertex != "" {
			vertex = m.Shader.Vertex
		}
		fragment = m.Shader.Fragment
		uniforms = append(uniforms, program.CustomUniforms(m)...)
	default:
		if !p.Kind.Lit() {
			return gpu.ProgramSource{}, errors.Wrapf(program.ErrNoShader, "material kind %s", p.Kind)
		}
		fragment = LitWGSL
	}

	vs, err := Preprocess(Prelude(uniforms, attributes)+CommonWGSL+vertex, defines)
	if err != nil {
		return gpu.ProgramSource{}, errors.Wrap(err, "vertex")
	}
	fs, err := Preprocess(fragment, defines)
	if err != nil {
		return gpu.ProgramSource{}, errors.Wrap(err, "fragment")
	}
	return gpu.ProgramSource{
		Label:      p.Kind.String(),
		Vertex:     vs,
		Fragment:   fs,
		Defines:    defines,
		Uniforms:   uniforms,
		Attributes: attributes,
	}, nil
}
