package program

import (
	"fmt"
	"sort"

	"github.com/gekko3d/forward/rt/core"
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

var ErrNoShader = errors.New("program: no shader source")

// Library turns parameters into program text. The returned source declares
// its uniforms and attributes; the cache never inspects the text.
type Library interface {
	Source(p *Parameters, m *core.Material) (gpu.ProgramSource, error)
}

// Uniform names shared by the renderer and the shader library.
const (
	ProjectionMatrix    = "projectionMatrix"
	ViewMatrix          = "viewMatrix"
	ModelMatrix         = "modelMatrix"
	ModelViewMatrix     = "modelViewMatrix"
	NormalMatrix        = "normalMatrix"
	CameraPosition      = "cameraPosition"
	LogDepthBufFC       = "logDepthBufFC"
	Diffuse             = "diffuse"
	Opacity             = "opacity"
	Emissive            = "emissive"
	Roughness           = "roughness"
	Metalness           = "metalness"
	AlphaTest           = "alphaTest"
	ToneMappingExposure = "toneMappingExposure"

	AmbientLightColor = "ambientLightColor"
	DirectionalLights = "directionalLights"
	PointLights       = "pointLights"
	SpotLights        = "spotLights"
	HemisphereLights  = "hemisphereLights"
	RectAreaLights    = "rectAreaLights"

	DirectionalShadowMatrix = "directionalShadowMatrix"
	SpotShadowMatrix        = "spotShadowMatrix"
	PointShadowMatrix       = "pointShadowMatrix"
	DirectionalShadowParams = "directionalShadowParams"
	SpotShadowParams        = "spotShadowParams"
	PointShadowParams       = "pointShadowParams"

	FogColor   = "fogColor"
	FogNear    = "fogNear"
	FogFar     = "fogFar"
	FogDensity = "fogDensity"

	ClippingPlanes = "clippingPlanes"

	BoneMatrices          = "boneMatrices"
	MorphTargetInfluences = "morphTargetInfluences"

	Transmission            = "transmission"
	TransmissionSamplerMap  = "transmissionSamplerMap"
	TransmissionSamplerSize = "transmissionSamplerSize"

	ReferencePosition = "referencePosition"
	NearDistance      = "nearDistance"
	FarDistance       = "farDistance"
)

// Per-light shadow parameter strides in floats.
const (
	ShadowParamsStride      = 4 // bias, normalBias, radius, mapSize
	PointShadowParamsStride = 8 // bias, normalBias, radius, mapSize, near, far, _, _
)

// ShadowMapSampler names the sampler for the i-th shadow map of a kind
// ("directional", "spot" or "point").
func ShadowMapSampler(kind string, i int) string {
	return fmt.Sprintf("%sShadowMap%d", kind, i)
}

// TextureSlot pairs a material capability with its sampler uniform.
type TextureSlot struct {
	Cap  core.Capabilities
	Name string
	Get  func(m *core.Material) *core.Texture
}

// TextureSlots lists the material texture samplers in unit order.
var TextureSlots = []TextureSlot{
	{core.CapMap, "map", func(m *core.Material) *core.Texture { return m.Map }},
	{core.CapAlphaMap, "alphaMap", func(m *core.Material) *core.Texture { return m.AlphaMap }},
	{core.CapNormalMap, "normalMap", func(m *core.Material) *core.Texture { return m.NormalMap }},
	{core.CapBumpMap, "bumpMap", func(m *core.Material) *core.Texture { return m.BumpMap }},
	{core.CapRoughnessMap, "roughnessMap", func(m *core.Material) *core.Texture { return m.RoughnessMap }},
	{core.CapMetalnessMap, "metalnessMap", func(m *core.Material) *core.Texture { return m.MetalnessMap }},
	{core.CapEmissiveMap, "emissiveMap", func(m *core.Material) *core.Texture { return m.EmissiveMap }},
	{core.CapAOMap, "aoMap", func(m *core.Material) *core.Texture { return m.AOMap }},
	{core.CapEnvMap, "envMap", func(m *core.Material) *core.Texture { return m.EnvMap }},
	{core.CapLightMap, "lightMap", func(m *core.Material) *core.Texture { return m.LightMap }},
	{core.CapTransmissionMap, "transmissionMap", func(m *core.Material) *core.Texture { return m.TransmissionMap }},
}

// StandardUniforms declares the uniform layout every built-in program
// uses for p. Custom shader uniforms are appended by CustomUniforms.
func StandardUniforms(p *Parameters) []gpu.UniformDecl {
	u := []gpu.UniformDecl{
		{Name: ProjectionMatrix, Size: 16},
		{Name: ViewMatrix, Size: 16},
		{Name: ModelMatrix, Size: 16},
		{Name: ModelViewMatrix, Size: 16},
		{Name: NormalMatrix, Size: 9},
		{Name: CameraPosition, Size: 3},
		{Name: Diffuse, Size: 3},
		{Name: Opacity, Size: 1},
	}
	f := func(name string, size int) {
		if size > 0 {
			u = append(u, gpu.UniformDecl{Name: name, Size: size})
		}
	}
	sampler := func(name string) {
		u = append(u, gpu.UniformDecl{Name: name, Size: 1, Sampler: true})
	}

	if p.LogarithmicDepth {
		f(LogDepthBufFC, 1)
	}
	if p.Capabilities.Has(core.CapAlphaTest) {
		f(AlphaTest, 1)
	}
	if p.ToneMapping != core.NoToneMapping {
		f(ToneMappingExposure, 1)
	}
	for _, s := range TextureSlots {
		if p.Capabilities.Has(s.Cap) {
			sampler(s.Name)
		}
	}

	switch p.Kind {
	case core.DistanceMaterial:
		f(ReferencePosition, 3)
		f(NearDistance, 1)
		f(FarDistance, 1)
	case core.DepthMaterial:
	default:
		if p.Kind.Lit() {
			f(Emissive, 3)
			f(Roughness, 1)
			f(Metalness, 1)
			f(AmbientLightColor, 3)
			f(DirectionalLights, p.Lights.Directional*8)
			f(PointLights, p.Lights.Point*12)
			f(SpotLights, p.Lights.Spot*16)
			f(HemisphereLights, p.Lights.Hemisphere*12)
			f(RectAreaLights, p.Lights.RectArea*16)
		}
	}

	if p.ShadowMapEnabled {
		f(DirectionalShadowMatrix, p.Lights.DirectionalShadows*16)
		f(SpotShadowMatrix, p.Lights.SpotShadows*16)
		f(PointShadowMatrix, p.Lights.PointShadows*16)
		f(DirectionalShadowParams, p.Lights.DirectionalShadows*ShadowParamsStride)
		f(SpotShadowParams, p.Lights.SpotShadows*ShadowParamsStride)
		f(PointShadowParams, p.Lights.PointShadows*PointShadowParamsStride)
		for i := 0; i < p.Lights.DirectionalShadows; i++ {
			sampler(ShadowMapSampler("directional", i))
		}
		for i := 0; i < p.Lights.SpotShadows; i++ {
			sampler(ShadowMapSampler("spot", i))
		}
		for i := 0; i < p.Lights.PointShadows; i++ {
			sampler(ShadowMapSampler("point", i))
		}
	}

	if p.Fog {
		f(FogColor, 3)
		if p.FogExp2 {
			f(FogDensity, 1)
		} else {
			f(FogNear, 1)
			f(FogFar, 1)
		}
	}
	f(ClippingPlanes, p.Clipping.NumPlanes*4)
	if p.Skinning {
		f(BoneMatrices, p.Bones*16)
	}
	if p.Morphing {
		f(MorphTargetInfluences, p.MorphTargets)
	}
	if p.Capabilities.Has(core.CapTransmission) {
		f(Transmission, 1)
		f(TransmissionSamplerSize, 2)
		sampler(TransmissionSamplerMap)
	}
	return u
}

// StandardAttributes declares the vertex inputs for p.
func StandardAttributes(p *Parameters) []gpu.AttributeDecl {
	a := []gpu.AttributeDecl{
		{Name: core.AttrPosition, ItemSize: 3},
		{Name: core.AttrNormal, ItemSize: 3},
		{Name: core.AttrUV, ItemSize: 2},
	}
	if p.Capabilities.Has(core.CapVertexColors) {
		a = append(a, gpu.AttributeDecl{Name: core.AttrColor, ItemSize: 3})
	}
	if p.Skinning {
		a = append(a,
			gpu.AttributeDecl{Name: core.AttrSkinIndex, ItemSize: 4},
			gpu.AttributeDecl{Name: core.AttrSkinWeight, ItemSize: 4})
	}
	for i := 0; p.Morphing && i < p.MorphTargets; i++ {
		a = append(a, gpu.AttributeDecl{Name: MorphAttribute(i), ItemSize: 3})
	}
	if p.Instancing {
		a = append(a, gpu.AttributeDecl{Name: InstanceMatrix, ItemSize: 16})
	}
	return a
}

// InstanceMatrix is the per-instance attribute carrying instance transforms.
const InstanceMatrix = "instanceMatrix"

func MorphAttribute(i int) string { return core.MorphAttribute(i) }

// CustomUniforms declares a shader material's own uniforms in name order.
// Values of unsupported types are skipped.
func CustomUniforms(m *core.Material) []gpu.UniformDecl {
	names := make([]string, 0, len(m.Uniforms))
	for k := range m.Uniforms {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]gpu.UniformDecl, 0, len(names))
	for _, name := range names {
		size, sampler, ok := UniformSize(m.Uniforms[name])
		if !ok {
			continue
		}
		out = append(out, gpu.UniformDecl{Name: name, Size: size, Sampler: sampler})
	}
	return out
}

// UniformSize reports the float count of a custom uniform value.
func UniformSize(v any) (size int, sampler, ok bool) {
	switch x := v.(type) {
	case float32, float64, int, int32, bool:
		return 1, false, true
	case mgl32.Vec2:
		return 2, false, true
	case mgl32.Vec3:
		return 3, false, true
	case mgl32.Vec4:
		return 4, false, true
	case mgl32.Mat3:
		return 9, false, true
	case mgl32.Mat4:
		return 16, false, true
	case []float32:
		return len(x), false, true
	case *core.Texture:
		return 1, true, true
	}
	return 0, false, false
}
