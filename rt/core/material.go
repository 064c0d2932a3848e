package core

import (
	"strings"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var materialIDs atomic.Uint64

type MaterialKind uint8

const (
	BasicMaterial MaterialKind = iota
	LambertMaterial
	PhongMaterial
	StandardMaterial
	PhysicalMaterial
	ToonMaterial
	NormalMaterial
	DepthMaterial
	DistanceMaterial
	ShaderMaterial
)

var materialKindNames = []string{
	"basic", "lambert", "phong", "standard", "physical", "toon", "normal", "depth", "distance", "shader",
}

func (k MaterialKind) String() string { return enumName(materialKindNames, int(k)) }

// Lit reports whether the shading model consumes scene lights.
func (k MaterialKind) Lit() bool {
	switch k {
	case LambertMaterial, PhongMaterial, StandardMaterial, PhysicalMaterial, ToonMaterial:
		return true
	}
	return false
}

// Capabilities is the set of shader features a material exercises.
type Capabilities uint64

const (
	CapMap Capabilities = 1 << iota
	CapAlphaMap
	CapNormalMap
	CapBumpMap
	CapRoughnessMap
	CapMetalnessMap
	CapEmissiveMap
	CapAOMap
	CapEnvMap
	CapLightMap
	CapTransmission
	CapTransmissionMap
	CapVertexColors
	CapFlatShading
	CapFog
	CapAlphaTest
	CapDoubleSided
	CapFlipSided
	CapDithering
	CapPremultipliedAlpha
	CapToneMapped
	CapOpaque
	CapWireframe
)

var capNames = []string{
	"map", "alphaMap", "normalMap", "bumpMap", "roughnessMap", "metalnessMap", "emissiveMap",
	"aoMap", "envMap", "lightMap", "transmission", "transmissionMap", "vertexColors",
	"flatShading", "fog", "alphaTest", "doubleSided", "flipSided", "dithering",
	"premultipliedAlpha", "toneMapped", "opaque", "wireframe",
}

func (c Capabilities) Has(f Capabilities) bool { return c&f == f }

// Names lists the set flags in bit order.
func (c Capabilities) Names() []string {
	var out []string
	for i, n := range capNames {
		if c&(1<<uint(i)) != 0 {
			out = append(out, n)
		}
	}
	return out
}

func (c Capabilities) String() string {
	return strings.Join(c.Names(), "|")
}

type PolygonOffset struct {
	Enabled bool
	Factor  float32
	Units   float32
}

// ShaderCode is the program text a ShaderMaterial brings with it.
type ShaderCode struct {
	Name     string
	Vertex   string
	Fragment string
}

// Material describes how a renderable is shaded. Changes to fields that
// affect the shader must be followed by NeedsUpdate.
type Material struct {
	ID   uint64
	UUID string
	Name string
	Kind MaterialKind

	Color        mgl32.Vec3
	Emissive     mgl32.Vec3
	Opacity      float32
	Roughness    float32
	Metalness    float32
	Transmission float32
	AlphaTest    float32

	Transparent        bool
	Blending           Blending
	PremultipliedAlpha bool
	Side               Side
	ForceSinglePass    bool
	DepthTest          bool
	DepthWrite         bool
	ColorWrite         bool
	VertexColors       bool
	FlatShading        bool
	Fog                bool
	ToneMapped         bool
	Dithering          bool
	Wireframe          bool
	PolygonOffset      PolygonOffset
	Visible            bool

	Map             *Texture
	AlphaMap        *Texture
	NormalMap       *Texture
	BumpMap         *Texture
	RoughnessMap    *Texture
	MetalnessMap    *Texture
	EmissiveMap     *Texture
	AOMap           *Texture
	EnvMap          *Texture
	LightMap        *Texture
	TransmissionMap *Texture

	ClippingPlanes   []Plane
	ClipIntersection bool
	ClipShadows      bool

	// ShaderMaterial only.
	Shader   *ShaderCode
	Defines  map[string]string
	Uniforms map[string]any

	Version     int
	Diagnostics *Diagnostics

	caps        Capabilities
	capsVersion int
	listeners   []func(*Material)
}

func NewMaterial(kind MaterialKind) *Material {
	return &Material{
		ID:          materialIDs.Add(1),
		UUID:        uuid.NewString(),
		Kind:        kind,
		Color:       mgl32.Vec3{1, 1, 1},
		Opacity:     1,
		Roughness:   1,
		Blending:    NormalBlending,
		DepthTest:   true,
		DepthWrite:  true,
		ColorWrite:  true,
		Fog:         true,
		ToneMapped:  true,
		Visible:     true,
		capsVersion: -1,
	}
}

func NewBasicMaterial(color mgl32.Vec3) *Material {
	m := NewMaterial(BasicMaterial)
	m.Color = color
	return m
}

func NewStandardMaterial(color mgl32.Vec3, roughness, metalness float32) *Material {
	m := NewMaterial(StandardMaterial)
	m.Color = color
	m.Roughness = roughness
	m.Metalness = metalness
	return m
}

// NewShaderMaterial wraps caller supplied program text.
func NewShaderMaterial(code ShaderCode, uniforms map[string]any) *Material {
	m := NewMaterial(ShaderMaterial)
	m.Shader = &code
	m.Uniforms = uniforms
	m.Fog = false
	return m
}

// NewDepthMaterial writes depth only. Used for directional and spot shadows.
func NewDepthMaterial() *Material {
	m := NewMaterial(DepthMaterial)
	m.Fog = false
	m.ToneMapped = false
	return m
}

// NewDistanceMaterial writes the distance to a reference point. Used for
// point light shadows.
func NewDistanceMaterial() *Material {
	m := NewMaterial(DistanceMaterial)
	m.Fog = false
	m.ToneMapped = false
	return m
}

// NeedsUpdate invalidates the cached capabilities; the next draw
// re-derives the program key.
func (m *Material) NeedsUpdate() {
	m.Version++
}

// Capabilities is recomputed at most once per Version.
func (m *Material) Capabilities() Capabilities {
	if m.capsVersion == m.Version {
		return m.caps
	}
	m.caps = m.computeCapabilities()
	m.capsVersion = m.Version
	return m.caps
}

func (m *Material) computeCapabilities() Capabilities {
	var c Capabilities
	set := func(on bool, f Capabilities) {
		if on {
			c |= f
		}
	}
	set(m.Map != nil, CapMap)
	set(m.AlphaMap != nil, CapAlphaMap)
	set(m.NormalMap != nil, CapNormalMap)
	set(m.BumpMap != nil, CapBumpMap)
	set(m.RoughnessMap != nil, CapRoughnessMap)
	set(m.MetalnessMap != nil, CapMetalnessMap)
	set(m.EmissiveMap != nil, CapEmissiveMap)
	set(m.AOMap != nil, CapAOMap)
	set(m.EnvMap != nil, CapEnvMap)
	set(m.LightMap != nil, CapLightMap)
	set(m.Transmission > 0, CapTransmission)
	set(m.TransmissionMap != nil, CapTransmissionMap)
	set(m.VertexColors, CapVertexColors)
	set(m.FlatShading, CapFlatShading)
	set(m.Fog, CapFog)
	set(m.AlphaTest > 0, CapAlphaTest)
	set(m.Side == DoubleSide, CapDoubleSided)
	set(m.Side == BackSide, CapFlipSided)
	set(m.Dithering, CapDithering)
	set(m.PremultipliedAlpha, CapPremultipliedAlpha)
	set(m.ToneMapped, CapToneMapped)
	set(!m.Transparent && m.Blending == NormalBlending, CapOpaque)
	set(m.Wireframe, CapWireframe)
	return c
}

// Textures returns the non-nil texture slots in a fixed order.
func (m *Material) Textures() []*Texture {
	slots := [...]*Texture{
		m.Map, m.AlphaMap, m.NormalMap, m.BumpMap, m.RoughnessMap, m.MetalnessMap,
		m.EmissiveMap, m.AOMap, m.EnvMap, m.LightMap, m.TransmissionMap,
	}
	out := make([]*Texture, 0, len(slots))
	for _, t := range slots {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// AddDisposeListener registers fn to run once on Dispose.
func (m *Material) AddDisposeListener(fn func(*Material)) {
	m.listeners = append(m.listeners, fn)
}

// Dispose notifies listeners so that caches holding state for m release it.
func (m *Material) Dispose() {
	ls := m.listeners
	m.listeners = nil
	for _, fn := range ls {
		fn(m)
	}
}
