package program

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/gekko3d/forward/rt/core"
	"github.com/gekko3d/forward/rt/lights"
)

// ClippingState is the clipping configuration that selects a program.
// NumIntersection planes are intersected, the rest are unioned.
type ClippingState struct {
	NumPlanes       int
	NumIntersection int
}

// Parameters is everything that selects a compiled program. Two parameter
// sets with equal Key share one program.
type Parameters struct {
	Kind core.MaterialKind
	// ShaderID names the caller's program text for the Shader kind.
	ShaderID     string
	Capabilities core.Capabilities

	ToneMapping      core.ToneMapping
	OutputColorSpace core.ColorSpace

	ShadowMapEnabled bool
	ShadowMapType    core.ShadowMapType

	Lights   lights.Counts
	Clipping ClippingState

	Fog     bool
	FogExp2 bool

	Instancing   bool
	Skinning     bool
	Bones        int
	Morphing     bool
	MorphTargets int

	LogarithmicDepth bool
	// Point marks the distance variant used for point light shadows.
	Point bool

	Defines map[string]string
}

// Key returns the cache key. Fields are written in a fixed order and
// custom defines sorted by name, so the key does not depend on the order
// in which the caller filled the struct or its maps.
func (p *Parameters) Key() string {
	var b strings.Builder
	b.Grow(128)

	b.WriteString(p.Kind.String())
	b.WriteByte(',')
	b.WriteString(p.ShaderID)
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(uint64(p.Capabilities), 16))

	ints := []int{
		int(p.ToneMapping), int(p.OutputColorSpace),
		boolInt(p.ShadowMapEnabled), int(p.ShadowMapType),
		p.Lights.Directional, p.Lights.Point, p.Lights.Spot, p.Lights.RectArea, p.Lights.Hemisphere,
		p.Lights.DirectionalShadows, p.Lights.PointShadows, p.Lights.SpotShadows,
		p.Clipping.NumPlanes, p.Clipping.NumIntersection,
		boolInt(p.Fog), boolInt(p.FogExp2),
		boolInt(p.Instancing), boolInt(p.Skinning), p.Bones,
		boolInt(p.Morphing), p.MorphTargets,
		boolInt(p.LogarithmicDepth), boolInt(p.Point),
	}
	for _, v := range ints {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(v))
	}

	for _, name := range sortedKeys(p.Defines) {
		b.WriteByte(',')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(p.Defines[name])
	}
	return b.String()
}

// DefineList lists the preprocessor symbols for these parameters. Valued
// symbols are written as NAME=VALUE.
func (p *Parameters) DefineList() []string {
	var out []string
	add := func(on bool, name string) {
		if on {
			out = append(out, name)
		}
	}
	num := func(name string, v int) {
		out = append(out, name+"="+strconv.Itoa(v))
	}

	for _, n := range p.Capabilities.Names() {
		out = append(out, "USE_"+upperSnake(n))
	}

	num("NUM_DIR_LIGHTS", p.Lights.Directional)
	num("NUM_POINT_LIGHTS", p.Lights.Point)
	num("NUM_SPOT_LIGHTS", p.Lights.Spot)
	num("NUM_RECT_AREA_LIGHTS", p.Lights.RectArea)
	num("NUM_HEMI_LIGHTS", p.Lights.Hemisphere)
	num("NUM_DIR_LIGHT_SHADOWS", p.Lights.DirectionalShadows)
	num("NUM_POINT_LIGHT_SHADOWS", p.Lights.PointShadows)
	num("NUM_SPOT_LIGHT_SHADOWS", p.Lights.SpotShadows)
	num("NUM_CLIPPING_PLANES", p.Clipping.NumPlanes)
	num("UNION_CLIPPING_PLANES", p.Clipping.NumPlanes-p.Clipping.NumIntersection)

	if p.ShadowMapEnabled {
		out = append(out, "USE_SHADOWMAP", "SHADOWMAP_TYPE_"+upperSnake(p.ShadowMapType.String()))
	}
	if p.ToneMapping != core.NoToneMapping {
		out = append(out, "TONE_MAPPING", "TONE_MAPPING_"+upperSnake(p.ToneMapping.String()))
	}
	if p.OutputColorSpace == core.SRGBColorSpace {
		out = append(out, "OUTPUT_SRGB")
	}
	add(p.Fog, "USE_FOG")
	add(p.FogExp2, "FOG_EXP2")
	add(p.Instancing, "USE_INSTANCING")
	if p.Skinning {
		out = append(out, "USE_SKINNING")
		num("MAX_BONES", p.Bones)
	}
	if p.Morphing {
		out = append(out, "USE_MORPHTARGETS")
		num("MORPHTARGETS_COUNT", p.MorphTargets)
	}
	add(p.LogarithmicDepth, "USE_LOGDEPTHBUF")
	add(p.Point, "DISTANCE")

	for _, name := range sortedKeys(p.Defines) {
		if v := p.Defines[name]; v != "" {
			out = append(out, name+"="+v)
		} else {
			out = append(out, name)
		}
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// upperSnake turns "alphaMap" and "pcf-soft" into ALPHA_MAP and PCF_SOFT.
func upperSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '-':
			b.WriteByte('_')
		case unicode.IsUpper(r) && i > 0:
			b.WriteByte('_')
			b.WriteRune(r)
		default:
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}
