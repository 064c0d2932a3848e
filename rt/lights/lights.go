package lights

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/gekko3d/forward/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// Accumulator collects the lights met during a scene walk.
type Accumulator struct {
	lights  []*core.Node
	shadows []*core.Node
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Init empties the accumulator, keeping capacity.
func (a *Accumulator) Init() {
	clear(a.lights)
	clear(a.shadows)
	a.lights = a.lights[:0]
	a.shadows = a.shadows[:0]
}

func (a *Accumulator) Push(n *core.Node)       { a.lights = append(a.lights, n) }
func (a *Accumulator) PushShadow(n *core.Node) { a.shadows = append(a.shadows, n) }
func (a *Accumulator) Lights() []*core.Node    { return a.lights }
func (a *Accumulator) Shadows() []*core.Node   { return a.shadows }

// Counts is the part of the lighting environment that selects a program.
type Counts struct {
	Directional int
	Point       int
	Spot        int
	RectArea    int
	Hemisphere  int

	DirectionalShadows int
	PointShadows       int
	SpotShadows        int
}

func (c Counts) Shadows() int {
	return c.DirectionalShadows + c.PointShadows + c.SpotShadows
}

// Uniform array strides in floats.
const (
	DirectionalStride = 8  // direction.xyz, _, color.rgb, _
	PointStride       = 12 // position.xyz, distance, color.rgb, decay, _, _, _, _
	SpotStride        = 16 // position.xyz, distance, direction.xyz, decay, color.rgb, coneCos, penumbraCos, _, _, _
	HemisphereStride  = 12 // direction.xyz, _, sky.rgb, _, ground.rgb, _
	RectAreaStride    = 16 // position.xyz, _, color.rgb, _, halfWidth.xyz, _, halfHeight.xyz, _
)

// State is the lighting environment of one frame: counts plus flattened
// uniform arrays. World-space values are filled by Setup, view-space
// positions and directions by SetupView.
type State struct {
	Counts  Counts
	Ambient mgl32.Vec3

	Directional []float32
	Point       []float32
	Spot        []float32
	Hemisphere  []float32
	RectArea    []float32

	DirectionalShadowMatrix []float32
	SpotShadowMatrix        []float32
	PointShadowMatrix       []float32

	// ShadowLights lists shadow casting lights in uniform order per kind.
	DirectionalShadowLights []*core.Node
	SpotShadowLights        []*core.Node
	PointShadowLights       []*core.Node

	// Version changes whenever Counts change between frames.
	Version int

	// ShadowsEnabled gates shadow counts and matrices. With it off, shadow
	// casting lights are treated like plain lights.
	ShadowsEnabled bool

	sorted []*core.Node
}

func NewState() *State {
	return &State{}
}

// Setup derives counts and world-space light data. Shadow casting lights
// come first within each kind so that shadow map indices match light indices.
func (s *State) Setup(acc *Accumulator) {
	prev := s.Counts

	s.sorted = append(s.sorted[:0], acc.Lights()...)
	sort.SliceStable(s.sorted, func(i, j int) bool {
		return s.castsShadow(s.sorted[i]) && !s.castsShadow(s.sorted[j])
	})

	s.Counts = Counts{}
	s.Ambient = mgl32.Vec3{}
	s.Directional = s.Directional[:0]
	s.Point = s.Point[:0]
	s.Spot = s.Spot[:0]
	s.Hemisphere = s.Hemisphere[:0]
	s.RectArea = s.RectArea[:0]
	s.DirectionalShadowMatrix = s.DirectionalShadowMatrix[:0]
	s.SpotShadowMatrix = s.SpotShadowMatrix[:0]
	s.PointShadowMatrix = s.PointShadowMatrix[:0]
	s.DirectionalShadowLights = s.DirectionalShadowLights[:0]
	s.SpotShadowLights = s.SpotShadowLights[:0]
	s.PointShadowLights = s.PointShadowLights[:0]

	for _, n := range s.sorted {
		l := n.Light
		c := l.Radiance()
		pos := n.WorldPosition()
		switch l.Kind {
		case core.AmbientLight:
			s.Ambient = s.Ambient.Add(c)
		case core.HemisphereLight:
			dir := pos.Normalize()
			g := l.GroundColor.Mul(l.Intensity)
			s.Hemisphere = append(s.Hemisphere, dir[0], dir[1], dir[2], 0, c[0], c[1], c[2], 0, g[0], g[1], g[2], 0)
			s.Counts.Hemisphere++
		case core.DirectionalLight:
			dir := pos.Sub(l.TargetPosition()).Normalize()
			s.Directional = append(s.Directional, dir[0], dir[1], dir[2], 0, c[0], c[1], c[2], 0)
			s.Counts.Directional++
			if s.castsShadow(n) {
				s.Counts.DirectionalShadows++
				s.DirectionalShadowMatrix = append(s.DirectionalShadowMatrix, l.Shadow.Matrix[:]...)
				s.DirectionalShadowLights = append(s.DirectionalShadowLights, n)
			}
		case core.PointLight:
			s.Point = append(s.Point, pos[0], pos[1], pos[2], l.Distance, c[0], c[1], c[2], l.Decay, 0, 0, 0, 0)
			s.Counts.Point++
			if s.castsShadow(n) {
				s.Counts.PointShadows++
				s.PointShadowMatrix = append(s.PointShadowMatrix, l.Shadow.Matrix[:]...)
				s.PointShadowLights = append(s.PointShadowLights, n)
			}
		case core.SpotLight:
			dir := pos.Sub(l.TargetPosition()).Normalize()
			coneCos := math32.Cos(l.Angle)
			penumbraCos := math32.Cos(l.Angle * (1 - l.Penumbra))
			s.Spot = append(s.Spot,
				pos[0], pos[1], pos[2], l.Distance,
				dir[0], dir[1], dir[2], l.Decay,
				c[0], c[1], c[2], coneCos,
				penumbraCos, 0, 0, 0)
			s.Counts.Spot++
			if s.castsShadow(n) {
				s.Counts.SpotShadows++
				s.SpotShadowMatrix = append(s.SpotShadowMatrix, l.Shadow.Matrix[:]...)
				s.SpotShadowLights = append(s.SpotShadowLights, n)
			}
		case core.RectAreaLight:
			hw := n.World.Mul4x1(mgl32.Vec4{l.Width / 2, 0, 0, 0}).Vec3()
			hh := n.World.Mul4x1(mgl32.Vec4{0, l.Height / 2, 0, 0}).Vec3()
			s.RectArea = append(s.RectArea,
				pos[0], pos[1], pos[2], 0,
				c[0], c[1], c[2], 0,
				hw[0], hw[1], hw[2], 0,
				hh[0], hh[1], hh[2], 0)
			s.Counts.RectArea++
		}
	}

	if s.Counts != prev {
		s.Version++
	}
}

// SetupView rewrites positions and directions into the camera's view space.
// Setup must have run for this frame.
func (s *State) SetupView(view mgl32.Mat4) {
	dirs := func(arr []float32, stride, offset int) {
		for i := 0; i+stride <= len(arr); i += stride {
			d := view.Mul4x1(mgl32.Vec4{arr[i+offset], arr[i+offset+1], arr[i+offset+2], 0}).Vec3().Normalize()
			copy(arr[i+offset:], d[:])
		}
	}
	points := func(arr []float32, stride, offset int) {
		for i := 0; i+stride <= len(arr); i += stride {
			p := view.Mul4x1(mgl32.Vec4{arr[i+offset], arr[i+offset+1], arr[i+offset+2], 1}).Vec3()
			copy(arr[i+offset:], p[:])
		}
	}
	axes := func(arr []float32, stride, offset int) {
		for i := 0; i+stride <= len(arr); i += stride {
			a := view.Mul4x1(mgl32.Vec4{arr[i+offset], arr[i+offset+1], arr[i+offset+2], 0}).Vec3()
			copy(arr[i+offset:], a[:])
		}
	}

	dirs(s.Directional, DirectionalStride, 0)
	dirs(s.Hemisphere, HemisphereStride, 0)
	points(s.Point, PointStride, 0)
	points(s.Spot, SpotStride, 0)
	dirs(s.Spot, SpotStride, 4)
	points(s.RectArea, RectAreaStride, 0)
	axes(s.RectArea, RectAreaStride, 8)
	axes(s.RectArea, RectAreaStride, 12)
}

func (s *State) castsShadow(n *core.Node) bool {
	return s.ShadowsEnabled && n.CastShadow && n.Light != nil && n.Light.CastsShadow()
}
