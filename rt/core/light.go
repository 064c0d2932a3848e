package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

type LightKind uint8

const (
	AmbientLight LightKind = iota
	HemisphereLight
	DirectionalLight
	PointLight
	SpotLight
	RectAreaLight
)

var lightKindNames = []string{"ambient", "hemisphere", "directional", "point", "spot", "rect-area"}

func (k LightKind) String() string { return enumName(lightKindNames, int(k)) }

// LightSource is the light component of a Node. Directional and spot lights
// aim from the node's world position at Target.
type LightSource struct {
	Kind      LightKind
	Color     mgl32.Vec3
	Intensity float32

	// Point and spot attenuation. Distance 0 means unlimited.
	Distance float32
	Decay    float32

	// Spot cone in radians.
	Angle    float32
	Penumbra float32

	// Hemisphere lights use Color as sky color.
	GroundColor mgl32.Vec3

	// Rect area size.
	Width  float32
	Height float32

	Target *Node
	Shadow *LightShadow
}

func newLightNode(name string, l *LightSource) *Node {
	n := NewNode(name)
	n.Light = l
	return n
}

func NewAmbientLight(color mgl32.Vec3, intensity float32) *Node {
	return newLightNode("ambient-light", &LightSource{Kind: AmbientLight, Color: color, Intensity: intensity})
}

func NewHemisphereLight(sky, ground mgl32.Vec3, intensity float32) *Node {
	n := newLightNode("hemisphere-light", &LightSource{
		Kind: HemisphereLight, Color: sky, GroundColor: ground, Intensity: intensity,
	})
	n.SetPosition(mgl32.Vec3{0, 1, 0})
	return n
}

// NewDirectionalLight points at the origin by default.
func NewDirectionalLight(color mgl32.Vec3, intensity float32) *Node {
	n := newLightNode("directional-light", &LightSource{
		Kind: DirectionalLight, Color: color, Intensity: intensity, Target: NewNode("light-target"),
	})
	n.SetPosition(mgl32.Vec3{0, 1, 0})
	n.Light.Shadow = NewDirectionalShadow()
	return n
}

func NewPointLight(color mgl32.Vec3, intensity, distance, decay float32) *Node {
	n := newLightNode("point-light", &LightSource{
		Kind: PointLight, Color: color, Intensity: intensity, Distance: distance, Decay: decay,
	})
	n.Light.Shadow = NewPointShadow()
	return n
}

// NewSpotLight takes the cone angle in radians.
func NewSpotLight(color mgl32.Vec3, intensity, distance, angle, penumbra, decay float32) *Node {
	n := newLightNode("spot-light", &LightSource{
		Kind: SpotLight, Color: color, Intensity: intensity, Distance: distance,
		Angle: angle, Penumbra: penumbra, Decay: decay, Target: NewNode("light-target"),
	})
	n.SetPosition(mgl32.Vec3{0, 1, 0})
	n.Light.Shadow = NewSpotShadow()
	return n
}

func NewRectAreaLight(color mgl32.Vec3, intensity, width, height float32) *Node {
	return newLightNode("rect-area-light", &LightSource{
		Kind: RectAreaLight, Color: color, Intensity: intensity, Width: width, Height: height,
	})
}

// Radiance is color scaled by intensity.
func (l *LightSource) Radiance() mgl32.Vec3 {
	return l.Color.Mul(l.Intensity)
}

// TargetPosition returns the world position the light aims at. A target
// outside the scene graph is brought up to date first.
func (l *LightSource) TargetPosition() mgl32.Vec3 {
	if l.Target == nil {
		return mgl32.Vec3{}
	}
	if l.Target.Parent() == nil {
		l.Target.UpdateWorldMatrix(false, false)
	}
	return l.Target.WorldPosition()
}

// CastsShadow reports whether the light kind supports shadow maps.
func (l *LightSource) CastsShadow() bool {
	switch l.Kind {
	case DirectionalLight, PointLight, SpotLight:
		return l.Shadow != nil
	}
	return false
}
