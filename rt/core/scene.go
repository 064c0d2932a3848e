package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

type FogKind uint8

const (
	FogLinear FogKind = iota
	FogExp2
)

type Fog struct {
	Kind    FogKind
	Color   mgl32.Vec3
	Near    float32
	Far     float32
	Density float32
}

func NewLinearFog(color mgl32.Vec3, near, far float32) *Fog {
	return &Fog{Kind: FogLinear, Color: color, Near: near, Far: far}
}

func NewExp2Fog(color mgl32.Vec3, density float32) *Fog {
	return &Fog{Kind: FogExp2, Color: color, Density: density}
}

// Scene is the root of a scene graph plus scene-wide render settings.
type Scene struct {
	Root *Node
	Fog  *Fog

	// OverrideMaterial, when set, shades every drawable in the main pass.
	OverrideMaterial *Material
	// Background, when set, replaces the renderer clear color.
	Background *mgl32.Vec4
}

func NewScene() *Scene {
	return &Scene{Root: NewNode("scene")}
}

func (s *Scene) Add(nodes ...*Node) {
	s.Root.Add(nodes...)
}

func (s *Scene) Remove(n *Node) bool {
	return s.Root.Remove(n)
}

func (s *Scene) UpdateWorldMatrices() {
	UpdateWorldMatrices(s.Root)
}

func (s *Scene) FindByName(name string) *Node {
	return s.Root.FindByName(name)
}
