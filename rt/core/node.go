package core

import (
	"slices"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

var nodeIDs atomic.Uint64

// Layers is a 32-slot membership mask. A node is drawn by a camera when the
// two masks share a bit.
type Layers uint32

const DefaultLayers Layers = 1

func (l Layers) Test(other Layers) bool { return l&other != 0 }
func (l Layers) Enable(i uint) Layers   { return l | 1<<i }
func (l Layers) Disable(i uint) Layers  { return l &^ (1 << i) }

// Node is a transform node in the scene graph. Components (Renderable,
// Light, Camera) are attached by pointer. A parent owns its children slice;
// the parent back-reference is only for lookups.
type Node struct {
	ID   uint64
	Name string

	Visible       bool
	CastShadow    bool
	ReceiveShadow bool
	FrustumCulled bool
	RenderOrder   int
	// GroupOrder > 0 orders this node's subtree as one group.
	GroupOrder int
	Layers     Layers

	// MatrixAutoUpdate off means Local is supplied through SetLocalMatrix.
	MatrixAutoUpdate bool

	Local mgl32.Mat4
	World mgl32.Mat4

	Renderable *Renderable
	Light      *LightSource
	Camera     *Camera

	transform        Transform
	localDirty       bool
	worldNeedsUpdate bool

	parent   *Node
	children []*Node
}

func NewNode(name string) *Node {
	return &Node{
		ID:               nodeIDs.Add(1),
		Name:             name,
		Visible:          true,
		FrustumCulled:    true,
		Layers:           DefaultLayers,
		MatrixAutoUpdate: true,
		Local:            mgl32.Ident4(),
		World:            mgl32.Ident4(),
		transform:        NewTransform(),
		localDirty:       true,
		worldNeedsUpdate: true,
	}
}

func (n *Node) Position() mgl32.Vec3 { return n.transform.Position }
func (n *Node) Rotation() mgl32.Quat { return n.transform.Rotation }
func (n *Node) Scale() mgl32.Vec3    { return n.transform.Scale }
func (n *Node) Transform() Transform { return n.transform }
func (n *Node) Parent() *Node        { return n.parent }

// Children returns the node's children. The slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// LocalDirty reports whether Local awaits recomposition.
func (n *Node) LocalDirty() bool { return n.localDirty }

// WorldNeedsUpdate reports whether World awaits recomputation.
func (n *Node) WorldNeedsUpdate() bool { return n.worldNeedsUpdate }

func (n *Node) SetPosition(p mgl32.Vec3) {
	n.transform.Position = p
	n.markLocalDirty()
}

func (n *Node) SetRotation(q mgl32.Quat) {
	n.transform.Rotation = q
	n.markLocalDirty()
}

func (n *Node) SetScale(s mgl32.Vec3) {
	n.transform.Scale = s
	n.markLocalDirty()
}

func (n *Node) SetTransform(t Transform) {
	n.transform = t
	n.markLocalDirty()
}

// Translate moves the node along its local axes.
func (n *Node) Translate(d mgl32.Vec3) {
	n.transform.Position = n.transform.Position.Add(n.transform.Rotation.Rotate(d))
	n.markLocalDirty()
}

// RotateAxis rotates the node by angle radians around a local axis.
func (n *Node) RotateAxis(axis mgl32.Vec3, angle float32) {
	q := mgl32.QuatRotate(angle, axis.Normalize())
	n.transform.Rotation = n.transform.Rotation.Mul(q).Normalize()
	n.markLocalDirty()
}

// LookAt orients the node so that its -Z axis faces target. Both points
// are in the parent's space.
func (n *Node) LookAt(target mgl32.Vec3) {
	if target == n.transform.Position {
		return
	}
	n.transform.Rotation = lookRotation(n.transform.Position, target, mgl32.Vec3{0, 1, 0})
	n.markLocalDirty()
}

// SetLocalMatrix supplies Local directly and turns MatrixAutoUpdate off.
func (n *Node) SetLocalMatrix(m mgl32.Mat4) {
	n.Local = m
	n.MatrixAutoUpdate = false
	n.localDirty = false
	n.markWorldDirty()
}

func (n *Node) markLocalDirty() {
	n.localDirty = true
	n.markWorldDirty()
}

func (n *Node) markWorldDirty() {
	n.worldNeedsUpdate = true
	for _, c := range n.children {
		c.markWorldDirty()
	}
}

// Add attaches child to n, detaching it from its previous parent.
func (n *Node) Add(children ...*Node) {
	for _, c := range children {
		if c == nil || c == n {
			continue
		}
		if c.parent != nil {
			c.parent.Remove(c)
		}
		c.parent = n
		n.children = append(n.children, c)
		c.markWorldDirty()
	}
}

func (n *Node) Remove(child *Node) bool {
	for i, c := range n.children {
		if c == child {
			n.children = slices.Delete(n.children, i, i+1)
			child.parent = nil
			child.markWorldDirty()
			return true
		}
	}
	return false
}

func (n *Node) RemoveFromParent() {
	if n.parent != nil {
		n.parent.Remove(n)
	}
}

func (n *Node) Traverse(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.Traverse(fn)
	}
}

// TraverseVisible skips invisible nodes and their subtrees.
func (n *Node) TraverseVisible(fn func(*Node)) {
	if !n.Visible {
		return
	}
	fn(n)
	for _, c := range n.children {
		c.TraverseVisible(fn)
	}
}

func (n *Node) FindByName(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, c := range n.children {
		if f := c.FindByName(name); f != nil {
			return f
		}
	}
	return nil
}

// UpdateWorld recomposes dirty local matrices and recomputes world matrices
// for n and its subtree. Clean subtrees under a clean parent do no matrix work.
func (n *Node) UpdateWorld(parentDirty bool) {
	if n.localDirty {
		if n.MatrixAutoUpdate {
			n.Local = n.transform.Matrix()
		}
		n.localDirty = false
	}

	if parentDirty || n.worldNeedsUpdate {
		if n.parent == nil {
			n.World = n.Local
		} else {
			n.World = n.parent.World.Mul4(n.Local)
		}
		n.worldNeedsUpdate = false
		parentDirty = true
	}

	for _, c := range n.children {
		c.UpdateWorld(parentDirty)
	}
}

// UpdateWorldMatrix brings a single node up to date, optionally walking up
// through its ancestors first and down through its subtree after.
func (n *Node) UpdateWorldMatrix(updateParents, updateChildren bool) {
	if updateParents && n.parent != nil {
		n.parent.UpdateWorldMatrix(true, false)
	}
	if n.localDirty {
		if n.MatrixAutoUpdate {
			n.Local = n.transform.Matrix()
		}
		n.localDirty = false
	}
	if n.parent == nil {
		n.World = n.Local
	} else {
		n.World = n.parent.World.Mul4(n.Local)
	}
	n.worldNeedsUpdate = false

	if updateChildren {
		for _, c := range n.children {
			c.UpdateWorld(true)
		}
	}
}

func (n *Node) WorldPosition() mgl32.Vec3 {
	return n.World.Col(3).Vec3()
}

// WorldDirection returns the normalized world-space -Z axis.
func (n *Node) WorldDirection() mgl32.Vec3 {
	return n.World.Mul4x1(mgl32.Vec4{0, 0, -1, 0}).Vec3().Normalize()
}

// UpdateWorldMatrices is the entry point for a per-frame transform update.
func UpdateWorldMatrices(root *Node) {
	if root != nil {
		root.UpdateWorld(false)
	}
}
