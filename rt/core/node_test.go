package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformComposition(t *testing.T) {
	tr := NewTransform()
	tr.Position = mgl32.Vec3{10, 0, 0}
	tr.Rotation = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	tr.Scale = mgl32.Vec3{2, 2, 2}

	p := tr.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1}).Vec3()
	// scale -> (2,0,0), rotate 90 about Y -> (0,0,-2), translate -> (10,0,-2)
	assertVecNear(t, mgl32.Vec3{10, 0, -2}, p, 1e-5, "got %v", p)

	roundTrip := tr.InverseMatrix().Mul4(tr.Matrix())
	assertMatNear(t, mgl32.Ident4(), roundTrip, 1e-5)
}

func buildTree() (root, a, b, a1, a2 *Node) {
	root = NewNode("root")
	a = NewNode("a")
	b = NewNode("b")
	a1 = NewNode("a1")
	a2 = NewNode("a2")
	root.Add(a, b)
	a.Add(a1, a2)

	root.SetPosition(mgl32.Vec3{1, 2, 3})
	a.SetPosition(mgl32.Vec3{0, 1, 0})
	a.SetRotation(mgl32.QuatRotate(0.3, mgl32.Vec3{0, 0, 1}))
	b.SetScale(mgl32.Vec3{2, 2, 2})
	a1.SetPosition(mgl32.Vec3{5, 0, 0})
	a2.SetPosition(mgl32.Vec3{0, 0, -5})
	return
}

func TestWorldEqualsParentTimesLocal(t *testing.T) {
	root, _, _, _, _ := buildTree()
	UpdateWorldMatrices(root)

	assert.Equal(t, root.Local, root.World, "root world equals local")
	root.Traverse(func(n *Node) {
		if n.Parent() == nil {
			return
		}
		want := n.Parent().World.Mul4(n.Local)
		assertMatNear(t, want, n.World, 1e-5, "node %s", n.Name)
		assert.False(t, n.LocalDirty())
		assert.False(t, n.WorldNeedsUpdate())
	})
}

func TestDirtyPropagation(t *testing.T) {
	root, a, b, a1, a2 := buildTree()
	UpdateWorldMatrices(root)

	before := map[*Node]mgl32.Mat4{}
	root.Traverse(func(n *Node) { before[n] = n.World })

	a.SetPosition(mgl32.Vec3{0, 4, 0})
	assert.True(t, a.WorldNeedsUpdate())
	assert.True(t, a1.WorldNeedsUpdate())
	assert.True(t, a2.WorldNeedsUpdate())
	assert.False(t, b.WorldNeedsUpdate())
	// Setters never recompute eagerly.
	assert.Equal(t, before[a], a.World)

	UpdateWorldMatrices(root)

	assert.NotEqual(t, before[a], a.World)
	assert.NotEqual(t, before[a1], a1.World)
	assert.NotEqual(t, before[a2], a2.World)
	assert.Equal(t, before[root], root.World)
	assert.Equal(t, before[b], b.World, "sibling must be bit-identical")
}

func TestCleanTreeSkipsWork(t *testing.T) {
	root, a, _, a1, _ := buildTree()
	UpdateWorldMatrices(root)

	// Corrupt a cached world matrix; a clean update must not touch it.
	marker := mgl32.Scale3D(7, 7, 7)
	a1.World = marker
	UpdateWorldMatrices(root)
	assert.Equal(t, marker, a1.World)

	a.SetScale(mgl32.Vec3{1, 1, 1})
	UpdateWorldMatrices(root)
	assert.NotEqual(t, marker, a1.World)
}

func TestManualLocalMatrix(t *testing.T) {
	root := NewNode("root")
	child := NewNode("child")
	root.Add(child)
	root.SetPosition(mgl32.Vec3{1, 0, 0})

	m := mgl32.Translate3D(0, 3, 0)
	child.SetLocalMatrix(m)
	// Position changes are ignored while the local matrix is supplied.
	child.SetPosition(mgl32.Vec3{100, 100, 100})
	UpdateWorldMatrices(root)

	assert.Equal(t, m, child.Local)
	assertMatNear(t, mgl32.Translate3D(1, 3, 0), child.World, 1e-6)

	root.SetPosition(mgl32.Vec3{2, 0, 0})
	UpdateWorldMatrices(root)
	assertMatNear(t, mgl32.Translate3D(2, 3, 0), child.World, 1e-6)
}

func TestReparenting(t *testing.T) {
	p1 := NewNode("p1")
	p2 := NewNode("p2")
	c := NewNode("c")
	p1.Add(c)
	p2.Add(c)

	assert.Empty(t, p1.Children())
	require.Len(t, p2.Children(), 1)
	assert.Same(t, p2, c.Parent())

	p2.Add(p2)
	assert.Len(t, p2.Children(), 1, "adding a node to itself is refused")

	c.RemoveFromParent()
	assert.Nil(t, c.Parent())
	assert.Empty(t, p2.Children())
	assert.False(t, p2.Remove(c))
}

func TestRemoveClearsVacatedSlot(t *testing.T) {
	p := NewNode("p")
	x, y, z := NewNode("x"), NewNode("y"), NewNode("z")
	p.Add(x, y, z)

	require.True(t, p.Remove(x))
	assert.Equal(t, []*Node{y, z}, p.Children())
	// The backing array must not keep the removed node alive.
	tail := p.children[:cap(p.children)]
	assert.Nil(t, tail[len(p.children)])
}

func TestTraverseVisibleAndFind(t *testing.T) {
	root, a, _, a1, _ := buildTree()
	a.Visible = false

	var seen []string
	root.TraverseVisible(func(n *Node) { seen = append(seen, n.Name) })
	assert.Equal(t, []string{"root", "b"}, seen)

	assert.Same(t, a1, root.FindByName("a1"))
	assert.Nil(t, root.FindByName("missing"))
}

func TestLookAtFacesTarget(t *testing.T) {
	n := NewNode("eye")
	n.SetPosition(mgl32.Vec3{0, 0, 10})
	n.LookAt(mgl32.Vec3{0, 0, 0})
	n.UpdateWorldMatrix(false, false)
	assertVecNear(t, mgl32.Vec3{0, 0, -1}, n.WorldDirection(), 1e-5)

	n.LookAt(mgl32.Vec3{10, 0, 10})
	n.UpdateWorldMatrix(false, false)
	assertVecNear(t, mgl32.Vec3{1, 0, 0}, n.WorldDirection(), 1e-5)

	// Straight down is parallel to the default up axis.
	n.LookAt(mgl32.Vec3{0, -5, 10})
	n.UpdateWorldMatrix(false, false)
	assertVecNear(t, mgl32.Vec3{0, -1, 0}, n.WorldDirection(), 1e-5)
}

func TestUpdateWorldMatrixWalksParents(t *testing.T) {
	root, a, _, a1, _ := buildTree()
	a1.UpdateWorldMatrix(true, false)

	want := root.Transform().Matrix().Mul4(a.Transform().Matrix()).Mul4(a1.Transform().Matrix())
	assertMatNear(t, want, a1.World, 1e-5)
}

func TestLayers(t *testing.T) {
	l := DefaultLayers
	assert.True(t, l.Test(DefaultLayers))
	l = l.Disable(0).Enable(3)
	assert.False(t, l.Test(DefaultLayers))
	assert.True(t, l.Test(Layers(1<<3)))
}
