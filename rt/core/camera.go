package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

var ErrInvalidProjection = errors.New("core: invalid projection")

type ProjectionKind uint8

const (
	Perspective ProjectionKind = iota
	Orthographic
)

func (k ProjectionKind) String() string {
	switch k {
	case Perspective:
		return "perspective"
	case Orthographic:
		return "orthographic"
	}
	return "unknown"
}

// CameraParams configures NewCamera. Fov is the vertical field of view in
// degrees; the box fields are only read for orthographic cameras.
type CameraParams struct {
	Fov    float32
	Aspect float32
	Near   float32
	Far    float32

	Left, Right, Top, Bottom float32
}

// Camera is attached to a Node; the node's world matrix places it. It looks
// down its local -Z axis.
type Camera struct {
	Node *Node
	Kind ProjectionKind

	Fov    float32
	Aspect float32
	Near   float32
	Far    float32
	Zoom   float32

	Left, Right, Top, Bottom float32

	Layers Layers

	Projection        mgl32.Mat4
	ProjectionInverse mgl32.Mat4
	View              mgl32.Mat4
}

// NewCamera validates params and returns a camera attached to a fresh node.
func NewCamera(kind ProjectionKind, p CameraParams) (*Camera, error) {
	switch kind {
	case Perspective:
		if p.Fov <= 0 || p.Fov >= 180 {
			return nil, errors.Wrapf(ErrInvalidProjection, "fov %g out of range", p.Fov)
		}
		if p.Aspect <= 0 {
			return nil, errors.Wrapf(ErrInvalidProjection, "aspect %g", p.Aspect)
		}
		if p.Near <= 0 {
			return nil, errors.Wrapf(ErrInvalidProjection, "near %g must be positive", p.Near)
		}
	case Orthographic:
		if p.Left == p.Right || p.Top == p.Bottom {
			return nil, errors.Wrap(ErrInvalidProjection, "degenerate orthographic box")
		}
	default:
		return nil, errors.Wrapf(ErrInvalidProjection, "unknown projection kind %d", kind)
	}
	if p.Far <= p.Near {
		return nil, errors.Wrapf(ErrInvalidProjection, "far %g must exceed near %g", p.Far, p.Near)
	}

	c := &Camera{
		Node:   NewNode(kind.String() + "-camera"),
		Kind:   kind,
		Fov:    p.Fov,
		Aspect: p.Aspect,
		Near:   p.Near,
		Far:    p.Far,
		Zoom:   1,
		Left:   p.Left,
		Right:  p.Right,
		Top:    p.Top,
		Bottom: p.Bottom,
		Layers: DefaultLayers,
		View:   mgl32.Ident4(),
	}
	c.Node.Camera = c
	c.UpdateProjection()
	return c, nil
}

// NewPerspectiveCamera panics on invalid parameters; use NewCamera to get an error.
func NewPerspectiveCamera(fov, aspect, near, far float32) *Camera {
	c, err := NewCamera(Perspective, CameraParams{Fov: fov, Aspect: aspect, Near: near, Far: far})
	if err != nil {
		panic(err)
	}
	return c
}

// NewOrthographicCamera panics on invalid parameters; use NewCamera to get an error.
func NewOrthographicCamera(left, right, top, bottom, near, far float32) *Camera {
	c, err := NewCamera(Orthographic, CameraParams{
		Left: left, Right: right, Top: top, Bottom: bottom, Near: near, Far: far,
	})
	if err != nil {
		panic(err)
	}
	return c
}

// UpdateProjection must be called after changing projection fields.
func (c *Camera) UpdateProjection() {
	zoom := c.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	switch c.Kind {
	case Perspective:
		half := math32.Tan(mgl32.DegToRad(c.Fov) / 2)
		fovy := 2 * math32.Atan(half/zoom)
		c.Projection = mgl32.Perspective(fovy, c.Aspect, c.Near, c.Far)
	case Orthographic:
		cx := (c.Left + c.Right) / 2
		cy := (c.Top + c.Bottom) / 2
		dx := (c.Right - c.Left) / (2 * zoom)
		dy := (c.Top - c.Bottom) / (2 * zoom)
		c.Projection = mgl32.Ortho(cx-dx, cx+dx, cy-dy, cy+dy, c.Near, c.Far)
	}
	c.ProjectionInverse = c.Projection.Inv()
}

// UpdateView refreshes the view matrix from the node's world matrix. A
// camera node outside the scene graph is brought up to date first, and its
// view comes straight from the transform when the local matrix is composed
// from it.
func (c *Camera) UpdateView() {
	n := c.Node
	if n.Parent() == nil {
		n.UpdateWorldMatrix(false, true)
		if tr := n.Transform(); n.MatrixAutoUpdate && tr.Scale.X() != 0 && tr.Scale.Y() != 0 && tr.Scale.Z() != 0 {
			c.View = tr.InverseMatrix()
			return
		}
	}
	c.View = n.World.Inv()
}

func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection.Mul4(c.View)
}

func (c *Camera) Frustum() Frustum {
	return NewFrustum(c.ViewProjection())
}

func (c *Camera) Position() mgl32.Vec3 {
	return c.Node.WorldPosition()
}

func (c *Camera) Forward() mgl32.Vec3 {
	return c.Node.WorldDirection()
}

// ViewDepth returns the distance in front of the camera of a world point
// along the view axis. Points behind the camera are negative.
func (c *Camera) ViewDepth(p mgl32.Vec3) float32 {
	return -c.View.Mul4x1(p.Vec4(1)).Z()
}
