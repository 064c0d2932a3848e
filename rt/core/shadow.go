package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// shadowBias maps clip space [-1,1] to texture space [0,1].
var shadowBias = mgl32.Mat4{
	0.5, 0, 0, 0,
	0, 0.5, 0, 0,
	0, 0, 0.5, 0,
	0.5, 0.5, 0.5, 1,
}

var cubeDirections = [6]mgl32.Vec3{
	{1, 0, 0}, {-1, 0, 0}, {0, 0, 1}, {0, 0, -1}, {0, 1, 0}, {0, -1, 0},
}

var cubeUps = [6]mgl32.Vec3{
	{0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 0, 1}, {0, 0, -1},
}

// Cube faces are packed into a 4x2 atlas.
var cubeViewports = [6][2]int{
	{2, 1}, {0, 1}, {3, 1}, {1, 1}, {3, 0}, {1, 0},
}

// LightShadow holds the shadow camera and matrices of one light.
type LightShadow struct {
	Camera     *Camera
	MapSize    [2]int
	Bias       float32
	NormalBias float32
	Radius     float32

	// Matrix maps world space to shadow map texture space.
	Matrix mgl32.Mat4

	AutoUpdate  bool
	NeedsUpdate bool

	point bool
}

func newLightShadow(cam *Camera) *LightShadow {
	return &LightShadow{
		Camera:     cam,
		MapSize:    [2]int{512, 512},
		Radius:     1,
		Matrix:     mgl32.Ident4(),
		AutoUpdate: true,
	}
}

func NewDirectionalShadow() *LightShadow {
	return newLightShadow(NewOrthographicCamera(-5, 5, 5, -5, 0.5, 500))
}

func NewSpotShadow() *LightShadow {
	return newLightShadow(NewPerspectiveCamera(50, 1, 0.5, 500))
}

func NewPointShadow() *LightShadow {
	s := newLightShadow(NewPerspectiveCamera(90, 1, 0.5, 500))
	s.point = true
	return s
}

// ViewportCount is 6 for point lights (one per cube face) and 1 otherwise.
func (s *LightShadow) ViewportCount() int {
	if s.point {
		return 6
	}
	return 1
}

// TargetSize is the render target size: the point light atlas is 4x2 faces.
func (s *LightShadow) TargetSize() (int, int) {
	if s.point {
		return s.MapSize[0] * 4, s.MapSize[1] * 2
	}
	return s.MapSize[0], s.MapSize[1]
}

// Viewport returns the region of the target a face renders into.
func (s *LightShadow) Viewport(face int) (x, y, w, h int) {
	if !s.point {
		return 0, 0, s.MapSize[0], s.MapSize[1]
	}
	vp := cubeViewports[face%6]
	return vp[0] * s.MapSize[0], vp[1] * s.MapSize[1], s.MapSize[0], s.MapSize[1]
}

// Update positions the shadow camera for the given light node and face and
// recomputes Matrix. The light node's world matrix must be current.
func (s *LightShadow) Update(light *Node, face int) {
	cam := s.Camera
	pos := light.WorldPosition()
	cam.Node.SetPosition(pos)

	switch {
	case s.point:
		cam.Node.SetRotation(lookRotation(pos, pos.Add(cubeDirections[face%6]), cubeUps[face%6]))
	case light.Light != nil:
		if light.Light.Kind == SpotLight {
			fov := mgl32.RadToDeg(light.Light.Angle) * 2
			far := cam.Far
			if light.Light.Distance > 0 {
				far = light.Light.Distance
			}
			aspect := float32(s.MapSize[0]) / float32(s.MapSize[1])
			if fov != cam.Fov || far != cam.Far || aspect != cam.Aspect {
				cam.Fov, cam.Far, cam.Aspect = fov, far, aspect
				cam.UpdateProjection()
			}
		}
		cam.Node.SetRotation(lookRotation(pos, light.Light.TargetPosition(), mgl32.Vec3{0, 1, 0}))
	}

	cam.UpdateView()
	if s.point {
		s.Matrix = mgl32.Translate3D(-pos.X(), -pos.Y(), -pos.Z())
	} else {
		s.Matrix = shadowBias.Mul4(cam.ViewProjection())
	}
}

// lookRotation returns the rotation that makes -Z face target from eye.
func lookRotation(eye, target, up mgl32.Vec3) mgl32.Quat {
	dir := target.Sub(eye)
	if dir.Len() == 0 {
		return mgl32.QuatIdent()
	}
	if dir.Normalize().Cross(up).Len() < 1e-6 {
		up = mgl32.Vec3{0, 0, 1}
	}
	view := mgl32.LookAtV(eye, target, up)
	return mgl32.Mat4ToQuat(view.Mat3().Transpose().Mat4()).Normalize()
}
