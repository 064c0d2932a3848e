package main

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/gekko3d/forward/rt/core"
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"golang.org/x/image/colornames"
)

// demo is the scene both commands draw.
type demo struct {
	scene  *core.Scene
	camera *core.Camera
	spin   []*core.Node
}

// named returns a CSS color name as linear-ish RGB in [0,1].
func named(name string) (mgl32.Vec3, error) {
	c, ok := colornames.Map[name]
	if !ok {
		return mgl32.Vec3{}, errors.Errorf("unknown color %q", name)
	}
	return rgb(c), nil
}

func rgb(c color.RGBA) mgl32.Vec3 {
	return mgl32.Vec3{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255}
}

// checker builds an RGBA8 checkerboard of two named colors.
func checker(size, cells int, a, b color.RGBA) *core.Texture {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cell := max(size/cells, 1)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := a
			if (x/cell+y/cell)%2 == 1 {
				c = b
			}
			img.SetRGBA(x, y, c)
		}
	}
	t := core.NewTexture(size, size, gpu.FormatRGBA8, img.Pix)
	t.Name = "checker"
	t.ColorSpace = core.SRGBColorSpace
	return t
}

// newDemo builds a small scene that exercises the main paths: shadowed
// opaque meshes, a transmissive sphere, a transparent pane, an instanced
// row of cubes and fog.
func newDemo(aspect float32, accent string) (*demo, error) {
	tint, err := named(accent)
	if err != nil {
		return nil, err
	}

	scene := core.NewScene()
	scene.Fog = core.NewExp2Fog(rgb(colornames.Midnightblue), 0.02)
	bg := rgb(colornames.Midnightblue).Vec4(1)
	scene.Background = &bg

	floorMat := core.NewStandardMaterial(mgl32.Vec3{1, 1, 1}, 0.9, 0)
	floorMat.Map = checker(256, 8, colornames.Gainsboro, colornames.Slategray)
	floor := core.NewMesh("floor", core.NewPlaneGeometry(20, 20), floorMat)
	floor.RotateAxis(mgl32.Vec3{1, 0, 0}, -math32.Pi/2)
	floor.ReceiveShadow = true

	box := core.NewMesh("box", core.NewBoxGeometry(1, 1, 1), core.NewStandardMaterial(tint, 0.4, 0.1))
	box.SetPosition(mgl32.Vec3{-1.5, 0.5, 0})
	box.CastShadow = true
	box.ReceiveShadow = true

	glassMat := core.NewStandardMaterial(rgb(colornames.Lightcyan), 0.05, 0)
	glassMat.Transmission = 1
	glass := core.NewMesh("glass", core.NewSphereGeometry(0.7, 32, 16), glassMat)
	glass.SetPosition(mgl32.Vec3{1.5, 0.7, 0})
	glass.CastShadow = true

	paneMat := core.NewBasicMaterial(rgb(colornames.Orange))
	paneMat.Transparent = true
	paneMat.Opacity = 0.4
	paneMat.Side = core.DoubleSide
	paneMat.DepthWrite = false
	pane := core.NewMesh("pane", core.NewPlaneGeometry(2, 1.5), paneMat)
	pane.SetPosition(mgl32.Vec3{0, 0.75, 1.5})

	row := core.NewMesh("row", core.NewBoxGeometry(0.3, 0.3, 0.3), core.NewStandardMaterial(rgb(colornames.Seagreen), 0.6, 0))
	for i := 0; i < 8; i++ {
		x := float32(i)*0.6 - 2.1
		row.Renderable.InstanceMatrices = append(row.Renderable.InstanceMatrices, mgl32.Translate3D(x, 0.15, -2.5))
	}
	row.CastShadow = true

	sun := core.NewDirectionalLight(rgb(colornames.White), 2)
	sun.SetPosition(mgl32.Vec3{4, 8, 3})
	sun.CastShadow = true
	sun.Light.Shadow.MapSize = [2]int{1024, 1024}

	lamp := core.NewPointLight(rgb(colornames.Gold), 4, 12, 2)
	lamp.SetPosition(mgl32.Vec3{0, 2.5, 1})
	lamp.CastShadow = true

	scene.Add(
		core.NewHemisphereLight(rgb(colornames.Lightskyblue), rgb(colornames.Saddlebrown), 0.4),
		sun, lamp, floor, box, glass, pane, row,
	)

	camera := core.NewPerspectiveCamera(50, aspect, 0.1, 100)
	camera.Node.SetPosition(mgl32.Vec3{0, 3, 7})
	camera.Node.LookAt(mgl32.Vec3{0, 0.5, 0})
	scene.Add(camera.Node)

	return &demo{scene: scene, camera: camera, spin: []*core.Node{box, glass}}, nil
}

// step rotates the spinning meshes by angle radians about Y.
func (d *demo) step(angle float32) {
	for _, n := range d.spin {
		n.RotateAxis(mgl32.Vec3{0, 1, 0}, angle)
	}
}

// resize keeps the camera aspect in line with the drawing surface.
func (d *demo) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	d.camera.Aspect = float32(width) / float32(height)
	d.camera.UpdateProjection()
}
