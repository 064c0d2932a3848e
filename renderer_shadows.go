package forward

import (
	"github.com/gekko3d/forward/rt/core"
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/gekko3d/forward/rt/renderlist"
)

// renderTarget is an offscreen target recreated when its size changes.
type renderTarget struct {
	id            gpu.AssetID
	width, height int
}

func (t *renderTarget) ensure(dev gpu.Device, label string, width, height int) (gpu.AssetID, error) {
	if t.id != "" && t.width == width && t.height == height {
		return t.id, nil
	}
	t.release(dev)
	id, err := dev.CreateRenderTarget(gpu.RenderTargetDesc{
		Label:  label,
		Width:  width,
		Height: height,
		Format: gpu.FormatRGBA16F,
		Depth:  true,
	})
	if err != nil {
		return "", err
	}
	t.id, t.width, t.height = id, width, height
	return id, nil
}

func (t *renderTarget) release(dev gpu.Device) {
	if t.id != "" {
		dev.DeleteRenderTarget(t.id)
	}
	*t = renderTarget{}
}

// depthKey selects a depth or distance material. Sources that need their
// alpha or clipping carried into the shadow map get a variant of their own;
// all others share one per kind.
type depthKey struct {
	source uint64
	point  bool
}

// shadowSide draws the faces opposite the material's side into shadow maps.
var shadowSide = map[core.Side]core.Side{
	core.FrontSide:  core.BackSide,
	core.BackSide:   core.FrontSide,
	core.DoubleSide: core.DoubleSide,
}

// RenderShadows writes the shadow map of every light in shadowLights. It
// must run before lights are set up for the main pass, which copies the
// shadow matrices computed here.
func (r *Renderer) RenderShadows(shadowLights []*core.Node, scene *core.Scene, camera *core.Camera) {
	if !r.cfg.ShadowMap.Enabled || len(shadowLights) == 0 {
		return
	}

	r.pass = passShadow
	defer func() {
		r.pass = passMain
		r.shadowLight = nil
	}()

	for _, light := range shadowLights {
		if light.Light == nil || light.Light.Shadow == nil {
			continue
		}
		sh := light.Light.Shadow
		if !(r.cfg.ShadowMap.AutoUpdate && sh.AutoUpdate) && !sh.NeedsUpdate {
			continue
		}
		target, err := r.shadowTarget(sh)
		if err != nil {
			r.log.Errorf("shadow map for %q: %v", light.Name, err)
			continue
		}

		r.shadowLight = light
		r.state.SetRenderTarget(target)
		tw, th := sh.TargetSize()
		r.state.SetViewport(gpu.Viewport{Width: tw, Height: th})
		r.dev.Clear([4]float32{1, 1, 1, 1}, true)

		point := light.Light.Kind == core.PointLight
		for face := 0; face < sh.ViewportCount(); face++ {
			sh.Update(light, face)
			x, y, w, h := sh.Viewport(face)
			r.state.SetViewport(gpu.Viewport{X: x, Y: y, Width: w, Height: h})

			r.shadowList.Init()
			r.shadowBuilder.Build(scene.Root, sh.Camera, r.shadowList, nil, renderlist.Options{ShadowPass: true})
			r.shadowList.Finish()

			for _, b := range []renderlist.Bucket{renderlist.Opaque, renderlist.Transmissive, renderlist.Transparent} {
				r.shadowList.Each(b, func(it *renderlist.Item) {
					dm := r.depthMaterial(it.Material, point)
					r.renderObject(it, dm, shadowSide[dm.Side], scene, sh.Camera)
				})
			}
		}
		sh.NeedsUpdate = false
	}
}

// shadowTarget returns the light's shadow render target, creating it on
// first use and recreating it when the map size changed.
func (r *Renderer) shadowTarget(sh *core.LightShadow) (gpu.AssetID, error) {
	t, ok := r.shadowTargets[sh]
	if !ok {
		t = &renderTarget{}
		r.shadowTargets[sh] = t
	}
	w, h := sh.TargetSize()
	return t.ensure(r.dev, "shadow", w, h)
}

// shadowTexture is the sampled side of a shadow map, or the empty id when
// the map was never rendered.
func (r *Renderer) shadowTexture(sh *core.LightShadow) gpu.AssetID {
	t, ok := r.shadowTargets[sh]
	if !ok || t.id == "" {
		return ""
	}
	return r.dev.RenderTargetTexture(t.id)
}

// depthMaterial returns the depth (or distance, for point lights) variant
// standing in for src in the shadow pass.
func (r *Renderer) depthMaterial(src *core.Material, point bool) *core.Material {
	own := src.AlphaTest > 0 || src.AlphaMap != nil || (src.ClipShadows && len(src.ClippingPlanes) > 0) || src.Side != core.FrontSide
	key := depthKey{point: point}
	if own {
		key.source = src.ID
	}
	dm, ok := r.depthMaterials[key]
	if !ok {
		if point {
			dm = core.NewDistanceMaterial()
		} else {
			dm = core.NewDepthMaterial()
		}
		dm.Name = "shadow-depth"
		r.depthMaterials[key] = dm
	}
	if own {
		syncDepthMaterial(dm, src)
	}
	return dm
}

// syncDepthMaterial copies the fields of src that shape its shadow,
// bumping the variant's version when one of them changed.
func syncDepthMaterial(dm, src *core.Material) {
	changed := dm.AlphaTest != src.AlphaTest ||
		dm.AlphaMap != src.AlphaMap ||
		dm.Map != src.Map ||
		dm.Side != src.Side ||
		dm.ClipShadows != src.ClipShadows ||
		dm.ClipIntersection != src.ClipIntersection ||
		len(dm.ClippingPlanes) != len(src.ClippingPlanes)
	dm.AlphaTest = src.AlphaTest
	dm.AlphaMap = src.AlphaMap
	dm.Map = src.Map
	dm.Side = src.Side
	dm.ClipShadows = src.ClipShadows
	dm.ClipIntersection = src.ClipIntersection
	dm.ClippingPlanes = src.ClippingPlanes
	if changed {
		dm.NeedsUpdate()
	}
}
