package forward

import (
	"github.com/chewxy/math32"
	"github.com/gekko3d/forward/rt/core"
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/gekko3d/forward/rt/program"
	"github.com/gekko3d/forward/rt/renderlist"
	"github.com/go-gl/mathgl/mgl32"
)

type clipping struct {
	state program.ClippingState
	// planes are view space (nx, ny, nz, constant) quadruples.
	planes []float32
}

// clippingFor selects the clipping planes for m: the global planes, plus the
// material's own when local clipping is enabled. In the shadow pass only
// materials with ClipShadows are clipped.
func (r *Renderer) clippingFor(m *core.Material, camera *core.Camera) clipping {
	c := clipping{planes: r.clip.planes[:0]}
	if r.pass == passShadow && !m.ClipShadows {
		return c
	}
	global := r.cfg.globalPlanes()
	var local []core.Plane
	if r.cfg.LocalClippingEnabled {
		local = m.ClippingPlanes
	}
	add := func(planes []core.Plane) {
		for _, p := range planes {
			v := p.ApplyMatrix4(camera.View).Vec4()
			c.planes = append(c.planes, v[:]...)
		}
	}
	add(global)
	add(local)
	c.state.NumPlanes = len(global) + len(local)
	if m.ClipIntersection {
		c.state.NumIntersection = len(local)
	}
	return c
}

func (r *Renderer) drawBucket(list *renderlist.List, b renderlist.Bucket, scene *core.Scene, camera *core.Camera) {
	list.Each(b, func(it *renderlist.Item) {
		r.renderItem(it, scene, camera)
	})
}

func (r *Renderer) renderItem(it *renderlist.Item, scene *core.Scene, camera *core.Camera) {
	m := it.Material
	if scene.OverrideMaterial != nil {
		m = scene.OverrideMaterial
	}
	if m.Transparent && m.Side == core.DoubleSide && !m.ForceSinglePass {
		r.renderObject(it, m, core.BackSide, scene, camera)
		r.renderObject(it, m, core.FrontSide, scene, camera)
		return
	}
	r.renderObject(it, m, m.Side, scene, camera)
}

// renderTransmissionPass draws the opaque bucket into an offscreen target
// that transmissive materials sample.
func (r *Renderer) renderTransmissionPass(list *renderlist.List, scene *core.Scene, camera *core.Camera) {
	scale := r.cfg.TransmissionResolutionScale
	w := int(float32(r.cfg.Width) * scale)
	h := int(float32(r.cfg.Height) * scale)
	target, err := r.transmission.ensure(r.dev, "transmission", w, h)
	if err != nil {
		r.log.Errorf("transmission target %dx%d: %v", w, h, err)
		return
	}

	r.pass = passTransmission
	r.state.SetRenderTarget(target)
	r.state.SetViewport(gpu.Viewport{Width: w, Height: h})
	r.dev.Clear(r.clearColor(scene), true)
	r.drawBucket(list, renderlist.Opaque, scene, camera)

	r.pass = passMain
	r.state.SetRenderTarget(r.target)
	r.state.SetViewport(gpu.Viewport{Width: r.cfg.Width, Height: r.cfg.Height})
}

// renderObject draws one item with m, culling the faces opposite side.
// Failures are isolated to the item.
func (r *Renderer) renderObject(it *renderlist.Item, m *core.Material, side core.Side, scene *core.Scene, camera *core.Camera) {
	n, g := it.Node, it.Geometry
	if !g.HasAttribute(core.AttrPosition) {
		if g.Diagnostics == nil {
			g.Diagnostics = &core.Diagnostics{Stage: "draw", Err: errMissingPosition}
			r.log.Warnf("geometry %q has no position attribute; not drawn", g.Name)
		}
		r.info.Skipped++
		return
	}
	call, ok := drawCall(it, g)
	if !ok {
		return
	}
	geom, ok := r.uploadGeometry(g)
	if !ok {
		r.info.Skipped++
		return
	}
	if rend := n.Renderable; rend.IsInstanced() {
		if call.Instances, ok = r.uploadInstances(rend); !ok {
			r.info.Skipped++
			return
		}
	}
	p := r.programFor(m, n, scene, camera)
	if !p.Valid() {
		r.info.Skipped++
		return
	}

	r.state.SetMaterialSide(m, side, n.World.Det() < 0)
	r.state.UseProgram(p.Handle)
	r.setUniforms(p, m, n, scene, camera)

	call.Geometry = geom
	r.dev.Draw(call)
	r.countDraw(call)
}

func (r *Renderer) countDraw(call gpu.DrawCall) {
	if r.pass == passShadow {
		r.info.ShadowDraws++
		return
	}
	r.info.DrawCalls++
	n := call.Count * max(call.InstanceCount, 1)
	switch call.Primitive {
	case gpu.Triangles:
		r.info.Triangles += n / 3
	case gpu.Lines:
		r.info.Lines += n / 2
	case gpu.LineStrip:
		r.info.Lines += max(n-1, 0)
	case gpu.Points:
		r.info.Points += n
	}
}

// drawCall intersects the geometry draw range with the item's group and
// the element count. ok is false when nothing is left to draw.
func drawCall(it *renderlist.Item, g *core.Geometry) (gpu.DrawCall, bool) {
	rend := it.Node.Renderable
	total := g.ElementCount()

	start := g.DrawRange.Start
	end := total
	if g.DrawRange.Count >= 0 {
		end = start + g.DrawRange.Count
	}
	if grp := it.Group; grp != nil {
		start = max(start, grp.Start)
		end = min(end, grp.Start+grp.Count)
	}
	start = max(start, 0)
	end = min(end, total)
	if end-start <= 0 {
		return gpu.DrawCall{}, false
	}
	return gpu.DrawCall{
		Primitive:     primitive(rend.Mode),
		Start:         start,
		Count:         end - start,
		Indexed:       g.Index != nil,
		InstanceCount: rend.InstanceCount(),
	}, true
}

func primitive(m core.DrawMode) gpu.Primitive {
	switch m {
	case core.DrawLines:
		return gpu.Lines
	case core.DrawLineStrip:
		return gpu.LineStrip
	case core.DrawPoints:
		return gpu.Points
	}
	return gpu.Triangles
}

// setUniforms uploads everything the program declares. The uniform cache
// drops values that did not change since the program's last draw.
func (r *Renderer) setUniforms(p *program.Program, m *core.Material, n *core.Node, scene *core.Scene, camera *core.Camera) {
	u := p.Uniforms

	u.SetMat4(program.ProjectionMatrix, camera.Projection)
	u.SetMat4(program.ViewMatrix, camera.View)
	u.SetVec3(program.CameraPosition, camera.Position())
	if u.Has(program.LogDepthBufFC) {
		u.SetFloat(program.LogDepthBufFC, 2/math32.Log2(camera.Far+1))
	}

	modelView := camera.View.Mul4(n.World)
	u.SetMat4(program.ModelMatrix, n.World)
	u.SetMat4(program.ModelViewMatrix, modelView)
	u.SetMat3(program.NormalMatrix, modelView.Mat3().Inv().Transpose())

	u.SetVec3(program.Diffuse, m.Color)
	u.SetFloat(program.Opacity, m.Opacity)
	u.SetFloat(program.AlphaTest, m.AlphaTest)
	u.SetFloat(program.ToneMappingExposure, r.cfg.ToneMappingExposure)

	unit := 0
	bind := func(name string, tex gpu.AssetID) {
		if !u.Has(name) {
			return
		}
		r.state.BindTexture(unit, tex)
		u.SetInt(name, int32(unit))
		unit++
	}
	for _, slot := range program.TextureSlots {
		if t := slot.Get(m); t != nil {
			bind(slot.Name, r.uploadTexture(t))
		}
	}

	if m.Kind.Lit() {
		ls := r.lights
		u.SetVec3(program.Emissive, m.Emissive)
		u.SetFloat(program.Roughness, m.Roughness)
		u.SetFloat(program.Metalness, m.Metalness)
		u.SetVec3(program.AmbientLightColor, ls.Ambient)
		u.SetFloats(program.DirectionalLights, ls.Directional)
		u.SetFloats(program.PointLights, ls.Point)
		u.SetFloats(program.SpotLights, ls.Spot)
		u.SetFloats(program.HemisphereLights, ls.Hemisphere)
		u.SetFloats(program.RectAreaLights, ls.RectArea)
		if u.Has(program.DirectionalShadowMatrix) || u.Has(program.SpotShadowMatrix) || u.Has(program.PointShadowMatrix) {
			r.setShadowUniforms(u, bind)
		}
	}

	if fog := scene.Fog; fog != nil && m.Fog {
		u.SetVec3(program.FogColor, fog.Color)
		u.SetFloat(program.FogNear, fog.Near)
		u.SetFloat(program.FogFar, fog.Far)
		u.SetFloat(program.FogDensity, fog.Density)
	}
	u.SetFloats(program.ClippingPlanes, r.clip.planes)

	if rend := n.Renderable; rend != nil {
		if rend.IsSkinned() {
			u.SetFloats(program.BoneMatrices, rend.Skeleton.Update())
		}
		if rend.IsMorphed() {
			u.SetFloats(program.MorphTargetInfluences, rend.MorphInfluences)
		}
	}

	if u.Has(program.Transmission) {
		u.SetFloat(program.Transmission, m.Transmission)
		u.SetVec2(program.TransmissionSamplerSize, mgl32.Vec2{float32(r.transmission.width), float32(r.transmission.height)})
		bind(program.TransmissionSamplerMap, r.dev.RenderTargetTexture(r.transmission.id))
	}

	if m.Kind == core.DistanceMaterial && r.shadowLight != nil {
		sh := r.shadowLight.Light.Shadow
		u.SetVec3(program.ReferencePosition, r.shadowLight.WorldPosition())
		u.SetFloat(program.NearDistance, sh.Camera.Near)
		u.SetFloat(program.FarDistance, sh.Camera.Far)
	}

	if m.Kind == core.ShaderMaterial {
		r.setCustomUniforms(u, m, bind)
	}
}

func (r *Renderer) setShadowUniforms(u *program.UniformCache, bind func(string, gpu.AssetID)) {
	ls := r.lights
	u.SetFloats(program.DirectionalShadowMatrix, ls.DirectionalShadowMatrix)
	u.SetFloats(program.SpotShadowMatrix, ls.SpotShadowMatrix)
	u.SetFloats(program.PointShadowMatrix, ls.PointShadowMatrix)

	params := func(name, kind string, nodes []*core.Node, stride int) {
		if !u.Has(name) {
			return
		}
		vals := make([]float32, 0, len(nodes)*stride)
		for i, n := range nodes {
			sh := n.Light.Shadow
			vals = append(vals, sh.Bias, sh.NormalBias, sh.Radius, float32(sh.MapSize[0]))
			if stride == program.PointShadowParamsStride {
				vals = append(vals, sh.Camera.Near, sh.Camera.Far, 0, 0)
			}
			bind(program.ShadowMapSampler(kind, i), r.shadowTexture(sh))
		}
		u.SetFloats(name, vals)
	}
	params(program.DirectionalShadowParams, "directional", ls.DirectionalShadowLights, program.ShadowParamsStride)
	params(program.SpotShadowParams, "spot", ls.SpotShadowLights, program.ShadowParamsStride)
	params(program.PointShadowParams, "point", ls.PointShadowLights, program.PointShadowParamsStride)
}

func (r *Renderer) setCustomUniforms(u *program.UniformCache, m *core.Material, bind func(string, gpu.AssetID)) {
	for _, d := range program.CustomUniforms(m) {
		switch v := m.Uniforms[d.Name].(type) {
		case float32:
			u.SetFloat(d.Name, v)
		case float64:
			u.SetFloat(d.Name, float32(v))
		case int:
			u.SetInt(d.Name, int32(v))
		case int32:
			u.SetInt(d.Name, v)
		case bool:
			var b int32
			if v {
				b = 1
			}
			u.SetInt(d.Name, b)
		case mgl32.Vec2:
			u.SetVec2(d.Name, v)
		case mgl32.Vec3:
			u.SetVec3(d.Name, v)
		case mgl32.Vec4:
			u.SetVec4(d.Name, v)
		case mgl32.Mat3:
			u.SetMat3(d.Name, v)
		case mgl32.Mat4:
			u.SetMat4(d.Name, v)
		case []float32:
			u.SetFloats(d.Name, v)
		case *core.Texture:
			bind(d.Name, r.uploadTexture(v))
		}
	}
}
