package forward

import (
	"github.com/gekko3d/forward/rt/core"
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/gekko3d/forward/rt/lights"
	"github.com/gekko3d/forward/rt/program"
)

// programInputs is everything outside the material that selects its
// program. While it and the material version are unchanged the current
// program is reused without building a key.
type programInputs struct {
	version       int
	lightsVersion int
	clip          program.ClippingState
	instancing    bool
	bones         int
	morphTargets  int
	receiveShadow bool
	fog           int
	screen        bool
	pass          pass
}

// programVariant tells apart the programs one material needs at the same
// time: per pass and per object flags that select different shader code.
type programVariant struct {
	pass          pass
	screen        bool
	instancing    bool
	bones         int
	morphTargets  int
	receiveShadow bool
}

type materialProperties struct {
	// variants holds one program reference per variant. A variant whose
	// key changes gives up its old program.
	variants map[programVariant]*program.Program
	current  *program.Program
	inputs   programInputs
}

func (in programInputs) variant() programVariant {
	return programVariant{
		pass:          in.pass,
		screen:        in.screen,
		instancing:    in.instancing,
		bones:         in.bones,
		morphTargets:  in.morphTargets,
		receiveShadow: in.receiveShadow,
	}
}

type geometryProperties struct {
	id      gpu.AssetID
	version int
}

type textureProperties struct {
	id      gpu.AssetID
	version int
}

// instanceProperties tracks the per-instance buffer of an instanced
// renderable. version holds the frame it was last uploaded in.
type instanceProperties struct {
	id      gpu.AssetID
	version int
}

func (r *Renderer) materialProps(m *core.Material) *materialProperties {
	if mp, ok := r.materials[m]; ok {
		return mp
	}
	mp := &materialProperties{variants: make(map[programVariant]*program.Program)}
	r.materials[m] = mp
	m.AddDisposeListener(r.onMaterialDispose)
	return mp
}

func (r *Renderer) onMaterialDispose(m *core.Material) {
	r.forgetMaterial(m)
	for k, dm := range r.depthMaterials {
		if k.source == m.ID {
			delete(r.depthMaterials, k)
			dm.Dispose()
		}
	}
}

// forgetMaterial releases every program the material holds.
func (r *Renderer) forgetMaterial(m *core.Material) {
	mp, ok := r.materials[m]
	if !ok {
		return
	}
	for _, p := range mp.variants {
		r.programs.Release(p)
	}
	delete(r.materials, m)
}

// AcquireProgram returns the program for m under the given lighting and
// clipping, for an object without instancing, skinning or morphing. The
// material keeps the reference until it is disposed or ReleaseProgram.
func (r *Renderer) AcquireProgram(m *core.Material, ls *lights.State, clip program.ClippingState) *program.Program {
	params := r.materialParameters(m, clip)
	if m.Kind.Lit() && ls != nil {
		params.Lights = ls.Counts
	}
	v := programVariant{pass: r.pass, screen: r.renderingToScreen()}
	return r.useProgram(r.materialProps(m), m, params, v)
}

// ReleaseProgram drops the references materials hold on p.
func (r *Renderer) ReleaseProgram(p *program.Program) {
	if p == nil {
		return
	}
	for _, mp := range r.materials {
		for v, held := range mp.variants {
			if held != p {
				continue
			}
			delete(mp.variants, v)
			r.programs.Release(p)
		}
		if mp.current == p {
			mp.current = nil
		}
	}
}

// useProgram returns the program for params in variant v. When the
// variant held a program under another key, that reference is released
// after the new one is acquired.
func (r *Renderer) useProgram(mp *materialProperties, m *core.Material, params *program.Parameters, v programVariant) *program.Program {
	key := params.Key()
	old := mp.variants[v]
	if old != nil && old.Key == key {
		mp.current = old
		return old
	}
	p := r.programs.Acquire(params, m)
	mp.variants[v] = p
	mp.current = p
	if old != nil {
		r.programs.Release(old)
	}
	if !p.Valid() {
		m.Diagnostics = p.Diagnostics
	}
	return p
}

// programFor resolves the program drawing m on node n in the current pass.
func (r *Renderer) programFor(m *core.Material, n *core.Node, scene *core.Scene, camera *core.Camera) *program.Program {
	mp := r.materialProps(m)
	r.clip = r.clippingFor(m, camera)

	in := programInputs{
		version:       m.Version,
		clip:          r.clip.state,
		receiveShadow: n.ReceiveShadow,
		screen:        r.renderingToScreen(),
		pass:          r.pass,
	}
	if m.Kind.Lit() {
		in.lightsVersion = r.lights.Version
	}
	if rend := n.Renderable; rend != nil {
		in.instancing = rend.IsInstanced()
		if rend.IsSkinned() {
			in.bones = len(rend.Skeleton.Bones)
		}
		in.morphTargets = len(rend.MorphInfluences)
	}
	if scene != nil && scene.Fog != nil && m.Fog {
		in.fog = 1 + int(scene.Fog.Kind)
	}
	if mp.current != nil && mp.inputs == in {
		return mp.current
	}

	params := r.materialParameters(m, in.clip)
	if m.Kind.Lit() {
		params.Lights = r.lights.Counts
		params.ShadowMapEnabled = r.cfg.ShadowMap.Enabled && n.ReceiveShadow && r.lights.Counts.Shadows() > 0
		if params.ShadowMapEnabled {
			params.ShadowMapType = r.cfg.ShadowMap.Type
		}
	}
	if in.fog > 0 {
		params.Fog = true
		params.FogExp2 = scene.Fog.Kind == core.FogExp2
	}
	params.Instancing = in.instancing
	params.Skinning, params.Bones = in.bones > 0, in.bones
	params.Morphing, params.MorphTargets = in.morphTargets > 0, in.morphTargets

	p := r.useProgram(mp, m, params, in.variant())
	mp.inputs = in
	return p
}

// materialParameters derives the object independent parameters of m.
func (r *Renderer) materialParameters(m *core.Material, clip program.ClippingState) *program.Parameters {
	p := &program.Parameters{
		Kind:             m.Kind,
		Capabilities:     m.Capabilities(),
		Clipping:         clip,
		LogarithmicDepth: r.cfg.LogarithmicDepth,
		Point:            m.Kind == core.DistanceMaterial,
		Defines:          m.Defines,
	}
	if m.Kind == core.ShaderMaterial && m.Shader != nil {
		p.ShaderID = m.Shader.Name
	}
	if r.renderingToScreen() {
		if m.ToneMapped {
			p.ToneMapping = r.cfg.ToneMapping
		}
		p.OutputColorSpace = r.cfg.OutputColorSpace
	} else {
		p.OutputColorSpace = core.LinearSRGBColorSpace
	}
	return p
}

// renderingToScreen is true when the current pass ends up in the default
// framebuffer; offscreen passes output linear, untone-mapped color.
func (r *Renderer) renderingToScreen() bool {
	return r.pass == passMain && r.target == ""
}

// uploadGeometry returns the device id of g, uploading on first use and
// whenever its version changed.
func (r *Renderer) uploadGeometry(g *core.Geometry) (gpu.AssetID, bool) {
	gp, ok := r.geometries[g]
	v := g.Version()
	if ok && gp.version == v {
		return gp.id, true
	}
	var prev gpu.AssetID
	if ok {
		prev = gp.id
	}
	id, err := r.dev.UploadGeometry(prev, g.Desc())
	if err != nil {
		if g.Diagnostics == nil {
			r.log.Errorf("geometry %q upload failed: %v", g.Name, err)
		}
		g.Diagnostics = &core.Diagnostics{Stage: "upload", Err: err}
		return "", false
	}
	if !ok {
		gp = &geometryProperties{}
		r.geometries[g] = gp
		g.AddDisposeListener(r.onGeometryDispose)
	}
	gp.id, gp.version = id, v
	g.Diagnostics = nil
	return id, true
}

func (r *Renderer) onGeometryDispose(g *core.Geometry) {
	gp, ok := r.geometries[g]
	if !ok {
		return
	}
	r.dev.ReleaseGeometry(gp.id)
	delete(r.geometries, g)
	r.builder.Forget(g)
	r.shadowBuilder.Forget(g)
}

// uploadTexture returns the device id of t, or the empty id when the
// texture cannot be uploaded; the failure is recorded on the texture.
func (r *Renderer) uploadTexture(t *core.Texture) gpu.AssetID {
	tp, ok := r.textures[t]
	if ok && tp.version == t.Version {
		return tp.id
	}
	if !ok {
		tp = &textureProperties{}
		r.textures[t] = tp
		t.AddDisposeListener(r.onTextureDispose)
	}
	tp.version = t.Version

	id, err := r.dev.UploadTexture(tp.id, t.Desc())
	if err != nil {
		t.Diagnostics = &core.Diagnostics{Stage: "upload", Err: err}
		r.log.Warnf("texture %q (%s) skipped: %v", t.Name, t.Format, err)
		if tp.id != "" {
			r.dev.ReleaseTexture(tp.id)
			r.state.ForgetTexture(tp.id)
			tp.id = ""
		}
		return ""
	}
	t.Diagnostics = nil
	tp.id = id
	return id
}

func (r *Renderer) onTextureDispose(t *core.Texture) {
	tp, ok := r.textures[t]
	if !ok {
		return
	}
	if tp.id != "" {
		r.dev.ReleaseTexture(tp.id)
		r.state.ForgetTexture(tp.id)
	}
	delete(r.textures, t)
}

// uploadInstances uploads the instance matrices of rend once per frame.
func (r *Renderer) uploadInstances(rend *core.Renderable) (gpu.AssetID, bool) {
	ip, ok := r.instances[rend]
	if ok && ip.version == r.info.Frame {
		return ip.id, true
	}
	if !ok {
		ip = &instanceProperties{}
		r.instances[rend] = ip
	}
	data := make([]float32, 0, 16*len(rend.InstanceMatrices))
	for _, m := range rend.InstanceMatrices {
		data = append(data, m[:]...)
	}
	id, err := r.dev.UploadGeometry(ip.id, gpu.GeometryDesc{
		Label:      "instances",
		Attributes: map[string]gpu.AttributeData{program.InstanceMatrix: {ItemSize: 16, Data: data}},
	})
	if err != nil {
		r.log.Errorf("instance upload (%d matrices) failed: %v", len(rend.InstanceMatrices), err)
		return "", false
	}
	ip.id, ip.version = id, r.info.Frame
	return id, true
}
