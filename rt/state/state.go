// Package state tracks the GPU state last applied to a device and issues
// only the transitions a draw needs.
package state

import (
	"github.com/gekko3d/forward/rt/core"
	"github.com/gekko3d/forward/rt/gpu"
)

type field uint16

const (
	fProgram field = 1 << iota
	fBlend
	fDepthTest
	fDepthWrite
	fColorWrite
	fCull
	fFrontFace
	fPolygonOffset
	fTarget
	fViewport
)

type polygonOffset struct {
	enabled       bool
	factor, units float32
}

// Tracker sits in front of a device. Every setter compares against the
// last applied value and forwards only changes. Fields start unknown so
// the first set of each is always issued.
type Tracker struct {
	// Changes counts forwarded calls since the last ResetStats.
	Changes int

	dev   gpu.Device
	known field

	program    gpu.ProgramHandle
	blend      gpu.BlendMode
	premult    bool
	depthTest  bool
	depthWrite bool
	colorWrite bool
	cull       gpu.CullMode
	frontCW    bool
	offset     polygonOffset
	target     gpu.AssetID
	viewport   gpu.Viewport
	textures   map[int]gpu.AssetID
}

func New(dev gpu.Device) *Tracker {
	return &Tracker{dev: dev, textures: make(map[int]gpu.AssetID)}
}

// Reset forgets everything, e.g. after another user touched the device.
func (t *Tracker) Reset() {
	t.known = 0
	clear(t.textures)
}

func (t *Tracker) ResetStats() { t.Changes = 0 }

func (t *Tracker) has(f field) bool { return t.known&f != 0 }

func (t *Tracker) mark(f field) {
	t.known |= f
	t.Changes++
}

func (t *Tracker) UseProgram(p gpu.ProgramHandle) bool {
	if t.has(fProgram) && t.program == p {
		return false
	}
	t.program = p
	t.mark(fProgram)
	t.dev.UseProgram(p)
	return true
}

// Program returns the current program, zero when unknown.
func (t *Tracker) Program() gpu.ProgramHandle {
	if !t.has(fProgram) {
		return 0
	}
	return t.program
}

func (t *Tracker) SetBlending(mode gpu.BlendMode, premultiplied bool) {
	if mode == gpu.BlendNone {
		premultiplied = false
	}
	if t.has(fBlend) && t.blend == mode && t.premult == premultiplied {
		return
	}
	t.blend, t.premult = mode, premultiplied
	t.mark(fBlend)
	t.dev.SetBlending(mode, premultiplied)
}

func (t *Tracker) SetDepthTest(on bool) {
	if t.has(fDepthTest) && t.depthTest == on {
		return
	}
	t.depthTest = on
	t.mark(fDepthTest)
	t.dev.SetDepthTest(on)
}

func (t *Tracker) SetDepthWrite(on bool) {
	if t.has(fDepthWrite) && t.depthWrite == on {
		return
	}
	t.depthWrite = on
	t.mark(fDepthWrite)
	t.dev.SetDepthWrite(on)
}

func (t *Tracker) SetColorWrite(on bool) {
	if t.has(fColorWrite) && t.colorWrite == on {
		return
	}
	t.colorWrite = on
	t.mark(fColorWrite)
	t.dev.SetColorWrite(on)
}

func (t *Tracker) SetCullFace(mode gpu.CullMode) {
	if t.has(fCull) && t.cull == mode {
		return
	}
	t.cull = mode
	t.mark(fCull)
	t.dev.SetCullFace(mode)
}

func (t *Tracker) SetFrontFace(clockwise bool) {
	if t.has(fFrontFace) && t.frontCW == clockwise {
		return
	}
	t.frontCW = clockwise
	t.mark(fFrontFace)
	t.dev.SetFrontFace(clockwise)
}

// SetPolygonOffset ignores factor and units while disabled.
func (t *Tracker) SetPolygonOffset(enabled bool, factor, units float32) {
	o := polygonOffset{enabled: enabled}
	if enabled {
		o.factor, o.units = factor, units
	}
	if t.has(fPolygonOffset) && t.offset == o {
		return
	}
	t.offset = o
	t.mark(fPolygonOffset)
	t.dev.SetPolygonOffset(o.enabled, o.factor, o.units)
}

func (t *Tracker) BindTexture(unit int, tex gpu.AssetID) {
	if cur, ok := t.textures[unit]; ok && cur == tex {
		return
	}
	t.textures[unit] = tex
	t.Changes++
	t.dev.BindTexture(unit, tex)
}

// ForgetTexture drops bindings of a released texture so a new texture
// reusing the id is bound again.
func (t *Tracker) ForgetTexture(tex gpu.AssetID) {
	for unit, cur := range t.textures {
		if cur == tex {
			delete(t.textures, unit)
		}
	}
}

func (t *Tracker) SetRenderTarget(target gpu.AssetID) {
	if t.has(fTarget) && t.target == target {
		return
	}
	t.target = target
	t.mark(fTarget)
	t.dev.SetRenderTarget(target)
}

func (t *Tracker) RenderTarget() gpu.AssetID { return t.target }

func (t *Tracker) SetViewport(v gpu.Viewport) {
	if t.has(fViewport) && t.viewport == v {
		return
	}
	t.viewport = v
	t.mark(fViewport)
	t.dev.SetViewport(v)
}

// SetMaterial applies the fixed function state of m.
func (t *Tracker) SetMaterial(m *core.Material, frontFaceCW bool) {
	t.SetMaterialSide(m, m.Side, frontFaceCW)
}

// SetMaterialSide is SetMaterial with the face selection overridden, used
// to draw the back and front halves of a double sided transparent object.
func (t *Tracker) SetMaterialSide(m *core.Material, side core.Side, frontFaceCW bool) {
	t.SetBlending(Blend(m), m.PremultipliedAlpha)
	t.SetDepthTest(m.DepthTest)
	t.SetDepthWrite(m.DepthWrite)
	t.SetColorWrite(m.ColorWrite)

	switch side {
	case core.DoubleSide:
		t.SetCullFace(gpu.CullNone)
	case core.BackSide:
		t.SetCullFace(gpu.CullFront)
	default:
		t.SetCullFace(gpu.CullBack)
	}
	t.SetFrontFace(frontFaceCW)
	t.SetPolygonOffset(m.PolygonOffset.Enabled, m.PolygonOffset.Factor, m.PolygonOffset.Units)
}

// Blend maps a material's blending to the device mode. Normal blending on
// a non transparent material draws without blending.
func Blend(m *core.Material) gpu.BlendMode {
	if m.Blending == core.NormalBlending && !m.Transparent {
		return gpu.BlendNone
	}
	switch m.Blending {
	case core.NormalBlending:
		return gpu.BlendNormal
	case core.AdditiveBlending:
		return gpu.BlendAdditive
	case core.SubtractiveBlending:
		return gpu.BlendSubtractive
	case core.MultiplyBlending:
		return gpu.BlendMultiply
	}
	return gpu.BlendNone
}
