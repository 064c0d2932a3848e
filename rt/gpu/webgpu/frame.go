package webgpu

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/pkg/errors"
)

// uniformAlign is the WebGPU minimum dynamic uniform offset alignment.
const uniformAlign = 256

// op is one recorded clear or draw.
type op struct {
	clear  bool
	target gpu.AssetID

	color [4]float32
	depth bool

	program   *shaderProgram
	pipeline  *wgpu.RenderPipeline
	viewport  gpu.Viewport
	uniforms  uint32
	textures  []*texture
	vertex    *wgpu.Buffer
	instances *wgpu.Buffer
	index     *wgpu.Buffer
	call      gpu.DrawCall
}

type frame struct {
	ops      []op
	uniforms []float32
	// trash runs after the frame is submitted.
	trash  []func()
	active bool
}

func (f *frame) reset() {
	f.ops = f.ops[:0]
	f.uniforms = f.uniforms[:0]
	f.active = true
}

// pushUniforms appends a snapshot of block at the next aligned offset and
// returns that offset in bytes.
func (f *frame) pushUniforms(block []float32) uint32 {
	const floats = uniformAlign / 4
	start := (len(f.uniforms) + floats - 1) / floats * floats
	for len(f.uniforms) < start {
		f.uniforms = append(f.uniforms, 0)
	}
	f.uniforms = append(f.uniforms, block...)
	return uint32(start * 4)
}

// retire releases fn now, or after submission when a frame is recording.
func (d *Device) retire(fn func()) {
	if d.frame.active {
		d.frame.trash = append(d.frame.trash, fn)
		return
	}
	fn()
}

// passPlan is one render pass: the draws it runs and how it loads its
// attachments.
type passPlan struct {
	target     gpu.AssetID
	clear      bool
	clearColor [4]float32
	clearDepth bool
	draws      []int
}

// planPasses groups ops into passes in issue order. A pass ends when the
// target changes or a clear is issued; a clear becomes the load operation
// of a new pass on its target, which the following draws on that target
// join.
func planPasses(ops []op) []passPlan {
	var plans []passPlan
	open := -1
	for i, o := range ops {
		if o.clear {
			p := passPlan{target: o.target, clear: true, clearColor: o.color, clearDepth: o.depth}
			if open >= 0 && plans[open].target == o.target && len(plans[open].draws) == 0 {
				plans[open] = p
				continue
			}
			plans = append(plans, p)
			open = len(plans) - 1
			continue
		}
		if open >= 0 && plans[open].target == o.target {
			plans[open].draws = append(plans[open].draws, i)
			continue
		}
		plans = append(plans, passPlan{target: o.target, draws: []int{i}})
		open = len(plans) - 1
	}
	return plans
}

// EndFrame encodes the recorded frame, submits it and presents the surface.
func (d *Device) EndFrame() {
	defer func() {
		d.frame.active = false
		for _, fn := range d.frame.trash {
			fn()
		}
		d.frame.trash = d.frame.trash[:0]
	}()
	if err := d.submit(); err != nil {
		d.log.Errorf("frame: %v", err)
	}
}

func (d *Device) submit() error {
	var screen *wgpu.TextureView
	if d.surface != nil {
		next, err := d.surface.GetCurrentTexture()
		if err != nil {
			return errors.Wrap(err, "surface texture")
		}
		defer next.Release()
		if screen, err = next.CreateView(nil); err != nil {
			return errors.Wrap(err, "surface view")
		}
		defer screen.Release()
	} else if d.screen.color != nil {
		screen = d.screen.color.view
	}

	if len(d.frame.uniforms) > 0 {
		if _, err := d.ensureBuffer("forward uniforms", &d.ring, bytesOf(d.frame.uniforms), wgpu.BufferUsageUniform); err != nil {
			return err
		}
	}

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return errors.Wrap(err, "command encoder")
	}
	defer encoder.Release()

	groups := newBindGroups(d)
	defer groups.release()

	for _, plan := range planPasses(d.frame.ops) {
		t, ok := d.target(plan.target)
		if !ok {
			continue
		}
		view := screen
		if plan.target != "" {
			view = t.color.view
		}
		if view == nil {
			continue
		}
		if err := d.encodePass(encoder, plan, t, view, groups); err != nil {
			return err
		}
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return errors.Wrap(err, "finish")
	}
	defer cmd.Release()
	d.queue.Submit(cmd)
	if d.surface != nil {
		d.surface.Present()
	}
	return nil
}

func (d *Device) encodePass(encoder *wgpu.CommandEncoder, plan passPlan, t *target, view *wgpu.TextureView, groups *bindGroups) error {
	color := wgpu.RenderPassColorAttachment{
		View:    view,
		LoadOp:  wgpu.LoadOpLoad,
		StoreOp: wgpu.StoreOpStore,
	}
	if plan.clear {
		c := plan.clearColor
		color.LoadOp = wgpu.LoadOpClear
		color.ClearValue = wgpu.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])}
	}
	desc := &wgpu.RenderPassDescriptor{
		Label:            t.label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{color},
	}
	if t.depthView != nil {
		depth := &wgpu.RenderPassDepthStencilAttachment{
			View:            t.depthView,
			DepthLoadOp:     wgpu.LoadOpLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
		if plan.clear && plan.clearDepth {
			depth.DepthLoadOp = wgpu.LoadOpClear
		}
		desc.DepthStencilAttachment = depth
	}

	pass := encoder.BeginRenderPass(desc)
	var viewport gpu.Viewport
	for n, i := range plan.draws {
		o := &d.frame.ops[i]
		if n == 0 || o.viewport != viewport {
			viewport = o.viewport
			pass.SetViewport(float32(viewport.X), float32(viewport.Y), float32(viewport.Width), float32(viewport.Height), 0, 1)
		}
		ub, err := groups.uniforms(o.program)
		if err != nil {
			pass.End()
			return err
		}
		pass.SetPipeline(o.pipeline)
		pass.SetBindGroup(0, ub, []uint32{o.uniforms})
		if len(o.textures) > 0 {
			tb, err := groups.textures(o.program, o.textures)
			if err != nil {
				pass.End()
				return err
			}
			pass.SetBindGroup(1, tb, nil)
		}
		slot := uint32(0)
		if o.vertex != nil && o.program.vertex.stride > 0 {
			pass.SetVertexBuffer(slot, o.vertex, 0, wgpu.WholeSize)
			slot++
		}
		if o.instances != nil {
			pass.SetVertexBuffer(slot, o.instances, 0, wgpu.WholeSize)
		}
		instances := uint32(max(o.call.InstanceCount, 1))
		if o.call.Indexed && o.index != nil {
			pass.SetIndexBuffer(o.index, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
			pass.DrawIndexed(uint32(o.call.Count), instances, uint32(o.call.Start), 0, 0)
		} else {
			pass.Draw(uint32(o.call.Count), instances, uint32(o.call.Start), 0)
		}
	}
	return errors.Wrapf(pass.End(), "pass %s", t.label)
}

// bindGroups caches the bind groups of one frame.
type bindGroups struct {
	d        *Device
	uniform  map[*shaderProgram]*wgpu.BindGroup
	textured map[texturesKey]*wgpu.BindGroup
}

type texturesKey struct {
	program *shaderProgram
	views   string
}

func newBindGroups(d *Device) *bindGroups {
	return &bindGroups{
		d:        d,
		uniform:  make(map[*shaderProgram]*wgpu.BindGroup),
		textured: make(map[texturesKey]*wgpu.BindGroup),
	}
}

func (b *bindGroups) uniforms(p *shaderProgram) (*wgpu.BindGroup, error) {
	if g, ok := b.uniform[p]; ok {
		return g, nil
	}
	g, err := b.d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  p.label + " uniforms",
		Layout: p.uniformLayout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  b.d.ring,
			Offset:  0,
			Size:    uint64(len(p.block) * 4),
		}},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s uniform bind group", p.label)
	}
	b.uniform[p] = g
	return g, nil
}

func (b *bindGroups) textures(p *shaderProgram, texs []*texture) (*wgpu.BindGroup, error) {
	var key strings.Builder
	for _, t := range texs {
		fmt.Fprintf(&key, "%p,", t)
	}
	k := texturesKey{program: p, views: key.String()}
	if g, ok := b.textured[k]; ok {
		return g, nil
	}
	entries := make([]wgpu.BindGroupEntry, 0, 2*len(texs))
	for i, t := range texs {
		sampler := b.d.repeat
		if t.clamp {
			sampler = b.d.clamp
		}
		entries = append(entries,
			wgpu.BindGroupEntry{Binding: uint32(2 * i), TextureView: t.view},
			wgpu.BindGroupEntry{Binding: uint32(2*i + 1), Sampler: sampler})
	}
	g, err := b.d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.label + " textures",
		Layout:  p.textureLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s texture bind group", p.label)
	}
	b.textured[k] = g
	return g, nil
}

func (b *bindGroups) release() {
	for _, g := range b.uniform {
		g.Release()
	}
	for _, g := range b.textured {
		g.Release()
	}
}
