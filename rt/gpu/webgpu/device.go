// Package webgpu drives a wgpu device behind gpu.Device. Calls made during
// a frame are recorded and encoded into render passes at EndFrame, so
// uniform values and clears land in the order they were issued.
package webgpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/forward/logging"
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/pkg/errors"
)

// Options configures a device. Width and Height size the default
// framebuffer.
type Options struct {
	Width, Height int
	// PremultipliedAlpha composites the surface as premultiplied.
	PremultipliedAlpha bool
	Log                logging.Logger
}

type Device struct {
	log logging.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface
	config   *wgpu.SurfaceConfiguration

	// screen is the default framebuffer. Without a surface its color
	// texture is owned by the device.
	screen *target

	geometries  map[gpu.AssetID]*geometry
	textures    map[gpu.AssetID]*texture
	targets     map[gpu.AssetID]*target
	programs    map[gpu.ProgramHandle]*shaderProgram
	nextProgram gpu.ProgramHandle

	white   *texture
	repeat  *wgpu.Sampler
	clamp   *wgpu.Sampler
	ring    *wgpu.Buffer
	current drawState
	bound   map[int]gpu.AssetID
	frame   frame
}

// New wraps an existing wgpu device and renders the default framebuffer
// offscreen.
func New(device *wgpu.Device, opts Options) (*Device, error) {
	d := newDevice(device, opts)
	if err := d.init(wgpu.TextureFormatRGBA8Unorm, opts.Width, opts.Height, true); err != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

func newDevice(device *wgpu.Device, opts Options) *Device {
	return &Device{
		log:        logging.OrNop(opts.Log),
		device:     device,
		queue:      device.GetQueue(),
		geometries: make(map[gpu.AssetID]*geometry),
		textures:   make(map[gpu.AssetID]*texture),
		targets:    make(map[gpu.AssetID]*target),
		programs:   make(map[gpu.ProgramHandle]*shaderProgram),
		bound:      make(map[int]gpu.AssetID),
	}
}

func (d *Device) init(format wgpu.TextureFormat, width, height int, ownColor bool) error {
	var err error
	d.repeat, err = d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "forward repeat",
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return errors.Wrap(err, "repeat sampler")
	}
	d.clamp, err = d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "forward clamp",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return errors.Wrap(err, "clamp sampler")
	}
	d.white, err = d.createTexture(gpu.TextureDesc{
		Label: "white", Width: 1, Height: 1, Format: gpu.FormatRGBA8, Pixels: []byte{255, 255, 255, 255},
	})
	if err != nil {
		return errors.Wrap(err, "white texture")
	}
	d.screen, err = d.createTarget("screen", width, height, format, true, ownColor)
	return err
}

// Resize changes the default framebuffer size and reconfigures the surface.
func (d *Device) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.Errorf("webgpu: bad size %dx%d", width, height)
	}
	if d.config != nil {
		d.config.Width, d.config.Height = uint32(width), uint32(height)
		d.surface.Configure(d.adapter, d.device, d.config)
	}
	format, own := d.screen.format, d.screen.color != nil
	d.screen.release()
	var err error
	d.screen, err = d.createTarget("screen", width, height, format, true, own)
	return err
}

func (d *Device) Size() (int, int) { return d.screen.width, d.screen.height }

// Release frees every resource, then the device itself.
func (d *Device) Release() {
	for h := range d.programs {
		d.DeleteProgram(h)
	}
	for id := range d.geometries {
		d.ReleaseGeometry(id)
	}
	for id := range d.targets {
		d.DeleteRenderTarget(id)
	}
	for id := range d.textures {
		d.ReleaseTexture(id)
	}
	if d.white != nil {
		d.white.release()
	}
	if d.screen != nil {
		d.screen.release()
	}
	for _, s := range []*wgpu.Sampler{d.repeat, d.clamp} {
		if s != nil {
			s.Release()
		}
	}
	if d.ring != nil {
		d.ring.Release()
		d.ring = nil
	}
	if d.surface != nil {
		d.surface.Release()
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
}

func (d *Device) BeginFrame() error {
	if d.device == nil {
		return gpu.ErrDeviceLost
	}
	d.frame.reset()
	return nil
}

func (d *Device) UseProgram(p gpu.ProgramHandle) { d.current.program = p }

func (d *Device) SetBlending(mode gpu.BlendMode, premultipliedAlpha bool) {
	d.current.key.blend = mode
	d.current.key.premultiplied = premultipliedAlpha
}

func (d *Device) SetDepthTest(enabled bool)  { d.current.key.depthTest = enabled }
func (d *Device) SetDepthWrite(enabled bool) { d.current.key.depthWrite = enabled }
func (d *Device) SetColorWrite(enabled bool) { d.current.key.colorWrite = enabled }
func (d *Device) SetCullFace(mode gpu.CullMode) {
	d.current.key.cull = mode
}
func (d *Device) SetFrontFace(clockwise bool) { d.current.key.frontCW = clockwise }

func (d *Device) SetPolygonOffset(enabled bool, factor, units float32) {
	if !enabled {
		factor, units = 0, 0
	}
	d.current.key.biasSlope, d.current.key.bias = factor, int32(units)
}

func (d *Device) BindTexture(unit int, tex gpu.AssetID) { d.bound[unit] = tex }

func (d *Device) SetRenderTarget(target gpu.AssetID) { d.current.target = target }

func (d *Device) SetViewport(v gpu.Viewport) { d.current.viewport = v }

// Clear is applied as the load operation of the next pass on the bound
// target.
func (d *Device) Clear(color [4]float32, depth bool) {
	d.frame.ops = append(d.frame.ops, op{clear: true, target: d.current.target, color: color, depth: depth})
}

func (d *Device) Draw(call gpu.DrawCall) {
	prog, ok := d.programs[d.current.program]
	if !ok {
		d.log.Warnf("draw without a program")
		return
	}
	geom, ok := d.geometries[call.Geometry]
	if !ok {
		d.log.Warnf("draw of unknown geometry %s", call.Geometry)
		return
	}
	t, ok := d.target(d.current.target)
	if !ok {
		d.log.Warnf("draw into unknown target %s", d.current.target)
		return
	}
	vertex, err := d.vertexBuffer(geom, prog.vertex)
	if err != nil {
		d.log.Errorf("geometry %q: %v", geom.label, err)
		return
	}
	o := op{
		target:   d.current.target,
		program:  prog,
		viewport: clampViewport(d.current.viewport, t.width, t.height),
		vertex:   vertex,
		index:    geom.index,
		call:     call,
	}
	if prog.instance.stride > 0 {
		inst, ok := d.geometries[call.Instances]
		if !ok {
			d.log.Warnf("instanced draw of %q without instances", geom.label)
			return
		}
		if o.instances, err = d.vertexBuffer(inst, prog.instance); err != nil {
			d.log.Errorf("instances of %q: %v", geom.label, err)
			return
		}
	}

	key := d.current.key
	key.primitive = call.Primitive
	key.color = t.format
	key.depth = t.depth != nil
	key.strip = call.Indexed && call.Primitive == gpu.LineStrip
	if o.pipeline, err = d.pipeline(prog, key); err != nil {
		d.log.Errorf("pipeline for %s: %v", prog.label, err)
		return
	}

	o.uniforms = d.frame.pushUniforms(prog.block)
	if len(prog.samplers) > 0 {
		o.textures = make([]*texture, len(prog.samplers))
		for i := range prog.samplers {
			o.textures[i] = d.textureOrWhite(d.bound[int(prog.units[i])])
		}
	}
	d.frame.ops = append(d.frame.ops, o)
}

func (d *Device) textureOrWhite(id gpu.AssetID) *texture {
	if t, ok := d.textures[id]; ok {
		return t
	}
	return d.white
}

func (d *Device) target(id gpu.AssetID) (*target, bool) {
	if id == "" {
		return d.screen, true
	}
	t, ok := d.targets[id]
	return t, ok
}

// clampViewport keeps v inside a w x h target. The zero viewport covers
// the whole target.
func clampViewport(v gpu.Viewport, w, h int) gpu.Viewport {
	if v.Width <= 0 || v.Height <= 0 {
		return gpu.Viewport{Width: w, Height: h}
	}
	v.X = min(max(v.X, 0), w)
	v.Y = min(max(v.Y, 0), h)
	v.Width = min(v.Width, w-v.X)
	v.Height = min(v.Height, h-v.Y)
	return v
}

var _ gpu.Device = (*Device)(nil)
