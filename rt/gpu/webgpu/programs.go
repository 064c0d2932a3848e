package webgpu

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/forward/rt/gpu"
)

// maxVertexLocations is the WebGPU default limit on vertex attributes.
const maxVertexLocations = 16

// vertexLayout interleaves a set of attributes into one buffer.
type vertexLayout struct {
	key        string
	attributes []gpu.AttributeDecl
	stride     uint64
	buffer     wgpu.VertexBufferLayout
}

// vertexLayouts splits attrs into a per-vertex layout and a per-instance
// layout; attributes of 16 floats are per instance and take four locations.
func vertexLayouts(attrs []gpu.AttributeDecl) (vertex, instance vertexLayout, locations int) {
	var vkey, ikey []string
	for _, a := range attrs {
		l, keys, step := &vertex, &vkey, wgpu.VertexStepModeVertex
		if a.ItemSize == 16 {
			l, keys, step = &instance, &ikey, wgpu.VertexStepModeInstance
		}
		l.buffer.StepMode = step
		*keys = append(*keys, fmt.Sprintf("%s:%d", a.Name, a.ItemSize))
		l.attributes = append(l.attributes, a)

		if a.ItemSize == 16 {
			for c := 0; c < 4; c++ {
				l.buffer.Attributes = append(l.buffer.Attributes, wgpu.VertexAttribute{
					Format:         wgpu.VertexFormatFloat32x4,
					Offset:         l.stride + uint64(16*c),
					ShaderLocation: uint32(locations),
				})
				locations++
			}
		} else {
			l.buffer.Attributes = append(l.buffer.Attributes, wgpu.VertexAttribute{
				Format:         vertexFormat(a.ItemSize),
				Offset:         l.stride,
				ShaderLocation: uint32(locations),
			})
			locations++
		}
		l.stride += uint64(4 * a.ItemSize)
	}
	vertex.key = strings.Join(vkey, ",")
	instance.key = strings.Join(ikey, ",")
	vertex.buffer.ArrayStride = vertex.stride
	instance.buffer.ArrayStride = instance.stride
	return vertex, instance, locations
}

func vertexFormat(n int) wgpu.VertexFormat {
	switch n {
	case 1:
		return wgpu.VertexFormatFloat32
	case 2:
		return wgpu.VertexFormatFloat32x2
	case 3:
		return wgpu.VertexFormatFloat32x3
	}
	return wgpu.VertexFormatFloat32x4
}

type shaderProgram struct {
	label  string
	module *wgpu.ShaderModule

	uniformLayout *wgpu.BindGroupLayout
	textureLayout *wgpu.BindGroupLayout
	layout        *wgpu.PipelineLayout

	slots    []gpu.UniformSlot
	samplers []string
	// units holds the texture unit each sampler reads, set through
	// SetUniformInt.
	units []int32
	// block mirrors the uniform buffer contents.
	block []float32

	vertex    vertexLayout
	instance  vertexLayout
	pipelines map[pipelineKey]*wgpu.RenderPipeline
}

func (p *shaderProgram) release() {
	for k, pl := range p.pipelines {
		pl.Release()
		delete(p.pipelines, k)
	}
	if p.layout != nil {
		p.layout.Release()
	}
	if p.textureLayout != nil {
		p.textureLayout.Release()
	}
	if p.uniformLayout != nil {
		p.uniformLayout.Release()
	}
	if p.module != nil {
		p.module.Release()
	}
}

// CompileProgram builds one shader module from the vertex and fragment
// text. Uniform locations index the uniform slots first, then the samplers.
func (d *Device) CompileProgram(src gpu.ProgramSource) (gpu.ProgramHandle, []gpu.UniformInfo, error) {
	vertex, instance, locations := vertexLayouts(src.Attributes)
	if locations > maxVertexLocations {
		return 0, nil, &gpu.CompileError{Stage: "vertex", Log: fmt.Sprintf("%d attribute locations, limit %d", locations, maxVertexLocations)}
	}
	slots, samplers, size := gpu.UniformLayout(src.Uniforms)
	size = max(size, 16)

	p := &shaderProgram{
		label:     src.Label,
		slots:     slots,
		samplers:  samplers,
		units:     make([]int32, len(samplers)),
		block:     make([]float32, size/4),
		vertex:    vertex,
		instance:  instance,
		pipelines: make(map[pipelineKey]*wgpu.RenderPipeline),
	}
	fail := func(stage string, err error) (gpu.ProgramHandle, []gpu.UniformInfo, error) {
		p.release()
		return 0, nil, &gpu.CompileError{Stage: stage, Log: err.Error()}
	}

	var err error
	p.module, err = d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          src.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src.Vertex + src.Fragment},
	})
	if err != nil {
		return fail("module", err)
	}

	p.uniformLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: src.Label + " uniforms",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:             wgpu.BufferBindingTypeUniform,
				HasDynamicOffset: true,
				MinBindingSize:   uint64(size),
			},
		}},
	})
	if err != nil {
		return fail("link", err)
	}
	layouts := []*wgpu.BindGroupLayout{p.uniformLayout}

	if len(samplers) > 0 {
		entries := make([]wgpu.BindGroupLayoutEntry, 0, 2*len(samplers))
		for i := range samplers {
			entries = append(entries,
				wgpu.BindGroupLayoutEntry{
					Binding:    uint32(2 * i),
					Visibility: wgpu.ShaderStageFragment,
					Texture: wgpu.TextureBindingLayout{
						SampleType:    wgpu.TextureSampleTypeFloat,
						ViewDimension: wgpu.TextureViewDimension2D,
					},
				},
				wgpu.BindGroupLayoutEntry{
					Binding:    uint32(2*i + 1),
					Visibility: wgpu.ShaderStageFragment,
					Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
				})
		}
		p.textureLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   src.Label + " textures",
			Entries: entries,
		})
		if err != nil {
			return fail("link", err)
		}
		layouts = append(layouts, p.textureLayout)
	}

	p.layout, err = d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            src.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return fail("link", err)
	}

	d.nextProgram++
	h := d.nextProgram
	d.programs[h] = p

	infos := make([]gpu.UniformInfo, 0, len(slots)+len(samplers))
	for i, s := range slots {
		infos = append(infos, gpu.UniformInfo{Name: s.Name, Location: i, Size: s.Size})
	}
	for i, name := range samplers {
		infos = append(infos, gpu.UniformInfo{Name: name, Location: len(slots) + i, Size: 1, Sampler: true})
	}
	d.log.Debugf("program %d %s: %d uniform bytes, %d samplers, %d locations", h, src.Label, size, len(samplers), locations)
	return h, infos, nil
}

func (d *Device) DeleteProgram(h gpu.ProgramHandle) {
	p, ok := d.programs[h]
	if !ok {
		return
	}
	d.retire(p.release)
	delete(d.programs, h)
	if d.current.program == h {
		d.current.program = 0
	}
}

func (d *Device) SetUniform(h gpu.ProgramHandle, location int, value []float32) {
	p, ok := d.programs[h]
	if !ok || location < 0 || location >= len(p.slots) {
		return
	}
	s := p.slots[location]
	copy(p.block[s.Offset/4:s.Offset/4+s.Size], value)
}

// SetUniformInt selects a sampler's texture unit, or stores v as a float
// for other uniforms.
func (d *Device) SetUniformInt(h gpu.ProgramHandle, location int, v int32) {
	p, ok := d.programs[h]
	if !ok || location < 0 {
		return
	}
	if location >= len(p.slots) {
		if i := location - len(p.slots); i < len(p.units) {
			p.units[i] = v
		}
		return
	}
	p.block[p.slots[location].Offset/4] = float32(v)
}
