package webgpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/pkg/errors"
)

// pipelineKey is the fixed-function state baked into a render pipeline.
type pipelineKey struct {
	blend         gpu.BlendMode
	premultiplied bool
	depthTest     bool
	depthWrite    bool
	colorWrite    bool
	cull          gpu.CullMode
	frontCW       bool
	bias          int32
	biasSlope     float32

	primitive gpu.Primitive
	strip     bool
	color     wgpu.TextureFormat
	depth     bool
}

// drawState is what the next Draw records.
type drawState struct {
	program  gpu.ProgramHandle
	target   gpu.AssetID
	viewport gpu.Viewport
	key      pipelineKey
}

func blendState(mode gpu.BlendMode, premultiplied bool) *wgpu.BlendState {
	c := func(src, dst wgpu.BlendFactor) wgpu.BlendComponent {
		return wgpu.BlendComponent{Operation: wgpu.BlendOperationAdd, SrcFactor: src, DstFactor: dst}
	}
	switch mode {
	case gpu.BlendNormal:
		if premultiplied {
			return &wgpu.BlendState{
				Color: c(wgpu.BlendFactorOne, wgpu.BlendFactorOneMinusSrcAlpha),
				Alpha: c(wgpu.BlendFactorOne, wgpu.BlendFactorOneMinusSrcAlpha),
			}
		}
		return &wgpu.BlendState{
			Color: c(wgpu.BlendFactorSrcAlpha, wgpu.BlendFactorOneMinusSrcAlpha),
			Alpha: c(wgpu.BlendFactorOne, wgpu.BlendFactorOneMinusSrcAlpha),
		}
	case gpu.BlendAdditive:
		if premultiplied {
			return &wgpu.BlendState{
				Color: c(wgpu.BlendFactorOne, wgpu.BlendFactorOne),
				Alpha: c(wgpu.BlendFactorOne, wgpu.BlendFactorOne),
			}
		}
		return &wgpu.BlendState{
			Color: c(wgpu.BlendFactorSrcAlpha, wgpu.BlendFactorOne),
			Alpha: c(wgpu.BlendFactorOne, wgpu.BlendFactorOne),
		}
	case gpu.BlendSubtractive:
		if premultiplied {
			return &wgpu.BlendState{
				Color: c(wgpu.BlendFactorZero, wgpu.BlendFactorOneMinusSrc),
				Alpha: c(wgpu.BlendFactorZero, wgpu.BlendFactorOneMinusSrcAlpha),
			}
		}
		return &wgpu.BlendState{
			Color: c(wgpu.BlendFactorZero, wgpu.BlendFactorOneMinusSrc),
			Alpha: c(wgpu.BlendFactorZero, wgpu.BlendFactorOne),
		}
	case gpu.BlendMultiply:
		if premultiplied {
			return &wgpu.BlendState{
				Color: c(wgpu.BlendFactorZero, wgpu.BlendFactorSrc),
				Alpha: c(wgpu.BlendFactorZero, wgpu.BlendFactorSrcAlpha),
			}
		}
		return &wgpu.BlendState{
			Color: c(wgpu.BlendFactorZero, wgpu.BlendFactorSrc),
			Alpha: c(wgpu.BlendFactorZero, wgpu.BlendFactorOne),
		}
	}
	return nil
}

func topology(p gpu.Primitive) wgpu.PrimitiveTopology {
	switch p {
	case gpu.Lines:
		return wgpu.PrimitiveTopologyLineList
	case gpu.LineStrip:
		return wgpu.PrimitiveTopologyLineStrip
	case gpu.Points:
		return wgpu.PrimitiveTopologyPointList
	}
	return wgpu.PrimitiveTopologyTriangleList
}

func cullMode(m gpu.CullMode) wgpu.CullMode {
	switch m {
	case gpu.CullBack:
		return wgpu.CullModeBack
	case gpu.CullFront:
		return wgpu.CullModeFront
	}
	return wgpu.CullModeNone
}

func (d *Device) pipeline(p *shaderProgram, key pipelineKey) (*wgpu.RenderPipeline, error) {
	if pl, ok := p.pipelines[key]; ok {
		return pl, nil
	}

	mask := wgpu.ColorWriteMaskAll
	if !key.colorWrite {
		mask = wgpu.ColorWriteMaskNone
	}
	frontFace := wgpu.FrontFaceCCW
	if key.frontCW {
		frontFace = wgpu.FrontFaceCW
	}
	prim := wgpu.PrimitiveState{
		Topology:  topology(key.primitive),
		FrontFace: frontFace,
		CullMode:  cullMode(key.cull),
	}
	if key.strip {
		prim.StripIndexFormat = wgpu.IndexFormatUint32
	}

	var buffers []wgpu.VertexBufferLayout
	if p.vertex.stride > 0 {
		buffers = append(buffers, p.vertex.buffer)
	}
	if p.instance.stride > 0 {
		buffers = append(buffers, p.instance.buffer)
	}

	var depth *wgpu.DepthStencilState
	if key.depth {
		compare := wgpu.CompareFunctionLessEqual
		if !key.depthTest {
			compare = wgpu.CompareFunctionAlways
		}
		depth = &wgpu.DepthStencilState{
			Format:              wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled:   key.depthWrite,
			DepthCompare:        compare,
			DepthBias:           key.bias,
			DepthBiasSlopeScale: key.biasSlope,
			StencilFront:        wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:         wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	pl, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.label,
		Layout: p.layout,
		Vertex: wgpu.VertexState{
			Module:     p.module,
			EntryPoint: "vs_main",
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     p.module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    key.color,
				Blend:     blendState(key.blend, key.premultiplied),
				WriteMask: mask,
			}},
		},
		Primitive:    prim,
		DepthStencil: depth,
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "pipeline %s", p.label)
	}
	p.pipelines[key] = pl
	d.log.Debugf("pipeline %s: %d for this program", p.label, len(p.pipelines))
	return pl, nil
}
