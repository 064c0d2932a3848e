package forward

import (
	"github.com/gekko3d/forward/logging"
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/gekko3d/forward/rt/program"
	"github.com/gekko3d/forward/rt/renderlist"
)

type RendererBuilder struct {
	dev     gpu.Device
	cfg     Config
	log     logging.Logger
	lib     program.Library
	opaque  renderlist.Less
	transp  renderlist.Less
	options []func(*Renderer)
}

func NewRendererBuilder(dev gpu.Device) *RendererBuilder {
	return &RendererBuilder{dev: dev, cfg: DefaultConfig()}
}

func (b *RendererBuilder) UseConfig(cfg Config) *RendererBuilder {
	b.cfg = cfg

	return b
}

// UseLogger overrides the logger Debug.Logging would pick.
func (b *RendererBuilder) UseLogger(log logging.Logger) *RendererBuilder {
	b.log = log

	return b
}

func (b *RendererBuilder) UseLibrary(lib program.Library) *RendererBuilder {
	b.lib = lib

	return b
}

func (b *RendererBuilder) UseSort(opaque, transparent renderlist.Less) *RendererBuilder {
	b.opaque, b.transp = opaque, transparent

	return b
}

// UseOption runs fn on the renderer once it is built.
func (b *RendererBuilder) UseOption(fn ...func(*Renderer)) *RendererBuilder {
	b.options = append(b.options, fn...)

	return b
}

func (b *RendererBuilder) Build() (*Renderer, error) {
	r, err := New(b.dev, b.cfg)
	if err != nil {
		return nil, err
	}
	if b.log != nil {
		r.SetLogger(b.log)
	}
	if b.lib != nil {
		r.SetLibrary(b.lib)
	}
	r.SetOpaqueSort(b.opaque)
	r.SetTransparentSort(b.transp)
	for _, fn := range b.options {
		fn(r)
	}
	r.log.Debugf("renderer %dx%d, shadows %v, tone mapping %s", b.cfg.Width, b.cfg.Height, b.cfg.ShadowMap.Enabled, b.cfg.ToneMapping)
	return r, nil
}
