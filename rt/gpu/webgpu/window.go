package webgpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
)

// Open creates a device presenting to window. opts.Width and opts.Height
// default to the window's framebuffer size.
func Open(window *glfw.Window, opts Options) (*Device, error) {
	instance := wgpu.CreateInstance(nil)
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		surface.Release()
		instance.Release()
		return nil, errors.Wrap(err, "request adapter")
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		surface.Release()
		instance.Release()
		return nil, errors.Wrap(err, "request device")
	}

	d := newDevice(device, opts)
	d.instance, d.adapter, d.surface = instance, adapter, surface

	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		width, height = window.GetFramebufferSize()
	}
	caps := surface.GetCapabilities(adapter)
	if len(caps.Formats) == 0 {
		d.Release()
		return nil, errors.New("webgpu: surface reports no formats")
	}
	d.config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   alphaMode(caps.AlphaModes, opts.PremultipliedAlpha),
	}
	surface.Configure(adapter, device, d.config)

	if err := d.init(d.config.Format, width, height, false); err != nil {
		d.Release()
		return nil, err
	}
	d.log.Infof("webgpu surface %dx%d format %v alpha %v", width, height, d.config.Format, d.config.AlphaMode)
	return d, nil
}

// alphaMode picks premultiplied compositing when asked for and supported,
// otherwise the surface's preferred mode.
func alphaMode(modes []wgpu.CompositeAlphaMode, premultiplied bool) wgpu.CompositeAlphaMode {
	if len(modes) == 0 {
		return wgpu.CompositeAlphaModeAuto
	}
	want := wgpu.CompositeAlphaModeOpaque
	if premultiplied {
		want = wgpu.CompositeAlphaModePremultiplied
	}
	for _, m := range modes {
		if m == want {
			return m
		}
	}
	return modes[0]
}
