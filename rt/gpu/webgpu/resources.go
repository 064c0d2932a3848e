package webgpu

import (
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/pkg/errors"
)

type geometry struct {
	label string
	attrs map[string]gpu.AttributeData
	// count is the number of vertices, or instances for an instance buffer.
	count      int
	index      *wgpu.Buffer
	indexCount int
	// vertex holds one interleaved buffer per program vertex layout.
	vertex map[string]*wgpu.Buffer
}

func (g *geometry) release() {
	if g.index != nil {
		g.index.Release()
		g.index = nil
	}
	for k, b := range g.vertex {
		b.Release()
		delete(g.vertex, k)
	}
}

type texture struct {
	tex    *wgpu.Texture
	view   *wgpu.TextureView
	width  int
	height int
	format gpu.TextureFormat
	// clamp marks render target attachments, sampled without wrapping.
	clamp bool
	owned bool
}

func (t *texture) release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

type target struct {
	label  string
	width  int
	height int
	format wgpu.TextureFormat
	// color is nil for the surface, whose texture is acquired per frame.
	color     *texture
	colorID   gpu.AssetID
	depth     *wgpu.Texture
	depthView *wgpu.TextureView
}

func (t *target) release() {
	if t.color != nil {
		t.color.release()
	}
	if t.depthView != nil {
		t.depthView.Release()
		t.depthView = nil
	}
	if t.depth != nil {
		t.depth.Release()
		t.depth = nil
	}
}

func bytesOf(f []float32) []byte {
	if len(f) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&f[0])), len(f)*4)
}

func bytesOfIndex(idx []uint32) []byte {
	if len(idx) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&idx[0])), len(idx)*4)
}

// ensureBuffer grows *buf to hold data and writes it. It reports whether
// the buffer was recreated.
func (d *Device) ensureBuffer(label string, buf **wgpu.Buffer, data []byte, usage wgpu.BufferUsage) (bool, error) {
	size := uint64(len(data))
	if size%4 != 0 {
		size += 4 - size%4
	}
	size = max(size, 16)

	created := false
	if *buf == nil || (*buf).GetSize() < size {
		if *buf != nil {
			(*buf).Release()
		}
		b, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: label,
			Size:  size,
			Usage: usage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			*buf = nil
			return false, errors.Wrapf(err, "buffer %s (%d bytes)", label, size)
		}
		*buf = b
		created = true
	}
	if len(data) > 0 {
		if len(data)%4 != 0 {
			data = append(data[:len(data):len(data)], make([]byte, 4-len(data)%4)...)
		}
		d.queue.WriteBuffer(*buf, 0, data)
	}
	return created, nil
}

func (d *Device) UploadGeometry(prev gpu.AssetID, desc gpu.GeometryDesc) (gpu.AssetID, error) {
	g := &geometry{label: desc.Label, attrs: desc.Attributes, vertex: make(map[string]*wgpu.Buffer)}
	switch {
	case desc.Attributes["position"].ItemSize > 0:
		a := desc.Attributes["position"]
		g.count = len(a.Data) / a.ItemSize
	default:
		for _, a := range desc.Attributes {
			if a.ItemSize > 0 {
				g.count = max(g.count, len(a.Data)/a.ItemSize)
			}
		}
	}
	if len(desc.Index) > 0 {
		if _, err := d.ensureBuffer(desc.Label+" index", &g.index, bytesOfIndex(desc.Index), wgpu.BufferUsageIndex); err != nil {
			return "", err
		}
		g.indexCount = len(desc.Index)
	}

	id := prev
	if old, ok := d.geometries[prev]; ok {
		d.retire(old.release)
	} else {
		id = gpu.NewAssetID()
	}
	d.geometries[id] = g
	return id, nil
}

func (d *Device) ReleaseGeometry(id gpu.AssetID) {
	if g, ok := d.geometries[id]; ok {
		g.release()
		delete(d.geometries, id)
	}
}

// vertexBuffer returns g interleaved in layout l, building it on first use.
// Attributes g lacks read as zeros.
func (d *Device) vertexBuffer(g *geometry, l vertexLayout) (*wgpu.Buffer, error) {
	if b, ok := g.vertex[l.key]; ok {
		return b, nil
	}
	floats := l.stride / 4
	data := make([]float32, g.count*floats)
	col := 0
	for _, a := range l.attributes {
		src := g.attrs[a.Name]
		n := min(src.ItemSize, a.ItemSize)
		for v := 0; v < g.count && n > 0; v++ {
			from := v * src.ItemSize
			if from+n > len(src.Data) {
				break
			}
			copy(data[v*floats+col:], src.Data[from:from+n])
		}
		col += a.ItemSize
	}
	var b *wgpu.Buffer
	if _, err := d.ensureBuffer(g.label+" "+l.key, &b, bytesOf(data), wgpu.BufferUsageVertex); err != nil {
		return nil, err
	}
	g.vertex[l.key] = b
	return b, nil
}

func textureFormat(f gpu.TextureFormat) (wgpu.TextureFormat, bool) {
	switch f {
	case gpu.FormatRGBA8:
		return wgpu.TextureFormatRGBA8Unorm, true
	case gpu.FormatR8:
		return wgpu.TextureFormatR8Unorm, true
	case gpu.FormatRGBA16F:
		return wgpu.TextureFormatRGBA16Float, true
	}
	// 32-bit float and depth formats are not filterable.
	return wgpu.TextureFormatUndefined, false
}

func (d *Device) createTexture(desc gpu.TextureDesc) (*texture, error) {
	format, ok := textureFormat(desc.Format)
	if !ok {
		return nil, errors.Wrapf(gpu.ErrUnsupportedFormat, "%s", desc.Format)
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, errors.Errorf("webgpu: texture %q has size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	size := wgpu.Extent3D{Width: uint32(desc.Width), Height: uint32(desc.Height), DepthOrArrayLayers: 1}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "texture %q", desc.Label)
	}
	t := &texture{tex: tex, width: desc.Width, height: desc.Height, format: desc.Format, owned: true}
	if t.view, err = tex.CreateView(nil); err != nil {
		t.release()
		return nil, errors.Wrapf(err, "texture %q view", desc.Label)
	}
	d.writeTexture(t, desc.Pixels)
	return t, nil
}

func (d *Device) writeTexture(t *texture, pixels []byte) {
	bpp := t.format.BytesPerPixel()
	if len(pixels) < t.width*t.height*bpp {
		return
	}
	d.queue.WriteTexture(t.tex.AsImageCopy(), pixels, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(t.width * bpp),
		RowsPerImage: uint32(t.height),
	}, &wgpu.Extent3D{Width: uint32(t.width), Height: uint32(t.height), DepthOrArrayLayers: 1})
}

func (d *Device) UploadTexture(prev gpu.AssetID, desc gpu.TextureDesc) (gpu.AssetID, error) {
	if old, ok := d.textures[prev]; ok && old.owned && old.width == desc.Width && old.height == desc.Height && old.format == desc.Format {
		d.writeTexture(old, desc.Pixels)
		return prev, nil
	}
	t, err := d.createTexture(desc)
	if err != nil {
		return "", err
	}
	id := prev
	if old, ok := d.textures[prev]; ok && old.owned {
		d.retire(old.release)
	} else {
		id = gpu.NewAssetID()
	}
	d.textures[id] = t
	return id, nil
}

func (d *Device) ReleaseTexture(id gpu.AssetID) {
	t, ok := d.textures[id]
	if !ok || !t.owned {
		return
	}
	t.release()
	delete(d.textures, id)
}

func (d *Device) createTarget(label string, width, height int, format wgpu.TextureFormat, depth, ownColor bool) (*target, error) {
	t := &target{label: label, width: width, height: height, format: format}
	size := wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1}
	if ownColor {
		tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         label + " color",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     wgpu.TextureDimension2D,
			Format:        format,
			Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "target %q color", label)
		}
		t.color = &texture{tex: tex, width: width, height: height, clamp: true}
		if t.color.view, err = tex.CreateView(nil); err != nil {
			t.release()
			return nil, errors.Wrapf(err, "target %q color view", label)
		}
	}
	if depth {
		tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         label + " depth",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     wgpu.TextureDimension2D,
			Format:        wgpu.TextureFormatDepth24Plus,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			t.release()
			return nil, errors.Wrapf(err, "target %q depth", label)
		}
		t.depth = tex
		if t.depthView, err = tex.CreateView(nil); err != nil {
			t.release()
			return nil, errors.Wrapf(err, "target %q depth view", label)
		}
	}
	return t, nil
}

func (d *Device) CreateRenderTarget(desc gpu.RenderTargetDesc) (gpu.AssetID, error) {
	format, ok := textureFormat(desc.Format)
	if !ok || desc.Format == gpu.FormatR8 {
		return "", errors.Wrapf(gpu.ErrUnsupportedFormat, "render target %s", desc.Format)
	}
	t, err := d.createTarget(desc.Label, desc.Width, desc.Height, format, desc.Depth, true)
	if err != nil {
		return "", err
	}
	t.color.format = desc.Format
	id := gpu.NewAssetID()
	t.colorID = gpu.NewAssetID()
	d.targets[id] = t
	d.textures[t.colorID] = t.color
	return id, nil
}

func (d *Device) RenderTargetTexture(id gpu.AssetID) gpu.AssetID {
	if t, ok := d.targets[id]; ok {
		return t.colorID
	}
	return ""
}

func (d *Device) DeleteRenderTarget(id gpu.AssetID) {
	t, ok := d.targets[id]
	if !ok {
		return
	}
	delete(d.textures, t.colorID)
	t.release()
	delete(d.targets, id)
}
