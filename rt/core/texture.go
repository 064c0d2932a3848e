package core

import (
	"sync/atomic"

	"github.com/gekko3d/forward/rt/gpu"
	"github.com/google/uuid"
)

var textureIDs atomic.Uint64

// Texture is decoded pixel data. Bump Version after changing Pixels.
type Texture struct {
	ID         uint64
	UUID       string
	Name       string
	Width      int
	Height     int
	Format     gpu.TextureFormat
	ColorSpace ColorSpace
	Pixels     []byte
	Version    int

	Diagnostics *Diagnostics

	listeners []func(*Texture)
}

func NewTexture(width, height int, format gpu.TextureFormat, pixels []byte) *Texture {
	return &Texture{
		ID:      textureIDs.Add(1),
		UUID:    uuid.NewString(),
		Width:   width,
		Height:  height,
		Format:  format,
		Pixels:  pixels,
		Version: 1,
	}
}

func (t *Texture) NeedsUpdate() { t.Version++ }

func (t *Texture) Desc() gpu.TextureDesc {
	return gpu.TextureDesc{
		Label:  t.Name,
		Width:  t.Width,
		Height: t.Height,
		Format: t.Format,
		Pixels: t.Pixels,
	}
}

func (t *Texture) AddDisposeListener(fn func(*Texture)) {
	t.listeners = append(t.listeners, fn)
}

func (t *Texture) Dispose() {
	ls := t.listeners
	t.listeners = nil
	for _, fn := range ls {
		fn(t)
	}
}
