package gpu

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// AssetID names a device-resident resource (geometry buffers, textures,
// render targets). The empty id is the default framebuffer / no texture.
type AssetID string

func NewAssetID() AssetID {
	return AssetID(uuid.NewString())
}

// ProgramHandle names a compiled program. Zero means none.
type ProgramHandle uint32

var (
	ErrUnsupportedFormat = errors.New("gpu: unsupported texture format")
	ErrUnknownAsset      = errors.New("gpu: unknown asset")
	ErrDeviceLost        = errors.New("gpu: device lost")
)

// CompileError carries the backend's shader log for a failed compile or link.
type CompileError struct {
	Stage string
	Log   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("gpu: %s stage failed: %s", e.Stage, e.Log)
}

type TextureFormat uint8

const (
	FormatRGBA8 TextureFormat = iota
	FormatR8
	FormatRGBA16F
	FormatRGBA32F
	FormatDepth24
	FormatDepth32F
)

func (f TextureFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "rgba8"
	case FormatR8:
		return "r8"
	case FormatRGBA16F:
		return "rgba16f"
	case FormatRGBA32F:
		return "rgba32f"
	case FormatDepth24:
		return "depth24"
	case FormatDepth32F:
		return "depth32f"
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// BytesPerPixel returns 0 for formats that cannot be uploaded from client memory.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case FormatRGBA8:
		return 4
	case FormatR8:
		return 1
	case FormatRGBA16F:
		return 8
	case FormatRGBA32F:
		return 16
	}
	return 0
}

type BlendMode uint8

const (
	BlendNone BlendMode = iota
	BlendNormal
	BlendAdditive
	BlendSubtractive
	BlendMultiply
)

type CullMode uint8

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

type Primitive uint8

const (
	Triangles Primitive = iota
	Lines
	LineStrip
	Points
)

// Viewport is a region of the bound target in pixels. The origin is the
// top-left corner.
type Viewport struct {
	X, Y, Width, Height int
}

// UniformDecl declares one uniform a program source expects. Size is the
// number of float components; samplers have Size 1 and Sampler set.
type UniformDecl struct {
	Name    string
	Size    int
	Sampler bool
}

type AttributeDecl struct {
	Name     string
	ItemSize int
}

type ProgramSource struct {
	Label      string
	Vertex     string
	Fragment   string
	Defines    []string
	Uniforms   []UniformDecl
	Attributes []AttributeDecl
}

// UniformInfo is an active uniform reported by a compiled program.
type UniformInfo struct {
	Name     string
	Location int
	Size     int
	Sampler  bool
}

type AttributeData struct {
	ItemSize int
	Data     []float32
}

type GeometryDesc struct {
	Label      string
	Attributes map[string]AttributeData
	Index      []uint32
}

type TextureDesc struct {
	Label  string
	Width  int
	Height int
	Format TextureFormat
	Pixels []byte
}

type RenderTargetDesc struct {
	Label  string
	Width  int
	Height int
	Format TextureFormat
	Depth  bool
}

type DrawCall struct {
	Geometry AssetID

	// Instances is a geometry holding the per-instance attributes, if any.
	Instances     AssetID
	Primitive     Primitive
	Start         int
	Count         int
	Indexed       bool
	InstanceCount int
}

// Uploader moves client-side buffers and images onto the device. Passing a
// previous id updates that resource in place.
type Uploader interface {
	UploadGeometry(prev AssetID, desc GeometryDesc) (AssetID, error)
	ReleaseGeometry(id AssetID)
	UploadTexture(prev AssetID, desc TextureDesc) (AssetID, error)
	ReleaseTexture(id AssetID)
}

// Device is the narrow command surface the renderer drives. Calls are
// issued from a single goroutine.
type Device interface {
	Uploader

	BeginFrame() error
	EndFrame()

	CompileProgram(src ProgramSource) (ProgramHandle, []UniformInfo, error)
	DeleteProgram(p ProgramHandle)
	UseProgram(p ProgramHandle)
	SetUniform(p ProgramHandle, location int, value []float32)
	SetUniformInt(p ProgramHandle, location int, value int32)

	SetBlending(mode BlendMode, premultipliedAlpha bool)
	SetDepthTest(enabled bool)
	SetDepthWrite(enabled bool)
	SetColorWrite(enabled bool)
	SetCullFace(mode CullMode)
	SetFrontFace(clockwise bool)
	SetPolygonOffset(enabled bool, factor, units float32)
	BindTexture(unit int, tex AssetID)

	CreateRenderTarget(desc RenderTargetDesc) (AssetID, error)
	RenderTargetTexture(target AssetID) AssetID
	DeleteRenderTarget(target AssetID)
	SetRenderTarget(target AssetID)
	SetViewport(v Viewport)
	Clear(color [4]float32, depth bool)

	Draw(call DrawCall)
}
