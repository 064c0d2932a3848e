package gpu

import (
	"fmt"
	"strings"
)

type Op uint8

const (
	OpBeginFrame Op = iota
	OpEndFrame
	OpCompile
	OpDeleteProgram
	OpUseProgram
	OpSetUniform
	OpSetUniformInt
	OpSetBlending
	OpSetDepthTest
	OpSetDepthWrite
	OpSetColorWrite
	OpSetCullFace
	OpSetFrontFace
	OpSetPolygonOffset
	OpBindTexture
	OpUploadGeometry
	OpReleaseGeometry
	OpUploadTexture
	OpReleaseTexture
	OpCreateRenderTarget
	OpDeleteRenderTarget
	OpSetRenderTarget
	OpSetViewport
	OpClear
	OpDraw
)

var opNames = [...]string{
	"begin", "end", "compile", "delete-program", "use-program", "uniform", "uniform-int",
	"blending", "depth-test", "depth-write", "color-write", "cull", "front-face",
	"polygon-offset", "bind-texture", "upload-geometry", "release-geometry",
	"upload-texture", "release-texture", "create-target", "delete-target",
	"set-target", "viewport", "clear", "draw",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Command is one recorded device call. Only the fields relevant to Op are set.
type Command struct {
	Op       Op
	Program  ProgramHandle
	Asset    AssetID
	Location int
	Unit     int
	Flag     bool
	Blend    BlendMode
	Cull     CullMode
	Values   []float32
	Int      int32
	Viewport Viewport
	Draw     DrawCall
}

func (c Command) String() string {
	switch c.Op {
	case OpUseProgram, OpDeleteProgram, OpCompile:
		return fmt.Sprintf("%s %d", c.Op, c.Program)
	case OpSetUniform:
		return fmt.Sprintf("%s %d@%d %v", c.Op, c.Program, c.Location, c.Values)
	case OpSetUniformInt:
		return fmt.Sprintf("%s %d@%d %d", c.Op, c.Program, c.Location, c.Int)
	case OpSetBlending:
		return fmt.Sprintf("%s %d %t", c.Op, c.Blend, c.Flag)
	case OpSetCullFace:
		return fmt.Sprintf("%s %d", c.Op, c.Cull)
	case OpBindTexture:
		return fmt.Sprintf("%s %d %s", c.Op, c.Unit, c.Asset)
	case OpSetViewport:
		return fmt.Sprintf("%s %+v", c.Op, c.Viewport)
	case OpDraw:
		return fmt.Sprintf("%s %+v", c.Op, c.Draw)
	case OpSetRenderTarget, OpCreateRenderTarget, OpDeleteRenderTarget,
		OpUploadGeometry, OpReleaseGeometry, OpUploadTexture, OpReleaseTexture:
		return fmt.Sprintf("%s %q", c.Op, c.Asset)
	}
	return fmt.Sprintf("%s %t", c.Op, c.Flag)
}

// DrawRecord is a draw together with the device state it was issued under.
type DrawRecord struct {
	Call       DrawCall
	Program    ProgramHandle
	Target     AssetID
	Viewport   Viewport
	Blend      BlendMode
	DepthTest  bool
	DepthWrite bool
	ColorWrite bool
	Cull       CullMode
	Textures   map[int]AssetID
}

// Recorder is an in-memory Device that records every call. Asset ids are
// sequential so two identical frames produce identical streams.
type Recorder struct {
	Commands []Command
	Draws    []DrawRecord

	// FailCompile, when set, decides whether a compile fails.
	FailCompile func(src ProgramSource) error

	nextProgram ProgramHandle
	nextAsset   int

	programs   map[ProgramHandle]ProgramSource
	geometries map[AssetID]GeometryDesc
	textures   map[AssetID]TextureDesc
	targets    map[AssetID]RenderTargetDesc

	program    ProgramHandle
	target     AssetID
	viewport   Viewport
	blend      BlendMode
	depthTest  bool
	depthWrite bool
	colorWrite bool
	cull       CullMode
	bound      map[int]AssetID
}

func NewRecorder() *Recorder {
	return &Recorder{
		programs:   make(map[ProgramHandle]ProgramSource),
		geometries: make(map[AssetID]GeometryDesc),
		textures:   make(map[AssetID]TextureDesc),
		targets:    make(map[AssetID]RenderTargetDesc),
		bound:      make(map[int]AssetID),
		depthTest:  true,
		depthWrite: true,
		colorWrite: true,
	}
}

func (r *Recorder) record(c Command) {
	r.Commands = append(r.Commands, c)
}

func (r *Recorder) asset(kind string) AssetID {
	r.nextAsset++
	return AssetID(fmt.Sprintf("%s-%d", kind, r.nextAsset))
}

// Reset drops recorded commands but keeps resources and state.
func (r *Recorder) Reset() {
	r.Commands = r.Commands[:0]
	r.Draws = r.Draws[:0]
}

// Count returns how many recorded commands have the given op.
func (r *Recorder) Count(op Op) int {
	n := 0
	for _, c := range r.Commands {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Stream renders the recorded commands one per line.
func (r *Recorder) Stream() string {
	var b strings.Builder
	for _, c := range r.Commands {
		b.WriteString(c.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func (r *Recorder) Programs() int      { return len(r.programs) }
func (r *Recorder) Geometries() int    { return len(r.geometries) }
func (r *Recorder) Textures() int      { return len(r.textures) }
func (r *Recorder) RenderTargets() int { return len(r.targets) }

func (r *Recorder) Source(p ProgramHandle) ProgramSource {
	return r.programs[p]
}

func (r *Recorder) BeginFrame() error {
	r.record(Command{Op: OpBeginFrame})
	return nil
}

func (r *Recorder) EndFrame() {
	r.record(Command{Op: OpEndFrame})
}

func (r *Recorder) CompileProgram(src ProgramSource) (ProgramHandle, []UniformInfo, error) {
	if r.FailCompile != nil {
		if err := r.FailCompile(src); err != nil {
			return 0, nil, err
		}
	}
	r.nextProgram++
	h := r.nextProgram
	r.programs[h] = src
	r.record(Command{Op: OpCompile, Program: h})

	infos := make([]UniformInfo, 0, len(src.Uniforms))
	for i, u := range src.Uniforms {
		infos = append(infos, UniformInfo{Name: u.Name, Location: i, Size: u.Size, Sampler: u.Sampler})
	}
	return h, infos, nil
}

func (r *Recorder) DeleteProgram(p ProgramHandle) {
	delete(r.programs, p)
	r.record(Command{Op: OpDeleteProgram, Program: p})
}

func (r *Recorder) UseProgram(p ProgramHandle) {
	r.program = p
	r.record(Command{Op: OpUseProgram, Program: p})
}

func (r *Recorder) SetUniform(p ProgramHandle, location int, value []float32) {
	v := append([]float32(nil), value...)
	r.record(Command{Op: OpSetUniform, Program: p, Location: location, Values: v})
}

func (r *Recorder) SetUniformInt(p ProgramHandle, location int, value int32) {
	r.record(Command{Op: OpSetUniformInt, Program: p, Location: location, Int: value})
}

func (r *Recorder) SetBlending(mode BlendMode, premultipliedAlpha bool) {
	r.blend = mode
	r.record(Command{Op: OpSetBlending, Blend: mode, Flag: premultipliedAlpha})
}

func (r *Recorder) SetDepthTest(enabled bool) {
	r.depthTest = enabled
	r.record(Command{Op: OpSetDepthTest, Flag: enabled})
}

func (r *Recorder) SetDepthWrite(enabled bool) {
	r.depthWrite = enabled
	r.record(Command{Op: OpSetDepthWrite, Flag: enabled})
}

func (r *Recorder) SetColorWrite(enabled bool) {
	r.colorWrite = enabled
	r.record(Command{Op: OpSetColorWrite, Flag: enabled})
}

func (r *Recorder) SetCullFace(mode CullMode) {
	r.cull = mode
	r.record(Command{Op: OpSetCullFace, Cull: mode})
}

func (r *Recorder) SetFrontFace(clockwise bool) {
	r.record(Command{Op: OpSetFrontFace, Flag: clockwise})
}

func (r *Recorder) SetPolygonOffset(enabled bool, factor, units float32) {
	r.record(Command{Op: OpSetPolygonOffset, Flag: enabled, Values: []float32{factor, units}})
}

func (r *Recorder) BindTexture(unit int, tex AssetID) {
	r.bound[unit] = tex
	r.record(Command{Op: OpBindTexture, Unit: unit, Asset: tex})
}

func (r *Recorder) UploadGeometry(prev AssetID, desc GeometryDesc) (AssetID, error) {
	id := prev
	if id == "" {
		id = r.asset("geometry")
	} else if _, ok := r.geometries[id]; !ok {
		return "", ErrUnknownAsset
	}
	r.geometries[id] = desc
	r.record(Command{Op: OpUploadGeometry, Asset: id})
	return id, nil
}

func (r *Recorder) ReleaseGeometry(id AssetID) {
	delete(r.geometries, id)
	r.record(Command{Op: OpReleaseGeometry, Asset: id})
}

func (r *Recorder) UploadTexture(prev AssetID, desc TextureDesc) (AssetID, error) {
	if desc.Format.BytesPerPixel() == 0 {
		return "", ErrUnsupportedFormat
	}
	id := prev
	if id == "" {
		id = r.asset("texture")
	}
	r.textures[id] = desc
	r.record(Command{Op: OpUploadTexture, Asset: id})
	return id, nil
}

func (r *Recorder) ReleaseTexture(id AssetID) {
	delete(r.textures, id)
	r.record(Command{Op: OpReleaseTexture, Asset: id})
}

func (r *Recorder) CreateRenderTarget(desc RenderTargetDesc) (AssetID, error) {
	id := r.asset("target")
	r.targets[id] = desc
	r.record(Command{Op: OpCreateRenderTarget, Asset: id})
	return id, nil
}

func (r *Recorder) RenderTargetTexture(target AssetID) AssetID {
	if target == "" {
		return ""
	}
	return target + "#color"
}

func (r *Recorder) DeleteRenderTarget(target AssetID) {
	delete(r.targets, target)
	r.record(Command{Op: OpDeleteRenderTarget, Asset: target})
}

func (r *Recorder) SetRenderTarget(target AssetID) {
	r.target = target
	r.record(Command{Op: OpSetRenderTarget, Asset: target})
}

func (r *Recorder) SetViewport(v Viewport) {
	r.viewport = v
	r.record(Command{Op: OpSetViewport, Viewport: v})
}

func (r *Recorder) Clear(color [4]float32, depth bool) {
	r.record(Command{Op: OpClear, Values: color[:], Flag: depth})
}

func (r *Recorder) Draw(call DrawCall) {
	r.record(Command{Op: OpDraw, Program: r.program, Asset: r.target, Draw: call})

	tex := make(map[int]AssetID, len(r.bound))
	for k, v := range r.bound {
		tex[k] = v
	}
	r.Draws = append(r.Draws, DrawRecord{
		Call:       call,
		Program:    r.program,
		Target:     r.target,
		Viewport:   r.viewport,
		Blend:      r.blend,
		DepthTest:  r.depthTest,
		DepthWrite: r.depthWrite,
		ColorWrite: r.colorWrite,
		Cull:       r.cull,
		Textures:   tex,
	})
}
