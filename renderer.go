package forward

import (
	"github.com/gekko3d/forward/logging"
	"github.com/gekko3d/forward/rt/core"
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/gekko3d/forward/rt/lights"
	"github.com/gekko3d/forward/rt/program"
	"github.com/gekko3d/forward/rt/renderlist"
	"github.com/gekko3d/forward/rt/shaders"
	"github.com/gekko3d/forward/rt/state"
	"github.com/pkg/errors"
)

// Info holds statistics of the last rendered frame plus resource counts.
type Info struct {
	Frame int

	DrawCalls   int
	ShadowDraws int
	Triangles   int
	Lines       int
	Points      int
	Culled      int
	Skipped     int

	Programs   int
	Geometries int
	Textures   int

	StateChanges    int
	UniformUploads  int
	UniformsSkipped int
}

var errMissingPosition = errors.New("forward: geometry has no position attribute")

type pass uint8

const (
	passMain pass = iota
	passTransmission
	passShadow
)

// Renderer runs frames against one device. It owns every cache the frame
// needs; nothing is global. Not safe for concurrent use.
type Renderer struct {
	cfg Config
	dev gpu.Device
	log logging.Logger

	programs      *program.Cache
	state         *state.Tracker
	builder       *renderlist.Builder
	shadowBuilder *renderlist.Builder
	list          *renderlist.List
	shadowList    *renderlist.List
	acc           *lights.Accumulator
	lights        *lights.State

	materials      map[*core.Material]*materialProperties
	geometries     map[*core.Geometry]*geometryProperties
	textures       map[*core.Texture]*textureProperties
	instances      map[*core.Renderable]*instanceProperties
	shadowTargets  map[*core.LightShadow]*renderTarget
	depthMaterials map[depthKey]*core.Material
	transmission   renderTarget

	opaqueSort      renderlist.Less
	transparentSort renderlist.Less

	target gpu.AssetID
	pass   pass
	// shadowLight is the light whose map is being drawn in the shadow pass.
	shadowLight *core.Node
	clip        clipping
	info        Info
}

// New validates cfg and returns a renderer drawing through dev.
func New(dev gpu.Device, cfg Config) (*Renderer, error) {
	if dev == nil {
		return nil, errors.New("forward: nil device")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logging.NewNopLogger()
	if cfg.Debug.Logging {
		log = logging.NewDefaultLogger("forward", true)
	}
	r := &Renderer{
		cfg:            cfg,
		dev:            dev,
		log:            log,
		programs:       program.NewCache(dev, shaders.New(), log),
		state:          state.New(dev),
		builder:        renderlist.NewBuilder(log),
		shadowBuilder:  renderlist.NewBuilder(log),
		list:           renderlist.New(),
		shadowList:     renderlist.New(),
		acc:            lights.NewAccumulator(),
		lights:         lights.NewState(),
		materials:      make(map[*core.Material]*materialProperties),
		geometries:     make(map[*core.Geometry]*geometryProperties),
		textures:       make(map[*core.Texture]*textureProperties),
		instances:      make(map[*core.Renderable]*instanceProperties),
		shadowTargets:  make(map[*core.LightShadow]*renderTarget),
		depthMaterials: make(map[depthKey]*core.Material),
	}
	r.programs.CheckErrors = cfg.Debug.CheckShaderErrors
	return r, nil
}

func (r *Renderer) Config() Config { return r.cfg }

// SetLibrary replaces the built-in WGSL library for programs compiled from
// now on.
func (r *Renderer) SetLibrary(lib program.Library) { r.programs.SetLibrary(lib) }

func (r *Renderer) SetSize(width, height int) {
	r.cfg.Width, r.cfg.Height = width, height
}

// SetRenderTarget redirects the main pass. The empty id is the default
// framebuffer.
func (r *Renderer) SetRenderTarget(target gpu.AssetID) { r.target = target }

func (r *Renderer) SetShadowMapEnabled(on bool) { r.cfg.ShadowMap.Enabled = on }

// SetOpaqueSort overrides the opaque comparator; nil restores the default.
func (r *Renderer) SetOpaqueSort(less renderlist.Less) { r.opaqueSort = less }

// SetTransparentSort overrides the transparent and transmissive
// comparator; nil restores the default.
func (r *Renderer) SetTransparentSort(less renderlist.Less) { r.transparentSort = less }

// Programs exposes the program cache for inspection.
func (r *Renderer) Programs() *program.Cache { return r.programs }

// Lights is the lighting environment of the last frame.
func (r *Renderer) Lights() *lights.State { return r.lights }

func (r *Renderer) Info() Info { return r.info }

// Render draws one frame of scene as seen by camera.
func (r *Renderer) Render(scene *core.Scene, camera *core.Camera) error {
	if err := r.dev.BeginFrame(); err != nil {
		return errors.Wrap(err, "begin frame")
	}
	defer r.dev.EndFrame()

	r.beginInfo()
	scene.UpdateWorldMatrices()
	camera.UpdateView()

	list := r.BuildRenderList(scene, camera)
	r.RenderShadows(r.acc.Shadows(), scene, camera)
	r.setupLights(camera)
	r.DrawList(list, scene, camera)

	r.endInfo()
	return nil
}

// BuildRenderList collects and sorts the visible items of scene. World
// matrices and the camera view must be current. The list is reused by the
// next call.
func (r *Renderer) BuildRenderList(scene *core.Scene, camera *core.Camera) *renderlist.List {
	r.list.Init()
	r.acc.Init()
	r.builder.Build(scene.Root, camera, r.list, r.acc, renderlist.Options{SortObjects: r.cfg.SortObjects})
	r.list.Finish()
	if r.cfg.SortObjects {
		r.list.Sort(r.opaqueSort, r.transparentSort)
	}
	r.info.Culled = r.builder.Culled
	return r.list
}

func (r *Renderer) setupLights(camera *core.Camera) {
	r.lights.ShadowsEnabled = r.cfg.ShadowMap.Enabled
	r.lights.Setup(r.acc)
	r.lights.SetupView(camera.View)
}

// DrawList submits a built list: clear, the optional transmission pre-pass,
// then the opaque, transmissive and transparent buckets in that order.
// Lights must have been set up for this frame.
func (r *Renderer) DrawList(list *renderlist.List, scene *core.Scene, camera *core.Camera) {
	r.pass = passMain
	r.state.SetRenderTarget(r.target)
	r.state.SetViewport(gpu.Viewport{Width: r.cfg.Width, Height: r.cfg.Height})
	if r.cfg.AutoClear {
		r.dev.Clear(r.clearColor(scene), true)
	}

	if len(list.Transmissive) > 0 {
		r.renderTransmissionPass(list, scene, camera)
	}

	r.drawBucket(list, renderlist.Opaque, scene, camera)
	r.drawBucket(list, renderlist.Transmissive, scene, camera)
	r.drawBucket(list, renderlist.Transparent, scene, camera)
}

func (r *Renderer) clearColor(scene *core.Scene) [4]float32 {
	if scene.Background != nil {
		return *scene.Background
	}
	return r.cfg.ClearColor
}

// Compile builds every program the scene needs without drawing. It returns
// the first compile failure, if any.
func (r *Renderer) Compile(scene *core.Scene, camera *core.Camera) error {
	scene.UpdateWorldMatrices()
	camera.UpdateView()

	r.acc.Init()
	scene.Root.TraverseVisible(func(n *core.Node) {
		if n.Light != nil && n.Layers.Test(camera.Layers) {
			r.acc.Push(n)
			if n.CastShadow && n.Light.CastsShadow() {
				r.acc.PushShadow(n)
			}
		}
	})
	r.setupLights(camera)

	var first error
	failed := 0
	r.pass = passMain
	scene.Root.TraverseVisible(func(n *core.Node) {
		rend := n.Renderable
		if rend == nil || rend.Geometry == nil {
			return
		}
		mats := rend.Materials
		if len(mats) == 0 {
			mats = []*core.Material{rend.Material}
		}
		for _, m := range mats {
			if m == nil {
				continue
			}
			if scene.OverrideMaterial != nil {
				m = scene.OverrideMaterial
			}
			p := r.programFor(m, n, scene, camera)
			if !p.Valid() {
				failed++
				if first == nil {
					first = p.Diagnostics
				}
			}
		}
	})
	if first != nil {
		return errors.Wrapf(first, "%d programs failed", failed)
	}
	return nil
}

// Dispose releases every program, upload and render target the renderer
// holds. The renderer may be used again afterwards.
func (r *Renderer) Dispose() {
	for m := range r.materials {
		r.forgetMaterial(m)
	}
	for _, dm := range r.depthMaterials {
		dm.Dispose()
	}
	clear(r.depthMaterials)
	r.programs.Dispose()

	for g, gp := range r.geometries {
		r.dev.ReleaseGeometry(gp.id)
		delete(r.geometries, g)
	}
	for t, tp := range r.textures {
		if tp.id != "" {
			r.dev.ReleaseTexture(tp.id)
		}
		delete(r.textures, t)
	}
	for rend, ip := range r.instances {
		r.dev.ReleaseGeometry(ip.id)
		delete(r.instances, rend)
	}
	for sh, t := range r.shadowTargets {
		t.release(r.dev)
		delete(r.shadowTargets, sh)
	}
	r.transmission.release(r.dev)
	r.state.Reset()
}

func (r *Renderer) beginInfo() {
	frame := r.info.Frame + 1
	r.info = Info{Frame: frame}
	r.state.ResetStats()
	for _, p := range r.programs.Programs() {
		if p.Uniforms != nil {
			p.Uniforms.ResetStats()
		}
	}
}

func (r *Renderer) endInfo() {
	r.info.Programs = r.programs.Len()
	r.info.Geometries = len(r.geometries)
	r.info.Textures = len(r.textures)
	r.info.StateChanges = r.state.Changes
	for _, p := range r.programs.Programs() {
		if p.Uniforms != nil {
			r.info.UniformUploads += p.Uniforms.Uploads
			r.info.UniformsSkipped += p.Uniforms.Skipped
		}
	}
}
