package program

import (
	"sort"

	"github.com/gekko3d/forward/logging"
	"github.com/gekko3d/forward/rt/core"
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Compiler is the part of gpu.Device the cache needs.
type Compiler interface {
	UniformSetter
	CompileProgram(src gpu.ProgramSource) (gpu.ProgramHandle, []gpu.UniformInfo, error)
	DeleteProgram(p gpu.ProgramHandle)
}

// Program is a cache entry. A program whose compile failed carries
// Diagnostics and a zero Handle; it is cached like any other so the same
// key is not recompiled every frame.
type Program struct {
	Key         string
	ID          int
	Handle      gpu.ProgramHandle
	Label       string
	Uniforms    *UniformCache
	Info        []gpu.UniformInfo
	Diagnostics *core.Diagnostics

	usedTimes int
}

// Valid reports whether the program compiled.
func (p *Program) Valid() bool { return p != nil && p.Diagnostics == nil }

func (p *Program) UsedTimes() int { return p.usedTimes }

// Cache holds one program per key, reference counted by the materials
// using it.
type Cache struct {
	// CheckErrors logs failed compiles. Diagnostics are recorded either way.
	CheckErrors bool

	dev      Compiler
	lib      Library
	log      logging.Logger
	programs map[string]*Program
	nextID   int
}

func NewCache(dev Compiler, lib Library, log logging.Logger) *Cache {
	return &Cache{
		CheckErrors: true,
		dev:         dev,
		lib:         lib,
		log:         logging.OrNop(log),
		programs:    make(map[string]*Program),
	}
}

func (c *Cache) SetLogger(log logging.Logger) { c.log = logging.OrNop(log) }

// SetLibrary swaps the source library. Programs already compiled are kept.
func (c *Cache) SetLibrary(lib Library) { c.lib = lib }

// Acquire returns the program for params, compiling it on a miss. The
// material is only consulted for its shader text and custom uniforms.
func (c *Cache) Acquire(params *Parameters, m *core.Material) *Program {
	key := params.Key()
	if p, ok := c.programs[key]; ok {
		p.usedTimes++
		return p
	}

	c.nextID++
	p := &Program{
		Key:       key,
		ID:        c.nextID,
		Label:     params.Kind.String() + "-" + uuid.NewString()[:8],
		usedTimes: 1,
	}
	c.compile(p, params, m)
	c.programs[key] = p
	return p
}

func (c *Cache) compile(p *Program, params *Parameters, m *core.Material) {
	if c.lib == nil {
		p.Diagnostics = &core.Diagnostics{Stage: "source", Err: ErrNoShader}
		c.report(p)
		return
	}
	src, err := c.lib.Source(params, m)
	if err != nil {
		p.Diagnostics = &core.Diagnostics{Stage: "source", Err: errors.Wrapf(err, "program %s", p.Label)}
		c.report(p)
		return
	}
	src.Label = p.Label

	h, info, err := c.dev.CompileProgram(src)
	if err != nil {
		d := &core.Diagnostics{Stage: "compile", Err: errors.Wrapf(err, "program %s", p.Label)}
		var ce *gpu.CompileError
		if errors.As(err, &ce) {
			d.Stage = ce.Stage
			d.Log = ce.Log
		}
		p.Diagnostics = d
		c.report(p)
		return
	}
	p.Handle = h
	p.Info = info
	p.Uniforms = NewUniformCache(c.dev, h, info)
	c.log.Debugf("compiled program %s (%d uniforms)", p.Label, len(info))
}

func (c *Cache) report(p *Program) {
	if c.CheckErrors {
		c.log.Errorf("program %s failed: %v", p.Label, p.Diagnostics)
	}
}

// Release drops one use of p. At zero uses the device program is deleted
// and the entry forgotten.
func (c *Cache) Release(p *Program) {
	if p == nil || p.usedTimes == 0 {
		return
	}
	p.usedTimes--
	if p.usedTimes > 0 {
		return
	}
	c.destroy(p)
}

func (c *Cache) destroy(p *Program) {
	if p.Handle != 0 {
		c.dev.DeleteProgram(p.Handle)
	}
	if c.programs[p.Key] == p {
		delete(c.programs, p.Key)
	}
}

func (c *Cache) Len() int { return len(c.programs) }

func (c *Cache) Get(key string) *Program { return c.programs[key] }

// Programs returns the live entries in creation order.
func (c *Cache) Programs() []*Program {
	out := make([]*Program, 0, len(c.programs))
	for _, p := range c.programs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Dispose deletes every program regardless of use counts.
func (c *Cache) Dispose() {
	for _, p := range c.Programs() {
		p.usedTimes = 0
		c.destroy(p)
	}
}
