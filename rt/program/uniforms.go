package program

import (
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// UniformSetter is the part of gpu.Device the uniform cache talks to.
type UniformSetter interface {
	SetUniform(p gpu.ProgramHandle, location int, value []float32)
	SetUniformInt(p gpu.ProgramHandle, location int, value int32)
}

type slot struct {
	info   gpu.UniformInfo
	values []float32
	ival   int32
	set    bool
}

// UniformCache remembers the last value uploaded to every uniform of one
// program and skips uploads of unchanged values.
type UniformCache struct {
	// Uploads and Skipped count calls since the last ResetStats.
	Uploads int
	Skipped int

	dev     UniformSetter
	program gpu.ProgramHandle
	slots   map[string]*slot
}

func NewUniformCache(dev UniformSetter, program gpu.ProgramHandle, infos []gpu.UniformInfo) *UniformCache {
	c := &UniformCache{
		dev:     dev,
		program: program,
		slots:   make(map[string]*slot, len(infos)),
	}
	for _, info := range infos {
		c.slots[info.Name] = &slot{info: info}
	}
	return c
}

// Has reports whether the program declares the uniform.
func (c *UniformCache) Has(name string) bool {
	_, ok := c.slots[name]
	return ok
}

// Len is the number of uniforms the program declares.
func (c *UniformCache) Len() int { return len(c.slots) }

func (c *UniformCache) ResetStats() {
	c.Uploads = 0
	c.Skipped = 0
}

// SetFloats uploads v unless it equals the cached value component-wise.
// Values longer than the declared size are truncated. Unknown names are
// ignored and report false.
func (c *UniformCache) SetFloats(name string, v []float32) bool {
	s, ok := c.slots[name]
	if !ok {
		return false
	}
	if s.info.Size > 0 && len(v) > s.info.Size {
		v = v[:s.info.Size]
	}
	if s.set && equal(s.values, v) {
		c.Skipped++
		return true
	}
	s.values = append(s.values[:0], v...)
	s.set = true
	c.Uploads++
	c.dev.SetUniform(c.program, s.info.Location, s.values)
	return true
}

// SetInt sets an integer uniform, usually a sampler's texture unit.
func (c *UniformCache) SetInt(name string, v int32) bool {
	s, ok := c.slots[name]
	if !ok {
		return false
	}
	if s.set && s.ival == v {
		c.Skipped++
		return true
	}
	s.ival = v
	s.set = true
	c.Uploads++
	c.dev.SetUniformInt(c.program, s.info.Location, v)
	return true
}

func (c *UniformCache) SetFloat(name string, v float32) bool {
	return c.SetFloats(name, []float32{v})
}

func (c *UniformCache) SetVec2(name string, v mgl32.Vec2) bool { return c.SetFloats(name, v[:]) }
func (c *UniformCache) SetVec3(name string, v mgl32.Vec3) bool { return c.SetFloats(name, v[:]) }
func (c *UniformCache) SetVec4(name string, v mgl32.Vec4) bool { return c.SetFloats(name, v[:]) }
func (c *UniformCache) SetMat3(name string, m mgl32.Mat3) bool { return c.SetFloats(name, m[:]) }
func (c *UniformCache) SetMat4(name string, m mgl32.Mat4) bool { return c.SetFloats(name, m[:]) }

func equal(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
