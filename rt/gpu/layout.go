package gpu

// UniformSlot places one non-sampler uniform in a program's uniform block.
type UniformSlot struct {
	Name   string
	Offset int // bytes
	Vec4s  int
	Size   int // floats
}

// UniformLayout packs decls into one block of vec4 rows. Every uniform
// starts on a row and its floats are stored contiguously, so a mat3 takes
// three rows with three floats of padding at the end. Samplers are listed
// separately in declaration order.
func UniformLayout(decls []UniformDecl) (slots []UniformSlot, samplers []string, size int) {
	for _, d := range decls {
		if d.Sampler {
			samplers = append(samplers, d.Name)
			continue
		}
		rows := (d.Size + 3) / 4
		slots = append(slots, UniformSlot{Name: d.Name, Offset: size, Vec4s: rows, Size: d.Size})
		size += rows * 16
	}
	return slots, samplers, size
}
