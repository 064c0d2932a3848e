package shaders

import (
	"fmt"
	"strings"

	"github.com/gekko3d/forward/rt/gpu"
	"github.com/pkg/errors"
)

var ErrDirective = errors.New("shaders: bad directive")

// Preprocess resolves #ifdef, #ifndef, #if, #else and #endif against
// defines and substitutes valued defines (NAME=VALUE) in the remaining
// lines. "#if NAME" holds when NAME is defined and not "0".
func Preprocess(text string, defines []string) (string, error) {
	values := make(map[string]string, len(defines))
	for _, d := range defines {
		name, value, _ := strings.Cut(d, "=")
		values[name] = value
	}

	type frame struct {
		parent bool // the enclosing block is emitted
		taken  bool
		inElse bool
	}
	var stack []frame
	emit := true

	var out strings.Builder
	out.Grow(len(text))
	for n, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			if emit {
				out.WriteString(substitute(line, values))
				out.WriteByte('\n')
			}
			continue
		}

		directive, arg, _ := strings.Cut(trimmed, " ")
		arg = strings.TrimSpace(arg)
		switch directive {
		case "#ifdef", "#ifndef", "#if":
			if arg == "" {
				return "", errors.Wrapf(ErrDirective, "line %d: %s without a name", n+1, directive)
			}
			v, ok := values[arg]
			var cond bool
			switch directive {
			case "#ifdef":
				cond = ok
			case "#ifndef":
				cond = !ok
			default:
				cond = ok && v != "0"
			}
			stack = append(stack, frame{parent: emit, taken: cond})
			emit = emit && cond
		case "#else":
			if len(stack) == 0 || stack[len(stack)-1].inElse {
				return "", errors.Wrapf(ErrDirective, "line %d: unexpected #else", n+1)
			}
			top := &stack[len(stack)-1]
			top.inElse = true
			emit = top.parent && !top.taken
		case "#endif":
			if len(stack) == 0 {
				return "", errors.Wrapf(ErrDirective, "line %d: unexpected #endif", n+1)
			}
			emit = stack[len(stack)-1].parent
			stack = stack[:len(stack)-1]
		default:
			return "", errors.Wrapf(ErrDirective, "line %d: unknown %s", n+1, directive)
		}
	}
	if len(stack) > 0 {
		return "", errors.Wrapf(ErrDirective, "%d unterminated blocks", len(stack))
	}
	return out.String(), nil
}

// substitute replaces whole identifiers that name a valued define.
func substitute(line string, values map[string]string) string {
	var b strings.Builder
	i := 0
	for i < len(line) {
		c := line[i]
		if !isIdentStart(c) {
			b.WriteByte(c)
			i++
			continue
		}
		j := i + 1
		for j < len(line) && isIdent(line[j]) {
			j++
		}
		word := line[i:j]
		if v, ok := values[word]; ok && v != "" {
			b.WriteString(v)
		} else {
			b.WriteString(word)
		}
		i = j
	}
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdent(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// shadowSamplerKinds are the sampler name prefixes that get a lookup helper.
var shadowSamplerKinds = []string{"directional", "spot", "point"}

// Prelude declares the uniform block, texture bindings and vertex inputs
// of a program in the layout gpu.UniformLayout describes. Uniform u is
// group 0; sampler i binds its texture at group 1 binding 2i and its
// sampler at 2i+1.
func Prelude(uniforms []gpu.UniformDecl, attributes []gpu.AttributeDecl) string {
	var b strings.Builder
	slots, samplers, _ := gpu.UniformLayout(uniforms)

	b.WriteString("struct Uniforms {\n")
	if len(slots) == 0 {
		b.WriteString("\t_pad: vec4<f32>,\n")
	}
	for _, s := range slots {
		fmt.Fprintf(&b, "\t%s: array<vec4<f32>, %d>,\n", s.Name, s.Vec4s)
	}
	b.WriteString("};\n@group(0) @binding(0) var<uniform> u: Uniforms;\n\n")

	for i, name := range samplers {
		fmt.Fprintf(&b, "@group(1) @binding(%d) var t_%s: texture_2d<f32>;\n", 2*i, name)
		fmt.Fprintf(&b, "@group(1) @binding(%d) var s_%s: sampler;\n", 2*i+1, name)
	}
	if len(samplers) > 0 {
		b.WriteByte('\n')
	}

	b.WriteString("struct VSIn {\n")
	loc := 0
	var morphs []string
	for _, a := range attributes {
		if a.ItemSize == 16 {
			for c := 0; c < 4; c++ {
				fmt.Fprintf(&b, "\t@location(%d) %s%d: vec4<f32>,\n", loc, a.Name, c)
				loc++
			}
			continue
		}
		fmt.Fprintf(&b, "\t@location(%d) %s: %s,\n", loc, a.Name, vecType(a.ItemSize))
		loc++
		if strings.HasPrefix(a.Name, "morphTarget") {
			morphs = append(morphs, a.Name)
		}
	}
	b.WriteString("};\n")

	if len(morphs) > 0 {
		b.WriteString("\nfn applyMorph(in: VSIn, p: vec3<f32>) -> vec3<f32> {\n\tvar r = p;\n")
		for i, name := range morphs {
			fmt.Fprintf(&b, "\tr += in.%s * u.morphTargetInfluences[%d].%c;\n", name, i/4, "xyzw"[i%4])
		}
		b.WriteString("\treturn r;\n}\n")
	}

	for _, kind := range shadowSamplerKinds {
		prefix := kind + "ShadowMap"
		var names []string
		for _, s := range samplers {
			if strings.HasPrefix(s, prefix) {
				names = append(names, s)
			}
		}
		if len(names) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\nfn %sDepth(i: i32, uv: vec2<f32>) -> f32 {\n\tswitch i {\n", prefix)
		for i, s := range names {
			fmt.Fprintf(&b, "\t\tcase %d: { return textureSampleLevel(t_%s, s_%s, uv, 0.0).r; }\n", i, s, s)
		}
		b.WriteString("\t\tdefault: { return 1.0; }\n\t}\n}\n")
	}
	return b.String()
}

func vecType(n int) string {
	switch n {
	case 1:
		return "f32"
	case 2:
		return "vec2<f32>"
	case 3:
		return "vec3<f32>"
	}
	return "vec4<f32>"
}
