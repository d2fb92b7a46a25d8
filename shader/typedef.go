package shader

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ArrayCapacity is the fixed GLSL array size backing every dynamic
// collection. Bound collections longer than this are truncated.
const ArrayCapacity = 4

// FieldKind is the GLSL type class of one struct field.
type FieldKind uint8

const (
	FloatField FieldKind = iota
	IntField
	UintField
	Vec2Field
	Vec3Field
	Vec4Field
	Mat3Field
	Mat4Field
	Sampler2DField
	SamplerCubeField
	StructField // Field.Type names a registered struct
	ArrayField  // dynamic collection of Field.Type
)

var glslNames = [...]string{
	FloatField:       "float",
	IntField:         "int",
	UintField:        "uint",
	Vec2Field:        "vec2",
	Vec3Field:        "vec3",
	Vec4Field:        "vec4",
	Mat3Field:        "mat3",
	Mat4Field:        "mat4",
	Sampler2DField:   "sampler2D",
	SamplerCubeField: "samplerCube",
}

func (k FieldKind) String() string {
	switch k {
	case StructField:
		return "struct"
	case ArrayField:
		return "array"
	}
	if int(k) < len(glslNames) {
		return glslNames[k]
	}
	return fmt.Sprintf("FieldKind(%d)", k)
}

// Field is one named member of a reflected type.
type Field struct {
	Name string
	Kind FieldKind
	Type string // element or struct type name for StructField and ArrayField
}

// TypeDef describes a host type that shaders can reference by name.
// Field order is the declaration order on both sides.
type TypeDef struct {
	Name   string
	Fields []Field
	// Block wraps the declaration in layout(std140) uniform.
	Block bool
}

// LenName is the companion length uniform of a dynamic collection.
func LenName(name string) string { return name + "_len" }

func (f Field) glsl() string {
	switch f.Kind {
	case StructField:
		return fmt.Sprintf("%s %s;", f.Type, f.Name)
	case ArrayField:
		return fmt.Sprintf("%s %s[%d];\n  int %s;", f.Type, f.Name, ArrayCapacity, LenName(f.Name))
	default:
		return fmt.Sprintf("%s %s;", f.Kind, f.Name)
	}
}

// GLSL returns the declaration text for the type.
func (t TypeDef) GLSL() string {
	var b strings.Builder
	if t.Block {
		fmt.Fprintf(&b, "layout(std140) uniform %s {\n", t.Name)
	} else {
		fmt.Fprintf(&b, "struct %s {\n", t.Name)
	}
	for _, f := range t.Fields {
		b.WriteString("  ")
		b.WriteString(f.glsl())
		b.WriteByte('\n')
	}
	b.WriteString("};")
	return b.String()
}

// Matches reports whether v is a struct value whose members follow the
// declared field order.
func (t TypeDef) Matches(v UniformValue) error {
	if v.Kind != KindStruct {
		return fmt.Errorf("%s: value is %s, not a struct", t.Name, v.Kind)
	}
	if len(v.fields) != len(t.Fields) {
		return fmt.Errorf("%s: value has %d members, type has %d", t.Name, len(v.fields), len(t.Fields))
	}
	for i, f := range t.Fields {
		if v.fields[i].Name != f.Name {
			return fmt.Errorf("%s: member %d is %q, want %q", t.Name, i, v.fields[i].Name, f.Name)
		}
	}
	return nil
}

var (
	ErrDuplicateType = errors.New("type already registered")
	ErrUnknownType   = errors.New("unknown type")
)

type arrayDecl struct {
	elem string
	name string
}

// Registry is the table of reflected types. Declarations are generated
// once and cached; registering a new type invalidates the cache.
type Registry struct {
	mu       sync.Mutex
	types    []TypeDef
	byName   map[string]int
	arrays   []arrayDecl
	preamble map[string]string
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]int{}, preamble: map[string]string{}}
}

// Register adds def after validating it against what is already known.
func (r *Registry) Register(def TypeDef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.Name == "" || len(def.Fields) == 0 {
		return fmt.Errorf("register %q: type needs a name and at least one field", def.Name)
	}
	if _, ok := r.byName[def.Name]; ok {
		return fmt.Errorf("register %q: %w", def.Name, ErrDuplicateType)
	}
	seen := map[string]bool{}
	for _, f := range def.Fields {
		if seen[f.Name] {
			return fmt.Errorf("register %q: duplicate field %q", def.Name, f.Name)
		}
		seen[f.Name] = true
		switch f.Kind {
		case StructField, ArrayField:
			if _, ok := r.byName[f.Type]; !ok {
				return fmt.Errorf("register %q: field %q: %w %q", def.Name, f.Name, ErrUnknownType, f.Type)
			}
			if def.Block && f.Kind == ArrayField {
				return fmt.Errorf("register %q: block field %q cannot be a dynamic collection", def.Name, f.Name)
			}
		case Sampler2DField, SamplerCubeField:
			if def.Block {
				return fmt.Errorf("register %q: block field %q cannot be a sampler", def.Name, f.Name)
			}
		}
	}
	r.byName[def.Name] = len(r.types)
	r.types = append(r.types, def)
	clear(r.preamble)
	return nil
}

// MustRegister panics on the first registration error. Meant for
// package-level tables.
func (r *Registry) MustRegister(defs ...TypeDef) *Registry {
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// ArrayDecl adds a top-level uniform collection of a registered type:
// `uniform T name[K]; uniform int name_len;`.
func (r *Registry) ArrayDecl(elem, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[elem]; !ok {
		return fmt.Errorf("declare %q: %w %q", name, ErrUnknownType, elem)
	}
	r.arrays = append(r.arrays, arrayDecl{elem: elem, name: name})
	clear(r.preamble)
	return nil
}

func (r *Registry) Lookup(name string) (TypeDef, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byName[name]
	if !ok {
		return TypeDef{}, false
	}
	return r.types[i], true
}

// Preamble is header followed by every registered declaration, in
// registration order.
func (r *Registry) Preamble(header string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.preamble[header]; ok {
		return p
	}
	parts := make([]string, 0, 1+len(r.types)+len(r.arrays))
	parts = append(parts, header)
	for _, t := range r.types {
		parts = append(parts, t.GLSL())
	}
	for _, a := range r.arrays {
		parts = append(parts, fmt.Sprintf("uniform %s %s[%d];\nuniform int %s;",
			a.elem, a.name, ArrayCapacity, LenName(a.name)))
	}
	p := strings.Join(parts, "\n") + "\n"
	r.preamble[header] = p
	return p
}
