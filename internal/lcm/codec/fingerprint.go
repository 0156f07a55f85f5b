package codec

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// Wire type names of the LCM primitives, as they enter the structural hash.
const (
	TypeBoolean = "boolean"
	TypeByte    = "byte"
	TypeInt8    = "int8_t"
	TypeInt16   = "int16_t"
	TypeInt32   = "int32_t"
	TypeInt64   = "int64_t"
	TypeFloat   = "float"
	TypeDouble  = "double"
	TypeString  = "string"
)

const hashSeed int64 = 0x12345678

func hashUpdate(v int64, c int8) int64 {
	return ((v << 8) ^ (v >> 55)) + int64(c)
}

func hashStringUpdate(v int64, s string) int64 {
	v = hashUpdate(v, int8(len(s)))
	for i := 0; i < len(s); i++ {
		v = hashUpdate(v, int8(s[i]))
	}
	return v
}

func rotl1(v int64) int64 {
	return (v << 1) + ((v >> 63) & 1)
}

// Dim is one array dimension. Size is the element count of a fixed array, or
// the name of the member holding the length of a variable one.
type Dim struct {
	Variable bool
	Size     string
}

// Field is a struct member. Exactly one of Type and Nested is set.
type Field struct {
	Name   string
	Type   string
	Nested *Schema
	Dims   []Dim
}

// Schema is the structural description of a message type. Two types with the
// same member names, primitive kinds, dimensions and nesting share a
// fingerprint; the type's own name does not take part.
type Schema struct {
	Name   string
	Fields []Field
	// Encoding, when set, is folded into the hash so that an alternative
	// payload encoding of the same layout never decodes as the native one.
	Encoding string
}

// Fingerprint returns the type fingerprint written in front of every encoded message.
func (s *Schema) Fingerprint() int64 {
	return s.fingerprint(nil)
}

func (s *Schema) baseHash() int64 {
	v := hashSeed
	if s.Encoding != "" {
		v = hashStringUpdate(v, s.Encoding)
	}
	for _, f := range s.Fields {
		v = hashStringUpdate(v, f.Name)
		if f.Nested == nil {
			v = hashStringUpdate(v, f.Type)
		}
		v = hashUpdate(v, int8(len(f.Dims)))
		for _, d := range f.Dims {
			mode := int8(0)
			if d.Variable {
				mode = 1
			}
			v = hashUpdate(v, mode)
			v = hashStringUpdate(v, d.Size)
		}
	}
	return v
}

func (s *Schema) fingerprint(parents []*Schema) int64 {
	for _, p := range parents {
		if p == s {
			return 0
		}
	}
	parents = append(parents, s)
	v := s.baseHash()
	for _, f := range s.Fields {
		if f.Nested != nil {
			v += f.Nested.fingerprint(parents)
		}
	}
	return rotl1(v)
}

// PrimitiveFingerprint is the reserved fingerprint of a bare primitive message
// carrying a single value of the named wire type.
func PrimitiveFingerprint(typeName string) int64 {
	return rotl1(hashStringUpdate(hashSeed, typeName))
}

var schemaCache sync.Map // reflect.Type -> *Schema

// SchemaOf derives a schema from a Go struct type. Member names come from the
// `lcm:"name"` tag or the snake_case field name; `lcm:"-"` and unexported
// fields are skipped. Arrays are fixed dimensions, slices variable ones.
// Kinds without an LCM equivalent are hashed by their Go type string.
func SchemaOf(t reflect.Type) *Schema {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if s, ok := schemaCache.Load(t); ok {
		return s.(*Schema)
	}
	s := schemaOf(t, make(map[reflect.Type]*Schema))
	actual, _ := schemaCache.LoadOrStore(t, s)
	return actual.(*Schema)
}

func schemaOf(t reflect.Type, seen map[reflect.Type]*Schema) *Schema {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if s, ok := seen[t]; ok {
		return s
	}
	s := &Schema{Name: t.Name()}
	seen[t] = s
	if t.Kind() != reflect.Struct {
		s.Fields = []Field{fieldOf("value", t, seen)}
		return s
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Tag.Get("lcm")
		if name == "-" {
			continue
		}
		if name == "" {
			name = snakeCase(sf.Name)
		}
		s.Fields = append(s.Fields, fieldOf(name, sf.Type, seen))
	}
	return s
}

func fieldOf(name string, t reflect.Type, seen map[reflect.Type]*Schema) Field {
	f := Field{Name: name}
	for {
		switch t.Kind() {
		case reflect.Pointer:
			t = t.Elem()
			continue
		case reflect.Array:
			f.Dims = append(f.Dims, Dim{Size: strconv.Itoa(t.Len())})
			t = t.Elem()
			continue
		case reflect.Slice:
			f.Dims = append(f.Dims, Dim{Variable: true, Size: name + "_len"})
			t = t.Elem()
			continue
		}
		break
	}
	switch t.Kind() {
	case reflect.Bool:
		f.Type = TypeBoolean
	case reflect.Uint8:
		f.Type = TypeByte
	case reflect.Int8:
		f.Type = TypeInt8
	case reflect.Int16:
		f.Type = TypeInt16
	case reflect.Int32:
		f.Type = TypeInt32
	case reflect.Int64, reflect.Int:
		f.Type = TypeInt64
	case reflect.Float32:
		f.Type = TypeFloat
	case reflect.Float64:
		f.Type = TypeDouble
	case reflect.String:
		f.Type = TypeString
	case reflect.Struct:
		f.Nested = schemaOf(t, seen)
	default:
		f.Type = t.String()
	}
	return f
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
