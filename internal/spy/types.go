package spy

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"LCM-Bus/internal/exlcm"
	"LCM-Bus/internal/lcm/codec"
)

var ErrUnknownType = errors.New("unknown message type")

type typeEntry struct {
	name        string
	fingerprint int64
	decode      func(data []byte) (any, error)
	fromJSON    func(raw json.RawMessage) (codec.Encoder, error)
}

// TypeRegistry maps fingerprints to known message types so that observed
// traffic can be named and decoded.
type TypeRegistry struct {
	mu     sync.RWMutex
	byFP   map[int64]*typeEntry
	byName map[string]*typeEntry
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		byFP:   make(map[int64]*typeEntry),
		byName: make(map[string]*typeEntry),
	}
}

// Register adds T under name. A later registration with the same name or
// fingerprint replaces the earlier one.
func Register[T any, PT interface {
	*T
	codec.Message
}](r *TypeRegistry, name string) {
	var zero T
	e := &typeEntry{
		name:        name,
		fingerprint: PT(&zero).Fingerprint(),
		decode: func(data []byte) (any, error) {
			var v T
			if err := codec.DecodeWithHash(data, PT(&v)); err != nil {
				return nil, err
			}
			return v, nil
		},
		fromJSON: func(raw json.RawMessage) (codec.Encoder, error) {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			return PT(&v), nil
		},
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byFP[e.fingerprint] = e
	r.byName[name] = e
}

// DefaultTypes knows the primitive messages and the exlcm examples.
func DefaultTypes() *TypeRegistry {
	r := NewTypeRegistry()
	Register[codec.String](r, "string")
	Register[codec.Bool](r, "boolean")
	Register[codec.Byte](r, "byte")
	Register[codec.Int8](r, "int8_t")
	Register[codec.Int16](r, "int16_t")
	Register[codec.Int32](r, "int32_t")
	Register[codec.Int64](r, "int64_t")
	Register[codec.Float32](r, "float")
	Register[codec.Float64](r, "double")
	Register[codec.Bytes](r, "byte[]")
	Register[exlcm.ExampleT](r, "exlcm.example_t")
	Register[exlcm.PointT](r, "exlcm.point_t")
	Register[exlcm.PathT](r, "exlcm.path_t")
	return r
}

func (r *TypeRegistry) lookup(fp int64) (*typeEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byFP[fp]
	return e, ok
}

// Encode builds a message of the named type from its JSON form.
func (r *TypeRegistry) Encode(name string, raw json.RawMessage) (codec.Encoder, error) {
	r.mu.RLock()
	e, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return e.fromJSON(raw)
}

// Names lists the registered type names in order.
func (r *TypeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
