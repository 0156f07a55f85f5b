package codec

import (
	"fmt"
	"math"
	"reflect"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	if cborEnc, err = cbor.CanonicalEncOptions().EncMode(); err != nil {
		panic(fmt.Sprintf("codec: cbor enc mode: %v", err))
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: cbor dec mode: %v", err))
	}
}

// CBOR carries any Go value as a message without hand-written encoders. The
// fingerprint is derived from the structure of T, the payload is an int32
// length followed by canonical CBOR.
type CBOR[T any] struct {
	Value T
}

func (CBOR[T]) Fingerprint() int64 {
	return cborSchemaOf(reflect.TypeFor[T]()).Fingerprint()
}

func (m CBOR[T]) Encode(w *Writer) error {
	data, err := cborEnc.Marshal(m.Value)
	if err != nil {
		return fmt.Errorf("%w: cbor: %w", ErrMalformed, err)
	}
	if len(data) > math.MaxInt32 {
		return fmt.Errorf("%w: cbor payload of %d bytes", ErrMalformed, len(data))
	}
	w.WriteInt32(int32(len(data)))
	w.WriteBytes(data)
	return nil
}

func (m *CBOR[T]) Decode(r *Reader) error {
	n, err := r.ReadInt32()
	if err != nil {
		return err
	}
	data, err := r.ReadBytes(int(n))
	if err != nil {
		return err
	}
	var v T
	if err := cborDec.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: cbor: %w", ErrMalformed, err)
	}
	m.Value = v
	return nil
}

var (
	cborSchemasMu sync.Mutex
	cborSchemas   = make(map[reflect.Type]*Schema)
)

func cborSchemaOf(t reflect.Type) *Schema {
	cborSchemasMu.Lock()
	defer cborSchemasMu.Unlock()
	if s, ok := cborSchemas[t]; ok {
		return s
	}
	base := SchemaOf(t)
	s := &Schema{Name: base.Name, Fields: base.Fields, Encoding: "cbor"}
	cborSchemas[t] = s
	return s
}
