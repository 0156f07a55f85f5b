package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Writer appends LCM wire encodings (big-endian) to a growing buffer. The
// first failure is kept and reported by Err; later writes are ignored.
type Writer struct {
	buf []byte
	err error
}

func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the encoded buffer. It aliases the writer's storage.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) Err() error { return w.err }

// Fail records err unless an earlier error is already recorded.
func (w *Writer) Fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
}

func (w *Writer) WriteUint8(v uint8) {
	if w.err == nil {
		w.buf = append(w.buf, v)
	}
}

func (w *Writer) WriteInt8(v int8) { w.WriteUint8(uint8(v)) }

func (w *Writer) WriteInt16(v int16) {
	if w.err == nil {
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v))
	}
}

func (w *Writer) WriteInt32(v int32) {
	if w.err == nil {
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
	}
}

func (w *Writer) WriteInt64(v int64) {
	if w.err == nil {
		w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
	}
}

func (w *Writer) WriteFloat32(v float32) { w.WriteInt32(int32(math.Float32bits(v))) }

func (w *Writer) WriteFloat64(v float64) { w.WriteInt64(int64(math.Float64bits(v))) }

// WriteString writes the int32 length including the terminator, the bytes and
// a NUL. Strings holding NUL or invalid UTF-8 cannot be represented.
func (w *Writer) WriteString(s string) {
	switch {
	case strings.IndexByte(s, 0) >= 0:
		w.Fail(fmt.Errorf("%w: string contains NUL", ErrMalformed))
	case !utf8.ValidString(s):
		w.Fail(fmt.Errorf("%w: string is not valid UTF-8", ErrMalformed))
	case len(s) >= math.MaxInt32:
		w.Fail(fmt.Errorf("%w: string of %d bytes", ErrMalformed, len(s)))
	}
	if w.err != nil {
		return
	}
	w.WriteInt32(int32(len(s) + 1))
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// WriteBytes appends b verbatim. Length prefixes are the caller's business.
func (w *Writer) WriteBytes(b []byte) {
	if w.err == nil {
		w.buf = append(w.buf, b...)
	}
}
