// Package codec defines the LCM message contract: how a payload type turns
// into bytes prefixed with its 8-byte type fingerprint, and back.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// FingerprintSize is the length of the big-endian fingerprint that prefixes
// every encoded message.
const FingerprintSize = 8

var (
	ErrTruncated    = errors.New("lcm: truncated buffer")
	ErrMalformed    = errors.New("lcm: malformed field data")
	ErrTypeMismatch = errors.New("lcm: fingerprint mismatch")
)

// TypeMismatchError reports a buffer whose fingerprint is not the one the
// decoding type expects. It matches ErrTypeMismatch with errors.Is.
type TypeMismatchError struct {
	Want int64
	Got  int64
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("lcm: fingerprint mismatch: want %#016x, got %#016x", uint64(e.Want), uint64(e.Got))
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// Encoder is implemented by message values. Fingerprint must be a constant of
// the type, never of the value.
type Encoder interface {
	Fingerprint() int64
	Encode(w *Writer) error
}

// Message is implemented by pointers to message types.
type Message interface {
	Encoder
	Decode(r *Reader) error
}

// EncodeWithHash returns the fingerprint of m followed by its encoding.
func EncodeWithHash(m Encoder) ([]byte, error) {
	w := NewWriter(64)
	w.WriteInt64(m.Fingerprint())
	if err := m.Encode(w); err != nil {
		return nil, err
	}
	if err := w.Err(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecodeWithHash checks the leading fingerprint of data against m and decodes
// the remainder into m. Every byte must be consumed.
func DecodeWithHash(data []byte, m Message) error {
	if len(data) < FingerprintSize {
		return fmt.Errorf("%w: %d bytes, need a %d-byte fingerprint", ErrTruncated, len(data), FingerprintSize)
	}
	got := int64(binary.BigEndian.Uint64(data))
	if want := m.Fingerprint(); got != want {
		return &TypeMismatchError{Want: want, Got: got}
	}
	r := NewReader(data[FingerprintSize:])
	if err := m.Decode(r); err != nil {
		return err
	}
	if n := r.Len(); n != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformed, n)
	}
	return nil
}
