package codec

import (
	"fmt"
	"math"
)

// Bare primitive messages. Each carries one value of an LCM base type and
// uses that type's reserved fingerprint, so a String published by one
// process decodes as a String in any other.
type (
	String  string
	Bool    bool
	Byte    uint8
	Int8    int8
	Int16   int16
	Int32   int32
	Int64   int64
	Float32 float32
	Float64 float64
	// Bytes is a variable-length byte array: an int32 count, then the bytes.
	Bytes []byte
)

// TypeBytes names the variable byte array in its reserved fingerprint.
const TypeBytes = "byte[]"

var (
	stringFingerprint  = PrimitiveFingerprint(TypeString)
	boolFingerprint    = PrimitiveFingerprint(TypeBoolean)
	byteFingerprint    = PrimitiveFingerprint(TypeByte)
	int8Fingerprint    = PrimitiveFingerprint(TypeInt8)
	int16Fingerprint   = PrimitiveFingerprint(TypeInt16)
	int32Fingerprint   = PrimitiveFingerprint(TypeInt32)
	int64Fingerprint   = PrimitiveFingerprint(TypeInt64)
	float32Fingerprint = PrimitiveFingerprint(TypeFloat)
	float64Fingerprint = PrimitiveFingerprint(TypeDouble)
	bytesFingerprint   = PrimitiveFingerprint(TypeBytes)
)

func (String) Fingerprint() int64 { return stringFingerprint }

func (m String) Encode(w *Writer) error {
	w.WriteString(string(m))
	return nil
}

func (m *String) Decode(r *Reader) error {
	v, err := r.ReadString()
	if err != nil {
		return err
	}
	*m = String(v)
	return nil
}

func (Bool) Fingerprint() int64 { return boolFingerprint }

func (m Bool) Encode(w *Writer) error {
	w.WriteBool(bool(m))
	return nil
}

func (m *Bool) Decode(r *Reader) error {
	v, err := r.ReadBool()
	if err != nil {
		return err
	}
	*m = Bool(v)
	return nil
}

func (Byte) Fingerprint() int64 { return byteFingerprint }

func (m Byte) Encode(w *Writer) error {
	w.WriteUint8(uint8(m))
	return nil
}

func (m *Byte) Decode(r *Reader) error {
	v, err := r.ReadUint8()
	if err != nil {
		return err
	}
	*m = Byte(v)
	return nil
}

func (Int8) Fingerprint() int64 { return int8Fingerprint }

func (m Int8) Encode(w *Writer) error {
	w.WriteInt8(int8(m))
	return nil
}

func (m *Int8) Decode(r *Reader) error {
	v, err := r.ReadInt8()
	if err != nil {
		return err
	}
	*m = Int8(v)
	return nil
}

func (Int16) Fingerprint() int64 { return int16Fingerprint }

func (m Int16) Encode(w *Writer) error {
	w.WriteInt16(int16(m))
	return nil
}

func (m *Int16) Decode(r *Reader) error {
	v, err := r.ReadInt16()
	if err != nil {
		return err
	}
	*m = Int16(v)
	return nil
}

func (Int32) Fingerprint() int64 { return int32Fingerprint }

func (m Int32) Encode(w *Writer) error {
	w.WriteInt32(int32(m))
	return nil
}

func (m *Int32) Decode(r *Reader) error {
	v, err := r.ReadInt32()
	if err != nil {
		return err
	}
	*m = Int32(v)
	return nil
}

func (Int64) Fingerprint() int64 { return int64Fingerprint }

func (m Int64) Encode(w *Writer) error {
	w.WriteInt64(int64(m))
	return nil
}

func (m *Int64) Decode(r *Reader) error {
	v, err := r.ReadInt64()
	if err != nil {
		return err
	}
	*m = Int64(v)
	return nil
}

func (Float32) Fingerprint() int64 { return float32Fingerprint }

func (m Float32) Encode(w *Writer) error {
	w.WriteFloat32(float32(m))
	return nil
}

func (m *Float32) Decode(r *Reader) error {
	v, err := r.ReadFloat32()
	if err != nil {
		return err
	}
	*m = Float32(v)
	return nil
}

func (Float64) Fingerprint() int64 { return float64Fingerprint }

func (m Float64) Encode(w *Writer) error {
	w.WriteFloat64(float64(m))
	return nil
}

func (m *Float64) Decode(r *Reader) error {
	v, err := r.ReadFloat64()
	if err != nil {
		return err
	}
	*m = Float64(v)
	return nil
}

func (Bytes) Fingerprint() int64 { return bytesFingerprint }

func (m Bytes) Encode(w *Writer) error {
	if len(m) > math.MaxInt32 {
		return fmt.Errorf("%w: byte array of %d bytes", ErrMalformed, len(m))
	}
	w.WriteInt32(int32(len(m)))
	w.WriteBytes(m)
	return nil
}

func (m *Bytes) Decode(r *Reader) error {
	n, err := r.ReadInt32()
	if err != nil {
		return err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return err
	}
	*m = b
	return nil
}
