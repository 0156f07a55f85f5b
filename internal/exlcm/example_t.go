// Package exlcm holds message types written the way lcmgen emits them for
// the classic exlcm package: a struct, its schema, and hand-ordered
// Encode/Decode methods over the LCM wire primitives.
package exlcm

import (
	"fmt"

	"LCM-Bus/internal/lcm/codec"
)

// ExampleT mirrors exlcm.example_t:
//
//	struct example_t {
//	    int64_t  timestamp;
//	    double   position[3];
//	    double   orientation[4];
//	    int32_t  num_ranges;
//	    int16_t  ranges[num_ranges];
//	    string   name;
//	    boolean  enabled;
//	}
type ExampleT struct {
	Timestamp   int64
	Position    [3]float64
	Orientation [4]float64
	NumRanges   int32
	Ranges      []int16
	Name        string
	Enabled     bool
}

var ExampleTSchema = &codec.Schema{
	Name: "example_t",
	Fields: []codec.Field{
		{Name: "timestamp", Type: codec.TypeInt64},
		{Name: "position", Type: codec.TypeDouble, Dims: []codec.Dim{{Size: "3"}}},
		{Name: "orientation", Type: codec.TypeDouble, Dims: []codec.Dim{{Size: "4"}}},
		{Name: "num_ranges", Type: codec.TypeInt32},
		{Name: "ranges", Type: codec.TypeInt16, Dims: []codec.Dim{{Variable: true, Size: "num_ranges"}}},
		{Name: "name", Type: codec.TypeString},
		{Name: "enabled", Type: codec.TypeBoolean},
	},
}

var exampleTFingerprint = ExampleTSchema.Fingerprint()

func (ExampleT) Fingerprint() int64 { return exampleTFingerprint }

func (m ExampleT) Encode(w *codec.Writer) error {
	if int(m.NumRanges) != len(m.Ranges) {
		return fmt.Errorf("%w: example_t: num_ranges is %d but ranges holds %d",
			codec.ErrMalformed, m.NumRanges, len(m.Ranges))
	}
	w.WriteInt64(m.Timestamp)
	for _, v := range m.Position {
		w.WriteFloat64(v)
	}
	for _, v := range m.Orientation {
		w.WriteFloat64(v)
	}
	w.WriteInt32(m.NumRanges)
	for _, v := range m.Ranges {
		w.WriteInt16(v)
	}
	w.WriteString(m.Name)
	w.WriteBool(m.Enabled)
	return nil
}

func (m *ExampleT) Decode(r *codec.Reader) (err error) {
	if m.Timestamp, err = r.ReadInt64(); err != nil {
		return err
	}
	for i := range m.Position {
		if m.Position[i], err = r.ReadFloat64(); err != nil {
			return err
		}
	}
	for i := range m.Orientation {
		if m.Orientation[i], err = r.ReadFloat64(); err != nil {
			return err
		}
	}
	if m.NumRanges, err = r.ReadInt32(); err != nil {
		return err
	}
	if m.NumRanges < 0 {
		return fmt.Errorf("%w: example_t: num_ranges is %d", codec.ErrMalformed, m.NumRanges)
	}
	if int(m.NumRanges)*2 > r.Len() {
		return fmt.Errorf("%w: example_t: %d ranges", codec.ErrTruncated, m.NumRanges)
	}
	m.Ranges = nil
	if m.NumRanges > 0 {
		m.Ranges = make([]int16, m.NumRanges)
	}
	for i := range m.Ranges {
		if m.Ranges[i], err = r.ReadInt16(); err != nil {
			return err
		}
	}
	if m.Name, err = r.ReadString(); err != nil {
		return err
	}
	m.Enabled, err = r.ReadBool()
	return err
}
