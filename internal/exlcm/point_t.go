package exlcm

import (
	"fmt"

	"LCM-Bus/internal/lcm/codec"
)

// PointT is a position in metres.
type PointT struct {
	X, Y, Z float64
}

var PointTSchema = &codec.Schema{
	Name: "point_t",
	Fields: []codec.Field{
		{Name: "x", Type: codec.TypeDouble},
		{Name: "y", Type: codec.TypeDouble},
		{Name: "z", Type: codec.TypeDouble},
	},
}

var pointTFingerprint = PointTSchema.Fingerprint()

func (PointT) Fingerprint() int64 { return pointTFingerprint }

func (m PointT) Encode(w *codec.Writer) error {
	w.WriteFloat64(m.X)
	w.WriteFloat64(m.Y)
	w.WriteFloat64(m.Z)
	return nil
}

func (m *PointT) Decode(r *codec.Reader) (err error) {
	if m.X, err = r.ReadFloat64(); err != nil {
		return err
	}
	if m.Y, err = r.ReadFloat64(); err != nil {
		return err
	}
	m.Z, err = r.ReadFloat64()
	return err
}

// PathT is a timestamped polyline; it nests PointT, so its fingerprint
// depends on PointT's.
type PathT struct {
	Timestamp int64
	NumPoints int32
	Points    []PointT
}

var PathTSchema = &codec.Schema{
	Name: "path_t",
	Fields: []codec.Field{
		{Name: "timestamp", Type: codec.TypeInt64},
		{Name: "num_points", Type: codec.TypeInt32},
		{Name: "points", Nested: PointTSchema, Dims: []codec.Dim{{Variable: true, Size: "num_points"}}},
	},
}

var pathTFingerprint = PathTSchema.Fingerprint()

func (PathT) Fingerprint() int64 { return pathTFingerprint }

func (m PathT) Encode(w *codec.Writer) error {
	if int(m.NumPoints) != len(m.Points) {
		return fmt.Errorf("%w: path_t: num_points is %d but points holds %d",
			codec.ErrMalformed, m.NumPoints, len(m.Points))
	}
	w.WriteInt64(m.Timestamp)
	w.WriteInt32(m.NumPoints)
	for _, p := range m.Points {
		if err := p.Encode(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *PathT) Decode(r *codec.Reader) (err error) {
	if m.Timestamp, err = r.ReadInt64(); err != nil {
		return err
	}
	if m.NumPoints, err = r.ReadInt32(); err != nil {
		return err
	}
	if m.NumPoints < 0 {
		return fmt.Errorf("%w: path_t: num_points is %d", codec.ErrMalformed, m.NumPoints)
	}
	if int(m.NumPoints)*24 > r.Len() {
		return fmt.Errorf("%w: path_t: %d points", codec.ErrTruncated, m.NumPoints)
	}
	m.Points = nil
	if m.NumPoints > 0 {
		m.Points = make([]PointT, m.NumPoints)
	}
	for i := range m.Points {
		if err := m.Points[i].Decode(r); err != nil {
			return err
		}
	}
	return nil
}
