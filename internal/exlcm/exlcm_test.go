package exlcm

import (
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LCM-Bus/internal/lcm/codec"
)

func sampleExample() ExampleT {
	return ExampleT{
		Timestamp:   1700000000123,
		Position:    [3]float64{1, 2, 3},
		Orientation: [4]float64{1, 0, 0, 0},
		NumRanges:   4,
		Ranges:      []int16{-1, 0, 1, 32767},
		Name:        "example string",
		Enabled:     true,
	}
}

func TestExampleTFingerprint(t *testing.T) {
	// lcmgen publishes 0x1baa9e29b0fbaa8b as example_t's base hash.
	assert.Equal(t, uint64(0x37553c5361f75516), uint64(ExampleT{}.Fingerprint()))
}

func TestExampleTRoundTrip(t *testing.T) {
	in := sampleExample()
	data, err := codec.EncodeWithHash(in)
	require.NoError(t, err)
	assert.Equal(t, uint64(ExampleT{}.Fingerprint()), binary.BigEndian.Uint64(data))
	// 8 + 8 + 24 + 32 + 4 + 8 + (4+15) + 1
	assert.Len(t, data, 104)

	var out ExampleT
	require.NoError(t, codec.DecodeWithHash(data, &out))
	assert.Equal(t, in, out)
}

func TestZeroValuesRoundTrip(t *testing.T) {
	var ex ExampleT
	data, err := codec.EncodeWithHash(ex)
	require.NoError(t, err)
	var exOut ExampleT
	require.NoError(t, codec.DecodeWithHash(data, &exOut))
	assert.Nil(t, exOut.Ranges)
	assert.True(t, reflect.DeepEqual(ex, exOut), "got %#v", exOut)

	var path PathT
	data, err = codec.EncodeWithHash(path)
	require.NoError(t, err)
	var pathOut PathT
	require.NoError(t, codec.DecodeWithHash(data, &pathOut))
	assert.Nil(t, pathOut.Points)
	assert.True(t, reflect.DeepEqual(path, pathOut), "got %#v", pathOut)
}

func TestDecodeResetsSliceOnEmptyCount(t *testing.T) {
	data, err := codec.EncodeWithHash(ExampleT{})
	require.NoError(t, err)
	out := ExampleT{NumRanges: 1, Ranges: []int16{7}}
	require.NoError(t, codec.DecodeWithHash(data, &out))
	assert.Nil(t, out.Ranges)
	assert.Equal(t, int32(0), out.NumRanges)
}

func TestExampleTInconsistentCount(t *testing.T) {
	in := sampleExample()
	in.NumRanges = 2
	_, err := codec.EncodeWithHash(in)
	assert.ErrorIs(t, err, codec.ErrMalformed)
}

func TestExampleTDecodeErrors(t *testing.T) {
	data, err := codec.EncodeWithHash(sampleExample())
	require.NoError(t, err)

	for cut := 8; cut < len(data); cut += 7 {
		var out ExampleT
		assert.ErrorIs(t, codec.DecodeWithHash(data[:cut], &out), codec.ErrTruncated, "cut at %d", cut)
	}

	neg := append([]byte(nil), data...)
	binary.BigEndian.PutUint32(neg[8+8+24+32:], 0xffffffff)
	var out ExampleT
	assert.ErrorIs(t, codec.DecodeWithHash(neg, &out), codec.ErrMalformed)

	huge := append([]byte(nil), data...)
	binary.BigEndian.PutUint32(huge[8+8+24+32:], 1<<30)
	assert.ErrorIs(t, codec.DecodeWithHash(huge, &out), codec.ErrTruncated)

	var p PointT
	assert.ErrorIs(t, codec.DecodeWithHash(data, &p), codec.ErrTypeMismatch)
}

func TestPathTRoundTrip(t *testing.T) {
	in := PathT{
		Timestamp: 42,
		NumPoints: 2,
		Points:    []PointT{{X: 1, Y: 2, Z: 3}, {X: -1, Y: -2, Z: -3}},
	}
	data, err := codec.EncodeWithHash(in)
	require.NoError(t, err)
	var out PathT
	require.NoError(t, codec.DecodeWithHash(data, &out))
	assert.Equal(t, in, out)

	pt, err := codec.EncodeWithHash(PointT{X: 0.5})
	require.NoError(t, err)
	var p PointT
	require.NoError(t, codec.DecodeWithHash(pt, &p))
	assert.Equal(t, PointT{X: 0.5}, p)
}

func TestPathTFingerprintFollowsPointT(t *testing.T) {
	assert.NotEqual(t, PathT{}.Fingerprint(), PointT{}.Fingerprint())

	changed := *PointTSchema
	changed.Fields = append([]codec.Field(nil), PointTSchema.Fields...)
	changed.Fields[2].Name = "w"
	path := *PathTSchema
	path.Fields = append([]codec.Field(nil), PathTSchema.Fields...)
	path.Fields[2].Nested = &changed
	assert.NotEqual(t, PathT{}.Fingerprint(), path.Fingerprint())
}
