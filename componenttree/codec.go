package componenttree

import (
	"fmt"

	"github.com/janelia-flyem/catvol/catvol"

	"github.com/golang/snappy"
	"github.com/tinylib/msgp/msgp"
)

// Each per-section table is stored as a snappy-compressed msgpack array.

func encodeInt64s(vals []int64) []byte {
	b := msgp.AppendArrayHeader(make([]byte, 0, 9*len(vals)+5), uint32(len(vals)))
	for _, v := range vals {
		b = msgp.AppendInt64(b, v)
	}
	return snappy.Encode(nil, b)
}

func decodeInt64s(data []byte) ([]int64, error) {
	b, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, err
	}
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, err
	}
	vals := make([]int64, n)
	for i := range vals {
		if vals[i], b, err = msgp.ReadInt64Bytes(b); err != nil {
			return nil, fmt.Errorf("element %d: %v", i, err)
		}
	}
	return vals, nil
}

func encodeInt32s(vals []int32) []byte {
	b := msgp.AppendArrayHeader(make([]byte, 0, 5*len(vals)+5), uint32(len(vals)))
	for _, v := range vals {
		b = msgp.AppendInt32(b, v)
	}
	return snappy.Encode(nil, b)
}

func decodeInt32s(data []byte) ([]int32, error) {
	b, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, err
	}
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, err
	}
	vals := make([]int32, n)
	for i := range vals {
		if vals[i], b, err = msgp.ReadInt32Bytes(b); err != nil {
			return nil, fmt.Errorf("element %d: %v", i, err)
		}
	}
	return vals, nil
}

func encodeFloat64s(vals []float64) []byte {
	b := msgp.AppendArrayHeader(make([]byte, 0, 9*len(vals)+5), uint32(len(vals)))
	for _, v := range vals {
		b = msgp.AppendFloat64(b, v)
	}
	return snappy.Encode(nil, b)
}

func decodeFloat64s(data []byte) ([]float64, error) {
	b, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, err
	}
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, err
	}
	vals := make([]float64, n)
	for i := range vals {
		if vals[i], b, err = msgp.ReadFloat64Bytes(b); err != nil {
			return nil, fmt.Errorf("element %d: %v", i, err)
		}
	}
	return vals, nil
}

// pixel lists are flattened (x0, y0, x1, y1, ...).
func encodePixels(pixels []catvol.Pixel) []byte {
	flat := make([]int32, 0, 2*len(pixels))
	for _, p := range pixels {
		flat = append(flat, p.X, p.Y)
	}
	return encodeInt32s(flat)
}

func decodePixels(data []byte) ([]catvol.Pixel, error) {
	flat, err := decodeInt32s(data)
	if err != nil {
		return nil, err
	}
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("pixel list has odd length %d", len(flat))
	}
	pixels := make([]catvol.Pixel, len(flat)/2)
	for i := range pixels {
		pixels[i] = catvol.Pixel{X: flat[2*i], Y: flat[2*i+1]}
	}
	return pixels, nil
}
