package volume

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/janelia-flyem/catvol/catvol"

	"github.com/klauspost/compress/gzip"
)

// Planes are stored as a gzip stream of a 9 byte header (element bits, width, height)
// followed by little-endian row-major values.
const (
	bitsUint8 = 8
	bitsInt64 = 64

	headerSize = 9
)

// CompressionLevel is the gzip level of stored planes.
var CompressionLevel = gzip.BestSpeed

func encodePlane(bits uint8, width, height int, payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, CompressionLevel)
	if err != nil {
		return nil, err
	}
	header := make([]byte, headerSize)
	header[0] = bits
	binary.LittleEndian.PutUint32(header[1:5], uint32(width))
	binary.LittleEndian.PutUint32(header[5:9], uint32(height))
	if _, err := zw.Write(header); err != nil {
		return nil, err
	}
	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePlane(data []byte) (bits uint8, width, height int, payload []byte, err error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return
	}
	if len(raw) < headerSize {
		err = fmt.Errorf("plane of %d bytes has no header", len(raw))
		return
	}
	bits = raw[0]
	width = int(binary.LittleEndian.Uint32(raw[1:5]))
	height = int(binary.LittleEndian.Uint32(raw[5:9]))
	payload = raw[headerSize:]
	return
}

// EncodeLabels serializes a label plane.
func EncodeLabels(p *catvol.LabelPlane) ([]byte, error) {
	return encodePlane(bitsInt64, p.Width, p.Height, p.Bytes())
}

// EncodeGray serializes an 8-bit plane.
func EncodeGray(g *catvol.Gray8) ([]byte, error) {
	return encodePlane(bitsUint8, g.Width, g.Height, g.Data)
}

// DecodeLabels deserializes a stored plane as labels.  8-bit planes are widened.
func DecodeLabels(data []byte) (*catvol.LabelPlane, error) {
	bits, width, height, payload, err := decodePlane(data)
	if err != nil {
		return nil, err
	}
	switch bits {
	case bitsInt64:
		return catvol.LabelPlaneFromBytes(width, height, payload)
	case bitsUint8:
		if len(payload) != width*height {
			return nil, fmt.Errorf("expected %d bytes for %d x %d plane, got %d", width*height, width, height, len(payload))
		}
		p := catvol.NewLabelPlane(width, height)
		for i, v := range payload {
			p.Data[i] = int64(v)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown plane element size %d", bits)
	}
}

// DecodeGray deserializes a stored 8-bit plane.
func DecodeGray(data []byte) (*catvol.Gray8, error) {
	bits, width, height, payload, err := decodePlane(data)
	if err != nil {
		return nil, err
	}
	if bits != bitsUint8 {
		return nil, fmt.Errorf("expected 8-bit plane, got %d-bit", bits)
	}
	if len(payload) != width*height {
		return nil, fmt.Errorf("expected %d bytes for %d x %d plane, got %d", width*height, width, height, len(payload))
	}
	return &catvol.Gray8{Width: width, Height: height, Data: payload}, nil
}
