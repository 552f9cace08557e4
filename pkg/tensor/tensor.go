package tensor

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// MediaType is the caps media type carried by every tensor stream.
const MediaType = "other/tensor"

// RankLimit caps the number of dimensions a tensor may carry. Unused trailing
// dimensions are fixed at 1.
const RankLimit = 4

// ElementType enumerates the scalar type of a single tensor cell.
type ElementType int

const (
	Int8 ElementType = iota
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Int64
	UInt64
	Float32
	Float64
)

var elementTypeNames = map[ElementType]string{
	Int8:    "int8",
	UInt8:   "uint8",
	Int16:   "int16",
	UInt16:  "uint16",
	Int32:   "int32",
	UInt32:  "uint32",
	Int64:   "int64",
	UInt64:  "uint64",
	Float32: "float32",
	Float64: "float64",
}

// Size returns the width of the element type in bytes.
func (t ElementType) Size() int {
	switch t {
	case Int8, UInt8:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	case Int64, UInt64, Float64:
		return 8
	}

	return 0
}

func (t ElementType) String() string {
	if name, ok := elementTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("invalid(%d)", int(t))
}

// ParseElementType resolves a type name as it appears in a caps string.
func ParseElementType(name string) (ElementType, error) {
	for typ, candidate := range elementTypeNames {
		if candidate == name {
			return typ, nil
		}
	}

	return 0, errors.Errorf("unknown tensor element type: %s", name)
}

// Dims is a fixed-rank dimension vector. Trailing unused dimensions must be 1,
// never 0, so Count() is always the true cell count.
type Dims [RankLimit]uint32

// NewDims builds a Dims from up-to RankLimit sizes, padding with 1.
func NewDims(sizes ...uint32) Dims {
	dims := Dims{1, 1, 1, 1}
	copy(dims[:], sizes)

	return dims
}

// Count returns the number of cells described by the dimension vector.
func (d Dims) Count() uint64 {
	count := uint64(1)
	for _, size := range d {
		count *= uint64(size)
	}

	return count
}

func (d Dims) String() string {
	parts := make([]string, 0, len(d))
	for _, size := range d {
		parts = append(parts, fmt.Sprintf("%d", size))
	}

	return strings.Join(parts, ":")
}

// Caps describes the negotiated layout of buffers on a tensor stream. It is
// what a sink reads to validate incoming frames, and what the serialization
// adapters preserve across encode/decode.
type Caps struct {
	Type ElementType
	Dims Dims
}

func (c Caps) MediaType() string {
	return MediaType
}

// FrameSize returns the byte size every buffer on the stream must have.
func (c Caps) FrameSize() int {
	return c.Type.Size() * int(c.Dims.Count())
}

func (c Caps) Validate() error {
	if c.Type.Size() == 0 {
		return errors.Errorf("invalid element type: %v", c.Type)
	}

	for idx, size := range c.Dims {
		if size == 0 {
			return errors.Errorf("dimension %d is zero", idx)
		}
	}

	return nil
}

func (c Caps) Equal(other Caps) bool {
	return c.Type == other.Type && c.Dims == other.Dims
}

func (c Caps) String() string {
	return fmt.Sprintf("%s, type=%s, dimension=%s", MediaType, c.Type, c.Dims)
}

// FromVideo maps a raw video format onto the tensor layout the converter
// element produces: a channels-first stack of width×height planes.
func FromVideo(format string, width, height int) (Caps, error) {
	if width <= 0 || height <= 0 {
		return Caps{}, errors.Errorf("invalid video geometry: %dx%d", width, height)
	}

	var channels uint32
	switch format {
	case "RGB", "BGR":
		channels = 3
	case "RGBA", "BGRA":
		channels = 4
	case "GRAY8":
		channels = 1
	default:
		return Caps{}, errors.Errorf("cannot convert video format to tensor: %s", format)
	}

	return Caps{
		Type: UInt8,
		Dims: NewDims(channels, uint32(width), uint32(height)),
	}, nil
}
