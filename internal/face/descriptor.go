package face

import (
	"database/sql/driver"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// DescriptorSize is the number of components in a face descriptor.
const DescriptorSize = 128

// Descriptor is the fixed-length face encoding produced by the detector.
type Descriptor [DescriptorSize]float32

// Distance returns the Euclidean distance between two descriptors.
func Distance(a, b Descriptor) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// DescriptorFromSlice copies v into a Descriptor.
func DescriptorFromSlice(v []float32) (Descriptor, error) {
	var d Descriptor
	if len(v) != DescriptorSize {
		return d, fmt.Errorf("descriptor has %d components, want %d", len(v), DescriptorSize)
	}
	copy(d[:], v)
	return d, nil
}

// Value stores the descriptor as little-endian float32 bytes.
func (d Descriptor) Value() (driver.Value, error) {
	buf := make([]byte, DescriptorSize*4)
	for i, f := range d {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf, nil
}

// Scan implements sql.Scanner.
func (d *Descriptor) Scan(src any) error {
	var buf []byte
	switch v := src.(type) {
	case []byte:
		buf = v
	case string:
		buf = []byte(v)
	case nil:
		return errors.New("face descriptor is null")
	default:
		return fmt.Errorf("cannot scan %T into face descriptor", src)
	}
	if len(buf) != DescriptorSize*4 {
		return fmt.Errorf("face descriptor blob has %d bytes, want %d", len(buf), DescriptorSize*4)
	}
	for i := range d {
		d[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return nil
}

// GormDataType maps the descriptor to the dialect's binary column type.
func (Descriptor) GormDataType() string {
	return "bytes"
}
