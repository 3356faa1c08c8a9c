// Package stringvec provides an in-memory nullable string vector that can
// feed the character column writer and receive rows from the reader.
package stringvec

import "github.com/charygao/fstlib/internal/column"

type Vec struct {
	values   []string
	null     []bool
	encoding column.StringEncoding
}

// New wraps values as a vector. null marks elements whose string value is to
// be ignored; a nil null slice means no element is null.
func New(values []string, null []bool) *Vec {
	return &Vec{values: values, null: null}
}

// NewEmpty returns a vector ready to receive decoded rows.
func NewEmpty() *Vec {
	return &Vec{}
}

func (v *Vec) Len() uint64 {
	return uint64(len(v.values))
}

func (v *Vec) Values() []string {
	return v.values
}

// Null reports whether element i is null.
func (v *Vec) Null(i int) bool {
	return v.null != nil && v.null[i]
}

func (v *Vec) Encoding() column.StringEncoding {
	return v.encoding
}

func (v *Vec) SetEncoding(enc column.StringEncoding) {
	v.encoding = enc
}

func (v *Vec) AllocateVec(n uint64) {
	v.values = make([]string, n)
	v.null = make([]bool, n)
}

// CalculateSizes fills lengths with the cumulative byte sizes of elements
// [start, start+nelem) and naBits with the block's null bitmap, and returns
// the total byte size. Null elements contribute no bytes. Bit 0 of the first
// bitmap word flags whether the block holds any null at all; element i maps
// to bit i+1.
func (v *Vec) CalculateSizes(start uint64, nelem int, lengths []uint32, naBits []uint32) uint32 {
	for i := range naBits {
		naBits[i] = 0
	}

	total := uint32(0)
	anyNull := false
	for i := 0; i < nelem; i++ {
		idx := start + uint64(i)
		if v.null != nil && v.null[idx] {
			anyNull = true
			bit := uint(i + 1)
			naBits[bit/32] |= 1 << (bit % 32)
		} else {
			total += uint32(len(v.values[idx]))
		}
		lengths[i] = total
	}
	if anyNull {
		naBits[0] |= 1
	}
	return total
}

// SerializeCharBlock concatenates the bytes of elements [start, start+nelem)
// into buf, placed according to the cumulative lengths.
func (v *Vec) SerializeCharBlock(start uint64, nelem int, lengths []uint32, buf []byte) {
	pos := uint32(0)
	for i := 0; i < nelem; i++ {
		end := lengths[i]
		if end > pos {
			copy(buf[pos:end], v.values[start+uint64(i)])
			pos = end
		}
	}
}

// SetBuffersFromVec materializes the lengths, NA bitmap and char buffer of
// elements [start, end) in one shot.
func (v *Vec) SetBuffersFromVec(start, end uint64) ([]uint32, []uint32, []byte) {
	nelem := int(end - start)
	lengths := make([]uint32, nelem)
	naBits := make([]uint32, 1+nelem/32)
	size := v.CalculateSizes(start, nelem, lengths, naBits)
	buf := make([]byte, size)
	v.SerializeCharBlock(start, nelem, lengths, buf)
	return lengths, naBits, buf
}

// BufferToVec materializes block elements [startElem, endElem] (inclusive)
// into output positions starting at vecOffset.
func (v *Vec) BufferToVec(nelem, startElem, endElem int, vecOffset uint64, lengths []uint32, naBits []uint32, chars []byte) {
	anyNull := naBits[0]&1 != 0
	for i := startElem; i <= endElem; i++ {
		pos := vecOffset + uint64(i-startElem)
		if anyNull {
			bit := uint(i + 1)
			if naBits[bit/32]&(1<<(bit%32)) != 0 {
				v.values[pos] = ""
				v.null[pos] = true
				continue
			}
		}
		begin := uint32(0)
		if i > 0 {
			begin = lengths[i-1]
		}
		v.values[pos] = string(chars[begin:lengths[i]])
		v.null[pos] = false
	}
}

var _ column.StringSource = (*Vec)(nil)
var _ column.StringSink = (*Vec)(nil)
