package column

import "fmt"

// A character column is stored in a self-describing binary layout:
// - The column header (CHAR_HEADER_SIZE bytes):
// 	- encoded_flags (uint32): bit 0 = compressed, bits 1-3 = string encoding
// 	- block_size (uint32): number of elements per full block
// - The block index, one entry per block:
// 	- end_offset (uint64): offset of the first byte after the block,
// 	  relative to the column start
// 	- compressed columns add algo_int (uint16), algo_char (uint16) and
// 	  int_buf_size (int32), growing the entry to CHAR_INDEX_SIZE bytes
// - The block payloads, concatenated in block order:
// 	- lengths (uint32 per element): cumulative character byte offsets
// 	  within the block; the last value equals the char payload size
// 	- na_bits (uint32 words, 1 + nelem/32): bit 0 of word 0 flags whether
// 	  any element of the block is null; element i maps to bit i+1
// 	- chars: the concatenated string bytes, no separators
//
// In compressed columns the lengths and chars sections are compressed
// independently per block (algorithm code 0 = stored verbatim); the na_bits
// section is always stored raw. All integers are little-endian.
//
// A column is written once, front to back; the block index is emitted as
// zeros and patched after the last payload. Columns are immutable once
// written.

var ErrEmptyInput = fmt.Errorf("column must contain at least one element")
var ErrCorruptFormat = fmt.Errorf("corrupt column format")
var ErrOversize = fmt.Errorf("thread buffer exceeds maximum size")

const CHAR_HEADER_SIZE = 8

// CHAR_INDEX_SIZE is the block index entry width of a compressed column.
const CHAR_INDEX_SIZE = 16

// BLOCK_SIZE is the number of elements held by a full block.
const BLOCK_SIZE = 2048

// BATCH_SIZE_WRITE_CHAR caps the number of blocks grouped into one write job.
const BATCH_SIZE_WRITE_CHAR = 8

// MAX_THREAD_BUFFER_BYTES caps the growth of per-thread serialization buffers.
const MAX_THREAD_BUFFER_BYTES = 1 << 30

// StringEncoding is the 3-bit character encoding tag transported in the
// column header. The codec never transcodes; the tag travels verbatim.
type StringEncoding uint32

const (
	EncodingNative StringEncoding = iota
	EncodingLatin1
	EncodingUTF8
)

// StringSource supplies the strings serialized by WriteCharColumn.
type StringSource interface {
	// Len returns the total number of elements.
	Len() uint64

	// CalculateSizes fills lengths[0:nelem] with the cumulative character
	// byte sizes of elements [start, start+nelem) and naBits with the
	// block's null bitmap, and returns the total character byte size.
	CalculateSizes(start uint64, nelem int, lengths []uint32, naBits []uint32) uint32

	// SerializeCharBlock concatenates the raw bytes of elements
	// [start, start+nelem) into buf, placed according to lengths.
	SerializeCharBlock(start uint64, nelem int, lengths []uint32, buf []byte)
}

// StringSink receives the strings decoded by ReadCharColumn.
type StringSink interface {
	// AllocateVec ensures capacity for n output elements.
	AllocateVec(n uint64)

	// SetEncoding records the character encoding of the column.
	SetEncoding(enc StringEncoding)

	// BufferToVec materializes block elements [startElem, endElem]
	// (inclusive) into output positions starting at vecOffset. lengths,
	// naBits and chars describe the full block of nelem elements.
	BufferToVec(nelem, startElem, endElem int, vecOffset uint64, lengths []uint32, naBits []uint32, chars []byte)
}
