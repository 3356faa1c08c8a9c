package column

import "encoding/binary"

// blockIndexEntry is one slot of the per-column block index.
type blockIndexEntry struct {
	endOffset  uint64
	algoInt    uint16
	algoChar   uint16
	intBufSize int32
}

// indexEntrySize returns the on-disk width of one block index entry.
func indexEntrySize(compressed bool) int {
	if compressed {
		return CHAR_INDEX_SIZE
	}
	return 8
}

func (e *blockIndexEntry) encode(dst []byte, compressed bool) {
	binary.LittleEndian.PutUint64(dst, e.endOffset)
	if compressed {
		binary.LittleEndian.PutUint16(dst[8:], e.algoInt)
		binary.LittleEndian.PutUint16(dst[10:], e.algoChar)
		binary.LittleEndian.PutUint32(dst[12:], uint32(e.intBufSize))
	}
}

func decodeIndexEntry(src []byte, compressed bool) blockIndexEntry {
	e := blockIndexEntry{endOffset: binary.LittleEndian.Uint64(src)}
	if compressed {
		e.algoInt = binary.LittleEndian.Uint16(src[8:])
		e.algoChar = binary.LittleEndian.Uint16(src[10:])
		e.intBufSize = int32(binary.LittleEndian.Uint32(src[12:]))
	}
	return e
}

func encodeHeader(dst []byte, compressed bool, enc StringEncoding) {
	flags := uint32(enc) << 1
	if compressed {
		flags |= 1
	}
	binary.LittleEndian.PutUint32(dst, flags)
	binary.LittleEndian.PutUint32(dst[4:], BLOCK_SIZE)
}

func decodeHeader(src []byte) (compressed bool, enc StringEncoding, blockSize uint64) {
	flags := binary.LittleEndian.Uint32(src)
	compressed = flags&1 != 0
	enc = StringEncoding(flags >> 1 & 7)
	blockSize = uint64(binary.LittleEndian.Uint32(src[4:]))
	return compressed, enc, blockSize
}

// putUint32s serializes src into dst as little-endian 32-bit words.
func putUint32s(dst []byte, src []uint32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[4*i:], v)
	}
}

// getUint32s fills dst with little-endian 32-bit words read from src.
func getUint32s(dst []uint32, src []byte) {
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint32(src[4*i:])
	}
}
