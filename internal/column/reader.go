package column

import (
	"fmt"
	"io"

	"github.com/charygao/fstlib/internal/colio"
	"github.com/charygao/fstlib/pkg/threads"
)

// ReadCharColumn decodes rows [startRow, startRow+vecLength) of the character
// column starting at colPos into dst. size is the column's total row count;
// the requested range must already be clipped to it.
//
// String materialization happens only on the calling goroutine. When more
// than one thread is configured, interior blocks are loaded and decompressed
// by a helper goroutine pipelined ahead of the caller; the first and final
// blocks are always decoded directly.
func ReadCharColumn(r io.ReadSeeker, colPos uint64, startRow, vecLength, size uint64, dst StringSink) error {
	if vecLength < 1 {
		return fmt.Errorf("read of %d elements, need at least 1", vecLength)
	}

	sr := colio.NewStructuredReader(r)
	if err := sr.SeekTo(colPos); err != nil {
		return err
	}

	var header [CHAR_HEADER_SIZE]byte
	if err := sr.ReadFull(header[:]); err != nil {
		return err
	}
	compressed, enc, blockSize := decodeHeader(header[:])
	if blockSize == 0 {
		return fmt.Errorf("%w: zero block size", ErrCorruptFormat)
	}

	lastBlock := (size - 1) / blockSize // id of the column's final block
	startBlock := startRow / blockSize
	startOffset := startRow - startBlock*blockSize
	endBlock := (startRow + vecLength - 1) / blockSize
	endOffset := (startRow + vecLength - 1) - endBlock*blockSize
	nrOfBlocks := 1 + endBlock - startBlock

	window, err := readIndexWindow(sr, colPos, compressed, startBlock, nrOfBlocks, lastBlock)
	if err != nil {
		return err
	}

	dst.AllocateVec(vecLength)
	dst.SetEncoding(enc)

	// the element range and count of block startBlock+i within the read
	nelemOf := func(block uint64) int {
		if block == lastBlock {
			return int(size - lastBlock*blockSize)
		}
		return int(blockSize)
	}
	startElemOf := func(block uint64) int {
		if block == startBlock {
			return int(startOffset)
		}
		return 0
	}
	endElemOf := func(block uint64) int {
		if block == endBlock {
			return int(endOffset)
		}
		return int(blockSize) - 1
	}

	// loadBlock must be called in block order: it consumes the stream
	// sequentially from the first selected block onwards
	loadBlock := func(i uint64, vecOffset uint64) decodedBlock {
		block := startBlock + i
		byteSize := window[i+1].endOffset - window[i].endOffset
		b := decodedBlock{
			nelem:     nelemOf(block),
			startElem: startElemOf(block),
			endElem:   endElemOf(block),
			vecOffset: vecOffset,
		}
		if compressed {
			b.lengths, b.naBits, b.chars, b.err = readDataBlockCompressed(sr, byteSize, b.nelem, window[i+1])
		} else {
			b.lengths, b.naBits, b.chars, b.err = readDataBlock(sr, byteSize, b.nelem)
		}
		return b
	}

	if err := sr.SeekTo(colPos + window[0].endOffset); err != nil {
		return err
	}

	// first block, decoded directly
	first := loadBlock(0, 0)
	if first.err != nil {
		return first.err
	}
	dst.BufferToVec(first.nelem, first.startElem, first.endElem, first.vecOffset, first.lengths, first.naBits, first.chars)
	if startBlock == endBlock {
		return nil
	}

	vecOffset := blockSize - startOffset
	interior := nrOfBlocks - 2

	if helpers := threads.GetThreads() - 1; helpers > 0 && interior > 0 {
		// helper loads and decompresses interior blocks while this
		// goroutine materializes strings
		blocks := make(chan decodedBlock, 4)
		go func() {
			defer close(blocks)
			offset := vecOffset
			for i := uint64(1); i <= interior; i++ {
				b := loadBlock(i, offset)
				blocks <- b
				if b.err != nil {
					return
				}
				offset += blockSize
			}
		}()
		for b := range blocks {
			if b.err != nil {
				return b.err
			}
			dst.BufferToVec(b.nelem, b.startElem, b.endElem, b.vecOffset, b.lengths, b.naBits, b.chars)
		}
		vecOffset += interior * blockSize
	} else {
		for i := uint64(1); i <= interior; i++ {
			b := loadBlock(i, vecOffset)
			if b.err != nil {
				return b.err
			}
			dst.BufferToVec(b.nelem, b.startElem, b.endElem, b.vecOffset, b.lengths, b.naBits, b.chars)
			vecOffset += blockSize
		}
	}

	// final block, always decoded directly
	last := loadBlock(nrOfBlocks-1, vecOffset)
	if last.err != nil {
		return last.err
	}
	dst.BufferToVec(last.nelem, last.startElem, last.endElem, last.vecOffset, last.lengths, last.naBits, last.chars)
	return nil
}

// readIndexWindow loads the slice of the block index covering the selected
// blocks. Entry i holds the end offset of block startBlock-1+i, so entry 0 is
// the file offset at which the first selected block starts; for block 0 that
// offset is synthesized from the index size itself.
func readIndexWindow(sr *colio.StructuredReader, colPos uint64, compressed bool, startBlock, nrOfBlocks, lastBlock uint64) ([]blockIndexEntry, error) {
	entrySize := uint64(indexEntrySize(compressed))
	window := make([]blockIndexEntry, nrOfBlocks+1)
	raw := make([]byte, (nrOfBlocks+1)*entrySize)

	if startBlock > 0 {
		if err := sr.SeekTo(colPos + CHAR_HEADER_SIZE + (startBlock-1)*entrySize); err != nil {
			return nil, err
		}
		if err := sr.ReadFull(raw); err != nil {
			return nil, err
		}
		for i := range window {
			window[i] = decodeIndexEntry(raw[uint64(i)*entrySize:], compressed)
		}
	} else {
		window[0] = blockIndexEntry{endOffset: CHAR_HEADER_SIZE + (lastBlock+1)*entrySize}
		if err := sr.SeekTo(colPos + CHAR_HEADER_SIZE); err != nil {
			return nil, err
		}
		if err := sr.ReadFull(raw[entrySize:]); err != nil {
			return nil, err
		}
		for i := uint64(1); i <= nrOfBlocks; i++ {
			window[i] = decodeIndexEntry(raw[i*entrySize:], compressed)
		}
	}

	for i := 1; i < len(window); i++ {
		if window[i].endOffset <= window[i-1].endOffset {
			return nil, fmt.Errorf("%w: block end offsets not strictly increasing", ErrCorruptFormat)
		}
	}
	return window, nil
}
