package column

import (
	"fmt"

	"github.com/charygao/fstlib/internal/colio"
	"github.com/charygao/fstlib/pkg/compression"
)

// decodedBlock is one block's worth of decoded data, ready for the sink.
type decodedBlock struct {
	nelem     int
	startElem int
	endElem   int
	vecOffset uint64
	lengths   []uint32
	naBits    []uint32
	chars     []byte
	err       error
}

// readDataBlock reads one uncompressed block of blockSize bytes from the
// current stream position.
func readDataBlock(sr *colio.StructuredReader, blockSize uint64, nelem int) ([]uint32, []uint32, []byte, error) {
	naInts := 1 + nelem/32
	metaBytes := uint64(4 * (nelem + naInts))
	if blockSize < metaBytes {
		return nil, nil, nil, fmt.Errorf("%w: block of %d bytes cannot hold %d elements", ErrCorruptFormat, blockSize, nelem)
	}

	raw := make([]byte, metaBytes)
	if err := sr.ReadFull(raw); err != nil {
		return nil, nil, nil, err
	}
	lengths := make([]uint32, nelem)
	naBits := make([]uint32, naInts)
	getUint32s(lengths, raw)
	getUint32s(naBits, raw[4*nelem:])

	charSize := blockSize - metaBytes
	if uint64(lengths[nelem-1]) != charSize {
		return nil, nil, nil, fmt.Errorf("%w: char payload is %d bytes, lengths declare %d", ErrCorruptFormat, charSize, lengths[nelem-1])
	}

	chars := make([]byte, charSize)
	if err := sr.ReadFull(chars); err != nil {
		return nil, nil, nil, err
	}
	return lengths, naBits, chars, nil
}

// readDataBlockCompressed reads one block whose lengths and chars sections
// may be independently compressed; the NA bitmap is always stored raw.
func readDataBlockCompressed(sr *colio.StructuredReader, blockSize uint64, nelem int, entry blockIndexEntry) ([]uint32, []uint32, []byte, error) {
	naInts := 1 + nelem/32
	intBufSize := uint64(entry.intBufSize)
	if entry.intBufSize < 0 || intBufSize+uint64(4*naInts) > blockSize {
		return nil, nil, nil, fmt.Errorf("%w: lengths buffer of %d bytes exceeds block of %d", ErrCorruptFormat, entry.intBufSize, blockSize)
	}

	lengths := make([]uint32, nelem)
	naBits := make([]uint32, naInts)

	if entry.algoInt == 0 {
		if intBufSize != uint64(4*nelem) {
			return nil, nil, nil, fmt.Errorf("%w: verbatim lengths buffer is %d bytes, expected %d", ErrCorruptFormat, intBufSize, 4*nelem)
		}
		raw := make([]byte, 4*(nelem+naInts))
		if err := sr.ReadFull(raw); err != nil {
			return nil, nil, nil, err
		}
		getUint32s(lengths, raw)
		getUint32s(naBits, raw[4*nelem:])
	} else {
		packed := make([]byte, intBufSize)
		if err := sr.ReadFull(packed); err != nil {
			return nil, nil, nil, err
		}
		rawNA := make([]byte, 4*naInts)
		if err := sr.ReadFull(rawNA); err != nil {
			return nil, nil, nil, err
		}
		rawLengths := make([]byte, 4*nelem)
		if err := compression.Decompress(compression.Algorithm(entry.algoInt), rawLengths, packed); err != nil {
			return nil, nil, nil, err
		}
		getUint32s(lengths, rawLengths)
		getUint32s(naBits, rawNA)
	}

	charSize := uint64(lengths[nelem-1])
	charStored := blockSize - intBufSize - uint64(4*naInts)
	chars := make([]byte, charSize)

	if entry.algoChar == 0 {
		if charStored != charSize {
			return nil, nil, nil, fmt.Errorf("%w: verbatim char payload is %d bytes, lengths declare %d", ErrCorruptFormat, charStored, charSize)
		}
		if err := sr.ReadFull(chars); err != nil {
			return nil, nil, nil, err
		}
	} else {
		packed := make([]byte, charStored)
		if err := sr.ReadFull(packed); err != nil {
			return nil, nil, nil, err
		}
		if err := compression.Decompress(compression.Algorithm(entry.algoChar), chars, packed); err != nil {
			return nil, nil, nil, err
		}
	}

	return lengths, naBits, chars, nil
}
