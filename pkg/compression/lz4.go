package compression

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

func lz4Bound(n int) int {
	return lz4.CompressBlockBound(n)
}

func compressLZ4(dst, src []byte) (int, error) {
	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return 0, fmt.Errorf("lz4: %w", err)
	}
	// n == 0 means the block is incompressible
	return n, nil
}

func decompressLZ4(dst, src []byte) error {
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return fmt.Errorf("%w: lz4: %v", ErrDecompress, err)
	}
	if n != len(dst) {
		return fmt.Errorf("%w: lz4 produced %d bytes, expected %d", ErrDecompress, n, len(dst))
	}
	return nil
}
