package compression

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// A single encoder/decoder pair serves the whole process; EncodeAll and
// DecodeAll are safe for concurrent use.
var zstdEncoder *zstd.Encoder
var zstdDecoder *zstd.Decoder

func init() {
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
}

func zstdBound(n int) int {
	return zstdEncoder.MaxEncodedSize(n)
}

func compressZSTD(dst, src []byte) (int, error) {
	res := zstdEncoder.EncodeAll(src, dst[:0])
	if len(res) >= len(src) {
		return 0, nil
	}
	if n := copy(dst, res); n != len(res) {
		return 0, fmt.Errorf("zstd: compressed block of %d bytes exceeds buffer of %d", len(res), len(dst))
	}
	return len(res), nil
}

func decompressZSTD(dst, src []byte) error {
	res, err := zstdDecoder.DecodeAll(src, dst[:0])
	if err != nil {
		return fmt.Errorf("%w: zstd: %v", ErrDecompress, err)
	}
	if len(res) != len(dst) {
		return fmt.Errorf("%w: zstd produced %d bytes, expected %d", ErrDecompress, len(res), len(dst))
	}
	copy(dst, res)
	return nil
}
