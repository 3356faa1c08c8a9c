package compression

// StreamCompressor chooses a compression algorithm per block and reports the
// chosen code together with the compressed size. The choice is a pure
// function of the block number, so the emitted bytes do not depend on which
// thread handles which block.
type StreamCompressor interface {
	// CompressBufferSize returns the destination size needed to compress a
	// source of srcLen bytes with any algorithm this compressor may pick.
	CompressBufferSize(srcLen int) int

	// Compress writes the encoded block into dst and returns the written
	// size and the algorithm code. AlgoNone means dst holds a verbatim copy.
	Compress(dst, src []byte, blockNr int) (int, Algorithm, error)
}

// hit reports whether blockNr falls into the selected fraction: exactly pct
// out of every 100 consecutive block numbers.
func hit(blockNr, pct int) bool {
	return (blockNr+1)*pct/100 > blockNr*pct/100
}

func clampPct(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

type linearCompressor struct {
	algo Algorithm
	pct  int
}

// NewLinearCompressor compresses pct percent of blocks with the given
// algorithm and stores the rest verbatim.
func NewLinearCompressor(algo Algorithm, pct int) StreamCompressor {
	return &linearCompressor{algo: algo, pct: clampPct(pct)}
}

func (c *linearCompressor) CompressBufferSize(srcLen int) int {
	return CompressBound(srcLen)
}

func (c *linearCompressor) Compress(dst, src []byte, blockNr int) (int, Algorithm, error) {
	if hit(blockNr, c.pct) {
		n, err := compress(c.algo, dst, src)
		if err != nil {
			return 0, AlgoNone, err
		}
		if n > 0 && n < len(src) {
			return n, c.algo, nil
		}
	}
	return copy(dst, src), AlgoNone, nil
}

type compositeCompressor struct {
	primary   Algorithm
	secondary Algorithm
	pct       int
}

// NewCompositeCompressor compresses every block, using the primary algorithm
// for pct percent of blocks and the secondary one for the rest.
func NewCompositeCompressor(primary, secondary Algorithm, pct int) StreamCompressor {
	return &compositeCompressor{primary: primary, secondary: secondary, pct: clampPct(pct)}
}

func (c *compositeCompressor) CompressBufferSize(srcLen int) int {
	return CompressBound(srcLen)
}

func (c *compositeCompressor) Compress(dst, src []byte, blockNr int) (int, Algorithm, error) {
	algo := c.secondary
	if hit(blockNr, c.pct) {
		algo = c.primary
	}

	n, err := compress(algo, dst, src)
	if err != nil {
		return 0, AlgoNone, err
	}
	if n > 0 && n < len(src) {
		return n, algo, nil
	}
	return copy(dst, src), AlgoNone, nil
}
