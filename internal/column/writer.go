package column

import (
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/charygao/fstlib/internal/colio"
	"github.com/charygao/fstlib/pkg/compression"
	"github.com/charygao/fstlib/pkg/threads"
)

// WriteCharColumn serializes src as a complete character column starting at
// the current position of w, leaves w at the end of the column and returns
// the number of bytes written. level selects the compression effort in
// [0, 100]; 0 writes an uncompressed column. The emitted bytes depend only on
// the inputs, never on the thread count.
//
// On any failure the stream is left at an unspecified position and the
// partial column should be discarded by the caller.
func WriteCharColumn(w io.WriteSeeker, src StringSource, level int, enc StringEncoding) (uint64, error) {
	vecLength := src.Len()
	if vecLength == 0 {
		return 0, ErrEmptyInput
	}
	if level < 0 || level > 100 {
		return 0, fmt.Errorf("compression level %d out of range [0, 100]", level)
	}

	lay := partition(vecLength, threads.GetThreads())
	compressed := level > 0
	entrySize := indexEntrySize(compressed)

	sw := colio.NewStructuredWriter(w)
	colPos, err := sw.Position()
	if err != nil {
		return 0, err
	}

	// write the header followed by a zeroed block index; the index is
	// patched once the last job has published its end offsets
	metaSize := CHAR_HEADER_SIZE + lay.numBlocks*entrySize
	meta := make([]byte, metaSize)
	encodeHeader(meta, compressed, enc)
	if _, err := sw.Write(meta); err != nil {
		return 0, err
	}

	var intComp, charComp compression.StreamCompressor
	if compressed {
		intComp, charComp = levelCompressors(level)
	}

	// one shared lengths slab, split into disjoint per-worker windows
	naWords := 1 + BLOCK_SIZE/32
	slabStride := lay.blocksPerJob * (BLOCK_SIZE + naWords)
	slab := make([]uint32, lay.threads*slabStride)

	jobs := make(chan int, lay.numJobs)
	for jobNr := 0; jobNr < lay.numJobs; jobNr++ {
		jobs <- jobNr
	}
	close(jobs)

	// turns[j] is closed when job j may publish; serialization work runs in
	// parallel but output is appended strictly in job order
	turns := make([]chan struct{}, lay.numJobs+1)
	for i := range turns {
		turns[i] = make(chan struct{})
	}
	close(turns[0])

	index := make([]blockIndexEntry, lay.numBlocks)
	columnSize := uint64(metaSize)
	var jobErr error

	g := new(errgroup.Group)
	for t := 0; t < lay.threads; t++ {
		worker := &writeWorker{
			src:        src,
			sw:         sw,
			lay:        lay,
			vecLength:  vecLength,
			compressed: compressed,
			intComp:    intComp,
			charComp:   charComp,
			slab:       slab[t*slabStride : (t+1)*slabStride],
			index:      index,
			turns:      turns,
			columnSize: &columnSize,
			err:        &jobErr,
		}
		g.Go(func() error {
			var firstErr error
			for jobNr := range jobs {
				// keep draining even after a failure so every turn in
				// the ring is passed on
				if err := worker.runJob(jobNr); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return firstErr
		})
	}
	err = g.Wait()

	if jobErr != nil {
		return 0, jobErr
	}
	if err != nil {
		return 0, err
	}

	// patch the block index now that every end offset is known
	if err := sw.SeekTo(colPos + CHAR_HEADER_SIZE); err != nil {
		return 0, err
	}
	patch := make([]byte, lay.numBlocks*entrySize)
	for i := range index {
		index[i].encode(patch[i*entrySize:], compressed)
	}
	if _, err := sw.Write(patch); err != nil {
		return 0, err
	}
	if err := sw.SeekEnd(); err != nil {
		return 0, err
	}

	return columnSize, nil
}

// levelCompressors maps a compression level to the stream compressors used
// for the lengths and char sections. Levels up to 50 mix verbatim and LZ4
// blocks linearly; higher levels compress every block, shifting from LZ4
// towards ZSTD.
func levelCompressors(level int) (compression.StreamCompressor, compression.StreamCompressor) {
	if level <= 50 {
		pct := 2 * level
		return compression.NewLinearCompressor(compression.AlgoLZ4, pct),
			compression.NewLinearCompressor(compression.AlgoLZ4, pct)
	}
	pct := 2 * (level - 50)
	return compression.NewCompositeCompressor(compression.AlgoZSTD, compression.AlgoLZ4, pct),
		compression.NewCompositeCompressor(compression.AlgoZSTD, compression.AlgoLZ4, pct)
}

// writeWorker holds the scratch state owned by one worker goroutine. Buffers
// grow with 10 percent over-allocation and are reused across jobs; they never
// shrink while the column is being written.
type writeWorker struct {
	src        StringSource
	sw         *colio.StructuredWriter
	lay        jobLayout
	vecLength  uint64
	compressed bool
	intComp    compression.StreamCompressor
	charComp   compression.StreamCompressor

	// slab is this worker's window of the shared lengths buffer: per block,
	// nelem cumulative lengths followed by the NA bitmap words
	slab []uint32

	index      []blockIndexEntry
	turns      []chan struct{}
	columnSize *uint64
	err        *error

	blockBuf  []byte // chars of a single uncompressed block
	threadBuf []byte // one job's serialized output
	lenBuf    []byte // little-endian lengths scratch for compression

	blockSizes [BATCH_SIZE_WRITE_CHAR]int
	entries    [BATCH_SIZE_WRITE_CHAR]blockIndexEntry
}

// runJob serializes one job's blocks into the thread buffer, then appends the
// buffer to the output stream inside the job's ordered turn. The turn ring is
// advanced even on failure so that no later job blocks forever; a latched
// error aborts all remaining publishes.
func (ws *writeWorker) runJob(jobNr int) error {
	totBatch, err := ws.computeJob(jobNr)

	startBlock := jobNr * ws.lay.blocksPerJob
	endBlock := min(startBlock+ws.lay.blocksPerJob, ws.lay.numBlocks)

	<-ws.turns[jobNr]
	if *ws.err == nil && err == nil {
		if _, werr := ws.sw.Write(ws.threadBuf[:totBatch]); werr != nil {
			err = werr
		} else {
			for blockNr := startBlock; blockNr < endBlock; blockNr++ {
				entry := ws.entries[blockNr-startBlock]
				*ws.columnSize += uint64(ws.blockSizes[blockNr-startBlock])
				entry.endOffset = *ws.columnSize
				ws.index[blockNr] = entry
			}
		}
	}
	if err != nil && *ws.err == nil {
		*ws.err = err
	}
	close(ws.turns[jobNr+1])
	return err
}

// computeJob fills the thread buffer with the serialized blocks of a job and
// returns the byte count to publish. Pure computation on worker-owned
// buffers; nothing here touches the output stream.
func (ws *writeWorker) computeJob(jobNr int) (int, error) {
	startBlock := jobNr * ws.lay.blocksPerJob
	endBlock := min(startBlock+ws.lay.blocksPerJob, ws.lay.numBlocks)
	stride := BLOCK_SIZE + 1 + BLOCK_SIZE/32

	// first pass: lengths and NA bits of every block, and the buffer sizes
	// this job needs
	maxBlockSize := 0
	rawBatchSize := 0
	for blockNr := startBlock; blockNr < endBlock; blockNr++ {
		nelem := blockElems(blockNr, ws.vecLength)
		naInts := 1 + nelem/32
		window := ws.slab[(blockNr-startBlock)*stride:]

		charSize := int(ws.src.CalculateSizes(uint64(blockNr)*BLOCK_SIZE, nelem, window[:nelem], window[nelem:nelem+naInts]))
		ws.blockSizes[blockNr-startBlock] = charSize + 4*(nelem+naInts)
		if charSize > maxBlockSize {
			maxBlockSize = charSize
		}
		rawBatchSize += charSize + 4*(nelem+naInts)
	}

	if err := growBuffer(&ws.blockBuf, maxBlockSize); err != nil {
		return 0, err
	}

	batchBound := rawBatchSize
	if ws.compressed {
		batchBound = 0
		for blockNr := startBlock; blockNr < endBlock; blockNr++ {
			nelem := blockElems(blockNr, ws.vecLength)
			naInts := 1 + nelem/32
			charSize := ws.blockSizes[blockNr-startBlock] - 4*(nelem+naInts)
			batchBound += ws.intComp.CompressBufferSize(4*nelem) + 4*naInts + ws.charComp.CompressBufferSize(charSize)
		}
		if err := growBuffer(&ws.lenBuf, 4*stride); err != nil {
			return 0, err
		}
	}
	if err := growBuffer(&ws.threadBuf, batchBound); err != nil {
		return 0, err
	}

	// second pass: serialize every block into the thread buffer
	totBatch := 0
	for blockNr := startBlock; blockNr < endBlock; blockNr++ {
		nelem := blockElems(blockNr, ws.vecLength)
		naInts := 1 + nelem/32
		window := ws.slab[(blockNr-startBlock)*stride:]
		lengths := window[:nelem]
		naBits := window[nelem : nelem+naInts]
		charSize := ws.blockSizes[blockNr-startBlock] - 4*(nelem+naInts)
		start := uint64(blockNr) * BLOCK_SIZE
		out := ws.threadBuf[totBatch:]

		if !ws.compressed {
			putUint32s(out, lengths)
			putUint32s(out[4*nelem:], naBits)
			ws.src.SerializeCharBlock(start, nelem, lengths, ws.blockBuf[:charSize])
			copy(out[4*(nelem+naInts):], ws.blockBuf[:charSize])
			totBatch += ws.blockSizes[blockNr-startBlock]
			continue
		}

		putUint32s(ws.lenBuf, lengths)
		intSize, algoInt, err := ws.intComp.Compress(out, ws.lenBuf[:4*nelem], blockNr)
		if err != nil {
			return 0, err
		}
		putUint32s(out[intSize:], naBits)

		ws.src.SerializeCharBlock(start, nelem, lengths, ws.blockBuf[:charSize])
		charCompSize, algoChar, err := ws.charComp.Compress(out[intSize+4*naInts:], ws.blockBuf[:charSize], blockNr)
		if err != nil {
			return 0, err
		}

		ws.blockSizes[blockNr-startBlock] = intSize + 4*naInts + charCompSize
		ws.entries[blockNr-startBlock] = blockIndexEntry{
			algoInt:    uint16(algoInt),
			algoChar:   uint16(algoChar),
			intBufSize: int32(intSize),
		}
		totBatch += ws.blockSizes[blockNr-startBlock]
	}

	return totBatch, nil
}

// growBuffer ensures buf holds at least need bytes, growing with 10 percent
// over-allocation. Capacity never shrinks.
func growBuffer(buf *[]byte, need int) error {
	if need > MAX_THREAD_BUFFER_BYTES {
		return fmt.Errorf("%w: %d bytes needed", ErrOversize, need)
	}
	if cap(*buf) < need {
		*buf = make([]byte, need+need/10)
	}
	*buf = (*buf)[:cap(*buf)]
	return nil
}
