package column

// jobLayout describes how a column's blocks are grouped into write jobs.
// Blocks are grouped so that each job flushes one larger chunk to the output
// stream instead of firing one write per block.
type jobLayout struct {
	numBlocks    int
	threads      int
	blocksPerJob int
	numJobs      int
}

func partition(rowCount uint64, maxThreads int) jobLayout {
	numBlocks := int(1 + (rowCount-1)/BLOCK_SIZE)

	threads := maxThreads
	if threads > numBlocks {
		threads = numBlocks
	}
	if threads < 1 {
		threads = 1
	}

	blocksPerJob := 1 + (numBlocks-1)/threads
	if blocksPerJob > BATCH_SIZE_WRITE_CHAR {
		blocksPerJob = BATCH_SIZE_WRITE_CHAR
	}

	return jobLayout{
		numBlocks:    numBlocks,
		threads:      threads,
		blocksPerJob: blocksPerJob,
		numJobs:      1 + (numBlocks-1)/blocksPerJob,
	}
}

// blockElems returns the element count of a block; only the final block of a
// column may hold fewer than BLOCK_SIZE elements.
func blockElems(blockNr int, vecLength uint64) int {
	end := (uint64(blockNr) + 1) * BLOCK_SIZE
	if end > vecLength {
		end = vecLength
	}
	return int(end - uint64(blockNr)*BLOCK_SIZE)
}
