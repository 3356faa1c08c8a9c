// Package threads holds the process-wide thread count used by the parallel
// column writer and reader. The default is the number of logical CPUs.
package threads

import (
	"runtime"
	"sync/atomic"
)

var threadCount atomic.Int32

// GetThreads returns the number of threads the codec may use, always >= 1.
func GetThreads() int {
	n := threadCount.Load()
	if n < 1 {
		return runtime.NumCPU()
	}
	return int(n)
}

// SetThreads sets the number of threads the codec may use and returns the
// previous setting. Values below 1 reset to the default.
func SetThreads(n int) int {
	prev := GetThreads()
	if n < 1 {
		threadCount.Store(0)
		return prev
	}
	threadCount.Store(int32(n))
	return prev
}
