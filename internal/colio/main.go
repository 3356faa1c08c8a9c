// Package colio provides fixed-width little-endian reading and writing over
// seekable streams. All multi-byte integers of the column format are
// little-endian on disk.
package colio

import (
	"encoding/binary"
	"io"
)

type StructuredWriter struct {
	w io.WriteSeeker
}

func NewStructuredWriter(w io.WriteSeeker) *StructuredWriter {
	return &StructuredWriter{w: w}
}

// Write writes data to the underlying stream with no special formatting.
func (sw *StructuredWriter) Write(p []byte) (int, error) {
	n, err := sw.w.Write(p)
	if err == nil && n != len(p) {
		return n, io.ErrShortWrite
	}
	return n, err
}

// Position returns the current offset of the underlying stream.
func (sw *StructuredWriter) Position() (uint64, error) {
	pos, err := sw.w.Seek(0, io.SeekCurrent)
	return uint64(pos), err
}

// SeekTo moves the underlying stream to an absolute offset.
func (sw *StructuredWriter) SeekTo(offset uint64) error {
	_, err := sw.w.Seek(int64(offset), io.SeekStart)
	return err
}

// SeekEnd moves the underlying stream to its end.
func (sw *StructuredWriter) SeekEnd() error {
	_, err := sw.w.Seek(0, io.SeekEnd)
	return err
}

// WriteUint32 writes a 32-bit unsigned integer to the underlying stream.
func (sw *StructuredWriter) WriteUint32(value uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	_, err := sw.Write(buf[:])
	return err
}

// WriteUint64 writes a 64-bit unsigned integer to the underlying stream.
func (sw *StructuredWriter) WriteUint64(value uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	_, err := sw.Write(buf[:])
	return err
}

type StructuredReader struct {
	r io.ReadSeeker
}

func NewStructuredReader(r io.ReadSeeker) *StructuredReader {
	return &StructuredReader{r: r}
}

// ReadFull fills p from the underlying stream; a short read is an error.
func (sr *StructuredReader) ReadFull(p []byte) error {
	_, err := io.ReadFull(sr.r, p)
	return err
}

// SeekTo moves the underlying stream to an absolute offset.
func (sr *StructuredReader) SeekTo(offset uint64) error {
	_, err := sr.r.Seek(int64(offset), io.SeekStart)
	return err
}

// ReadUint32 reads a 32-bit unsigned integer from the underlying stream.
func (sr *StructuredReader) ReadUint32() (uint32, error) {
	var buf [4]byte
	if err := sr.ReadFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadUint64 reads a 64-bit unsigned integer from the underlying stream.
func (sr *StructuredReader) ReadUint64() (uint64, error) {
	var buf [8]byte
	if err := sr.ReadFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
