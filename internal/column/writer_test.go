package column

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"testing"

	"github.com/charygao/fstlib/pkg/threads"
)

// memFile is an in-memory seekable read/write stream.
type memFile struct {
	data []byte
	pos  int64
}

func (f *memFile) Write(p []byte) (int, error) {
	end := f.pos + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[f.pos:end], p)
	f.pos = end
	return len(p), nil
}

func (f *memFile) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		f.pos = offset
	case io.SeekCurrent:
		f.pos += offset
	case io.SeekEnd:
		f.pos = int64(len(f.data)) + offset
	}
	if f.pos < 0 {
		return 0, fmt.Errorf("seek before start of stream")
	}
	return f.pos, nil
}

// testVec is a minimal string source over a value slice with nulls.
type testVec struct {
	values []string
	null   []bool
}

func (v *testVec) Len() uint64 {
	return uint64(len(v.values))
}

func (v *testVec) CalculateSizes(start uint64, nelem int, lengths []uint32, naBits []uint32) uint32 {
	for i := range naBits {
		naBits[i] = 0
	}
	total := uint32(0)
	anyNull := false
	for i := 0; i < nelem; i++ {
		idx := start + uint64(i)
		if v.null != nil && v.null[idx] {
			anyNull = true
			bit := uint(i + 1)
			naBits[bit/32] |= 1 << (bit % 32)
		} else {
			total += uint32(len(v.values[idx]))
		}
		lengths[i] = total
	}
	if anyNull {
		naBits[0] |= 1
	}
	return total
}

func (v *testVec) SerializeCharBlock(start uint64, nelem int, lengths []uint32, buf []byte) {
	pos := uint32(0)
	for i := 0; i < nelem; i++ {
		if end := lengths[i]; end > pos {
			copy(buf[pos:end], v.values[start+uint64(i)])
			pos = end
		}
	}
}

// testSink collects decoded elements.
type testSink struct {
	values   []string
	null     []bool
	encoding StringEncoding
}

func (s *testSink) AllocateVec(n uint64) {
	s.values = make([]string, n)
	s.null = make([]bool, n)
}

func (s *testSink) SetEncoding(enc StringEncoding) {
	s.encoding = enc
}

func (s *testSink) BufferToVec(nelem, startElem, endElem int, vecOffset uint64, lengths []uint32, naBits []uint32, chars []byte) {
	for i := startElem; i <= endElem; i++ {
		pos := vecOffset + uint64(i-startElem)
		bit := uint(i + 1)
		if naBits[0]&1 != 0 && naBits[bit/32]&(1<<(bit%32)) != 0 {
			s.null[pos] = true
			continue
		}
		begin := uint32(0)
		if i > 0 {
			begin = lengths[i-1]
		}
		s.values[pos] = string(chars[begin:lengths[i]])
	}
}

func writeColumn(t *testing.T, values []string, null []bool, level int, enc StringEncoding) (*memFile, uint64) {
	t.Helper()
	file := &memFile{}
	written, err := WriteCharColumn(file, &testVec{values: values, null: null}, level, enc)
	if err != nil {
		t.Fatalf("WriteCharColumn failed: %v", err)
	}
	if written != uint64(len(file.data)) {
		t.Fatalf("reported %d bytes written, file holds %d", written, len(file.data))
	}
	return file, written
}

func u32At(data []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(data[off:])
}

func u64At(data []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(data[off:])
}

func TestWriteUncompressed(t *testing.T) {
	t.Run("three short strings", func(t *testing.T) {
		file, written := writeColumn(t, []string{"a", "b", "c"}, nil, 0, EncodingUTF8)

		if written != 35 {
			t.Fatalf("column size = %d, want 35", written)
		}
		if flags := u32At(file.data, 0); flags != uint32(EncodingUTF8)<<1 {
			t.Errorf("encoded flags = %#x, want %#x", flags, uint32(EncodingUTF8)<<1)
		}
		if bs := u32At(file.data, 4); bs != BLOCK_SIZE {
			t.Errorf("block size = %d, want %d", bs, BLOCK_SIZE)
		}
		if end := u64At(file.data, 8); end != 35 {
			t.Errorf("block end offset = %d, want 35", end)
		}
		for i, want := range []uint32{1, 2, 3} {
			if got := u32At(file.data, 16+4*i); got != want {
				t.Errorf("lengths[%d] = %d, want %d", i, got, want)
			}
		}
		if na := u32At(file.data, 28); na != 0 {
			t.Errorf("na bits = %#x, want 0", na)
		}
		if chars := string(file.data[32:35]); chars != "abc" {
			t.Errorf("char payload = %q, want %q", chars, "abc")
		}
	})

	t.Run("null element", func(t *testing.T) {
		file, written := writeColumn(t, []string{"", "x"}, []bool{true, false}, 0, EncodingNative)

		if written != 29 {
			t.Fatalf("column size = %d, want 29", written)
		}
		if got, want := u32At(file.data, 16), uint32(0); got != want {
			t.Errorf("lengths[0] = %d, want %d", got, want)
		}
		if got, want := u32At(file.data, 20), uint32(1); got != want {
			t.Errorf("lengths[1] = %d, want %d", got, want)
		}
		if na := u32At(file.data, 24); na != 0b11 {
			t.Errorf("na bits = %#b, want 0b11", na)
		}
		if chars := string(file.data[28:29]); chars != "x" {
			t.Errorf("char payload = %q, want %q", chars, "x")
		}
	})

	t.Run("multibyte strings", func(t *testing.T) {
		file, written := writeColumn(t, []string{"α", "β"}, nil, 0, EncodingUTF8)

		if written != 32 {
			t.Fatalf("column size = %d, want 32", written)
		}
		if got, want := u32At(file.data, 16), uint32(2); got != want {
			t.Errorf("lengths[0] = %d, want %d", got, want)
		}
		if got, want := u32At(file.data, 20), uint32(4); got != want {
			t.Errorf("lengths[1] = %d, want %d", got, want)
		}
		if chars := string(file.data[28:32]); chars != "αβ" {
			t.Errorf("char payload = %q, want %q", chars, "αβ")
		}
	})

	t.Run("two blocks", func(t *testing.T) {
		values := make([]string, BLOCK_SIZE+1)
		for i := range values {
			values[i] = "abc"
		}
		file, _ := writeColumn(t, values, nil, 0, EncodingUTF8)

		// meta: header + two 8-byte index entries
		const meta = CHAR_HEADER_SIZE + 2*8
		naInts := 1 + BLOCK_SIZE/32
		block0 := 4*BLOCK_SIZE + 4*naInts + 3*BLOCK_SIZE
		block1 := 4 + 4 + 3

		if end := u64At(file.data, 8); end != uint64(meta+block0) {
			t.Errorf("block 0 end offset = %d, want %d", end, meta+block0)
		}
		if end := u64At(file.data, 16); end != uint64(meta+block0+block1) {
			t.Errorf("block 1 end offset = %d, want %d", end, meta+block0+block1)
		}
		if got := u32At(file.data, meta+4*(BLOCK_SIZE-1)); got != 3*BLOCK_SIZE {
			t.Errorf("block 0 final length = %d, want %d", got, 3*BLOCK_SIZE)
		}
		if got := u32At(file.data, meta+block0); got != 3 {
			t.Errorf("block 1 lengths[0] = %d, want 3", got)
		}
	})
}

func TestWriteEmptyInput(t *testing.T) {
	_, err := WriteCharColumn(&memFile{}, &testVec{}, 0, EncodingUTF8)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("error = %v, want ErrEmptyInput", err)
	}
}

func TestWriteLevelRange(t *testing.T) {
	values := []string{"a"}
	for _, level := range []int{-1, 101} {
		if _, err := WriteCharColumn(&memFile{}, &testVec{values: values}, level, EncodingUTF8); err == nil {
			t.Errorf("level %d accepted, want error", level)
		}
	}
}

// randomVec builds a reproducible vector with roughly 10 percent nulls and
// varying string lengths, including empty strings.
func randomVec(n int, seed int64) ([]string, []bool) {
	rng := rand.New(rand.NewSource(seed))
	values := make([]string, n)
	null := make([]bool, n)
	for i := range values {
		if rng.Intn(10) == 0 {
			null[i] = true
			continue
		}
		size := rng.Intn(24)
		chunk := make([]byte, size)
		for j := range chunk {
			chunk[j] = byte('a' + rng.Intn(26))
		}
		values[i] = string(chunk)
	}
	return values, null
}

func TestWriteDeterminism(t *testing.T) {
	values, null := randomVec(10_000, 42)

	for _, level := range []int{0, 1, 50, 100} {
		t.Run(fmt.Sprintf("level %d", level), func(t *testing.T) {
			var reference []byte
			for _, threadCount := range []int{1, 2, 4, 8} {
				prev := threads.SetThreads(threadCount)
				file, _ := writeColumn(t, values, null, level, EncodingUTF8)
				threads.SetThreads(prev)

				if reference == nil {
					reference = file.data
					continue
				}
				if !bytes.Equal(reference, file.data) {
					t.Fatalf("file bytes with %d threads differ from single-threaded output", threadCount)
				}
			}
		})
	}
}

func TestWriteCompressedIndexShape(t *testing.T) {
	values := make([]string, BLOCK_SIZE+1)
	for i := range values {
		values[i] = "the quick brown fox jumps over the lazy dog"
	}
	file, written := writeColumn(t, values, nil, 50, EncodingUTF8)

	if flags := u32At(file.data, 0); flags&1 != 1 {
		t.Fatalf("compression flag not set, flags = %#x", flags)
	}

	meta := CHAR_HEADER_SIZE + 2*CHAR_INDEX_SIZE
	end0 := u64At(file.data, CHAR_HEADER_SIZE)
	end1 := u64At(file.data, CHAR_HEADER_SIZE+CHAR_INDEX_SIZE)
	if end0 <= uint64(meta) || end1 <= end0 {
		t.Fatalf("end offsets %d, %d not strictly increasing past meta %d", end0, end1, meta)
	}
	if end1 != written {
		t.Errorf("final end offset = %d, want column size %d", end1, written)
	}

	// level 50 compresses every block with LZ4
	if algo := binary.LittleEndian.Uint16(file.data[CHAR_HEADER_SIZE+10:]); algo == 0 {
		t.Errorf("block 0 char payload stored verbatim, expected compression")
	}
	intBufSize := int32(u32At(file.data, CHAR_HEADER_SIZE+12))
	if intBufSize <= 0 || intBufSize > 4*BLOCK_SIZE {
		t.Errorf("block 0 lengths buffer size = %d out of range", intBufSize)
	}
}
