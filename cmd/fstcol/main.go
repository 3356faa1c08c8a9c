// fstcol writes and reads single character column files.
//
// A column file is an 8-byte row count followed by one character column. The
// write command reads one value per line from stdin, with \N marking a null.
//
//	fstcol write [-level n] [-threads n] [-encoding e] <file>
//	fstcol read <file> <start> <count>
//	fstcol push <file> <bucket> <key>
//	fstcol pull <file> <bucket> <key>
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/charygao/fstlib/internal/column"
	"github.com/charygao/fstlib/internal/store"
	"github.com/charygao/fstlib/pkg/stringvec"
	"github.com/charygao/fstlib/pkg/threads"
)

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "write":
		cmdWrite(os.Args[2:])
	case "read":
		cmdRead(os.Args[2:])
	case "push":
		cmdTransfer(os.Args[2:], true)
	case "pull":
		cmdTransfer(os.Args[2:], false)
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: fstcol write|read|push|pull ...")
	os.Exit(2)
}

func cmdWrite(args []string) {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	level := fs.Int("level", 0, "compression level in [0, 100]")
	threadCount := fs.Int("threads", 0, "thread count (0 = all cores)")
	encoding := fs.String("encoding", "utf8", "string encoding: native, latin1 or utf8")
	fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
	}

	enc, err := parseEncoding(*encoding)
	if err != nil {
		log.Fatalf("fstcol: %v", err)
	}
	threads.SetThreads(*threadCount)

	var values []string
	var nulls []bool
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		nulls = append(nulls, line == `\N`)
		if line == `\N` {
			line = ""
		}
		values = append(values, line)
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("fstcol: read stdin: %v", err)
	}

	file, err := os.Create(fs.Arg(0))
	if err != nil {
		log.Fatalf("fstcol: %v", err)
	}
	defer file.Close()

	var rowCount [8]byte
	binary.LittleEndian.PutUint64(rowCount[:], uint64(len(values)))
	if _, err := file.Write(rowCount[:]); err != nil {
		log.Fatalf("fstcol: %v", err)
	}

	written, err := column.WriteCharColumn(file, stringvec.New(values, nulls), *level, enc)
	if err != nil {
		log.Fatalf("fstcol: write column: %v", err)
	}
	if err := file.Close(); err != nil {
		log.Fatalf("fstcol: %v", err)
	}

	log.Printf("wrote %d rows, %d column bytes", len(values), written)
}

func cmdRead(args []string) {
	if len(args) != 3 {
		usage()
	}
	start, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		log.Fatalf("fstcol: start row: %v", err)
	}
	count, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		log.Fatalf("fstcol: row count: %v", err)
	}

	file, err := os.Open(args[0])
	if err != nil {
		log.Fatalf("fstcol: %v", err)
	}
	defer file.Close()

	var header [8]byte
	if _, err := io.ReadFull(file, header[:]); err != nil {
		log.Fatalf("fstcol: %v", err)
	}
	size := binary.LittleEndian.Uint64(header[:])

	if start >= size {
		log.Fatalf("fstcol: start row %d outside column of %d rows", start, size)
	}
	if start+count > size {
		count = size - start
	}

	vec := stringvec.NewEmpty()
	if err := column.ReadCharColumn(file, 8, start, count, size, vec); err != nil {
		log.Fatalf("fstcol: read column: %v", err)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	for i, value := range vec.Values() {
		if vec.Null(i) {
			value = `\N`
		}
		fmt.Fprintln(out, value)
	}
}

func cmdTransfer(args []string, push bool) {
	if len(args) != 3 {
		usage()
	}
	path, bucket, key := args[0], args[1], args[2]

	ctx := context.Background()
	st, err := store.New(ctx, bucket)
	if err != nil {
		log.Fatalf("fstcol: %v", err)
	}

	if push {
		err = st.Upload(ctx, key, path)
	} else {
		err = st.Download(ctx, key, path)
	}
	if err != nil {
		log.Fatalf("fstcol: %v", err)
	}
}

func parseEncoding(name string) (column.StringEncoding, error) {
	switch name {
	case "native":
		return column.EncodingNative, nil
	case "latin1":
		return column.EncodingLatin1, nil
	case "utf8":
		return column.EncodingUTF8, nil
	}
	return 0, fmt.Errorf("unknown encoding %q", name)
}
