package notestore

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// NewCompressedWriter wraps w so exports are written zstd-compressed.
// Callers must Close the returned writer to flush the final frame.
func NewCompressedWriter(w io.Writer) (io.WriteCloser, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("create zstd writer: %w", err)
	}
	return enc, nil
}

// OpenArchive returns a reader over r that transparently decompresses
// zstd input. Plain input is passed through.
func OpenArchive(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read import header: %w", err)
	}
	if !bytes.Equal(head, zstdMagic) {
		return br, nil
	}

	dec, err := zstd.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	return dec.IOReadCloser(), nil
}
