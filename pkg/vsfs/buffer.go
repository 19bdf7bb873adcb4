package vsfs

import (
	"fmt"
	"io"
)

// Buffer is an in-memory volume. It grows when written or seeked past its
// end, which lets `Format` lay out a fresh image without sizing it first.
type Buffer struct {
	data   []byte
	cursor int
}

var _ io.ReadWriteSeeker = (*Buffer)(nil)

func NewBuffer(data []byte) *Buffer { return &Buffer{data: data} }

func (b *Buffer) Write(p []byte) (int, error) {
	if b.cursor+len(p) > len(b.data) {
		b.data = append(b.data[:b.cursor], p...)
	} else {
		// overwrite in place so bytes following p survive
		copy(b.data[b.cursor:], p)
	}
	b.cursor += len(p)
	return len(p), nil
}

func (b *Buffer) Read(p []byte) (int, error) {
	if b.cursor >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.cursor:])
	b.cursor += n
	return n, nil
}

func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	var relativeTo int
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		relativeTo = b.cursor
	case io.SeekEnd:
		relativeTo = len(b.data)
	default:
		return int64(b.cursor), fmt.Errorf("seeking buffer: invalid whence `%d`", whence)
	}
	cursor := relativeTo + int(offset)
	if cursor < 0 {
		return int64(b.cursor), fmt.Errorf(
			"seeking buffer to `%d`: %w",
			cursor,
			InvalidOffsetErr,
		)
	}
	b.cursor = cursor
	if remainder := b.cursor - len(b.data); remainder > 0 {
		b.data = append(b.data, make([]byte, remainder)...)
	}
	return int64(b.cursor), nil
}

func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) Len() int { return len(b.data) }
