package vsfs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ReadAt seeks `volume` to `offset` and fills `buf`. Running out of data
// before `buf` is full is a `*ShortReadErr`.
func ReadAt(volume io.ReadSeeker, offset Byte, buf []byte) error {
	if _, err := volume.Seek(int64(offset), io.SeekStart); err != nil {
		return fmt.Errorf("seeking to `%d`: %w", offset, err)
	}
	n, err := io.ReadFull(volume, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return &ShortReadErr{Offset: offset, Wanted: len(buf), Found: n}
		}
		return fmt.Errorf("reading at `%d`: %w", offset, err)
	}
	return nil
}

// WriteAt seeks `volume` to `offset` and writes all of `p`.
func WriteAt(volume io.WriteSeeker, offset Byte, p []byte) error {
	if _, err := volume.Seek(int64(offset), io.SeekStart); err != nil {
		return fmt.Errorf("seeking to `%d`: %w", offset, err)
	}
	n, err := volume.Write(p)
	if err != nil {
		return fmt.Errorf("writing at `%d`: %w", offset, err)
	}
	if n != len(p) {
		return &ShortWriteErr{Offset: offset, Wanted: len(p), Found: n}
	}
	return nil
}

// ReadBlock reads the block at the absolute byte address `addr`.
func ReadBlock(fs *FileSystem, addr Byte, buf *[BlockSize]byte) error {
	if err := ReadAt(fs.Volume, addr, buf[:]); err != nil {
		return fmt.Errorf("reading block at `%d`: %w", addr, err)
	}
	return nil
}

// WriteBlock writes the block at the absolute byte address `addr`.
func WriteBlock(fs *FileSystem, addr Byte, buf *[BlockSize]byte) error {
	if err := WriteAt(fs.Volume, addr, buf[:]); err != nil {
		return fmt.Errorf("writing block at `%d`: %w", addr, err)
	}
	return nil
}

func putU16(p []byte, u uint16) { binary.LittleEndian.PutUint16(p, u) }

func putU32(p []byte, u uint32) { binary.LittleEndian.PutUint32(p, u) }

func putU64(p []byte, u uint64) { binary.LittleEndian.PutUint64(p, u) }

func getU16(p []byte) uint16 { return binary.LittleEndian.Uint16(p) }

func getU32(p []byte) uint32 { return binary.LittleEndian.Uint32(p) }

func getU64(p []byte) uint64 { return binary.LittleEndian.Uint64(p) }
