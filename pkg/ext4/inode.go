package ext4

import (
	"encoding/binary"
	"fmt"
)

type Ino uint32

const (
	RootIno Ino = 2

	InodeFlagExtents    uint32 = 0x00080000
	InodeFlagInlineData uint32 = 0x10000000

	// InodeBlockSize is the size of `i_block`, which holds either 15 block
	// pointers or the root of an extent tree.
	InodeBlockSize = 60
)

type Inode struct {
	Ino        Ino
	Mode       uint16
	UID        uint32
	GID        uint32
	Size       uint64
	ATime      uint32
	CTime      uint32
	MTime      uint32
	DTime      uint32
	LinksCount uint16
	Flags      uint32
	Block      [InodeBlockSize]byte
}

func (inode *Inode) FileType() FileType { return FileTypeFromMode(inode.Mode) }

func (inode *Inode) IsDir() bool { return inode.FileType() == FileTypeDir }

func (inode *Inode) HasExtents() bool { return inode.Flags&InodeFlagExtents != 0 }

// BlockPointer returns the `i`-th of the 15 legacy block pointers.
func (inode *Inode) BlockPointer(i int) uint32 {
	return binary.LittleEndian.Uint32(inode.Block[i*4:])
}

type ErrInodeTooShort struct {
	Size int
}

func (err ErrInodeTooShort) Error() string {
	return fmt.Sprintf("inode record of `%d` bytes is too short", err.Size)
}

func DecodeInode(ino Ino, b []byte) (Inode, error) {
	if len(b) < 128 {
		return Inode{}, fmt.Errorf(
			"decoding inode `%d`: %w",
			ino,
			ErrInodeTooShort{len(b)},
		)
	}
	le := binary.LittleEndian
	inode := Inode{
		Ino:        ino,
		Mode:       le.Uint16(b[0x00:]),
		UID:        uint32(le.Uint16(b[0x02:])) | uint32(le.Uint16(b[0x78:]))<<16,
		GID:        uint32(le.Uint16(b[0x18:])) | uint32(le.Uint16(b[0x7a:]))<<16,
		Size:       uint64(le.Uint32(b[0x04:])) | uint64(le.Uint32(b[0x6c:]))<<32,
		ATime:      le.Uint32(b[0x08:]),
		CTime:      le.Uint32(b[0x0c:]),
		MTime:      le.Uint32(b[0x10:]),
		DTime:      le.Uint32(b[0x14:]),
		LinksCount: le.Uint16(b[0x1a:]),
		Flags:      le.Uint32(b[0x20:]),
	}
	copy(inode.Block[:], b[0x28:0x28+InodeBlockSize])
	return inode, nil
}
