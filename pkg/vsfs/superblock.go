package vsfs

import "fmt"

// Ino is the index of an inode in the inode table.
type Ino uint32

// Block is the index of a block in the data region.
type Block uint32

// Byte is an absolute byte address on the volume or a byte offset within a
// file.
type Byte int64

const (
	BlockSize Byte = 4096

	SuperblockOffset Byte = 0
	SuperblockMagic       = "vsfs"

	// InoTombstone marks a deleted directory entry; it is never allocated.
	InoTombstone Ino = 0

	// InoReserved is never allocated.
	InoReserved Ino = 1

	// InoRoot is the root directory's inode.
	InoRoot Ino = 2
)

type Superblock struct {
	InodeCount     Ino
	DataBlockCount Block
}

func (superblock *Superblock) Layout() Layout {
	return NewLayout(superblock.InodeCount, superblock.DataBlockCount)
}

const (
	superblockFieldMagic          = 0
	superblockFieldInodeCount     = superblockFieldMagic + len(SuperblockMagic)
	superblockFieldDataBlockCount = superblockFieldInodeCount + 4
	superblockFieldEOF            = superblockFieldDataBlockCount + 4
)

// EncodeSuperblock writes `superblock` into the beginning of `p`. The rest of
// the block is left untouched; callers pass a zeroed block.
func EncodeSuperblock(superblock *Superblock, p *[BlockSize]byte) {
	copy(p[superblockFieldMagic:], SuperblockMagic)
	putU32(p[superblockFieldInodeCount:], uint32(superblock.InodeCount))
	putU32(
		p[superblockFieldDataBlockCount:],
		uint32(superblock.DataBlockCount),
	)
}

func DecodeSuperblock(superblock *Superblock, p *[BlockSize]byte) error {
	magic := p[superblockFieldMagic:superblockFieldInodeCount]
	if string(magic) != SuperblockMagic {
		return fmt.Errorf(
			"decoding superblock: decoded magic `%#x`: %w",
			magic,
			BadMagicErr,
		)
	}
	*superblock = Superblock{
		InodeCount:     Ino(getU32(p[superblockFieldInodeCount:])),
		DataBlockCount: Block(getU32(p[superblockFieldDataBlockCount:])),
	}
	return nil
}

func ReadSuperblock(fs *FileSystem) error {
	var buf [BlockSize]byte
	if err := ReadBlock(fs, SuperblockOffset, &buf); err != nil {
		return fmt.Errorf("reading superblock: %w", err)
	}
	if err := DecodeSuperblock(&fs.Superblock, &buf); err != nil {
		return fmt.Errorf("reading superblock: %w", err)
	}
	return nil
}

func WriteSuperblock(fs *FileSystem) error {
	var buf [BlockSize]byte
	EncodeSuperblock(&fs.Superblock, &buf)
	if err := WriteBlock(fs, SuperblockOffset, &buf); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return nil
}
