package vsfs

import (
	"fmt"
	"time"
)

const (
	DirectBlocksCount   = 12
	IndirectBlocksCount = BlockSize / 4

	// MaxFileSize is the largest file addressable through the direct blocks
	// and a single indirect block.
	MaxFileSize = (DirectBlocksCount + IndirectBlocksCount) * BlockSize

	PhysicalInodeSize Byte = 94
	InodesPerBlock         = BlockSize / PhysicalInodeSize
)

type Mode uint16

const (
	ModeTypeMask Mode = 0o170000
	ModeDir      Mode = 0o040000
	ModeRegular  Mode = 0o100000
	ModePermMask Mode = 0o7777
)

func (mode Mode) IsDir() bool     { return mode&ModeTypeMask == ModeDir }
func (mode Mode) IsRegular() bool { return mode&ModeTypeMask == ModeRegular }
func (mode Mode) Perm() Mode      { return mode & ModePermMask }

func (mode Mode) String() string {
	const rwx = "rwxrwxrwx"
	buf := [10]byte{'-'}
	if mode.IsDir() {
		buf[0] = 'd'
	}
	for i := 0; i < 9; i++ {
		if mode&(1<<(8-i)) != 0 {
			buf[i+1] = rwx[i]
		} else {
			buf[i+1] = '-'
		}
	}
	return string(buf[:])
}

// Inode is the in-memory form of an inode. Block list slots are meaningful
// only up to `BlockCount()`; the remaining slots are zero.
type Inode struct {
	UID      uint32
	GID      uint32
	Mode     Mode
	Size     uint64
	ATime    uint64
	CTime    uint64
	MTime    uint64
	Blocks   [DirectBlocksCount]Block
	Indirect Block
}

func NewInode(mode Mode, t time.Time) Inode {
	now := uint64(t.Unix())
	return Inode{Mode: mode, ATime: now, CTime: now, MTime: now}
}

func (inode *Inode) IsDir() bool { return inode.Mode.IsDir() }

// BlockCount is the number of data blocks backing the inode's contents, not
// counting the indirect block.
func (inode *Inode) BlockCount() uint32 {
	return uint32(DivCeil(inode.Size, uint64(BlockSize)))
}

type inodeField int

const (
	inodeFieldUID inodeField = iota
	inodeFieldGID
	inodeFieldMode
	inodeFieldSize
	inodeFieldATime
	inodeFieldCTime
	inodeFieldMTime
	inodeFieldBlocks
	inodeFieldIndirect
	inodeFieldEOF
)

var (
	inodeFieldSizes = [inodeFieldEOF]Byte{
		inodeFieldUID:      4,
		inodeFieldGID:      4,
		inodeFieldMode:     2,
		inodeFieldSize:     8,
		inodeFieldATime:    8,
		inodeFieldCTime:    8,
		inodeFieldMTime:    8,
		inodeFieldBlocks:   DirectBlocksCount * 4,
		inodeFieldIndirect: 4,
	}

	inodeFieldOffsets = [inodeFieldEOF]Byte{} // generated in init
)

func init() {
	var offset Byte
	for field := inodeField(0); field < inodeFieldEOF; field++ {
		inodeFieldOffsets[field] = offset
		offset += inodeFieldSizes[field]
	}
	if offset != PhysicalInodeSize {
		panic(fmt.Sprintf(
			"inode fields total `%d` bytes; wanted `%d`",
			offset,
			PhysicalInodeSize,
		))
	}
}

func EncodeInode(inode *Inode, buf *[PhysicalInodeSize]byte) {
	p := buf[:]
	putU32(p[inodeFieldOffsets[inodeFieldUID]:], inode.UID)
	putU32(p[inodeFieldOffsets[inodeFieldGID]:], inode.GID)
	putU16(p[inodeFieldOffsets[inodeFieldMode]:], uint16(inode.Mode))
	putU64(p[inodeFieldOffsets[inodeFieldSize]:], inode.Size)
	putU64(p[inodeFieldOffsets[inodeFieldATime]:], inode.ATime)
	putU64(p[inodeFieldOffsets[inodeFieldCTime]:], inode.CTime)
	putU64(p[inodeFieldOffsets[inodeFieldMTime]:], inode.MTime)
	blocks := p[inodeFieldOffsets[inodeFieldBlocks]:]
	for i, block := range inode.Blocks {
		putU32(blocks[i*4:], uint32(block))
	}
	putU32(p[inodeFieldOffsets[inodeFieldIndirect]:], uint32(inode.Indirect))
}

func DecodeInode(inode *Inode, buf *[PhysicalInodeSize]byte) {
	p := buf[:]
	*inode = Inode{
		UID:      getU32(p[inodeFieldOffsets[inodeFieldUID]:]),
		GID:      getU32(p[inodeFieldOffsets[inodeFieldGID]:]),
		Mode:     Mode(getU16(p[inodeFieldOffsets[inodeFieldMode]:])),
		Size:     getU64(p[inodeFieldOffsets[inodeFieldSize]:]),
		ATime:    getU64(p[inodeFieldOffsets[inodeFieldATime]:]),
		CTime:    getU64(p[inodeFieldOffsets[inodeFieldCTime]:]),
		MTime:    getU64(p[inodeFieldOffsets[inodeFieldMTime]:]),
		Indirect: Block(getU32(p[inodeFieldOffsets[inodeFieldIndirect]:])),
	}
	blocks := p[inodeFieldOffsets[inodeFieldBlocks]:]
	for i := range inode.Blocks {
		inode.Blocks[i] = Block(getU32(blocks[i*4:]))
	}
}

// CreateInode persists `inode` at the lowest free inode index and returns
// that index. Indices below `InoRoot` are never handed out.
func CreateInode(fs *FileSystem, inode *Inode) (Ino, error) {
	layout := fs.Layout
	i, ok, err := scanBitmap(
		fs,
		layout.InodeBitmapOffset(),
		layout.InodeBitmapBlocks,
		uint64(InoRoot),
		uint64(layout.InodeCount),
	)
	if err != nil {
		return 0, fmt.Errorf("creating inode: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("creating inode: %w", OutOfInodesErr)
	}
	ino := Ino(i)
	if err := WriteInode(fs, ino, inode); err != nil {
		return 0, fmt.Errorf("creating inode: %w", err)
	}
	fs.Logger.Debug("created inode", "ino", ino, "mode", inode.Mode)
	return ino, nil
}

// ReadInode loads the inode at `ino`, failing with `InodeIndexEmptyErr` if
// its bitmap bit is low.
func ReadInode(fs *FileSystem, ino Ino) (Inode, error) {
	if inode, ok := fs.InodeCache.Get(ino); ok {
		return inode, nil
	}

	bitAddr, err := fs.Layout.InodeBitmapAddr(ino)
	if err != nil {
		return Inode{}, fmt.Errorf("reading inode `%d`: %w", ino, err)
	}
	used, err := readBit(fs, bitAddr)
	if err != nil {
		return Inode{}, fmt.Errorf("reading inode `%d`: %w", ino, err)
	}
	if !used {
		return Inode{}, fmt.Errorf(
			"reading inode `%d`: %w",
			ino,
			InodeIndexEmptyErr,
		)
	}

	addr, err := fs.Layout.InodeBlockAddr(ino)
	if err != nil {
		return Inode{}, fmt.Errorf("reading inode `%d`: %w", ino, err)
	}
	var buf [BlockSize]byte
	if err := ReadBlock(fs, addr.Block, &buf); err != nil {
		return Inode{}, fmt.Errorf("reading inode `%d`: %w", ino, err)
	}
	var inode Inode
	DecodeInode(
		&inode,
		(*[PhysicalInodeSize]byte)(buf[addr.Offset:addr.Offset+PhysicalInodeSize]),
	)
	fs.InodeCache.Push(ino, inode)
	return inode, nil
}

// WriteInode stores `inode` at `ino` and marks `ino` used. Inodes share
// table blocks, so the containing block is read, patched and rewritten.
func WriteInode(fs *FileSystem, ino Ino, inode *Inode) error {
	addr, err := fs.Layout.InodeBlockAddr(ino)
	if err != nil {
		return fmt.Errorf("writing inode `%d`: %w", ino, err)
	}
	bitAddr, err := fs.Layout.InodeBitmapAddr(ino)
	if err != nil {
		return fmt.Errorf("writing inode `%d`: %w", ino, err)
	}

	var buf [BlockSize]byte
	if err := ReadBlock(fs, addr.Block, &buf); err != nil {
		return fmt.Errorf("writing inode `%d`: %w", ino, err)
	}
	EncodeInode(
		inode,
		(*[PhysicalInodeSize]byte)(buf[addr.Offset:addr.Offset+PhysicalInodeSize]),
	)
	if err := WriteBlock(fs, addr.Block, &buf); err != nil {
		return fmt.Errorf("writing inode `%d`: %w", ino, err)
	}
	if err := writeBit(fs, bitAddr, true); err != nil {
		return fmt.Errorf("writing inode `%d`: marking used: %w", ino, err)
	}

	if ino == InoRoot {
		fs.Root = *inode
	}
	fs.InodeCache.Push(ino, *inode)
	return nil
}

// FreeInode marks `ino` unused. The inode's data blocks are not released;
// see `RemoveInode`.
func FreeInode(fs *FileSystem, ino Ino) error {
	bitAddr, err := fs.Layout.InodeBitmapAddr(ino)
	if err != nil {
		return fmt.Errorf("freeing inode `%d`: %w", ino, err)
	}
	if err := writeBit(fs, bitAddr, false); err != nil {
		return fmt.Errorf("freeing inode `%d`: %w", ino, err)
	}
	fs.InodeCache.Remove(ino)
	return nil
}

// RemoveInode releases every data block owned by `inode` and then frees
// `ino`.
func RemoveInode(fs *FileSystem, ino Ino, inode *Inode) error {
	if err := releaseInodeBlocks(
		fs,
		inode,
		0,
		inode.BlockCount(),
	); err != nil {
		return fmt.Errorf("removing inode `%d`: %w", ino, err)
	}
	inode.Size = 0
	if err := FreeInode(fs, ino); err != nil {
		return fmt.Errorf("removing inode `%d`: %w", ino, err)
	}
	return nil
}
