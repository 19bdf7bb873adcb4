package ext4

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/weberc2/vsfs/pkg/vsfs"
)

// FileSystem reads an ext2, ext3 or ext4 volume. Nothing is ever written;
// journals are not replayed.
type FileSystem struct {
	Volume     io.ReadSeeker
	Superblock Superblock
	Groups     []GroupDesc
}

func Open(volume io.ReadSeeker) (*FileSystem, error) {
	var superblockBytes [SuperblockSize]byte
	if err := vsfs.ReadAt(volume, SuperblockOffset, superblockBytes[:]); err != nil {
		return nil, fmt.Errorf("opening filesystem: reading superblock: %w", err)
	}
	sb, err := DecodeSuperblock(&superblockBytes)
	if err != nil {
		return nil, fmt.Errorf("opening filesystem: %w", err)
	}
	if sb.BlocksPerGroup == 0 || sb.InodesPerGroup == 0 {
		return nil, fmt.Errorf(
			"opening filesystem: zero blocks or inodes per group",
		)
	}

	fs := &FileSystem{Volume: volume, Superblock: sb}
	fs.Groups = make([]GroupDesc, sb.GroupCount())
	tableOffset := (uint64(sb.FirstDataBlock) + 1) * fs.BlockSize()
	descBuf := make([]byte, sb.DescSize)
	for i := range fs.Groups {
		offset := tableOffset + uint64(i)*uint64(sb.DescSize)
		if err := fs.readAt(offset, descBuf); err != nil {
			return nil, fmt.Errorf(
				"opening filesystem: reading descriptor for group `%d`: %w",
				i,
				err,
			)
		}
		fs.Groups[i] = DecodeGroupDesc(descBuf)
	}
	return fs, nil
}

func (fs *FileSystem) BlockSize() uint64 { return fs.Superblock.BlockSize() }

func (fs *FileSystem) readAt(offset uint64, buf []byte) error {
	return vsfs.ReadAt(fs.Volume, vsfs.Byte(offset), buf)
}

func (fs *FileSystem) readBlock(block uint64, buf []byte) error {
	if block >= fs.Superblock.BlocksCount {
		return ErrBlockOutOfRange{block}
	}
	if err := fs.readAt(block*fs.BlockSize(), buf); err != nil {
		return fmt.Errorf("reading block `%d`: %w", block, err)
	}
	return nil
}

type ErrBlockOutOfRange struct {
	Block uint64
}

func (err ErrBlockOutOfRange) Error() string {
	return fmt.Sprintf("block `%#x` is out of range", err.Block)
}

type ErrInodeOutOfRange struct {
	Ino Ino
}

func (err ErrInodeOutOfRange) Error() string {
	return fmt.Sprintf("inode `%d` is out of range", err.Ino)
}

// LocateInode returns the byte offset of `ino`'s record.
func (fs *FileSystem) LocateInode(ino Ino) (uint64, error) {
	if ino < 1 || uint32(ino) > fs.Superblock.InodesCount {
		return 0, ErrInodeOutOfRange{ino}
	}
	group := uint64(ino-1) / uint64(fs.Superblock.InodesPerGroup)
	local := uint64(ino-1) % uint64(fs.Superblock.InodesPerGroup)
	if group >= uint64(len(fs.Groups)) {
		return 0, ErrInodeOutOfRange{ino}
	}
	return fs.Groups[group].InodeTable*fs.BlockSize() +
		local*uint64(fs.Superblock.InodeSize), nil
}

func (fs *FileSystem) ReadInode(ino Ino) (Inode, error) {
	offset, err := fs.LocateInode(ino)
	if err != nil {
		return Inode{}, fmt.Errorf("reading inode `%d`: %w", ino, err)
	}
	buf := make([]byte, fs.Superblock.InodeSize)
	if err := fs.readAt(offset, buf); err != nil {
		return Inode{}, fmt.Errorf("reading inode `%d`: %w", ino, err)
	}
	inode, err := DecodeInode(ino, buf)
	if err != nil {
		return Inode{}, fmt.Errorf("reading inode `%d`: %w", ino, err)
	}
	return inode, nil
}

// InodeBlock maps the `n`-th block of `inode` to a volume block. A false
// result means the block reads as zeros: it is a hole or an uninitialized
// extent.
func (fs *FileSystem) InodeBlock(inode *Inode, n uint64) (uint64, bool, error) {
	if inode.HasExtents() {
		extent, ok, err := fs.findExtent(inode.Block[:], n)
		if err != nil || !ok || extent.Uninit {
			return 0, false, err
		}
		return extent.Start + (n - uint64(extent.Block)), true, nil
	}

	pos := InodeBlockToPos(fs.BlockSize(), n)
	var block uint64
	switch pos.Level {
	case PosLevel0:
		block = uint64(inode.BlockPointer(int(pos.Data[0])))
	case PosLevel1, PosLevel2, PosLevel3:
		block = uint64(inode.BlockPointer(11 + int(pos.Level)))
		for _, entry := range pos.Data[:pos.Level] {
			if block == 0 {
				return 0, false, nil
			}
			next, err := fs.readIndirect(block, entry)
			if err != nil {
				return 0, false, fmt.Errorf(
					"getting block `%#x` for inode `%d`: %w",
					n,
					inode.Ino,
					err,
				)
			}
			block = next
		}
	default:
		return 0, false, fmt.Errorf(
			"getting block `%#x` for inode `%d`: %w",
			n,
			inode.Ino,
			ErrBlockOutOfRange{n},
		)
	}
	return block, block != 0, nil
}

func (fs *FileSystem) readIndirect(indirectBlock, entry uint64) (uint64, error) {
	if indirectBlock >= fs.Superblock.BlocksCount {
		return 0, ErrBlockOutOfRange{indirectBlock}
	}
	var b [4]byte
	if err := fs.readAt(indirectBlock*fs.BlockSize()+entry*4, b[:]); err != nil {
		return 0, fmt.Errorf(
			"reading indirect block `%#x` at entry `%#x`: %w",
			indirectBlock,
			entry,
			err,
		)
	}
	return uint64(binary.LittleEndian.Uint32(b[:])), nil
}

// ReadInodeData copies `inode`'s contents starting at `offset` into `b`,
// stopping at the end of the file.
func (fs *FileSystem) ReadInodeData(inode *Inode, offset uint64, b []byte) (int, error) {
	if offset >= inode.Size {
		return 0, nil
	}
	blockSize := fs.BlockSize()
	length := min(uint64(len(b)), inode.Size-offset)
	buf := make([]byte, blockSize)
	var done uint64
	for done < length {
		chunkBlock := (offset + done) / blockSize
		chunkOffset := (offset + done) % blockSize
		chunkLength := min(length-done, blockSize-chunkOffset)

		block, ok, err := fs.InodeBlock(inode, chunkBlock)
		if err != nil {
			return int(done), fmt.Errorf("reading inode `%d` data: %w", inode.Ino, err)
		}
		if ok {
			if err := fs.readBlock(block, buf); err != nil {
				return int(done), fmt.Errorf("reading inode `%d` data: %w", inode.Ino, err)
			}
		} else {
			clear(buf)
		}
		copy(b[done:done+chunkLength], buf[chunkOffset:])
		done += chunkLength
	}
	return int(done), nil
}

type ErrFileTooLarge struct {
	Ino  Ino
	Size uint64
}

func (err ErrFileTooLarge) Error() string {
	return fmt.Sprintf(
		"inode `%d` size `%d` exceeds the volume",
		err.Ino,
		err.Size,
	)
}

type ErrInlineData struct {
	Ino Ino
}

func (err ErrInlineData) Error() string {
	return fmt.Sprintf("inode `%d` stores its data inline", err.Ino)
}

// ReadFile returns the whole contents of the regular file at `ino`.
func (fs *FileSystem) ReadFile(ino Ino) ([]byte, error) {
	inode, err := fs.ReadInode(ino)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if fileType := inode.FileType(); fileType != FileTypeRegular {
		return nil, fmt.Errorf(
			"reading file `%d`: %w",
			ino,
			ErrInvalidFileType{Wanted: FileTypeRegular, Found: fileType},
		)
	}
	return fs.readAll(&inode)
}

func (fs *FileSystem) readAll(inode *Inode) ([]byte, error) {
	if inode.Flags&InodeFlagInlineData != 0 {
		return nil, ErrInlineData{inode.Ino}
	}
	// the recorded size is untrusted; refuse anything larger than the volume
	if inode.Size/fs.BlockSize() >= fs.Superblock.BlocksCount {
		return nil, ErrFileTooLarge{Ino: inode.Ino, Size: inode.Size}
	}
	data := make([]byte, inode.Size)
	n, err := fs.ReadInodeData(inode, 0, data)
	if err != nil {
		return nil, err
	}
	return data[:n], nil
}
