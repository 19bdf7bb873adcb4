package vsfs

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// FileSystem drives one vsfs volume. It is not safe for concurrent use;
// callers sharing a FileSystem must serialize every call.
type FileSystem struct {
	Volume     io.ReadWriteSeeker
	Superblock Superblock
	Layout     Layout

	// Root is the root directory's inode. It is loaded at mount time when
	// `MountOptions.ReadRootInode` is set and kept current by `WriteInode`.
	Root       Inode
	InodeCache Cache
	TimeFunc   func() time.Time
	Logger     *slog.Logger
}

type MountOptions struct {
	ReadRootInode bool
	CacheCapacity int
	Logger        *slog.Logger
}

// Mount validates the superblock on `volume` and returns a driver for it.
// Nil options mount with the defaults.
func Mount(volume io.ReadWriteSeeker, opts *MountOptions) (*FileSystem, error) {
	if opts == nil {
		opts = &MountOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	fs := &FileSystem{
		Volume:     volume,
		InodeCache: NewCache(opts.CacheCapacity),
		TimeFunc:   time.Now,
		Logger:     logger,
	}
	if err := ReadSuperblock(fs); err != nil {
		return nil, fmt.Errorf("mounting filesystem: %w", err)
	}
	fs.Layout = fs.Superblock.Layout()

	if opts.ReadRootInode {
		root, err := ReadInode(fs, InoRoot)
		if err != nil {
			return nil, fmt.Errorf("mounting filesystem: %w", err)
		}
		fs.Root = root
	}

	fs.Logger.Info(
		"mounted filesystem",
		"inodes", fs.Superblock.InodeCount,
		"dataBlocks", fs.Superblock.DataBlockCount,
	)
	return fs, nil
}

type FormatOptions struct {
	InodeCount     Ino
	DataBlockCount Block

	// Time stamps the root directory. Defaults to the current time.
	Time          time.Time
	CacheCapacity int
	Logger        *slog.Logger
}

// Format writes an empty volume to `volume` (superblock, then zeroed
// bitmaps, inode table and data region), creates the root directory with
// its "." and ".." entries and returns the mounted driver.
func Format(volume io.ReadWriteSeeker, opts *FormatOptions) (*FileSystem, error) {
	if opts == nil {
		return nil, fmt.Errorf("formatting filesystem: missing options")
	}
	if opts.InodeCount <= InoRoot {
		return nil, fmt.Errorf(
			"formatting filesystem: need more than `%d` inodes; found `%d`",
			InoRoot,
			opts.InodeCount,
		)
	}
	if opts.DataBlockCount < 1 {
		return nil, fmt.Errorf(
			"formatting filesystem: need at least `1` data block",
		)
	}

	superblock := Superblock{
		InodeCount:     opts.InodeCount,
		DataBlockCount: opts.DataBlockCount,
	}
	var buf [BlockSize]byte
	EncodeSuperblock(&superblock, &buf)
	if err := WriteAt(volume, SuperblockOffset, buf[:]); err != nil {
		return nil, fmt.Errorf("formatting filesystem: writing superblock: %w", err)
	}

	var zeros [BlockSize]byte
	layout := superblock.Layout()
	for addr := layout.InodeBitmapOffset(); addr < layout.Size(); addr += BlockSize {
		if err := WriteAt(volume, addr, zeros[:]); err != nil {
			return nil, fmt.Errorf("formatting filesystem: zeroing: %w", err)
		}
	}

	fs, err := Mount(volume, &MountOptions{
		CacheCapacity: opts.CacheCapacity,
		Logger:        opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("formatting filesystem: %w", err)
	}

	now := opts.Time
	if now.IsZero() {
		now = time.Now()
	}
	fs.TimeFunc = func() time.Time { return now }
	defer func() { fs.TimeFunc = time.Now }()

	root := NewInode(ModeDir|0o755, now)
	if err := WriteInode(fs, InoRoot, &root); err != nil {
		return nil, fmt.Errorf("formatting filesystem: %w", err)
	}
	dir := Directory{Ino: InoRoot, Inode: root}
	if err := dir.appendEntry(fs, InoRoot, "."); err != nil {
		return nil, fmt.Errorf("formatting filesystem: %w", err)
	}
	if err := dir.appendEntry(fs, InoRoot, ".."); err != nil {
		return nil, fmt.Errorf("formatting filesystem: %w", err)
	}

	fs.Logger.Info(
		"formatted filesystem",
		"inodes", superblock.InodeCount,
		"dataBlocks", superblock.DataBlockCount,
		"size", layout.Size(),
	)
	return fs, nil
}

type Stats struct {
	InodeCount     Ino    `json:"inodeCount"`
	FreeInodes     uint64 `json:"freeInodes"`
	DataBlockCount Block  `json:"dataBlockCount"`
	FreeDataBlocks uint64 `json:"freeDataBlocks"`
	Size           Byte   `json:"size"`
}

// Stat counts the free inodes and data blocks. Reserved inode indices count
// as used.
func Stat(fs *FileSystem) (Stats, error) {
	layout := fs.Layout
	usedInodes, err := countBitmap(
		fs,
		layout.InodeBitmapOffset(),
		layout.InodeBitmapBlocks,
		uint64(layout.InodeCount),
	)
	if err != nil {
		return Stats{}, fmt.Errorf("statting filesystem: %w", err)
	}
	usedBlocks, err := countBitmap(
		fs,
		layout.DataBitmapOffset(),
		layout.DataBitmapBlocks,
		uint64(layout.DataBlockCount),
	)
	if err != nil {
		return Stats{}, fmt.Errorf("statting filesystem: %w", err)
	}

	total := uint64(layout.InodeCount)
	used := min(total, usedInodes+min(total, uint64(InoRoot)))
	return Stats{
		InodeCount:     layout.InodeCount,
		FreeInodes:     total - used,
		DataBlockCount: layout.DataBlockCount,
		FreeDataBlocks: uint64(layout.DataBlockCount) - usedBlocks,
		Size:           layout.Size(),
	}, nil
}
