package vsfs

import (
	"errors"
	"fmt"
)

type ConstError string

func (err ConstError) Error() string { return string(err) }

const (
	BadMagicErr          ConstError = "bad magic"
	OutOfInodesErr       ConstError = "out of inodes"
	OutOfDiskSpaceErr    ConstError = "out of disk space"
	InodeIndexEmptyErr   ConstError = "inode index empty"
	InvalidOffsetErr     ConstError = "invalid offset"
	FileNameTooLongErr   ConstError = "file name too long"
	FileAlreadyExistsErr ConstError = "file already exists"
	FileTooLargeErr      ConstError = "file too large"
	InvalidNameErr       ConstError = "invalid file name"
	NotDirErr            ConstError = "not a directory"
	IsDirErr             ConstError = "is a directory"
	NotFoundErr          ConstError = "no such file or directory"
	DirNotEmptyErr       ConstError = "directory not empty"
	EntryTooShortErr     ConstError = "directory entry too short"
)

func isNotFound(err error) bool { return errors.Is(err, NotFoundErr) }

type Region string

const (
	RegionInode Region = "inode"
	RegionData  Region = "data block"
)

// IndexOutOfRangeErr is returned when an inode or data block index falls
// outside of the counts recorded in the superblock.
type IndexOutOfRangeErr struct {
	Region Region
	Index  uint32
	Count  uint32
}

func (err *IndexOutOfRangeErr) Error() string {
	return fmt.Sprintf(
		"%s index `%d` out of range: volume has `%d`",
		err.Region,
		err.Index,
		err.Count,
	)
}

type ShortReadErr struct {
	Offset Byte
	Wanted int
	Found  int
}

func (err *ShortReadErr) Error() string {
	return fmt.Sprintf(
		"short read at `%d`: wanted `%d` bytes; found `%d`",
		err.Offset,
		err.Wanted,
		err.Found,
	)
}

type ShortWriteErr struct {
	Offset Byte
	Wanted int
	Found  int
}

func (err *ShortWriteErr) Error() string {
	return fmt.Sprintf(
		"short write at `%d`: wanted `%d` bytes; wrote `%d`",
		err.Offset,
		err.Wanted,
		err.Found,
	)
}
