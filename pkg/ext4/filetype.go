package ext4

import "fmt"

type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeRegular
	FileTypeDir
	FileTypeCharDev
	FileTypeBlockDev
	FileTypeFifo
	FileTypeSocket
	FileTypeSymlink
)

func (fileType FileType) String() string {
	switch fileType {
	case FileTypeRegular:
		return "Regular"
	case FileTypeDir:
		return "Dir"
	case FileTypeCharDev:
		return "CharDev"
	case FileTypeBlockDev:
		return "BlockDev"
	case FileTypeFifo:
		return "Fifo"
	case FileTypeSocket:
		return "Socket"
	case FileTypeSymlink:
		return "Symlink"
	default:
		return "Unknown"
	}
}

// FileTypeFromMode maps the type nibble of an inode's mode.
func FileTypeFromMode(mode uint16) FileType {
	switch mode >> 12 {
	case 1:
		return FileTypeFifo
	case 2:
		return FileTypeCharDev
	case 4:
		return FileTypeDir
	case 6:
		return FileTypeBlockDev
	case 8:
		return FileTypeRegular
	case 10:
		return FileTypeSymlink
	case 12:
		return FileTypeSocket
	default:
		return FileTypeUnknown
	}
}

// FileTypeFromDirent maps the `file_type` byte of a directory entry. The
// dirent numbering differs from the mode nibble.
func FileTypeFromDirent(b uint8) FileType {
	switch b {
	case 1:
		return FileTypeRegular
	case 2:
		return FileTypeDir
	case 3:
		return FileTypeCharDev
	case 4:
		return FileTypeBlockDev
	case 5:
		return FileTypeFifo
	case 6:
		return FileTypeSocket
	case 7:
		return FileTypeSymlink
	default:
		return FileTypeUnknown
	}
}

type ErrInvalidFileType struct {
	Wanted, Found FileType
}

func (err ErrInvalidFileType) Error() string {
	return fmt.Sprintf(
		"invalid file type: wanted `%s`; found `%s`",
		err.Wanted,
		err.Found,
	)
}
