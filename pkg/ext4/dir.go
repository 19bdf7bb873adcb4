package ext4

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const dirEntryHeaderSize = 8

type DirEntry struct {
	Ino      Ino
	Name     string
	FileType FileType
}

type ErrCorruptDirEntry struct {
	Dir    Ino
	Offset uint64
}

func (err ErrCorruptDirEntry) Error() string {
	return fmt.Sprintf(
		"corrupt entry in directory `%d` at offset `%d`",
		err.Dir,
		err.Offset,
	)
}

type ErrNotFound struct {
	Path string
}

func (err ErrNotFound) Error() string {
	return fmt.Sprintf("no such file or directory: `%s`", err.Path)
}

// ReadDir lists the live entries of the directory at `ino`. Hashed
// directories are read linearly; their index blocks hold no live entries.
func (fs *FileSystem) ReadDir(ino Ino) ([]DirEntry, error) {
	inode, err := fs.ReadInode(ino)
	if err != nil {
		return nil, fmt.Errorf("reading dir: %w", err)
	}
	if fileType := inode.FileType(); fileType != FileTypeDir {
		return nil, fmt.Errorf(
			"reading dir `%d`: %w",
			ino,
			ErrInvalidFileType{Wanted: FileTypeDir, Found: fileType},
		)
	}
	data, err := fs.readAll(&inode)
	if err != nil {
		return nil, fmt.Errorf("reading dir `%d`: %w", ino, err)
	}

	hasFileType := fs.Superblock.FeatureIncompat&IncompatFileType != 0
	blockSize := fs.BlockSize()
	var entries []DirEntry
	for offset := uint64(0); offset < uint64(len(data)); {
		rest := data[offset:]
		if len(rest) < dirEntryHeaderSize {
			return nil, fmt.Errorf(
				"reading dir `%d`: %w",
				ino,
				ErrCorruptDirEntry{ino, offset},
			)
		}
		le := binary.LittleEndian
		entryIno := Ino(le.Uint32(rest[0:]))
		recLen := uint64(le.Uint16(rest[4:]))
		nameLen := uint64(le.Uint16(rest[6:]))
		fileType := FileTypeUnknown
		if hasFileType {
			nameLen = uint64(rest[6])
			fileType = FileTypeFromDirent(rest[7])
		}

		// records never cross a block boundary
		if recLen < dirEntryHeaderSize ||
			recLen > uint64(len(rest)) ||
			offset%blockSize+recLen > blockSize ||
			dirEntryHeaderSize+nameLen > recLen {
			return nil, fmt.Errorf(
				"reading dir `%d`: %w",
				ino,
				ErrCorruptDirEntry{ino, offset},
			)
		}
		if entryIno != 0 && nameLen > 0 {
			entries = append(entries, DirEntry{
				Ino:      entryIno,
				Name:     string(rest[dirEntryHeaderSize : dirEntryHeaderSize+nameLen]),
				FileType: fileType,
			})
		}
		offset += recLen
	}
	return entries, nil
}

// LookupPath resolves a slash-separated `path` from the root directory.
func (fs *FileSystem) LookupPath(path string) (Ino, Inode, error) {
	ino := RootIno
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." {
			continue
		}
		entries, err := fs.ReadDir(ino)
		if err != nil {
			return 0, Inode{}, fmt.Errorf("looking up `%s`: %w", path, err)
		}
		found := false
		for _, entry := range entries {
			if entry.Name == part {
				ino, found = entry.Ino, true
				break
			}
		}
		if !found {
			return 0, Inode{}, fmt.Errorf(
				"looking up `%s`: %w",
				path,
				ErrNotFound{path},
			)
		}
	}
	inode, err := fs.ReadInode(ino)
	if err != nil {
		return 0, Inode{}, fmt.Errorf("looking up `%s`: %w", path, err)
	}
	return ino, inode, nil
}
