package vsfs

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	dirEntryFieldInoOffset     Byte = 0
	dirEntryFieldInoSize       Byte = 4
	dirEntryFieldNameLenOffset Byte = dirEntryFieldInoOffset + dirEntryFieldInoSize
	dirEntryFieldNameLenSize   Byte = 2

	DirEntryHeaderSize = dirEntryFieldNameLenOffset + dirEntryFieldNameLenSize

	// MaxFileNameLen bounds names so that an entry always fits in a block.
	MaxFileNameLen = int(BlockSize - DirEntryHeaderSize)
)

// DirEntryHeader precedes each name in a directory's contents. Entries are
// packed back to back with no padding; an entry whose `Ino` is
// `InoTombstone` has been removed but still occupies its bytes.
type DirEntryHeader struct {
	Ino     Ino
	NameLen uint16
}

// DirEntrySize returns the size of a directory entry with a name of `nameLen`
// bytes in length.
func DirEntrySize(nameLen int) Byte { return DirEntryHeaderSize + Byte(nameLen) }

func EncodeDirEntryHeader(header *DirEntryHeader, p *[DirEntryHeaderSize]byte) {
	putU32(p[dirEntryFieldInoOffset:], uint32(header.Ino))
	putU16(p[dirEntryFieldNameLenOffset:], header.NameLen)
}

func DecodeDirEntryHeader(header *DirEntryHeader, p *[DirEntryHeaderSize]byte) {
	header.Ino = Ino(getU32(p[dirEntryFieldInoOffset:]))
	header.NameLen = getU16(p[dirEntryFieldNameLenOffset:])
}

// EncodeDirEntry returns the on-disk bytes for an entry naming `ino`.
func EncodeDirEntry(ino Ino, name string) []byte {
	buf := make([]byte, DirEntrySize(len(name)))
	EncodeDirEntryHeader(
		&DirEntryHeader{Ino: ino, NameLen: uint16(len(name))},
		(*[DirEntryHeaderSize]byte)(buf),
	)
	copy(buf[DirEntryHeaderSize:], name)
	return buf
}

// DirEntry is a live entry yielded by a DirIterator, along with the inode it
// names.
type DirEntry struct {
	Header DirEntryHeader
	Name   string
	Inode  Inode

	// Offset is where the entry's header begins within the directory.
	Offset Byte
}

func (entry *DirEntry) IsDir() bool { return entry.Inode.IsDir() }

func (entry *DirEntry) ToDir() (Directory, bool) {
	if !entry.IsDir() {
		return Directory{}, false
	}
	return Directory{Ino: entry.Header.Ino, Inode: entry.Inode}, true
}

// DirIterator walks a directory's entries once, front to back. Use it like
// `sql.Rows`:
//
//	it := dir.Iter(fs)
//	for it.Next() {
//		entry := it.Entry()
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
type DirIterator struct {
	fs     *FileSystem
	ino    Ino
	dir    Inode
	offset Byte
	entry  DirEntry
	err    error
}

func (it *DirIterator) Next() bool {
	for it.err == nil && uint64(it.offset) < it.dir.Size {
		var hbuf [DirEntryHeaderSize]byte
		n, err := ReadInodeData(it.fs, &it.dir, it.offset, hbuf[:])
		if err != nil {
			it.err = it.wrap(err)
			return false
		}
		if n < len(hbuf) {
			it.err = it.wrap(EntryTooShortErr)
			return false
		}

		var header DirEntryHeader
		DecodeDirEntryHeader(&header, &hbuf)
		start := it.offset
		it.offset += DirEntrySize(int(header.NameLen))
		if header.Ino == InoTombstone {
			continue
		}

		name := make([]byte, header.NameLen)
		n, err = ReadInodeData(it.fs, &it.dir, start+DirEntryHeaderSize, name)
		if err != nil {
			it.err = it.wrap(err)
			return false
		}
		if n < len(name) {
			it.err = it.wrap(EntryTooShortErr)
			return false
		}
		if !utf8.Valid(name) {
			it.err = it.wrap(fmt.Errorf("name `%q`: %w", name, InvalidNameErr))
			return false
		}

		inode, err := ReadInode(it.fs, header.Ino)
		if err != nil {
			it.err = it.wrap(err)
			return false
		}
		it.entry = DirEntry{
			Header: header,
			Name:   string(name),
			Inode:  inode,
			Offset: start,
		}
		return true
	}
	return false
}

func (it *DirIterator) wrap(err error) error {
	return fmt.Errorf(
		"reading entry of dir `%d` at offset `%d`: %w",
		it.ino,
		it.offset,
		err,
	)
}

func (it *DirIterator) Entry() DirEntry { return it.entry }

func (it *DirIterator) Err() error { return it.err }

// Offset is the number of directory bytes consumed so far, tombstones
// included.
func (it *DirIterator) Offset() Byte { return it.offset }

// Directory is a handle to a directory inode.
type Directory struct {
	Ino   Ino
	Inode Inode
}

// RootDir returns the root directory, loading the root inode if the volume
// was mounted without it.
func RootDir(fs *FileSystem) (Directory, error) {
	if fs.Root.Mode == 0 {
		root, err := ReadInode(fs, InoRoot)
		if err != nil {
			return Directory{}, fmt.Errorf("opening root dir: %w", err)
		}
		fs.Root = root
	}
	return Directory{Ino: InoRoot, Inode: fs.Root}, nil
}

func OpenDir(fs *FileSystem, ino Ino) (Directory, error) {
	inode, err := ReadInode(fs, ino)
	if err != nil {
		return Directory{}, fmt.Errorf("opening dir `%d`: %w", ino, err)
	}
	if !inode.IsDir() {
		return Directory{}, fmt.Errorf("opening dir `%d`: %w", ino, NotDirErr)
	}
	return Directory{Ino: ino, Inode: inode}, nil
}

func (dir *Directory) refresh(fs *FileSystem) error {
	inode, err := ReadInode(fs, dir.Ino)
	if err != nil {
		return err
	}
	dir.Inode = inode
	return nil
}

func (dir *Directory) Iter(fs *FileSystem) *DirIterator {
	return &DirIterator{fs: fs, ino: dir.Ino, dir: dir.Inode}
}

// Lookup finds the live entry called `name`, failing with `NotFoundErr`.
func (dir *Directory) Lookup(fs *FileSystem, name string) (DirEntry, error) {
	if err := dir.refresh(fs); err != nil {
		return DirEntry{}, fmt.Errorf("looking up `%s`: %w", name, err)
	}
	it := dir.Iter(fs)
	for it.Next() {
		if entry := it.Entry(); entry.Name == name {
			return entry, nil
		}
	}
	if err := it.Err(); err != nil {
		return DirEntry{}, fmt.Errorf("looking up `%s`: %w", name, err)
	}
	return DirEntry{}, fmt.Errorf(
		"looking up `%s` in dir `%d`: %w",
		name,
		dir.Ino,
		NotFoundErr,
	)
}

func (dir *Directory) Exists(fs *FileSystem, name string) (bool, error) {
	if _, err := dir.Lookup(fs, name); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Entries collects every live entry.
func (dir *Directory) Entries(fs *FileSystem) ([]DirEntry, error) {
	if err := dir.refresh(fs); err != nil {
		return nil, fmt.Errorf("listing dir `%d`: %w", dir.Ino, err)
	}
	var entries []DirEntry
	it := dir.Iter(fs)
	for it.Next() {
		entries = append(entries, it.Entry())
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("listing dir `%d`: %w", dir.Ino, err)
	}
	return entries, nil
}

// appendEntry writes a new entry at the end of the directory's contents.
func (dir *Directory) appendEntry(fs *FileSystem, ino Ino, name string) error {
	if _, err := WriteInodeData(
		fs,
		dir.Ino,
		&dir.Inode,
		Byte(dir.Inode.Size),
		EncodeDirEntry(ino, name),
	); err != nil {
		return fmt.Errorf(
			"appending entry `%s` to dir `%d`: %w",
			name,
			dir.Ino,
			err,
		)
	}
	return nil
}

type CreateFileParams struct {
	Name string
	UID  uint32
	GID  uint32

	// Mode supplies the permission bits; the type bits are ignored.
	Mode Mode
}

// CreateFile makes an empty regular file called `params.Name` in the
// directory. If appending the entry fails, the new inode is left allocated
// without a name.
func (dir *Directory) CreateFile(
	fs *FileSystem,
	params *CreateFileParams,
) (*File, error) {
	ino, inode, err := dir.create(fs, params, ModeRegular)
	if err != nil {
		return nil, err
	}
	return &File{fs: fs, Ino: ino, Inode: inode}, nil
}

// CreateDir makes an empty directory called `params.Name`, containing only
// its "." and ".." entries.
func (dir *Directory) CreateDir(
	fs *FileSystem,
	params *CreateFileParams,
) (Directory, error) {
	ino, inode, err := dir.create(fs, params, ModeDir)
	if err != nil {
		return Directory{}, err
	}
	return Directory{Ino: ino, Inode: inode}, nil
}

func (dir *Directory) create(
	fs *FileSystem,
	params *CreateFileParams,
	fileType Mode,
) (Ino, Inode, error) {
	if err := ValidateName(params.Name); err != nil {
		return 0, Inode{}, fmt.Errorf(
			"creating `%s` in dir `%d`: %w",
			params.Name,
			dir.Ino,
			err,
		)
	}
	exists, err := dir.Exists(fs, params.Name)
	if err != nil {
		return 0, Inode{}, fmt.Errorf(
			"creating `%s` in dir `%d`: %w",
			params.Name,
			dir.Ino,
			err,
		)
	}
	if exists {
		return 0, Inode{}, fmt.Errorf(
			"creating `%s` in dir `%d`: %w",
			params.Name,
			dir.Ino,
			FileAlreadyExistsErr,
		)
	}

	inode := NewInode(fileType|params.Mode.Perm(), fs.TimeFunc())
	inode.UID = params.UID
	inode.GID = params.GID
	ino, err := CreateInode(fs, &inode)
	if err != nil {
		return 0, Inode{}, fmt.Errorf(
			"creating `%s` in dir `%d`: %w",
			params.Name,
			dir.Ino,
			err,
		)
	}

	if fileType == ModeDir {
		child := Directory{Ino: ino, Inode: inode}
		if err := child.appendEntry(fs, ino, "."); err != nil {
			return 0, Inode{}, fmt.Errorf(
				"creating `%s` in dir `%d`: %w",
				params.Name,
				dir.Ino,
				err,
			)
		}
		if err := child.appendEntry(fs, dir.Ino, ".."); err != nil {
			return 0, Inode{}, fmt.Errorf(
				"creating `%s` in dir `%d`: %w",
				params.Name,
				dir.Ino,
				err,
			)
		}
		inode = child.Inode
	}

	if err := dir.appendEntry(fs, ino, params.Name); err != nil {
		return 0, Inode{}, fmt.Errorf(
			"creating `%s` in dir `%d`: %w",
			params.Name,
			dir.Ino,
			err,
		)
	}
	return ino, inode, nil
}

// IsEmpty reports whether the directory holds nothing besides "." and "..".
func (dir *Directory) IsEmpty(fs *FileSystem) (bool, error) {
	entries, err := dir.Entries(fs)
	if err != nil {
		return false, err
	}
	for i := range entries {
		if entries[i].Name != "." && entries[i].Name != ".." {
			return false, nil
		}
	}
	return true, nil
}

// Remove tombstones the entry called `name` and frees its inode and data
// blocks. Directories must be empty. The entry's bytes are not reclaimed.
func (dir *Directory) Remove(fs *FileSystem, name string) error {
	if name == "." || name == ".." {
		return fmt.Errorf("removing `%s`: %w", name, InvalidNameErr)
	}
	entry, err := dir.Lookup(fs, name)
	if err != nil {
		return fmt.Errorf("removing `%s`: %w", name, err)
	}

	if child, ok := entry.ToDir(); ok {
		empty, err := child.IsEmpty(fs)
		if err != nil {
			return fmt.Errorf("removing `%s`: %w", name, err)
		}
		if !empty {
			return fmt.Errorf("removing `%s`: %w", name, DirNotEmptyErr)
		}
	}

	var tombstone [dirEntryFieldInoSize]byte
	if _, err := WriteInodeData(
		fs,
		dir.Ino,
		&dir.Inode,
		entry.Offset+dirEntryFieldInoOffset,
		tombstone[:],
	); err != nil {
		return fmt.Errorf("removing `%s`: %w", name, err)
	}
	if err := RemoveInode(fs, entry.Header.Ino, &entry.Inode); err != nil {
		return fmt.Errorf("removing `%s`: %w", name, err)
	}
	return nil
}

// ValidateName checks that `name` can be stored as a single directory entry.
func ValidateName(name string) error {
	if len(name) >= MaxFileNameLen {
		return fmt.Errorf("name of `%d` bytes: %w", len(name), FileNameTooLongErr)
	}
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, "/\x00") || !utf8.ValidString(name) {
		return fmt.Errorf("name `%q`: %w", name, InvalidNameErr)
	}
	return nil
}
