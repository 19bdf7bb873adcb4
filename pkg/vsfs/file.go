package vsfs

import (
	"fmt"
	"io"
)

// File is a handle to a regular file, positioned for `io.Reader` and
// `io.Writer` calls. Writes are persisted before they return. The handle
// keeps its own copy of the inode, so two handles to one file do not see
// each other's size changes.
type File struct {
	fs    *FileSystem
	Ino   Ino
	Inode Inode
	pos   Byte
}

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.ReaderAt        = (*File)(nil)
	_ io.WriterAt        = (*File)(nil)
)

func OpenFile(fs *FileSystem, ino Ino) (*File, error) {
	inode, err := ReadInode(fs, ino)
	if err != nil {
		return nil, fmt.Errorf("opening file `%d`: %w", ino, err)
	}
	if inode.IsDir() {
		return nil, fmt.Errorf("opening file `%d`: %w", ino, IsDirErr)
	}
	return &File{fs: fs, Ino: ino, Inode: inode}, nil
}

func (f *File) Size() uint64 { return f.Inode.Size }

func (f *File) ReadAt(p []byte, offset int64) (int, error) {
	n, err := ReadInodeData(f.fs, &f.Inode, Byte(offset), p)
	if err != nil {
		return n, fmt.Errorf("reading file `%d`: %w", f.Ino, err)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *File) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := ReadInodeData(f.fs, &f.Inode, f.pos, p)
	f.pos += Byte(n)
	if err != nil {
		return n, fmt.Errorf("reading file `%d`: %w", f.Ino, err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (f *File) WriteAt(p []byte, offset int64) (int, error) {
	n, err := WriteInodeData(f.fs, f.Ino, &f.Inode, Byte(offset), p)
	if err != nil {
		return n, fmt.Errorf("writing file `%d`: %w", f.Ino, err)
	}
	return n, nil
}

func (f *File) Write(p []byte) (int, error) {
	n, err := f.WriteAt(p, int64(f.pos))
	f.pos += Byte(n)
	return n, err
}

// Seek sets the position for the next Read or Write. Seeking past the end
// is allowed; a subsequent Write zero-fills the gap.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var base Byte
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		base = Byte(f.Inode.Size)
	default:
		return int64(f.pos), fmt.Errorf(
			"seeking file `%d`: whence `%d`: %w",
			f.Ino,
			whence,
			InvalidOffsetErr,
		)
	}
	pos := base + Byte(offset)
	if pos < 0 {
		return int64(f.pos), fmt.Errorf(
			"seeking file `%d` to `%d`: %w",
			f.Ino,
			pos,
			InvalidOffsetErr,
		)
	}
	f.pos = pos
	return int64(pos), nil
}

// Truncate changes the file's size. The position is left untouched.
func (f *File) Truncate(size int64) error {
	if size < 0 {
		return fmt.Errorf(
			"truncating file `%d` to `%d`: %w",
			f.Ino,
			size,
			InvalidOffsetErr,
		)
	}
	if err := TruncateInodeData(f.fs, f.Ino, &f.Inode, uint64(size)); err != nil {
		return fmt.Errorf("truncating file `%d`: %w", f.Ino, err)
	}
	return nil
}

// Flush writes the handle's inode back to the volume.
func (f *File) Flush() error {
	if err := WriteInode(f.fs, f.Ino, &f.Inode); err != nil {
		return fmt.Errorf("flushing file `%d`: %w", f.Ino, err)
	}
	return nil
}
