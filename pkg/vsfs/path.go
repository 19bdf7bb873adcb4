package vsfs

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// SplitPath breaks a slash-separated path into its components, dropping
// empty components and ".".
func SplitPath(path string) []string {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" && part != "." {
			parts = append(parts, part)
		}
	}
	return parts
}

// SplitParent splits `path` into its parent directory and final component.
func SplitParent(path string) (string, string) {
	parts := SplitPath(path)
	if len(parts) < 1 {
		return "/", ""
	}
	return "/" + strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1]
}

// LookupPath resolves `path` from the root directory. Every component but
// the last must name a directory.
func LookupPath(fs *FileSystem, path string) (Ino, Inode, error) {
	dir, err := RootDir(fs)
	if err != nil {
		return 0, Inode{}, fmt.Errorf("looking up path `%s`: %w", path, err)
	}
	ino, inode := dir.Ino, dir.Inode
	for _, part := range SplitPath(path) {
		if !inode.IsDir() {
			return 0, Inode{}, fmt.Errorf(
				"looking up path `%s`: `%s`: %w",
				path,
				part,
				NotDirErr,
			)
		}
		dir = Directory{Ino: ino, Inode: inode}
		entry, err := dir.Lookup(fs, part)
		if err != nil {
			return 0, Inode{}, fmt.Errorf("looking up path `%s`: %w", path, err)
		}
		ino, inode = entry.Header.Ino, entry.Inode
	}
	return ino, inode, nil
}

// OpenDirPath resolves `path` to a directory.
func OpenDirPath(fs *FileSystem, path string) (Directory, error) {
	ino, inode, err := LookupPath(fs, path)
	if err != nil {
		return Directory{}, err
	}
	if !inode.IsDir() {
		return Directory{}, fmt.Errorf("opening dir `%s`: %w", path, NotDirErr)
	}
	return Directory{Ino: ino, Inode: inode}, nil
}

// OpenFilePath resolves `path` to a regular file.
func OpenFilePath(fs *FileSystem, path string) (*File, error) {
	ino, _, err := LookupPath(fs, path)
	if err != nil {
		return nil, err
	}
	return OpenFile(fs, ino)
}

func openParent(fs *FileSystem, path string) (Directory, string, error) {
	parent, name := SplitParent(path)
	if name == "" {
		return Directory{}, "", fmt.Errorf("`%s`: %w", path, InvalidNameErr)
	}
	dir, err := OpenDirPath(fs, parent)
	if err != nil {
		return Directory{}, "", err
	}
	return dir, name, nil
}

// CreateFilePath makes an empty regular file at `path`. The parent directory
// must already exist.
func CreateFilePath(fs *FileSystem, path string, mode Mode) (*File, error) {
	dir, name, err := openParent(fs, path)
	if err != nil {
		return nil, fmt.Errorf("creating file `%s`: %w", path, err)
	}
	file, err := dir.CreateFile(fs, &CreateFileParams{Name: name, Mode: mode})
	if err != nil {
		return nil, fmt.Errorf("creating file `%s`: %w", path, err)
	}
	return file, nil
}

// MkdirPath makes an empty directory at `path`. The parent directory must
// already exist.
func MkdirPath(fs *FileSystem, path string, mode Mode) (Directory, error) {
	dir, name, err := openParent(fs, path)
	if err != nil {
		return Directory{}, fmt.Errorf("making dir `%s`: %w", path, err)
	}
	child, err := dir.CreateDir(fs, &CreateFileParams{Name: name, Mode: mode})
	if err != nil {
		return Directory{}, fmt.Errorf("making dir `%s`: %w", path, err)
	}
	return child, nil
}

// RemovePath removes the file or empty directory at `path`.
func RemovePath(fs *FileSystem, path string) error {
	dir, name, err := openParent(fs, path)
	if err != nil {
		return fmt.Errorf("removing `%s`: %w", path, err)
	}
	if err := dir.Remove(fs, name); err != nil {
		return fmt.Errorf("removing `%s`: %w", path, err)
	}
	return nil
}

// WriteFilePath replaces the contents of the file at `path` with everything
// read from `r`, creating the file with `mode` if it does not exist.
func WriteFilePath(
	fs *FileSystem,
	path string,
	mode Mode,
	r io.Reader,
) (*File, error) {
	file, err := OpenFilePath(fs, path)
	if errors.Is(err, NotFoundErr) {
		file, err = CreateFilePath(fs, path, mode)
	}
	if err != nil {
		return nil, fmt.Errorf("writing file `%s`: %w", path, err)
	}
	if err := file.Truncate(0); err != nil {
		return nil, fmt.Errorf("writing file `%s`: %w", path, err)
	}
	if _, err := io.Copy(file, r); err != nil {
		return nil, fmt.Errorf("writing file `%s`: %w", path, err)
	}
	return file, nil
}
