package vsfs

import (
	"errors"
	"strings"
	"testing"
)

func entryNames(t *testing.T, fs *FileSystem, dir *Directory) []string {
	t.Helper()
	entries, err := dir.Entries(fs)
	if err != nil {
		t.Fatalf("Directory.Entries(): unexpected err: %v", err)
	}
	names := make([]string, len(entries))
	for i := range entries {
		names[i] = entries[i].Name
	}
	return names
}

func rootDir(t *testing.T, fs *FileSystem) Directory {
	t.Helper()
	root, err := RootDir(fs)
	if err != nil {
		t.Fatalf("RootDir(): unexpected err: %v", err)
	}
	return root
}

func TestEncodeDirEntry(t *testing.T) {
	found := EncodeDirEntry(7, "abc")
	wanted := []byte{7, 0, 0, 0, 3, 0, 'a', 'b', 'c'}
	if string(found) != string(wanted) {
		t.Fatalf("EncodeDirEntry(): wanted `%v`; found `%v`", wanted, found)
	}

	var header DirEntryHeader
	DecodeDirEntryHeader(&header, (*[DirEntryHeaderSize]byte)(found))
	if header != (DirEntryHeader{Ino: 7, NameLen: 3}) {
		t.Fatalf("DecodeDirEntryHeader(): unexpected header: %+v", header)
	}
}

func TestDirectory_CreateFile(t *testing.T) {
	fs := formatTestFS(t, 10, 10)
	root := rootDir(t, fs)

	file, err := root.CreateFile(fs, &CreateFileParams{
		Name: "hello.txt",
		UID:  1000,
		GID:  1000,
		Mode: 0o644,
	})
	if err != nil {
		t.Fatalf("Directory.CreateFile(): unexpected err: %v", err)
	}
	if file.Ino != 3 {
		t.Fatalf("File.Ino: wanted `3`; found `%d`", file.Ino)
	}
	if file.Inode.Mode != ModeRegular|0o644 {
		t.Fatalf(
			"File.Inode.Mode: wanted `%o`; found `%o`",
			ModeRegular|0o644,
			file.Inode.Mode,
		)
	}
	if file.Inode.Size != 0 {
		t.Fatalf("File.Inode.Size: wanted `0`; found `%d`", file.Inode.Size)
	}

	entry, err := root.Lookup(fs, "hello.txt")
	if err != nil {
		t.Fatalf("Directory.Lookup(): unexpected err: %v", err)
	}
	if entry.Header.Ino != 3 || entry.Inode.UID != 1000 {
		t.Fatalf("Directory.Lookup(): unexpected entry: %+v", entry)
	}
	if wanted := Byte(7 + 8); entry.Offset != wanted {
		t.Fatalf("DirEntry.Offset: wanted `%d`; found `%d`", wanted, entry.Offset)
	}

	exists, err := root.Exists(fs, "hello.txt")
	if err != nil || !exists {
		t.Fatalf("Directory.Exists(): wanted `true, nil`; found `%t, %v`", exists, err)
	}
	exists, err = root.Exists(fs, "goodbye.txt")
	if err != nil || exists {
		t.Fatalf("Directory.Exists(): wanted `false, nil`; found `%t, %v`", exists, err)
	}

	// the root inode's size tracks the appended entry
	if wanted := uint64(7 + 8 + 6 + 9); fs.Root.Size != wanted {
		t.Fatalf("root size: wanted `%d`; found `%d`", wanted, fs.Root.Size)
	}
}

func TestDirectory_CreateFile_Errors(t *testing.T) {
	fs := formatTestFS(t, 10, 10)
	root := rootDir(t, fs)
	if _, err := root.CreateFile(fs, &CreateFileParams{Name: "a"}); err != nil {
		t.Fatalf("Directory.CreateFile(): unexpected err: %v", err)
	}

	for _, testCase := range []struct {
		name   string
		file   string
		wanted error
	}{
		{"exists", "a", FileAlreadyExistsErr},
		{"too-long", strings.Repeat("x", MaxFileNameLen), FileNameTooLongErr},
		{"empty", "", InvalidNameErr},
		{"dot", ".", InvalidNameErr},
		{"dot-dot", "..", InvalidNameErr},
		{"slash", "a/b", InvalidNameErr},
		{"not-utf8", "\xff\xfe", InvalidNameErr},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := root.CreateFile(fs, &CreateFileParams{Name: testCase.file})
			if !errors.Is(err, testCase.wanted) {
				t.Fatalf(
					"Directory.CreateFile(): wanted `%v`; found `%v`",
					testCase.wanted,
					err,
				)
			}
		})
	}

	// failed creations allocate nothing
	stats, err := Stat(fs)
	if err != nil {
		t.Fatalf("Stat(): unexpected err: %v", err)
	}
	if stats.FreeInodes != 6 {
		t.Fatalf("Stats.FreeInodes: wanted `6`; found `%d`", stats.FreeInodes)
	}
}

func TestDirectory_CreateFile_LongestName(t *testing.T) {
	fs := formatTestFS(t, 10, 10)
	root := rootDir(t, fs)
	name := strings.Repeat("x", MaxFileNameLen-1)
	if _, err := root.CreateFile(fs, &CreateFileParams{Name: name}); err != nil {
		t.Fatalf("Directory.CreateFile(): unexpected err: %v", err)
	}
	entry, err := root.Lookup(fs, name)
	if err != nil {
		t.Fatalf("Directory.Lookup(): unexpected err: %v", err)
	}
	if entry.Header.NameLen != uint16(len(name)) {
		t.Fatalf(
			"DirEntryHeader.NameLen: wanted `%d`; found `%d`",
			len(name),
			entry.Header.NameLen,
		)
	}
}

func TestDirectory_CreateFile_OutOfInodes(t *testing.T) {
	fs := formatTestFS(t, 4, 10)
	root := rootDir(t, fs)
	if _, err := root.CreateFile(fs, &CreateFileParams{Name: "a"}); err != nil {
		t.Fatalf("Directory.CreateFile(): unexpected err: %v", err)
	}
	_, err := root.CreateFile(fs, &CreateFileParams{Name: "b"})
	if !errors.Is(err, OutOfInodesErr) {
		t.Fatalf("Directory.CreateFile(): wanted `%v`; found `%v`", OutOfInodesErr, err)
	}
}

func TestDirectory_Remove(t *testing.T) {
	fs := formatTestFS(t, 10, 10)
	root := rootDir(t, fs)
	for _, name := range []string{"a", "b", "c"} {
		if _, err := root.CreateFile(fs, &CreateFileParams{Name: name}); err != nil {
			t.Fatalf("Directory.CreateFile(): unexpected err: %v", err)
		}
	}
	b, err := root.Lookup(fs, "b")
	if err != nil {
		t.Fatalf("Directory.Lookup(): unexpected err: %v", err)
	}

	if err := root.Remove(fs, "b"); err != nil {
		t.Fatalf("Directory.Remove(): unexpected err: %v", err)
	}
	if found := strings.Join(entryNames(t, fs, &root), ","); found != ".,..,a,c" {
		t.Fatalf("entries: wanted `.,..,a,c`; found `%s`", found)
	}
	if _, err := ReadInode(fs, b.Header.Ino); !errors.Is(err, InodeIndexEmptyErr) {
		t.Fatalf("ReadInode(): wanted `%v`; found `%v`", InodeIndexEmptyErr, err)
	}
	if _, err := root.Lookup(fs, "b"); !errors.Is(err, NotFoundErr) {
		t.Fatalf("Directory.Lookup(): wanted `%v`; found `%v`", NotFoundErr, err)
	}

	// the tombstone keeps its bytes; new entries are appended and reuse the
	// freed inode
	size := fs.Root.Size
	file, err := root.CreateFile(fs, &CreateFileParams{Name: "b"})
	if err != nil {
		t.Fatalf("Directory.CreateFile(): unexpected err: %v", err)
	}
	if file.Ino != b.Header.Ino {
		t.Fatalf("File.Ino: wanted `%d`; found `%d`", b.Header.Ino, file.Ino)
	}
	if wanted := size + 7; fs.Root.Size != wanted {
		t.Fatalf("root size: wanted `%d`; found `%d`", wanted, fs.Root.Size)
	}
	if found := strings.Join(entryNames(t, fs, &root), ","); found != ".,..,a,c,b" {
		t.Fatalf("entries: wanted `.,..,a,c,b`; found `%s`", found)
	}

	for _, name := range []string{".", ".."} {
		if err := root.Remove(fs, name); !errors.Is(err, InvalidNameErr) {
			t.Fatalf("Directory.Remove(%q): wanted `%v`; found `%v`", name, InvalidNameErr, err)
		}
	}
	if err := root.Remove(fs, "missing"); !errors.Is(err, NotFoundErr) {
		t.Fatalf("Directory.Remove(): wanted `%v`; found `%v`", NotFoundErr, err)
	}
}

func TestDirectory_RemoveReleasesBlocks(t *testing.T) {
	fs := formatTestFS(t, 10, 10)
	root := rootDir(t, fs)
	file, err := root.CreateFile(fs, &CreateFileParams{Name: "big"})
	if err != nil {
		t.Fatalf("Directory.CreateFile(): unexpected err: %v", err)
	}
	if _, err := file.Write(make([]byte, 3*BlockSize)); err != nil {
		t.Fatalf("File.Write(): unexpected err: %v", err)
	}
	if err := root.Remove(fs, "big"); err != nil {
		t.Fatalf("Directory.Remove(): unexpected err: %v", err)
	}
	stats, err := Stat(fs)
	if err != nil {
		t.Fatalf("Stat(): unexpected err: %v", err)
	}
	if stats.FreeDataBlocks != 9 {
		t.Fatalf("Stats.FreeDataBlocks: wanted `9`; found `%d`", stats.FreeDataBlocks)
	}
}

func TestDirectory_CreateDir(t *testing.T) {
	fs := formatTestFS(t, 10, 10)
	root := rootDir(t, fs)
	sub, err := root.CreateDir(fs, &CreateFileParams{Name: "sub", Mode: 0o755})
	if err != nil {
		t.Fatalf("Directory.CreateDir(): unexpected err: %v", err)
	}
	if !sub.Inode.IsDir() {
		t.Fatalf("Directory.Inode.Mode: wanted a directory; found `%s`", sub.Inode.Mode)
	}

	entries, err := sub.Entries(fs)
	if err != nil {
		t.Fatalf("Directory.Entries(): unexpected err: %v", err)
	}
	if len(entries) != 2 ||
		entries[0].Name != "." || entries[0].Header.Ino != sub.Ino ||
		entries[1].Name != ".." || entries[1].Header.Ino != InoRoot {
		t.Fatalf("Directory.Entries(): unexpected entries: %+v", entries)
	}

	if _, err := sub.CreateFile(fs, &CreateFileParams{Name: "inner"}); err != nil {
		t.Fatalf("Directory.CreateFile(): unexpected err: %v", err)
	}
	if err := root.Remove(fs, "sub"); !errors.Is(err, DirNotEmptyErr) {
		t.Fatalf("Directory.Remove(): wanted `%v`; found `%v`", DirNotEmptyErr, err)
	}

	ino, inode, err := LookupPath(fs, "/sub/inner")
	if err != nil {
		t.Fatalf("LookupPath(): unexpected err: %v", err)
	}
	if ino != sub.Ino+1 || !inode.Mode.IsRegular() {
		t.Fatalf("LookupPath(): unexpected result: `%d`, `%+v`", ino, inode)
	}
	if _, _, err := LookupPath(fs, "/sub/inner/deeper"); !errors.Is(err, NotDirErr) {
		t.Fatalf("LookupPath(): wanted `%v`; found `%v`", NotDirErr, err)
	}
	if _, _, err := LookupPath(fs, "/nope"); !errors.Is(err, NotFoundErr) {
		t.Fatalf("LookupPath(): wanted `%v`; found `%v`", NotFoundErr, err)
	}

	if err := sub.Remove(fs, "inner"); err != nil {
		t.Fatalf("Directory.Remove(): unexpected err: %v", err)
	}
	if err := root.Remove(fs, "sub"); err != nil {
		t.Fatalf("Directory.Remove(): unexpected err: %v", err)
	}
	if found := strings.Join(entryNames(t, fs, &root), ","); found != ".,.." {
		t.Fatalf("entries: wanted `.,..`; found `%s`", found)
	}
}

func TestDirIterator_SkipsTombstones(t *testing.T) {
	fs := formatTestFS(t, 10, 10)
	root := rootDir(t, fs)
	for _, name := range []string{"a", "b"} {
		if _, err := root.CreateFile(fs, &CreateFileParams{Name: name}); err != nil {
			t.Fatalf("Directory.CreateFile(): unexpected err: %v", err)
		}
	}
	if err := root.Remove(fs, "a"); err != nil {
		t.Fatalf("Directory.Remove(): unexpected err: %v", err)
	}
	// a raw zero-inode entry with a name is skipped by its name length
	if err := root.appendEntry(fs, 0, "ghost"); err != nil {
		t.Fatalf("Directory.appendEntry(): unexpected err: %v", err)
	}
	if _, err := root.CreateFile(fs, &CreateFileParams{Name: "c"}); err != nil {
		t.Fatalf("Directory.CreateFile(): unexpected err: %v", err)
	}

	var names []string
	it := root.Iter(fs)
	for it.Next() {
		names = append(names, it.Entry().Name)
	}
	if err := it.Err(); err != nil {
		t.Fatalf("DirIterator.Err(): unexpected err: %v", err)
	}
	if found := strings.Join(names, ","); found != ".,..,b,c" {
		t.Fatalf("entries: wanted `.,..,b,c`; found `%s`", found)
	}
	if offset := it.Offset(); offset != Byte(root.Inode.Size) {
		t.Fatalf("DirIterator.Offset(): wanted `%d`; found `%d`", root.Inode.Size, offset)
	}
}

func TestDirIterator_InvalidName(t *testing.T) {
	fs := formatTestFS(t, 10, 10)
	root := rootDir(t, fs)
	if err := root.appendEntry(fs, InoRoot, "\xff"); err != nil {
		t.Fatalf("Directory.appendEntry(): unexpected err: %v", err)
	}
	if _, err := root.Entries(fs); !errors.Is(err, InvalidNameErr) {
		t.Fatalf("Directory.Entries(): wanted `%v`; found `%v`", InvalidNameErr, err)
	}
}

func TestDirIterator_Truncated(t *testing.T) {
	fs := formatTestFS(t, 10, 10)
	root := rootDir(t, fs)
	if _, err := WriteInodeData(
		fs,
		root.Ino,
		&root.Inode,
		Byte(root.Inode.Size),
		[]byte{3, 0, 0},
	); err != nil {
		t.Fatalf("WriteInodeData(): unexpected err: %v", err)
	}
	if _, err := root.Entries(fs); !errors.Is(err, EntryTooShortErr) {
		t.Fatalf("Directory.Entries(): wanted `%v`; found `%v`", EntryTooShortErr, err)
	}
}

func TestSplitParent(t *testing.T) {
	for _, testCase := range []struct {
		path   string
		parent string
		name   string
	}{
		{"/a/b/c", "/a/b", "c"},
		{"a", "/", "a"},
		{"/a/./b/", "/a", "b"},
		{"/", "/", ""},
	} {
		parent, name := SplitParent(testCase.path)
		if parent != testCase.parent || name != testCase.name {
			t.Fatalf(
				"SplitParent(%q): wanted `%s`, `%s`; found `%s`, `%s`",
				testCase.path,
				testCase.parent,
				testCase.name,
				parent,
				name,
			)
		}
	}
}
