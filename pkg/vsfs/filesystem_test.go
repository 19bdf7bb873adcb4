package vsfs

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

var testTime = time.Date(2023, time.March, 1, 12, 0, 0, 0, time.UTC)

func formatTestFS(t *testing.T, inodes Ino, blocks Block) *FileSystem {
	t.Helper()
	fs, err := Format(NewBuffer(nil), &FormatOptions{
		InodeCount:     inodes,
		DataBlockCount: blocks,
		Time:           testTime,
		CacheCapacity:  4,
	})
	if err != nil {
		t.Fatalf("Format(): unexpected err: %v", err)
	}
	fs.TimeFunc = func() time.Time { return testTime }
	return fs
}

func TestFormat(t *testing.T) {
	volume := NewBuffer(nil)
	if _, err := Format(volume, &FormatOptions{
		InodeCount:     10,
		DataBlockCount: 10,
		Time:           testTime,
	}); err != nil {
		t.Fatalf("Format(): unexpected err: %v", err)
	}

	if size := Byte(volume.Len()); size != (1+1+1+1+10)*BlockSize {
		t.Fatalf(
			"volume size: wanted `%d`; found `%d`",
			(1+1+1+1+10)*BlockSize,
			size,
		)
	}
	if magic := string(volume.Bytes()[:4]); magic != SuperblockMagic {
		t.Fatalf("magic: wanted `%s`; found `%s`", SuperblockMagic, magic)
	}

	fs, err := Mount(volume, &MountOptions{ReadRootInode: true})
	if err != nil {
		t.Fatalf("Mount(): unexpected err: %v", err)
	}
	if fs.Superblock.InodeCount != 10 || fs.Superblock.DataBlockCount != 10 {
		t.Fatalf("Mount(): unexpected superblock: %+v", fs.Superblock)
	}
	if !fs.Root.IsDir() {
		t.Fatalf("root mode: wanted a directory; found `%s`", fs.Root.Mode)
	}
	if fs.Root.UID != 0 || fs.Root.GID != 0 {
		t.Fatalf(
			"root owner: wanted `0:0`; found `%d:%d`",
			fs.Root.UID,
			fs.Root.GID,
		)
	}
	if perm := fs.Root.Mode.Perm(); perm != 0o755 {
		t.Fatalf("root permissions: wanted `%o`; found `%o`", 0o755, perm)
	}
	if fs.Root.MTime != uint64(testTime.Unix()) {
		t.Fatalf(
			"root mtime: wanted `%d`; found `%d`",
			testTime.Unix(),
			fs.Root.MTime,
		)
	}

	root, err := RootDir(fs)
	if err != nil {
		t.Fatalf("RootDir(): unexpected err: %v", err)
	}
	entries, err := root.Entries(fs)
	if err != nil {
		t.Fatalf("Directory.Entries(): unexpected err: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("root entries: wanted `2`; found `%d`", len(entries))
	}
	for i, name := range []string{".", ".."} {
		if entries[i].Name != name || entries[i].Header.Ino != InoRoot {
			t.Fatalf(
				"root entry `%d`: wanted `%s -> %d`; found `%s -> %d`",
				i,
				name,
				InoRoot,
				entries[i].Name,
				entries[i].Header.Ino,
			)
		}
	}

	// the root directory occupies the first data block; nothing else is
	// allocated
	layout := fs.Layout
	bitmap := volume.Bytes()[layout.DataBitmapOffset():]
	if bitmap[0] != 0b0000_0001 || bitmap[1] != 0 {
		t.Fatalf("data bitmap: wanted `00000001`; found `%08b`", bitmap[0])
	}
	inodes := volume.Bytes()[layout.InodeBitmapOffset():]
	if inodes[0] != 0b0000_0100 {
		t.Fatalf("inode bitmap: wanted `00000100`; found `%08b`", inodes[0])
	}
	unused := volume.Bytes()[layout.DataOffset()+BlockSize:]
	if !bytes.Equal(unused, make([]byte, len(unused))) {
		t.Fatal("data region: wanted unused blocks zeroed")
	}
}

func TestFormat_Deterministic(t *testing.T) {
	format := func() []byte {
		volume := NewBuffer(nil)
		if _, err := Format(volume, &FormatOptions{
			InodeCount:     10,
			DataBlockCount: 10,
			Time:           testTime,
		}); err != nil {
			t.Fatalf("Format(): unexpected err: %v", err)
		}
		return volume.Bytes()
	}
	if !bytes.Equal(format(), format()) {
		t.Fatal("Format(): wanted identical images; found differences")
	}
}

func TestFormat_Reformat(t *testing.T) {
	volume := NewBuffer(nil)
	fs, err := Format(volume, &FormatOptions{InodeCount: 10, DataBlockCount: 10})
	if err != nil {
		t.Fatalf("Format(): unexpected err: %v", err)
	}
	root, err := RootDir(fs)
	if err != nil {
		t.Fatalf("RootDir(): unexpected err: %v", err)
	}
	if _, err := root.CreateFile(fs, &CreateFileParams{Name: "a"}); err != nil {
		t.Fatalf("Directory.CreateFile(): unexpected err: %v", err)
	}

	if _, err := volume.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Buffer.Seek(): unexpected err: %v", err)
	}
	fs, err = Format(volume, &FormatOptions{InodeCount: 10, DataBlockCount: 10})
	if err != nil {
		t.Fatalf("Format(): unexpected err: %v", err)
	}
	stats, err := Stat(fs)
	if err != nil {
		t.Fatalf("Stat(): unexpected err: %v", err)
	}
	if stats.FreeInodes != 7 {
		t.Fatalf("Stats.FreeInodes: wanted `7`; found `%d`", stats.FreeInodes)
	}
	if stats.FreeDataBlocks != 9 {
		t.Fatalf("Stats.FreeDataBlocks: wanted `9`; found `%d`", stats.FreeDataBlocks)
	}
}

func TestFormat_InvalidCounts(t *testing.T) {
	for _, opts := range []FormatOptions{
		{InodeCount: 2, DataBlockCount: 10},
		{InodeCount: 10, DataBlockCount: 0},
	} {
		if _, err := Format(NewBuffer(nil), &opts); err == nil {
			t.Fatalf("Format(%+v): wanted err; found `nil`", opts)
		}
	}
}

func TestMount_NilOptions(t *testing.T) {
	volume := formatTestFS(t, 10, 10).Volume
	fs, err := Mount(volume, nil)
	if err != nil {
		t.Fatalf("Mount(): unexpected err: %v", err)
	}
	if fs.Superblock.InodeCount != 10 {
		t.Fatalf("Superblock.InodeCount: wanted `10`; found `%d`", fs.Superblock.InodeCount)
	}
	if _, err := ReadInode(fs, InoRoot); err != nil {
		t.Fatalf("ReadInode(): unexpected err: %v", err)
	}

	if _, err := Format(NewBuffer(nil), nil); err == nil {
		t.Fatal("Format(nil): wanted err; found `nil`")
	}
}

func TestMount_BadMagic(t *testing.T) {
	volume := NewBuffer(make([]byte, BlockSize))
	copy(volume.Bytes(), "nope")
	if _, err := Mount(volume, &MountOptions{}); !errors.Is(err, BadMagicErr) {
		t.Fatalf("Mount(): wanted `%v`; found `%v`", BadMagicErr, err)
	}
}

func TestMount_ShortVolume(t *testing.T) {
	volume := NewBuffer(make([]byte, 100))
	var shortRead *ShortReadErr
	if _, err := Mount(volume, &MountOptions{}); !errors.As(err, &shortRead) {
		t.Fatalf("Mount(): wanted `ShortReadErr`; found `%v`", err)
	}
}

func TestAllocDataBlock(t *testing.T) {
	fs := formatTestFS(t, 10, 10)

	// dirty a free block so zero-filling on allocation is observable
	addr, err := fs.Layout.DataAddr(1)
	if err != nil {
		t.Fatalf("Layout.DataAddr(): unexpected err: %v", err)
	}
	if err := WriteAt(fs.Volume, addr, []byte("garbage")); err != nil {
		t.Fatalf("WriteAt(): unexpected err: %v", err)
	}

	for wanted := Block(1); wanted < 10; wanted++ {
		block, err := AllocDataBlock(fs)
		if err != nil {
			t.Fatalf("AllocDataBlock(): unexpected err: %v", err)
		}
		if block != wanted {
			t.Fatalf("AllocDataBlock(): wanted `%d`; found `%d`", wanted, block)
		}
	}
	if _, err := AllocDataBlock(fs); !errors.Is(err, OutOfDiskSpaceErr) {
		t.Fatalf("AllocDataBlock(): wanted `%v`; found `%v`", OutOfDiskSpaceErr, err)
	}

	var buf [BlockSize]byte
	if err := ReadBlock(fs, addr, &buf); err != nil {
		t.Fatalf("ReadBlock(): unexpected err: %v", err)
	}
	if buf != ([BlockSize]byte{}) {
		t.Fatal("AllocDataBlock(): wanted zero-filled block")
	}

	if err := FreeDataBlock(fs, 3); err != nil {
		t.Fatalf("FreeDataBlock(): unexpected err: %v", err)
	}
	if used, err := IsDataBlockUsed(fs, 3); err != nil || used {
		t.Fatalf("IsDataBlockUsed(3): wanted `false, nil`; found `%t, %v`", used, err)
	}
	if used, err := IsDataBlockUsed(fs, 4); err != nil || !used {
		t.Fatalf("IsDataBlockUsed(4): wanted `true, nil`; found `%t, %v`", used, err)
	}
	block, err := AllocDataBlock(fs)
	if err != nil {
		t.Fatalf("AllocDataBlock(): unexpected err: %v", err)
	}
	if block != 3 {
		t.Fatalf("AllocDataBlock(): wanted `3`; found `%d`", block)
	}
}

func TestStat(t *testing.T) {
	fs := formatTestFS(t, 10, 10)
	stats, err := Stat(fs)
	if err != nil {
		t.Fatalf("Stat(): unexpected err: %v", err)
	}
	wanted := Stats{
		InodeCount:     10,
		FreeInodes:     7,
		DataBlockCount: 10,
		FreeDataBlocks: 9,
		Size:           14 * BlockSize,
	}
	if stats != wanted {
		t.Fatalf("Stat(): wanted `%+v`; found `%+v`", wanted, stats)
	}
}
