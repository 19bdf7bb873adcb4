package ext4

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

const (
	testBlockSize  = 1024
	testBlocks     = 64
	testInodeTable = 5
)

var (
	le       = binary.LittleEndian
	testUUID = uuid.MustParse("6f1e2c4a-5b3d-4e8f-9a0b-1c2d3e4f5a6b")
)

type testImage []byte

func (image testImage) block(n int) []byte {
	return image[n*testBlockSize : (n+1)*testBlockSize]
}

func (image testImage) putInode(ino Ino, mode uint16, size uint64, flags uint32, block []byte) {
	b := image[testInodeTable*testBlockSize+int(ino-1)*128:]
	le.PutUint16(b[0x00:], mode)
	le.PutUint32(b[0x04:], uint32(size))
	le.PutUint32(b[0x6c:], uint32(size>>32))
	le.PutUint16(b[0x1a:], 1)
	le.PutUint32(b[0x20:], flags)
	copy(b[0x28:0x28+InodeBlockSize], block)
}

func extentNode(depth uint16, entries ...[]byte) []byte {
	node := make([]byte, InodeBlockSize)
	le.PutUint16(node[0:], ExtentMagic)
	le.PutUint16(node[2:], uint16(len(entries)))
	le.PutUint16(node[4:], 4)
	le.PutUint16(node[6:], depth)
	for i, entry := range entries {
		copy(node[extentHeaderSize+i*extentEntrySize:], entry)
	}
	return node
}

func extentLeaf(block uint32, length uint16, start uint32) []byte {
	b := make([]byte, extentEntrySize)
	le.PutUint32(b[0:], block)
	le.PutUint16(b[4:], length)
	le.PutUint32(b[8:], start)
	return b
}

func extentIndex(block, leaf uint32) []byte {
	b := make([]byte, extentEntrySize)
	le.PutUint32(b[0:], block)
	le.PutUint32(b[4:], leaf)
	return b
}

func putDirent(b []byte, offset int, ino Ino, recLen int, name string, fileType uint8) int {
	le.PutUint32(b[offset:], uint32(ino))
	le.PutUint16(b[offset+4:], uint16(recLen))
	b[offset+6] = uint8(len(name))
	b[offset+7] = fileType
	copy(b[offset+8:], name)
	return offset + recLen
}

func pattern(n int, seed byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i) ^ seed
	}
	return p
}

// newTestImage builds a one-group volume with 1KiB blocks:
//
//	/            extents, block 10
//	/hello.txt   extents: two blocks at 20, then an uninitialized block
//	/legacy      block map: block 40, a hole, then block 53 via the
//	             indirect block 52
//	/sub         two-level extent tree through block 60 to block 61
//	/sub/inner   hard link to /hello.txt
func newTestImage() testImage {
	image := make(testImage, testBlocks*testBlockSize)

	sb := image[SuperblockOffset:]
	le.PutUint32(sb[0x00:], 16)
	le.PutUint32(sb[0x04:], testBlocks)
	le.PutUint32(sb[0x14:], 1)
	le.PutUint32(sb[0x18:], 0)
	le.PutUint32(sb[0x20:], 8192)
	le.PutUint32(sb[0x28:], 16)
	le.PutUint16(sb[0x38:], SuperblockMagic)
	le.PutUint16(sb[0x3a:], 1)
	le.PutUint32(sb[0x4c:], uint32(RevLevelDynamic))
	le.PutUint32(sb[0x54:], 11)
	le.PutUint16(sb[0x58:], 128)
	le.PutUint32(sb[0x60:], IncompatFileType|IncompatExtents)
	copy(sb[0x68:], testUUID[:])
	copy(sb[0x78:], "testvol")

	desc := image.block(2)
	le.PutUint32(desc[0x00:], 3)
	le.PutUint32(desc[0x04:], 4)
	le.PutUint32(desc[0x08:], testInodeTable)

	image.putInode(
		RootIno,
		0o040755,
		testBlockSize,
		InodeFlagExtents,
		extentNode(0, extentLeaf(0, 1, 10)),
	)
	root := image.block(10)
	offset := putDirent(root, 0, RootIno, 12, ".", 2)
	offset = putDirent(root, offset, RootIno, 12, "..", 2)
	offset = putDirent(root, offset, 12, 20, "hello.txt", 1)
	offset = putDirent(root, offset, 0, 16, "gone", 1)
	offset = putDirent(root, offset, 13, 16, "legacy", 1)
	putDirent(root, offset, 14, testBlockSize-offset, "sub", 2)

	image.putInode(
		12,
		0o100644,
		3000,
		InodeFlagExtents,
		extentNode(
			0,
			extentLeaf(0, 2, 20),
			extentLeaf(2, extentUninitBias+1, 30),
		),
	)
	copy(image[20*testBlockSize:], pattern(2*testBlockSize, 0x5a))
	copy(image.block(30), bytes.Repeat([]byte{0xff}, testBlockSize))

	var legacy [InodeBlockSize]byte
	le.PutUint32(legacy[0:], 40)
	le.PutUint32(legacy[12*4:], 52)
	image.putInode(13, 0o100600, 12*testBlockSize+10, 0, legacy[:])
	copy(image.block(40), pattern(testBlockSize, 0x11))
	le.PutUint32(image.block(52), 53)
	copy(image.block(53), "0123456789")

	image.putInode(
		14,
		0o040755,
		testBlockSize,
		InodeFlagExtents,
		extentNode(1, extentIndex(0, 60)),
	)
	copy(image.block(60), extentNode(0, extentLeaf(0, 1, 61))[:extentHeaderSize+extentEntrySize])
	sub := image.block(61)
	offset = putDirent(sub, 0, 14, 12, ".", 2)
	offset = putDirent(sub, offset, RootIno, 12, "..", 2)
	putDirent(sub, offset, 12, testBlockSize-offset, "inner", 1)

	return image
}

func openTestImage(t *testing.T, image testImage) *FileSystem {
	t.Helper()
	fs, err := Open(bytes.NewReader(image))
	if err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	return fs
}

func TestOpen(t *testing.T) {
	fs := openTestImage(t, newTestImage())
	if blockSize := fs.BlockSize(); blockSize != testBlockSize {
		t.Fatalf("FileSystem.BlockSize(): wanted `%d`; found `%d`", testBlockSize, blockSize)
	}
	if typ := fs.Superblock.Type(); typ != "ext4" {
		t.Fatalf("Superblock.Type(): wanted `ext4`; found `%s`", typ)
	}
	if fs.Superblock.VolumeName != "testvol" {
		t.Fatalf("Superblock.VolumeName: wanted `testvol`; found `%s`", fs.Superblock.VolumeName)
	}
	if fs.Superblock.UUID != testUUID {
		t.Fatalf("Superblock.UUID: wanted `%s`; found `%s`", testUUID, fs.Superblock.UUID)
	}
	if len(fs.Groups) != 1 || fs.Groups[0].InodeTable != testInodeTable {
		t.Fatalf("FileSystem.Groups: unexpected groups: %+v", fs.Groups)
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := Open(bytes.NewReader(make([]byte, 4*testBlockSize))); !errors.As(err, &ErrBadMagic{}) {
		t.Fatalf("Open(): wanted `ErrBadMagic`; found `%v`", err)
	}

	image := newTestImage()
	le.PutUint32(image[SuperblockOffset+0x60:], IncompatFileType|IncompatInline)
	var incompatible ErrIncompatibleFeatures
	if _, err := Open(bytes.NewReader(image)); !errors.As(err, &incompatible) {
		t.Fatalf("Open(): wanted `ErrIncompatibleFeatures`; found `%v`", err)
	}
	if incompatible.Found != IncompatInline {
		t.Fatalf(
			"ErrIncompatibleFeatures.Found: wanted `%#x`; found `%#x`",
			IncompatInline,
			incompatible.Found,
		)
	}
}

func TestReadDir(t *testing.T) {
	fs := openTestImage(t, newTestImage())
	entries, err := fs.ReadDir(RootIno)
	if err != nil {
		t.Fatalf("FileSystem.ReadDir(): unexpected err: %v", err)
	}

	wanted := []DirEntry{
		{RootIno, ".", FileTypeDir},
		{RootIno, "..", FileTypeDir},
		{12, "hello.txt", FileTypeRegular},
		{13, "legacy", FileTypeRegular},
		{14, "sub", FileTypeDir},
	}
	if len(entries) != len(wanted) {
		t.Fatalf("FileSystem.ReadDir(): wanted `%d` entries; found `%+v`", len(wanted), entries)
	}
	for i := range wanted {
		if entries[i] != wanted[i] {
			t.Fatalf("entry `%d`: wanted `%+v`; found `%+v`", i, wanted[i], entries[i])
		}
	}

	if _, err := fs.ReadDir(12); !errors.As(err, &ErrInvalidFileType{}) {
		t.Fatalf("FileSystem.ReadDir(): wanted `ErrInvalidFileType`; found `%v`", err)
	}
}

func TestReadDir_Corrupt(t *testing.T) {
	image := newTestImage()
	le.PutUint16(image.block(10)[4:], 4)
	fs := openTestImage(t, image)
	if _, err := fs.ReadDir(RootIno); !errors.As(err, &ErrCorruptDirEntry{}) {
		t.Fatalf("FileSystem.ReadDir(): wanted `ErrCorruptDirEntry`; found `%v`", err)
	}
}

func TestReadFile_Extents(t *testing.T) {
	fs := openTestImage(t, newTestImage())
	data, err := fs.ReadFile(12)
	if err != nil {
		t.Fatalf("FileSystem.ReadFile(): unexpected err: %v", err)
	}
	wanted := append(pattern(2*testBlockSize, 0x5a), make([]byte, 3000-2*testBlockSize)...)
	if !bytes.Equal(data, wanted) {
		t.Fatal("FileSystem.ReadFile(): wanted two initialized blocks followed by zeros")
	}

	if _, err := fs.ReadFile(RootIno); !errors.As(err, &ErrInvalidFileType{}) {
		t.Fatalf("FileSystem.ReadFile(): wanted `ErrInvalidFileType`; found `%v`", err)
	}
}

func TestReadFile_CorruptSize(t *testing.T) {
	image := newTestImage()
	image.putInode(
		12,
		0o100644,
		1<<62,
		InodeFlagExtents,
		extentNode(0, extentLeaf(0, 2, 20)),
	)
	fs := openTestImage(t, image)
	var tooLarge ErrFileTooLarge
	if _, err := fs.ReadFile(12); !errors.As(err, &tooLarge) {
		t.Fatalf("FileSystem.ReadFile(): wanted `ErrFileTooLarge`; found `%v`", err)
	}
	if tooLarge.Size != 1<<62 {
		t.Fatalf("ErrFileTooLarge.Size: wanted `%d`; found `%d`", uint64(1<<62), tooLarge.Size)
	}
}

func TestReadFile_BlockMap(t *testing.T) {
	fs := openTestImage(t, newTestImage())
	ino, _, err := fs.LookupPath("/legacy")
	if err != nil {
		t.Fatalf("FileSystem.LookupPath(): unexpected err: %v", err)
	}
	data, err := fs.ReadFile(ino)
	if err != nil {
		t.Fatalf("FileSystem.ReadFile(): unexpected err: %v", err)
	}
	wanted := append(pattern(testBlockSize, 0x11), make([]byte, 11*testBlockSize)...)
	wanted = append(wanted, "0123456789"...)
	if !bytes.Equal(data, wanted) {
		t.Fatal("FileSystem.ReadFile(): wanted direct block, hole, then indirect block")
	}
}

func TestLookupPath(t *testing.T) {
	fs := openTestImage(t, newTestImage())
	ino, inode, err := fs.LookupPath("/sub/inner")
	if err != nil {
		t.Fatalf("FileSystem.LookupPath(): unexpected err: %v", err)
	}
	if ino != 12 || inode.Size != 3000 {
		t.Fatalf("FileSystem.LookupPath(): wanted inode `12` of size `3000`; found `%d` of size `%d`", ino, inode.Size)
	}

	ino, _, err = fs.LookupPath("/")
	if err != nil || ino != RootIno {
		t.Fatalf("FileSystem.LookupPath(/): wanted `%d, nil`; found `%d, %v`", RootIno, ino, err)
	}

	var notFound ErrNotFound
	if _, _, err := fs.LookupPath("/sub/missing"); !errors.As(err, &notFound) {
		t.Fatalf("FileSystem.LookupPath(): wanted `ErrNotFound`; found `%v`", err)
	}
	if !strings.Contains(notFound.Path, "missing") {
		t.Fatalf("ErrNotFound.Path: wanted the requested path; found `%s`", notFound.Path)
	}
}

func TestReadInode_OutOfRange(t *testing.T) {
	fs := openTestImage(t, newTestImage())
	for _, ino := range []Ino{0, 17} {
		if _, err := fs.ReadInode(ino); !errors.As(err, &ErrInodeOutOfRange{}) {
			t.Fatalf("FileSystem.ReadInode(%d): wanted `ErrInodeOutOfRange`; found `%v`", ino, err)
		}
	}
}

func TestInodeBlockToPos(t *testing.T) {
	const perBlock = testBlockSize / 4
	for _, testCase := range []struct {
		block  uint64
		wanted BlockPos
	}{
		{11, BlockPos{Level: PosLevel0, Data: [3]uint64{11}}},
		{12, BlockPos{Level: PosLevel1, Data: [3]uint64{0}}},
		{12 + perBlock - 1, BlockPos{Level: PosLevel1, Data: [3]uint64{perBlock - 1}}},
		{12 + perBlock + perBlock + 3, BlockPos{Level: PosLevel2, Data: [3]uint64{1, 3}}},
		{
			12 + perBlock + perBlock*perBlock,
			BlockPos{Level: PosLevel3, Data: [3]uint64{0, 0, 0}},
		},
		{
			12 + perBlock + perBlock*perBlock + perBlock*perBlock*perBlock,
			BlockPos{Level: PosOutOfRange},
		},
	} {
		if found := InodeBlockToPos(testBlockSize, testCase.block); found != testCase.wanted {
			t.Fatalf(
				"InodeBlockToPos(%d): wanted `%+v`; found `%+v`",
				testCase.block,
				testCase.wanted,
				found,
			)
		}
	}
}
