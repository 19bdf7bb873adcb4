package ext4

import (
	"encoding/binary"
	"fmt"
)

const (
	ExtentMagic      uint16 = 0xf30a
	extentHeaderSize        = 12
	extentEntrySize         = 12

	// extents longer than this are uninitialized; their length is stored
	// with this bias and they read as zeros
	extentUninitBias uint16 = 0x8000

	// ext4 caps extent trees at a depth of 5
	maxExtentDepth = 5
)

type ExtentHeader struct {
	Magic   uint16
	Entries uint16
	Max     uint16
	Depth   uint16
}

type Extent struct {
	// Block is the first file block covered by the extent.
	Block  uint32
	Len    uint16
	Start  uint64
	Uninit bool
}

func (extent *Extent) Contains(n uint64) bool {
	return n >= uint64(extent.Block) && n < uint64(extent.Block)+uint64(extent.Len)
}

type ErrBadExtentMagic struct {
	Found uint16
}

func (err ErrBadExtentMagic) Error() string {
	return fmt.Sprintf(
		"bad extent magic: wanted `%#04x`; found `%#04x`",
		ExtentMagic,
		err.Found,
	)
}

type ErrExtentTreeTooDeep struct {
	Depth uint16
}

func (err ErrExtentTreeTooDeep) Error() string {
	return fmt.Sprintf("extent tree depth `%d` exceeds `%d`", err.Depth, maxExtentDepth)
}

func DecodeExtentHeader(b []byte) (ExtentHeader, error) {
	le := binary.LittleEndian
	header := ExtentHeader{
		Magic:   le.Uint16(b[0:]),
		Entries: le.Uint16(b[2:]),
		Max:     le.Uint16(b[4:]),
		Depth:   le.Uint16(b[6:]),
	}
	if header.Magic != ExtentMagic {
		return ExtentHeader{}, ErrBadExtentMagic{header.Magic}
	}
	if header.Depth > maxExtentDepth {
		return ExtentHeader{}, ErrExtentTreeTooDeep{header.Depth}
	}
	if room := (len(b) - extentHeaderSize) / extentEntrySize; int(header.Entries) > room {
		return ExtentHeader{}, fmt.Errorf(
			"extent node claims `%d` entries; room for `%d`",
			header.Entries,
			room,
		)
	}
	return header, nil
}

func DecodeExtent(b []byte) Extent {
	le := binary.LittleEndian
	extent := Extent{
		Block: le.Uint32(b[0:]),
		Len:   le.Uint16(b[4:]),
		Start: uint64(le.Uint16(b[6:]))<<32 | uint64(le.Uint32(b[8:])),
	}
	if extent.Len > extentUninitBias {
		extent.Len -= extentUninitBias
		extent.Uninit = true
	}
	return extent
}

func decodeExtentIndex(b []byte) (uint32, uint64) {
	le := binary.LittleEndian
	return le.Uint32(b[0:]), uint64(le.Uint16(b[8:]))<<32 | uint64(le.Uint32(b[4:]))
}

// findExtent searches the extent tree rooted at `node` for the extent
// covering file block `n`. A miss means `n` falls in a hole.
func (fs *FileSystem) findExtent(node []byte, n uint64) (Extent, bool, error) {
	for level := 0; level <= maxExtentDepth; level++ {
		header, err := DecodeExtentHeader(node)
		if err != nil {
			return Extent{}, false, fmt.Errorf(
				"finding extent for block `%d`: %w",
				n,
				err,
			)
		}

		entries := node[extentHeaderSize:]
		if header.Depth == 0 {
			for i := 0; i < int(header.Entries); i++ {
				extent := DecodeExtent(entries[i*extentEntrySize:])
				if extent.Contains(n) {
					return extent, true, nil
				}
			}
			return Extent{}, false, nil
		}

		// descend into the last index whose first block is at or before n
		var child uint64
		found := false
		for i := 0; i < int(header.Entries); i++ {
			first, leaf := decodeExtentIndex(entries[i*extentEntrySize:])
			if uint64(first) > n {
				break
			}
			child, found = leaf, true
		}
		if !found {
			return Extent{}, false, nil
		}
		buf := make([]byte, fs.BlockSize())
		if err := fs.readBlock(child, buf); err != nil {
			return Extent{}, false, fmt.Errorf(
				"finding extent for block `%d`: %w",
				n,
				err,
			)
		}
		node = buf
	}
	return Extent{}, false, fmt.Errorf(
		"finding extent for block `%d`: %w",
		n,
		ErrExtentTreeTooDeep{maxExtentDepth + 1},
	)
}
