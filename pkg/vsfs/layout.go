package vsfs

// Layout describes where each region of a volume lives. It is derived from
// the superblock counts and never persisted. Regions are laid out in this
// order, each starting on a block boundary:
//
//	[superblock][inode bitmap][data bitmap][inode table][data blocks]
type Layout struct {
	InodeCount        Ino
	DataBlockCount    Block
	InodeBitmapBlocks Byte
	DataBitmapBlocks  Byte
	InodeTableBlocks  Byte
}

// BitAddr locates a single bitmap bit: the block containing it, the byte
// within that block and the bit within that byte.
type BitAddr struct {
	Block  Byte
	Offset Byte
	Bit    Bit
}

// RecordAddr locates a record that shares a block with other records.
type RecordAddr struct {
	Block  Byte
	Offset Byte
}

func NewLayout(inodeCount Ino, dataBlockCount Block) Layout {
	return Layout{
		InodeCount:        inodeCount,
		DataBlockCount:    dataBlockCount,
		InodeBitmapBlocks: bitmapBlocks(uint64(inodeCount)),
		DataBitmapBlocks:  bitmapBlocks(uint64(dataBlockCount)),
		InodeTableBlocks:  DivCeil(Byte(inodeCount), InodesPerBlock),
	}
}

func bitmapBlocks(bits uint64) Byte {
	return DivCeil(Byte(DivCeil(bits, 8)), BlockSize)
}

func (layout Layout) InodeBitmapOffset() Byte {
	return SuperblockOffset + BlockSize
}

func (layout Layout) DataBitmapOffset() Byte {
	return layout.InodeBitmapOffset() + layout.InodeBitmapBlocks*BlockSize
}

func (layout Layout) InodeTableOffset() Byte {
	return layout.DataBitmapOffset() + layout.DataBitmapBlocks*BlockSize
}

func (layout Layout) DataOffset() Byte {
	return layout.InodeTableOffset() + layout.InodeTableBlocks*BlockSize
}

// Size is the total length of the volume in bytes.
func (layout Layout) Size() Byte {
	return layout.DataOffset() + Byte(layout.DataBlockCount)*BlockSize
}

// Blocks is the total length of the volume in blocks.
func (layout Layout) Blocks() Byte { return layout.Size() / BlockSize }

func (layout Layout) InodeBitmapAddr(ino Ino) (BitAddr, error) {
	if ino >= layout.InodeCount {
		return BitAddr{}, layout.inodeOutOfRange(ino)
	}
	return bitAddr(layout.InodeBitmapOffset(), uint64(ino)), nil
}

func (layout Layout) InodeBlockAddr(ino Ino) (RecordAddr, error) {
	if ino >= layout.InodeCount {
		return RecordAddr{}, layout.inodeOutOfRange(ino)
	}
	return RecordAddr{
		Block: layout.InodeTableOffset() +
			Byte(ino)/InodesPerBlock*BlockSize,
		Offset: Byte(ino) % InodesPerBlock * PhysicalInodeSize,
	}, nil
}

func (layout Layout) DataBitmapAddr(block Block) (BitAddr, error) {
	if block >= layout.DataBlockCount {
		return BitAddr{}, layout.dataOutOfRange(block)
	}
	return bitAddr(layout.DataBitmapOffset(), uint64(block)), nil
}

func (layout Layout) DataAddr(block Block) (Byte, error) {
	if block >= layout.DataBlockCount {
		return 0, layout.dataOutOfRange(block)
	}
	return layout.DataOffset() + Byte(block)*BlockSize, nil
}

func (layout Layout) inodeOutOfRange(ino Ino) error {
	return &IndexOutOfRangeErr{
		Region: RegionInode,
		Index:  uint32(ino),
		Count:  uint32(layout.InodeCount),
	}
}

func (layout Layout) dataOutOfRange(block Block) error {
	return &IndexOutOfRangeErr{
		Region: RegionData,
		Index:  uint32(block),
		Count:  uint32(layout.DataBlockCount),
	}
}

func bitAddr(regionOffset Byte, index uint64) BitAddr {
	byt := Byte(index / 8)
	return BitAddr{
		Block:  regionOffset + byt/BlockSize*BlockSize,
		Offset: byt % BlockSize,
		Bit:    Bit(index % 8),
	}
}
