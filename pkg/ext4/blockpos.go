package ext4

type BlockPosLevel uint8

const (
	PosLevel0 BlockPosLevel = iota
	PosLevel1
	PosLevel2
	PosLevel3
	PosOutOfRange
)

// BlockPos locates a file block in the legacy block map: `Data` holds the
// index at each level of indirection, outermost first.
type BlockPos struct {
	Level BlockPosLevel
	Data  [3]uint64
}

// InodeBlockToPos classifies the `inodeBlock`-th block of a file whose
// block map uses `blockSize`-byte blocks.
func InodeBlockToPos(blockSize, inodeBlock uint64) BlockPos {
	if inodeBlock < 12 {
		return BlockPos{Level: PosLevel0, Data: [3]uint64{inodeBlock}}
	}

	indirect1Size := blockSize / 4
	base := inodeBlock - 12
	if base < indirect1Size {
		return BlockPos{Level: PosLevel1, Data: [3]uint64{base}}
	}

	indirect2Size := indirect1Size * indirect1Size
	base -= indirect1Size
	if base < indirect2Size {
		return BlockPos{
			Level: PosLevel2,
			Data:  [3]uint64{base / indirect1Size, base % indirect1Size},
		}
	}

	indirect3Size := indirect1Size * indirect2Size
	base -= indirect2Size
	if base < indirect3Size {
		return BlockPos{
			Level: PosLevel3,
			Data: [3]uint64{
				base / indirect2Size,
				(base % indirect2Size) / indirect1Size,
				(base % indirect2Size) % indirect1Size,
			},
		}
	}

	return BlockPos{Level: PosOutOfRange}
}
