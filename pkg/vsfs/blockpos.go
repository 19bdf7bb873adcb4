package vsfs

type InodeBlockDirection int

const (
	InodeBlockDirect InodeBlockDirection = iota
	InodeBlockSinglyIndirect
	InodeBlockOutOfRange
)

// BlockPos says where the pointer to the n-th block of a file is stored:
// either a slot of the inode's direct list or an entry of its indirect block.
type BlockPos struct {
	Indirection InodeBlockDirection
	Index       uint32
}

func BlockPosFromInodeBlock(inodeBlock uint32) BlockPos {
	switch {
	case inodeBlock < DirectBlocksCount:
		return BlockPos{Indirection: InodeBlockDirect, Index: inodeBlock}
	case inodeBlock < DirectBlocksCount+uint32(IndirectBlocksCount):
		return BlockPos{
			Indirection: InodeBlockSinglyIndirect,
			Index:       inodeBlock - DirectBlocksCount,
		}
	default:
		return BlockPos{Indirection: InodeBlockOutOfRange}
	}
}
