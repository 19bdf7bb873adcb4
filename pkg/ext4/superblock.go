package ext4

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type RevLevel uint32

const (
	SuperblockMagic  uint16 = 0xef53
	SuperblockSize          = 1024
	SuperblockOffset        = 1024

	RevLevelStatic  RevLevel = 0
	RevLevelDynamic RevLevel = 1

	DefaultFirstIno  uint32 = 11
	DefaultInodeSize uint16 = 128

	// descriptors are 32 bytes unless the 64bit feature says otherwise
	GroupDescSize   = 32
	GroupDescSize64 = 64
)

const (
	CompatHasJournal uint32 = 0x0004

	IncompatFileType uint32 = 0x0002
	IncompatRecover  uint32 = 0x0004
	IncompatMetaBG   uint32 = 0x0010
	IncompatExtents  uint32 = 0x0040
	Incompat64Bit    uint32 = 0x0080
	IncompatFlexBG   uint32 = 0x0200
	IncompatCsumSeed uint32 = 0x2000
	IncompatLargeDir uint32 = 0x4000
	IncompatInline   uint32 = 0x8000

	// SupportedIncompatFeatures are the incompat features this reader
	// understands well enough to read files and directories.
	SupportedIncompatFeatures = IncompatFileType |
		IncompatExtents |
		Incompat64Bit |
		IncompatFlexBG |
		IncompatCsumSeed |
		IncompatLargeDir
)

type Superblock struct {
	InodesCount     uint32
	BlocksCount     uint64
	FreeBlocksCount uint64
	FreeInodesCount uint32
	FirstDataBlock  uint32
	LogBlockSize    uint32
	BlocksPerGroup  uint32
	InodesPerGroup  uint32
	State           uint16
	RevLevel        RevLevel
	FirstIno        uint32
	InodeSize       uint16
	FeatureCompat   uint32
	FeatureIncompat uint32
	FeatureROCompat uint32
	UUID            uuid.UUID
	VolumeName      string
	DescSize        uint16
}

type ErrBadMagic struct {
	Found uint16
}

func (err ErrBadMagic) Error() string {
	return fmt.Sprintf(
		"bad magic: wanted `%#04x`; found `%#04x`",
		SuperblockMagic,
		err.Found,
	)
}

type ErrIncompatibleFeatures struct {
	Found uint32
}

func (err ErrIncompatibleFeatures) Error() string {
	return fmt.Sprintf(
		"volume uses incompatible features: `%#04x`",
		err.Found,
	)
}

func DecodeSuperblock(b *[SuperblockSize]byte) (Superblock, error) {
	var sb Superblock
	err := sb.Decode(b)
	return sb, err
}

func (sb *Superblock) Decode(b *[SuperblockSize]byte) error {
	le := binary.LittleEndian
	magic := le.Uint16(b[0x38:])
	if magic != SuperblockMagic {
		return fmt.Errorf("decoding superblock: %w", ErrBadMagic{magic})
	}

	rev := RevLevel(le.Uint32(b[0x4c:]))
	*sb = Superblock{
		InodesCount:     le.Uint32(b[0x00:]),
		BlocksCount:     uint64(le.Uint32(b[0x04:])),
		FreeBlocksCount: uint64(le.Uint32(b[0x0c:])),
		FreeInodesCount: le.Uint32(b[0x10:]),
		FirstDataBlock:  le.Uint32(b[0x14:]),
		LogBlockSize:    le.Uint32(b[0x18:]),
		BlocksPerGroup:  le.Uint32(b[0x20:]),
		InodesPerGroup:  le.Uint32(b[0x28:]),
		State:           le.Uint16(b[0x3a:]),
		RevLevel:        rev,
		FirstIno:        DefaultFirstIno,
		InodeSize:       DefaultInodeSize,
		DescSize:        GroupDescSize,
	}
	if rev == RevLevelStatic {
		return nil
	}

	sb.FirstIno = le.Uint32(b[0x54:])
	sb.InodeSize = le.Uint16(b[0x58:])
	sb.FeatureCompat = le.Uint32(b[0x5c:])
	sb.FeatureIncompat = le.Uint32(b[0x60:])
	sb.FeatureROCompat = le.Uint32(b[0x64:])
	copy(sb.UUID[:], b[0x68:0x78])
	sb.VolumeName = strings.TrimRight(string(b[0x78:0x88]), "\x00")

	if unsupported := sb.FeatureIncompat &^ SupportedIncompatFeatures; unsupported != 0 {
		return fmt.Errorf(
			"decoding superblock: %w",
			ErrIncompatibleFeatures{unsupported},
		)
	}

	if sb.Is64Bit() {
		sb.BlocksCount |= uint64(le.Uint32(b[0x150:])) << 32
		sb.FreeBlocksCount |= uint64(le.Uint32(b[0x158:])) << 32
		if sb.DescSize = le.Uint16(b[0xfe:]); sb.DescSize < GroupDescSize64 {
			sb.DescSize = GroupDescSize64
		}
	}
	return nil
}

func (sb *Superblock) Is64Bit() bool {
	return sb.FeatureIncompat&Incompat64Bit != 0
}

func (sb *Superblock) BlockSize() uint64 { return 1024 << sb.LogBlockSize }

func (sb *Superblock) GroupCount() uint64 {
	blocks := sb.BlocksCount - uint64(sb.FirstDataBlock)
	perGroup := uint64(sb.BlocksPerGroup)
	return (blocks + perGroup - 1) / perGroup
}

// Type guesses the filesystem generation from the feature flags.
func (sb *Superblock) Type() string {
	switch {
	case sb.FeatureIncompat&(IncompatExtents|Incompat64Bit) != 0:
		return "ext4"
	case sb.FeatureCompat&CompatHasJournal != 0:
		return "ext3"
	default:
		return "ext2"
	}
}
