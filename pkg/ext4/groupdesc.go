package ext4

import "encoding/binary"

type GroupDesc struct {
	BlockBitmap     uint64
	InodeBitmap     uint64
	InodeTable      uint64
	FreeBlocksCount uint32
	FreeInodesCount uint32
	UsedDirsCount   uint32
}

// DecodeGroupDesc decodes a 32 or 64 byte descriptor. The high halves are
// only present in the longer form.
func DecodeGroupDesc(b []byte) GroupDesc {
	le := binary.LittleEndian
	desc := GroupDesc{
		BlockBitmap:     uint64(le.Uint32(b[0x00:])),
		InodeBitmap:     uint64(le.Uint32(b[0x04:])),
		InodeTable:      uint64(le.Uint32(b[0x08:])),
		FreeBlocksCount: uint32(le.Uint16(b[0x0c:])),
		FreeInodesCount: uint32(le.Uint16(b[0x0e:])),
		UsedDirsCount:   uint32(le.Uint16(b[0x10:])),
	}
	if len(b) >= GroupDescSize64 {
		desc.BlockBitmap |= uint64(le.Uint32(b[0x20:])) << 32
		desc.InodeBitmap |= uint64(le.Uint32(b[0x24:])) << 32
		desc.InodeTable |= uint64(le.Uint32(b[0x28:])) << 32
		desc.FreeBlocksCount |= uint32(le.Uint16(b[0x2c:])) << 16
		desc.FreeInodesCount |= uint32(le.Uint16(b[0x2e:])) << 16
		desc.UsedDirsCount |= uint32(le.Uint16(b[0x30:])) << 16
	}
	return desc
}
