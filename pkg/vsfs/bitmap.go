package vsfs

import (
	"fmt"
	"math/bits"
)

type Bit uint8

// Bitmap is one block of an inode or data bitmap. Bit `i` of byte `b` tracks
// unit `b*8 + i`; a high bit means the unit is in use.
type Bitmap []byte

func (bitmap Bitmap) IsHigh(byt Byte, bit Bit) bool {
	return (bitmap[byt]>>bit)&1 == 1
}

func (bitmap Bitmap) SetHigh(byt Byte, bit Bit) {
	bitmap[byt] |= 1 << bit
}

func (bitmap Bitmap) SetLow(byt Byte, bit Bit) {
	bitmap[byt] &^= 1 << bit
}

// FirstZero returns the index of the first low bit whose index is in
// `[from, limit)`. Fully-allocated bytes are skipped without inspecting their
// bits.
func (bitmap Bitmap) FirstZero(from, limit uint64) (uint64, bool) {
	for byt := from / 8; byt < uint64(len(bitmap)) && byt*8 < limit; byt++ {
		if bitmap[byt] == 0xff {
			continue
		}
		for bit := Bit(0); bit < 8; bit++ {
			i := byt*8 + uint64(bit)
			if i >= limit {
				return 0, false
			}
			if i >= from && !bitmap.IsHigh(Byte(byt), bit) {
				return i, true
			}
		}
	}
	return 0, false
}

func (bitmap Bitmap) OnesCount() uint64 {
	var n int
	for _, byt := range bitmap {
		n += bits.OnesCount8(byt)
	}
	return uint64(n)
}

// scanBitmap finds the first low bit in `[from, count)` across the bitmap
// region beginning at `regionOffset`, reading one block at a time.
func scanBitmap(
	fs *FileSystem,
	regionOffset Byte,
	blocks Byte,
	from uint64,
	count uint64,
) (uint64, bool, error) {
	const bitsPerBlock = uint64(BlockSize) * 8
	var buf [BlockSize]byte
	for b := Byte(from / bitsPerBlock); b < blocks; b++ {
		base := uint64(b) * bitsPerBlock
		if base >= count {
			break
		}
		if err := ReadBlock(fs, regionOffset+b*BlockSize, &buf); err != nil {
			return 0, false, fmt.Errorf("scanning bitmap: %w", err)
		}
		if i, ok := Bitmap(buf[:]).FirstZero(
			max(from, base)-base,
			count-base,
		); ok {
			return base + i, true, nil
		}
	}
	return 0, false, nil
}

// countBitmap counts the high bits among the first `count` bits of the
// bitmap region beginning at `regionOffset`.
func countBitmap(
	fs *FileSystem,
	regionOffset Byte,
	blocks Byte,
	count uint64,
) (uint64, error) {
	var buf [BlockSize]byte
	var total uint64
	for b := Byte(0); b < blocks; b++ {
		if err := ReadBlock(fs, regionOffset+b*BlockSize, &buf); err != nil {
			return 0, fmt.Errorf("counting bitmap: %w", err)
		}
		total += Bitmap(buf[:]).OnesCount()
	}
	return min(total, count), nil
}

func readBit(fs *FileSystem, addr BitAddr) (bool, error) {
	var buf [BlockSize]byte
	if err := ReadBlock(fs, addr.Block, &buf); err != nil {
		return false, err
	}
	return Bitmap(buf[:]).IsHigh(addr.Offset, addr.Bit), nil
}

// writeBit sets or clears a single bitmap bit by rewriting the whole bitmap
// block that contains it.
func writeBit(fs *FileSystem, addr BitAddr, high bool) error {
	var buf [BlockSize]byte
	if err := ReadBlock(fs, addr.Block, &buf); err != nil {
		return err
	}
	if high {
		Bitmap(buf[:]).SetHigh(addr.Offset, addr.Bit)
	} else {
		Bitmap(buf[:]).SetLow(addr.Offset, addr.Bit)
	}
	return WriteBlock(fs, addr.Block, &buf)
}
