package vsfs

import "fmt"

// AllocDataBlock claims the lowest free data block, zero-fills it on disk
// and returns its index.
func AllocDataBlock(fs *FileSystem) (Block, error) {
	layout := fs.Layout
	i, ok, err := scanBitmap(
		fs,
		layout.DataBitmapOffset(),
		layout.DataBitmapBlocks,
		0,
		uint64(layout.DataBlockCount),
	)
	if err != nil {
		return 0, fmt.Errorf("allocating data block: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("allocating data block: %w", OutOfDiskSpaceErr)
	}

	block := Block(i)
	addr, err := layout.DataAddr(block)
	if err != nil {
		return 0, fmt.Errorf("allocating data block: %w", err)
	}
	var zeros [BlockSize]byte
	if err := WriteBlock(fs, addr, &zeros); err != nil {
		return 0, fmt.Errorf("allocating data block `%d`: %w", block, err)
	}

	bitAddr, err := layout.DataBitmapAddr(block)
	if err != nil {
		return 0, fmt.Errorf("allocating data block: %w", err)
	}
	if err := writeBit(fs, bitAddr, true); err != nil {
		return 0, fmt.Errorf("allocating data block `%d`: %w", block, err)
	}
	fs.Logger.Debug("allocated data block", "block", block)
	return block, nil
}

func FreeDataBlock(fs *FileSystem, block Block) error {
	bitAddr, err := fs.Layout.DataBitmapAddr(block)
	if err != nil {
		return fmt.Errorf("freeing data block: %w", err)
	}
	if err := writeBit(fs, bitAddr, false); err != nil {
		return fmt.Errorf("freeing data block `%d`: %w", block, err)
	}
	return nil
}

// IsDataBlockUsed reports whether `block`'s bitmap bit is high.
func IsDataBlockUsed(fs *FileSystem, block Block) (bool, error) {
	bitAddr, err := fs.Layout.DataBitmapAddr(block)
	if err != nil {
		return false, fmt.Errorf("checking data block: %w", err)
	}
	used, err := readBit(fs, bitAddr)
	if err != nil {
		return false, fmt.Errorf("checking data block `%d`: %w", block, err)
	}
	return used, nil
}
