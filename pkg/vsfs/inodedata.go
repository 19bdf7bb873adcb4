package vsfs

import (
	"fmt"
)

// InodeBlock resolves the `n`-th block of `inode`'s contents to a data block
// index.
func InodeBlock(fs *FileSystem, inode *Inode, n uint32) (Block, error) {
	pos := BlockPosFromInodeBlock(n)
	switch pos.Indirection {
	case InodeBlockDirect:
		return inode.Blocks[pos.Index], nil
	case InodeBlockSinglyIndirect:
		addr, err := fs.Layout.DataAddr(inode.Indirect)
		if err != nil {
			return 0, fmt.Errorf("resolving inode block `%d`: %w", n, err)
		}
		var buf [BlockSize]byte
		if err := ReadBlock(fs, addr, &buf); err != nil {
			return 0, fmt.Errorf("resolving inode block `%d`: %w", n, err)
		}
		return Block(getU32(buf[pos.Index*4:])), nil
	default:
		return 0, fmt.Errorf(
			"resolving inode block `%d`: %w",
			n,
			FileTooLargeErr,
		)
	}
}

func setInodeBlock(fs *FileSystem, inode *Inode, n uint32, block Block) error {
	pos := BlockPosFromInodeBlock(n)
	switch pos.Indirection {
	case InodeBlockDirect:
		inode.Blocks[pos.Index] = block
		return nil
	case InodeBlockSinglyIndirect:
		addr, err := fs.Layout.DataAddr(inode.Indirect)
		if err != nil {
			return fmt.Errorf("setting inode block `%d`: %w", n, err)
		}
		var buf [BlockSize]byte
		if err := ReadBlock(fs, addr, &buf); err != nil {
			return fmt.Errorf("setting inode block `%d`: %w", n, err)
		}
		putU32(buf[pos.Index*4:], uint32(block))
		if err := WriteBlock(fs, addr, &buf); err != nil {
			return fmt.Errorf("setting inode block `%d`: %w", n, err)
		}
		return nil
	default:
		return fmt.Errorf("setting inode block `%d`: %w", n, FileTooLargeErr)
	}
}

// growInodeBlocks extends `inode`'s block list from `have` to `want` blocks,
// allocating the indirect block when the direct slots run out. On failure
// every block allocated by this call is released again.
func growInodeBlocks(fs *FileSystem, inode *Inode, have, want uint32) error {
	for n := have; n < want; n++ {
		if n == DirectBlocksCount {
			indirect, err := AllocDataBlock(fs)
			if err != nil {
				return rollbackGrowth(fs, inode, have, n, err)
			}
			inode.Indirect = indirect
		}
		block, err := AllocDataBlock(fs)
		if err != nil {
			return rollbackGrowth(fs, inode, have, n, err)
		}
		if err := setInodeBlock(fs, inode, n, block); err != nil {
			if freeErr := FreeDataBlock(fs, block); freeErr != nil {
				return fmt.Errorf("%w (rolling back: %v)", err, freeErr)
			}
			return rollbackGrowth(fs, inode, have, n, err)
		}
	}
	return nil
}

func rollbackGrowth(fs *FileSystem, inode *Inode, have, n uint32, err error) error {
	if releaseErr := releaseInodeBlocks(fs, inode, have, n); releaseErr != nil {
		return fmt.Errorf("%w (rolling back: %v)", err, releaseErr)
	}
	return err
}

// releaseInodeBlocks frees blocks `[keep, count)` of `inode`, and its indirect
// block once no more than the direct slots are kept.
func releaseInodeBlocks(fs *FileSystem, inode *Inode, keep, count uint32) error {
	for n := keep; n < count; n++ {
		block, err := InodeBlock(fs, inode, n)
		if err != nil {
			return fmt.Errorf("releasing inode blocks: %w", err)
		}
		if err := FreeDataBlock(fs, block); err != nil {
			return fmt.Errorf("releasing inode blocks: %w", err)
		}
		if n < DirectBlocksCount || keep > DirectBlocksCount {
			if err := setInodeBlock(fs, inode, n, 0); err != nil {
				return fmt.Errorf("releasing inode blocks: %w", err)
			}
		}
	}
	if keep <= DirectBlocksCount && inode.Indirect != 0 {
		if err := FreeDataBlock(fs, inode.Indirect); err != nil {
			return fmt.Errorf("releasing indirect block: %w", err)
		}
		inode.Indirect = 0
	}
	return nil
}

// ReadInodeData copies up to `len(p)` bytes of `inode`'s contents starting at
// `offset` into `p` and returns the count. Reads stop at the end of the file.
func ReadInodeData(
	fs *FileSystem,
	inode *Inode,
	offset Byte,
	p []byte,
) (int, error) {
	if offset < 0 {
		return 0, fmt.Errorf("reading inode data at `%d`: %w", offset, InvalidOffsetErr)
	}
	if uint64(offset) >= inode.Size {
		return 0, nil
	}
	length := min(Byte(len(p)), Byte(inode.Size)-offset)

	var buf [BlockSize]byte
	var done Byte
	for done < length {
		chunkBlock := uint32((offset + done) / BlockSize)
		chunkOffset := (offset + done) % BlockSize
		chunkLength := min(length-done, BlockSize-chunkOffset)

		block, err := InodeBlock(fs, inode, chunkBlock)
		if err != nil {
			return int(done), fmt.Errorf("reading inode data at `%d`: %w", offset, err)
		}
		addr, err := fs.Layout.DataAddr(block)
		if err != nil {
			return int(done), fmt.Errorf("reading inode data at `%d`: %w", offset, err)
		}
		if err := ReadBlock(fs, addr, &buf); err != nil {
			return int(done), fmt.Errorf("reading inode data at `%d`: %w", offset, err)
		}
		copy(p[done:done+chunkLength], buf[chunkOffset:])
		done += chunkLength
	}
	return int(done), nil
}

// WriteInodeData writes `p` into `inode`'s contents at `offset`, growing the
// file as needed, and persists the inode at `ino`. Writing past the end of
// the file fills the gap with zeros. The returned count is the number of
// bytes that are part of the file afterwards.
func WriteInodeData(
	fs *FileSystem,
	ino Ino,
	inode *Inode,
	offset Byte,
	p []byte,
) (int, error) {
	if offset < 0 {
		return 0, fmt.Errorf(
			"writing data for inode `%d` at `%d`: %w",
			ino,
			offset,
			InvalidOffsetErr,
		)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if offset > MaxFileSize-Byte(len(p)) {
		return 0, fmt.Errorf(
			"writing data for inode `%d`: `%d` bytes at `%d`: %w",
			ino,
			len(p),
			offset,
			FileTooLargeErr,
		)
	}
	end := offset + Byte(len(p))

	have := inode.BlockCount()
	want := max(have, uint32(DivCeil(end, BlockSize)))
	if want > have {
		if err := growInodeBlocks(fs, inode, have, want); err != nil {
			return 0, fmt.Errorf("writing data for inode `%d`: %w", ino, err)
		}
	}

	done, writeErr := writeInodeChunks(fs, inode, offset, p)
	newSize := inode.Size
	if done > 0 {
		newSize = max(newSize, uint64(offset+done))
	}
	if writeErr != nil {
		// release the blocks grown for bytes that never reached the disk
		keep := max(have, uint32(DivCeil(newSize, uint64(BlockSize))))
		if keep < want {
			if err := releaseInodeBlocks(fs, inode, keep, want); err != nil {
				writeErr = fmt.Errorf("%w (rolling back: %v)", writeErr, err)
			}
		}
	}
	inode.Size = newSize
	inode.MTime = uint64(fs.TimeFunc().Unix())
	if err := WriteInode(fs, ino, inode); err != nil {
		return int(done), fmt.Errorf("writing data for inode `%d`: %w", ino, err)
	}
	if writeErr != nil {
		return int(done), fmt.Errorf(
			"writing data for inode `%d`: %w",
			ino,
			writeErr,
		)
	}
	return int(done), nil
}

func writeInodeChunks(
	fs *FileSystem,
	inode *Inode,
	offset Byte,
	p []byte,
) (Byte, error) {
	var buf [BlockSize]byte
	var done Byte
	for done < Byte(len(p)) {
		chunkBlock := uint32((offset + done) / BlockSize)
		chunkOffset := (offset + done) % BlockSize
		chunkLength := min(Byte(len(p))-done, BlockSize-chunkOffset)

		block, err := InodeBlock(fs, inode, chunkBlock)
		if err != nil {
			return done, err
		}
		addr, err := fs.Layout.DataAddr(block)
		if err != nil {
			return done, err
		}
		if chunkLength < BlockSize {
			if err := ReadBlock(fs, addr, &buf); err != nil {
				return done, err
			}
		}
		copy(buf[chunkOffset:chunkOffset+chunkLength], p[done:])
		if err := WriteBlock(fs, addr, &buf); err != nil {
			return done, err
		}
		done += chunkLength
	}
	return done, nil
}

// TruncateInodeData sets the length of `inode`'s contents to `size`,
// releasing blocks past the new end or zero-extending the file, and persists
// the inode at `ino`.
func TruncateInodeData(fs *FileSystem, ino Ino, inode *Inode, size uint64) error {
	if size > uint64(MaxFileSize) {
		return fmt.Errorf(
			"truncating inode `%d` to `%d`: %w",
			ino,
			size,
			FileTooLargeErr,
		)
	}

	have := inode.BlockCount()
	want := uint32(DivCeil(size, uint64(BlockSize)))
	switch {
	case want > have:
		if err := growInodeBlocks(fs, inode, have, want); err != nil {
			return fmt.Errorf("truncating inode `%d`: %w", ino, err)
		}
	case want < have:
		if err := releaseInodeBlocks(fs, inode, want, have); err != nil {
			return fmt.Errorf("truncating inode `%d`: %w", ino, err)
		}
	}

	// bytes past the end of the file are kept zeroed so that growing the
	// file later exposes zeros
	if tail := Byte(size % uint64(BlockSize)); size < inode.Size && tail != 0 {
		block, err := InodeBlock(fs, inode, want-1)
		if err != nil {
			return fmt.Errorf("truncating inode `%d`: %w", ino, err)
		}
		addr, err := fs.Layout.DataAddr(block)
		if err != nil {
			return fmt.Errorf("truncating inode `%d`: %w", ino, err)
		}
		var buf [BlockSize]byte
		if err := ReadBlock(fs, addr, &buf); err != nil {
			return fmt.Errorf("truncating inode `%d`: %w", ino, err)
		}
		clear(buf[tail:])
		if err := WriteBlock(fs, addr, &buf); err != nil {
			return fmt.Errorf("truncating inode `%d`: %w", ino, err)
		}
	}

	inode.Size = size
	inode.MTime = uint64(fs.TimeFunc().Unix())
	if err := WriteInode(fs, ino, inode); err != nil {
		return fmt.Errorf("truncating inode `%d`: %w", ino, err)
	}
	return nil
}
