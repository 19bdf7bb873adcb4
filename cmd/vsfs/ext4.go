package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/weberc2/vsfs/pkg/ext4"
)

func withExt4(least, most int, f func(*ext4.FileSystem, []string) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		argv, err := args(ctx, least+1, most+1)
		if err != nil {
			return err
		}
		file, err := os.Open(argv[0])
		if err != nil {
			return fmt.Errorf("opening image: %w", err)
		}
		defer file.Close()
		fs, err := ext4.Open(file)
		if err != nil {
			return fmt.Errorf("opening `%s`: %w", argv[0], err)
		}
		return f(fs, argv[1:])
	}
}

var ext4Command = &cli.Command{
	Name:  "ext4",
	Usage: "read files out of an ext2/3/4 image",
	Subcommands: []*cli.Command{{
		Name:      "info",
		Usage:     "print the superblock",
		ArgsUsage: "IMAGE",
		Action: withExt4(0, 0, func(fs *ext4.FileSystem, _ []string) error {
			sb := &fs.Superblock
			return printJSON(struct {
				Type        string `json:"type"`
				UUID        string `json:"uuid"`
				VolumeName  string `json:"volumeName"`
				BlockSize   uint64 `json:"blockSize"`
				Blocks      uint64 `json:"blocks"`
				FreeBlocks  uint64 `json:"freeBlocks"`
				Inodes      uint32 `json:"inodes"`
				FreeInodes  uint32 `json:"freeInodes"`
				BlockGroups uint64 `json:"blockGroups"`
			}{
				Type:        sb.Type(),
				UUID:        sb.UUID.String(),
				VolumeName:  sb.VolumeName,
				BlockSize:   sb.BlockSize(),
				Blocks:      sb.BlocksCount,
				FreeBlocks:  sb.FreeBlocksCount,
				Inodes:      sb.InodesCount,
				FreeInodes:  sb.FreeInodesCount,
				BlockGroups: sb.GroupCount(),
			})
		}),
	}, {
		Name:      "ls",
		Usage:     "list a directory",
		ArgsUsage: "IMAGE [PATH]",
		Action: withExt4(0, 1, func(fs *ext4.FileSystem, argv []string) error {
			ino, _, err := fs.LookupPath(pathArg(argv))
			if err != nil {
				return err
			}
			entries, err := fs.ReadDir(ino)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if _, err := fmt.Printf(
					"%-8s %8d %s\n",
					entry.FileType,
					entry.Ino,
					entry.Name,
				); err != nil {
					return err
				}
			}
			return nil
		}),
	}, {
		Name:      "cat",
		Usage:     "print a regular file's contents",
		ArgsUsage: "IMAGE PATH",
		Action: withExt4(1, 1, func(fs *ext4.FileSystem, argv []string) error {
			ino, _, err := fs.LookupPath(argv[0])
			if err != nil {
				return err
			}
			data, err := fs.ReadFile(ino)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		}),
	}},
}
