package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/weberc2/vsfs/pkg/vsfs"
)

func mount(c *Config, path string, flag int) (*vsfs.FileSystem, *os.File, error) {
	file, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("opening image: %w", err)
	}
	fs, err := vsfs.Mount(file, &vsfs.MountOptions{
		ReadRootInode: true,
		CacheCapacity: c.CacheCapacity,
		Logger:        slog.Default().With("component", "vsfs"),
	})
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("mounting `%s`: %w", path, err)
	}
	return fs, file, nil
}

// withVolume mounts the image named by the first argument and passes the
// remaining arguments along. Images are opened read-only unless `writable`.
func withVolume(
	least int,
	most int,
	writable bool,
	f func(*vsfs.FileSystem, []string, *cli.Context) error,
) cli.ActionFunc {
	return withConfig(func(c *Config, ctx *cli.Context) error {
		argv, err := args(ctx, least+1, most+1)
		if err != nil {
			return err
		}
		flag := os.O_RDONLY
		if writable {
			flag = os.O_RDWR
		}
		fs, file, err := mount(c, argv[0], flag)
		if err != nil {
			return err
		}
		defer file.Close()
		if err := f(fs, argv[1:], ctx); err != nil {
			return err
		}
		if writable {
			if err := file.Sync(); err != nil {
				return fmt.Errorf("syncing image: %w", err)
			}
		}
		return nil
	})
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling to JSON: %w", err)
	}
	if _, err := fmt.Printf("%s\n", data); err != nil {
		return fmt.Errorf("writing JSON to stdout: %w", err)
	}
	return nil
}

var formatCommand = &cli.Command{
	Name:      "format",
	Aliases:   []string{"mkfs"},
	Usage:     "write an empty volume to IMAGE, replacing its contents",
	ArgsUsage: "IMAGE",
	Flags: []cli.Flag{
		&cli.UintFlag{
			Name:  "inodes",
			Usage: "number of inodes (defaults to config `inodeCount`)",
		},
		&cli.UintFlag{
			Name:  "blocks",
			Usage: "number of data blocks (defaults to config `dataBlockCount`)",
		},
	},
	Action: withConfig(func(c *Config, ctx *cli.Context) error {
		argv, err := args(ctx, 1, 1)
		if err != nil {
			return err
		}
		inodes, blocks := c.InodeCount, c.DataBlockCount
		if ctx.IsSet("inodes") {
			inodes = uint32(ctx.Uint("inodes"))
		}
		if ctx.IsSet("blocks") {
			blocks = uint32(ctx.Uint("blocks"))
		}

		file, err := os.OpenFile(argv[0], os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("creating image: %w", err)
		}
		defer file.Close()
		fs, err := vsfs.Format(file, &vsfs.FormatOptions{
			InodeCount:     vsfs.Ino(inodes),
			DataBlockCount: vsfs.Block(blocks),
			CacheCapacity:  c.CacheCapacity,
			Logger:         slog.Default().With("component", "vsfs"),
		})
		if err != nil {
			return err
		}
		if err := file.Sync(); err != nil {
			return fmt.Errorf("syncing image: %w", err)
		}
		stats, err := vsfs.Stat(fs)
		if err != nil {
			return err
		}
		return printJSON(&stats)
	}),
}

var infoCommand = &cli.Command{
	Name:      "info",
	Aliases:   []string{"stat", "df"},
	Usage:     "print the volume's geometry and free space",
	ArgsUsage: "IMAGE",
	Action: withVolume(0, 0, false, func(fs *vsfs.FileSystem, _ []string, _ *cli.Context) error {
		stats, err := vsfs.Stat(fs)
		if err != nil {
			return err
		}
		return printJSON(struct {
			vsfs.Stats
			Layout vsfs.Layout `json:"layout"`
		}{stats, fs.Layout})
	}),
}

func pathArg(argv []string) string {
	if len(argv) < 1 {
		return "/"
	}
	return argv[0]
}

var lsCommand = &cli.Command{
	Name:      "ls",
	Usage:     "list a directory",
	ArgsUsage: "IMAGE [PATH]",
	Action: withVolume(0, 1, false, func(fs *vsfs.FileSystem, argv []string, _ *cli.Context) error {
		dir, err := vsfs.OpenDirPath(fs, pathArg(argv))
		if err != nil {
			return err
		}
		entries, err := dir.Entries(fs)
		if err != nil {
			return err
		}
		for i := range entries {
			if _, err := fmt.Printf(
				"%s %6d %10d %s\n",
				entries[i].Inode.Mode,
				entries[i].Header.Ino,
				entries[i].Inode.Size,
				entries[i].Name,
			); err != nil {
				return err
			}
		}
		return nil
	}),
}

var mkdirCommand = &cli.Command{
	Name:      "mkdir",
	Usage:     "make a directory",
	ArgsUsage: "IMAGE PATH",
	Flags:     []cli.Flag{modeFlag("755")},
	Action: withVolume(1, 1, true, func(fs *vsfs.FileSystem, argv []string, ctx *cli.Context) error {
		mode, err := parseMode(ctx.String("mode"))
		if err != nil {
			return err
		}
		_, err = vsfs.MkdirPath(fs, argv[0], mode)
		return err
	}),
}

var touchCommand = &cli.Command{
	Name:      "touch",
	Usage:     "create an empty file or update an existing file's times",
	ArgsUsage: "IMAGE PATH",
	Flags:     []cli.Flag{modeFlag("644")},
	Action: withVolume(1, 1, true, func(fs *vsfs.FileSystem, argv []string, ctx *cli.Context) error {
		mode, err := parseMode(ctx.String("mode"))
		if err != nil {
			return err
		}
		file, err := vsfs.OpenFilePath(fs, argv[0])
		if errors.Is(err, vsfs.NotFoundErr) {
			_, err = vsfs.CreateFilePath(fs, argv[0], mode)
			return err
		}
		if err != nil {
			return err
		}
		now := uint64(fs.TimeFunc().Unix())
		file.Inode.ATime, file.Inode.MTime = now, now
		return file.Flush()
	}),
}

var writeCommand = &cli.Command{
	Name:      "write",
	Usage:     "replace a file's contents with stdin, creating it if needed",
	ArgsUsage: "IMAGE PATH",
	Flags:     []cli.Flag{modeFlag("644")},
	Action: withVolume(1, 1, true, func(fs *vsfs.FileSystem, argv []string, ctx *cli.Context) error {
		mode, err := parseMode(ctx.String("mode"))
		if err != nil {
			return err
		}
		_, err = vsfs.WriteFilePath(fs, argv[0], mode, os.Stdin)
		return err
	}),
}

var catCommand = &cli.Command{
	Name:      "cat",
	Usage:     "print a file's contents",
	ArgsUsage: "IMAGE PATH",
	Action: withVolume(1, 1, false, func(fs *vsfs.FileSystem, argv []string, _ *cli.Context) error {
		file, err := vsfs.OpenFilePath(fs, argv[0])
		if err != nil {
			return err
		}
		if _, err := io.Copy(os.Stdout, file); err != nil {
			return fmt.Errorf("copying `%s` to stdout: %w", argv[0], err)
		}
		return nil
	}),
}

var rmCommand = &cli.Command{
	Name:      "rm",
	Usage:     "remove a file or an empty directory",
	ArgsUsage: "IMAGE PATH",
	Action: withVolume(1, 1, true, func(fs *vsfs.FileSystem, argv []string, _ *cli.Context) error {
		return vsfs.RemovePath(fs, argv[0])
	}),
}
