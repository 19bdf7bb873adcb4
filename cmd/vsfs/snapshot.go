package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/weberc2/vsfs/pkg/objectstore"
	"github.com/weberc2/vsfs/pkg/pgcatalog"
	"github.com/weberc2/vsfs/pkg/snapshot"
)

func withCatalog(f func(*pgcatalog.PGCatalog, *cli.Context) error) cli.ActionFunc {
	return withConfig(func(c *Config, ctx *cli.Context) error {
		catalog, err := pgcatalog.Open(c.Postgres)
		if err != nil {
			return err
		}
		defer catalog.Close()
		return f(catalog, ctx)
	})
}

func withSnapshotter(f func(*snapshot.Snapshotter, *cli.Context) error) cli.ActionFunc {
	return withConfig(func(c *Config, ctx *cli.Context) error {
		if err := c.ValidateSnapshots(); err != nil {
			return err
		}
		s3, err := objectstore.NewS3ObjectStore(c.Region)
		if err != nil {
			return err
		}
		catalog, err := pgcatalog.Open(c.Postgres)
		if err != nil {
			return err
		}
		defer catalog.Close()
		return f(&snapshot.Snapshotter{
			Objects: &objectstore.GzipObjectStore{ObjectStore: s3},
			Catalog: catalog,
			Bucket:  c.Bucket,
			Prefix:  c.Prefix,
			Logger:  slog.Default().With("component", "snapshot"),
		}, ctx)
	})
}

var snapshotCommand = &cli.Command{
	Name:    "snapshot",
	Aliases: []string{"snapshots", "snap"},
	Usage:   "copy images to and from S3, tracked in a postgres catalog",
	Subcommands: []*cli.Command{{
		Name:      "push",
		Usage:     "upload IMAGE as a new snapshot called NAME",
		ArgsUsage: "NAME IMAGE",
		Action: withSnapshotter(func(s *snapshot.Snapshotter, ctx *cli.Context) error {
			argv, err := args(ctx, 2, 2)
			if err != nil {
				return err
			}
			image, err := os.OpenFile(argv[1], os.O_RDWR, 0)
			if err != nil {
				return fmt.Errorf("opening image: %w", err)
			}
			defer image.Close()
			snap, err := s.Push(argv[0], image)
			if err != nil {
				return err
			}
			return printJSON(snap)
		}),
	}, {
		Name:      "pull",
		Usage:     "download snapshot ID into IMAGE, replacing its contents",
		ArgsUsage: "ID IMAGE",
		Action: withSnapshotter(func(s *snapshot.Snapshotter, ctx *cli.Context) error {
			argv, err := args(ctx, 2, 2)
			if err != nil {
				return err
			}
			image, err := os.OpenFile(argv[1], os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				return fmt.Errorf("creating image: %w", err)
			}
			defer image.Close()
			if _, err := s.Pull(argv[0], image); err != nil {
				return err
			}
			if err := image.Sync(); err != nil {
				return fmt.Errorf("syncing image: %w", err)
			}
			return nil
		}),
	}, {
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "list snapshots, oldest first",
		Action: withSnapshotter(func(s *snapshot.Snapshotter, ctx *cli.Context) error {
			snapshots, err := s.List()
			if err != nil {
				return err
			}
			return printJSON(snapshots)
		}),
	}, {
		Name:      "delete",
		Aliases:   []string{"rm", "remove"},
		Usage:     "delete a snapshot and its object",
		ArgsUsage: "ID",
		Action: withSnapshotter(func(s *snapshot.Snapshotter, ctx *cli.Context) error {
			argv, err := args(ctx, 1, 1)
			if err != nil {
				return err
			}
			return s.Delete(argv[0])
		}),
	}, {
		Name:  "table",
		Usage: "commands for interacting with the backing pg table",
		Subcommands: []*cli.Command{{
			Name:    "ensure",
			Aliases: []string{"make", "create"},
			Usage:   "create the table if it doesn't already exist",
			Action: withCatalog(func(catalog *pgcatalog.PGCatalog, ctx *cli.Context) error {
				return catalog.EnsureTable()
			}),
		}, {
			Name:    "drop",
			Aliases: []string{"delete", "destroy"},
			Usage:   "drop the postgres table",
			Action: withCatalog(func(catalog *pgcatalog.PGCatalog, ctx *cli.Context) error {
				return catalog.DropTable()
			}),
		}, {
			Name:  "reset",
			Usage: "delete and recreate the postgres table",
			Action: withCatalog(func(catalog *pgcatalog.PGCatalog, ctx *cli.Context) error {
				return catalog.ResetTable()
			}),
		}},
	}},
}
