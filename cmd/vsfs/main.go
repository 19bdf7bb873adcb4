package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"
	"github.com/weberc2/vsfs/pkg/vsfs"
)

func main() {
	app := cli.App{
		Name:  appName,
		Usage: "create, inspect and serve vsfs volume images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the yaml config file",
				Value:   configFile(),
				EnvVars: []string{envVarPrefix + "_CONFIG_FILE"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log at debug level",
			},
		},
		Before: func(ctx *cli.Context) error {
			level := slog.LevelInfo
			if ctx.Bool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(
				os.Stderr,
				&slog.HandlerOptions{Level: level},
			)))
			return nil
		},
		Commands: []*cli.Command{
			formatCommand,
			infoCommand,
			lsCommand,
			mkdirCommand,
			touchCommand,
			writeCommand,
			catCommand,
			rmCommand,
			serveCommand,
			snapshotCommand,
			ext4Command,
			keygenCommand,
			tokenCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func withConfig(f func(*Config, *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		c, err := LoadConfig(ctx.String("config"))
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return f(c, ctx)
	}
}

// args returns the positional arguments if there are between `least` and
// `most` of them.
func args(ctx *cli.Context, least, most int) ([]string, error) {
	if n := ctx.Args().Len(); n < least || n > most {
		return nil, fmt.Errorf(
			"%s: wanted arguments `%s`; found `%d` arguments",
			ctx.Command.Name,
			ctx.Command.ArgsUsage,
			n,
		)
	}
	return ctx.Args().Slice(), nil
}

func parseMode(s string) (vsfs.Mode, error) {
	mode, err := strconv.ParseUint(s, 8, 16)
	if err != nil {
		return 0, fmt.Errorf("parsing mode `%s`: %w", s, err)
	}
	if vsfs.Mode(mode) > vsfs.ModePermMask {
		return 0, fmt.Errorf("parsing mode `%s`: permission bits only", s)
	}
	return vsfs.Mode(mode), nil
}

func modeFlag(def string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "mode",
		Usage: "octal permission bits",
		Value: def,
	}
}
