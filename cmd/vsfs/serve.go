package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	pz "github.com/weberc2/httpeasy"
	"github.com/weberc2/vsfs/pkg/server"
)

var serveCommand = &cli.Command{
	Name:      "serve",
	Usage:     "serve the volume's contents over HTTP",
	ArgsUsage: "IMAGE",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "addr",
			Usage: "listen address (defaults to config `addr`)",
		},
	},
	Action: withConfig(func(c *Config, ctx *cli.Context) error {
		if ctx.IsSet("addr") {
			c.Addr = ctx.String("addr")
		}
		if err := c.ValidateServe(); err != nil {
			return err
		}
		argv, err := args(ctx, 1, 1)
		if err != nil {
			return err
		}
		fs, file, err := mount(c, argv[0], os.O_RDWR)
		if err != nil {
			return err
		}
		defer file.Close()

		s := server.Server{
			FS:            fs,
			Authenticator: &server.Authenticator{Key: c.AccessKey.Std()},
			Logger:        slog.Default().With("component", "server"),
		}
		slog.Info("listening", "addr", c.Addr, "image", argv[0])
		if err := http.ListenAndServe(
			c.Addr,
			pz.Register(pz.JSONLog(os.Stderr), s.Routes()...),
		); err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		return nil
	}),
}

var keygenCommand = &cli.Command{
	Name:  "keygen",
	Usage: "print a new P-521 key pair as PEM; the public key goes in config `accessKey`",
	Action: func(ctx *cli.Context) error {
		return server.GenerateKeyPair(os.Stdout)
	},
}

var tokenCommand = &cli.Command{
	Name:  "token",
	Usage: "print an ES512 access token for the server's mutating routes",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "key",
			Usage:    "path to the PEM private key from `vsfs keygen`",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "subject",
			Usage:    "the token's `sub` claim",
			Required: true,
		},
		&cli.DurationFlag{
			Name:  "ttl",
			Usage: "how long the token stays valid",
			Value: 24 * time.Hour,
		},
	},
	Action: func(ctx *cli.Context) error {
		data, err := os.ReadFile(ctx.String("key"))
		if err != nil {
			return fmt.Errorf("reading private key: %w", err)
		}
		key, err := server.ParsePrivateKey(data)
		if err != nil {
			return err
		}
		token, err := server.NewToken(
			key,
			ctx.String("subject"),
			time.Now(),
			ctx.Duration("ttl"),
		)
		if err != nil {
			return err
		}
		_, err = fmt.Println(token)
		return err
	},
}
