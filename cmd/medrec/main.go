package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/aussiebroadwan/medrec/internal/cli"
	"github.com/aussiebroadwan/medrec/pkg/authsdk"
	"github.com/aussiebroadwan/medrec/pkg/slogx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := cli.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.ExitError)
	}

	log := slogx.New(slogx.Config{
		Service: "medrec-cli",
		Version: "v0.1.0",
		Env:     "cli",
		Level:   cfg.LogLevel,
		Format:  "text",
		Output:  os.Stderr,
	})

	code := cli.Run(ctx, os.Args[1:], cli.IO{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr},
		func(ctx context.Context) (*authsdk.Service, func(), error) {
			return cli.NewService(ctx, cfg, log)
		})
	stop()
	os.Exit(code)
}
