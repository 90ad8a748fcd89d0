// revmgmt 座位控制计算服务与命令行工具.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "revmgmt",
		Usage:     "Seat inventory control: protection levels and booking limits",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "log level for one-shot commands (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			serveCmd,
			protectCmd,
			limitsCmd,
			transformCmd,
		},
	}
}
