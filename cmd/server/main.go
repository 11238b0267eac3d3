// Package main is the entry point for the account-gate server.
//
// MAIN PACKAGE IN GO:
// main stays minimal: parse flags, build a logger, load config, hand off to
// internal/server. All real logic lives in imported packages.
//
// COMMANDS:
//
//	account-gate [--config file] [--debug]           run the server (default)
//	account-gate hash-key [key]                      print a bcrypt hash for admin.keyHash
//	account-gate version
package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/sakif/account-gate/internal/auth"
	"github.com/sakif/account-gate/internal/config"
	"github.com/sakif/account-gate/internal/server"
)

// Set with -ldflags "-X main.version=... -X main.gitCommit=...".
var (
	version   = "dev"
	gitCommit = ""
)

var (
	configFileFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "YAML config file (missing file means defaults + GATE_* env)",
		Value:   "config.yaml",
		EnvVars: []string{"GATE_CONFIG"},
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

func main() {
	app := &cli.App{
		Name:  "account-gate",
		Usage: "admin-approved login with bans, deactivation and a security veto",
		Flags: []cli.Flag{
			configFileFlag,
			debugFlag,
		},
		Action: runServer,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server (default)",
				Action: runServer,
			},
			{
				Name:      "hash-key",
				Usage:     "Hash an admin key for admin.keyHash",
				ArgsUsage: "[key]  (read from stdin when omitted)",
				Action:    runHashKey,
			},
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(c *cli.Context) error {
					v := version
					if gitCommit != "" {
						v += "-" + gitCommit
					}
					fmt.Fprintln(c.App.Writer, v)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newLogger builds the process logger. Log levels from least to most
// severe: Debug → Info → Warn → Error.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func runServer(c *cli.Context) error {
	logger := newLogger(c.Bool(debugFlag.Name))

	cfg, err := config.Load(c.String(configFileFlag.Name))
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start blocks until SIGINT/SIGTERM.
	return srv.Start()
}

func runHashKey(c *cli.Context) error {
	key := c.Args().First()
	if key == "" {
		line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading key from stdin: %w", err)
		}
		key = strings.TrimSpace(line)
	}
	if key == "" {
		return errors.New("admin key must not be empty")
	}

	hash, err := auth.NewHasher().Hash(key)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, hash)
	return nil
}
