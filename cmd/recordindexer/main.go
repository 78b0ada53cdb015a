package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "recordindexer",
		Usage: "Keep a bounded snapshot of the newest Record events of a contract",
		Flags: appFlags(),
		// Command flags read their env vars when the command is parsed, which
		// happens after Before has loaded the env file.
		Before: loadEnvFile,
		Commands: []*cli.Command{
			{
				Name:   "snapshot",
				Usage:  "Scan backward from the head and update the persisted snapshot",
				Flags:  snapshotFlags(),
				Action: runSnapshot,
			},
			{
				Name:   "history",
				Usage:  "Print every record in a recent block window without persisting anything",
				Flags:  historyFlags(),
				Action: runHistory,
			},
			{
				Name:   "remove",
				Usage:  "Delete the persisted snapshot",
				Flags:  removeFlags(),
				Action: remove,
			},
		},
	}
}

func loadEnvFile(c *cli.Context) error {
	path := c.String("env-file")
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
