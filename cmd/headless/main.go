// Command headless plays a seeded game without the server and reports the outcome.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "headless: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "headless",
		Usage: "replay a seeded tank battle without rendering or networking",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (json, yaml or toml)",
				Sources: cli.EnvVars("TANKS_CONFIG"),
			},
			&cli.Int64Flag{
				Name:  "seed",
				Usage: "random seed, overrides the config",
			},
			&cli.IntFlag{
				Name:  "ticks",
				Value: 20 * 60 * 5,
				Usage: "maximum ticks to simulate",
			},
			&cli.IntFlag{
				Name:  "players",
				Usage: "player slots driven by the bot, overrides the config",
			},
			&cli.StringFlag{
				Name:  "levels",
				Usage: "level pack file, overrides the config",
			},
			&cli.IntFlag{
				Name:  "trace",
				Usage: "log a status line every N ticks (0 disables)",
			},
			&cli.StringFlag{
				Name:  "events",
				Usage: "write the NDJSON event log to this file",
			},
			&cli.StringFlag{
				Name:  "frame",
				Usage: "write the final frame as PNG to this file",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts := Options{
				ConfigPath: cmd.String("config"),
				MaxTicks:   cmd.Int("ticks"),
				LevelsFile: cmd.String("levels"),
				Trace:      cmd.Int("trace"),
				EventsPath: cmd.String("events"),
				FramePath:  cmd.String("frame"),
			}
			if cmd.IsSet("seed") {
				seed := cmd.Int64("seed")
				opts.Seed = &seed
			}
			if cmd.IsSet("players") {
				opts.Players = cmd.Int("players")
			}

			summary, err := Run(ctx, opts, cmd.Root().ErrWriter)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			return summary.Write(cmd.Root().Writer)
		},
	}
}
