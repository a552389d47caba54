// Package commands holds the CLI surface: the gateway server, an offline
// chat replay, config validation and checkpoint inspection.
package commands

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "chatguide",
		Usage: "Guided-conversation orchestration engine",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewGatewayCommand(),
			NewChatCommand(),
			NewConfigCommand(),
			NewCheckpointCommand(),
			NewPromptCommand(),
		},
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
