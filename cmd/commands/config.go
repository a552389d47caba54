package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/chatguide/internal/config"
)

// NewConfigCommand returns the config subcommand.
func NewConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Work with conversation documents",
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Parse and validate a conversation document",
				ArgsUsage: "<path>",
				Action:    runConfigValidate,
			},
		},
	}
}

func runConfigValidate(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: chatguide config validate <path>")
	}

	doc, err := config.Load(path)
	if err != nil {
		return err
	}

	fmt.Printf("%s: ok\n", path)
	fmt.Printf("  blocks: %d, tasks: %d, adjustments: %d\n",
		len(doc.Plan), len(doc.Tasks), len(doc.Adjustments))
	fmt.Printf("  limits: retries=%d silent_chain=%d history_window=%d invoke_timeout=%s\n",
		doc.Limits.Retries, doc.Limits.SilentChain, doc.Limits.HistoryWindow, doc.Limits.InvokeTimeout)
	return nil
}
