package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/chatguide/internal/config"
	"github.com/dohr-michael/chatguide/internal/guide"
	"github.com/dohr-michael/chatguide/internal/model"
)

// NewPromptCommand returns the prompt subcommand. It prints the exact
// prompt the first model call of a fresh session would receive, which is
// the quickest way to debug a conversation document.
func NewPromptCommand() *cli.Command {
	return &cli.Command{
		Name:  "prompt",
		Usage: "Print the opening prompt for a conversation document",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the conversation document",
				Required: true,
			},
		},
		Action: runPrompt,
	}
}

func runPrompt(_ context.Context, cmd *cli.Command) error {
	doc, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	g := guide.New(doc, &model.ScriptedInvoker{}, guide.Options{})
	fmt.Println(g.BuildPrompt())
	return nil
}
