package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/chatguide/internal/config"
	"github.com/dohr-michael/chatguide/internal/guide"
	"github.com/dohr-michael/chatguide/internal/model"
)

// NewChatCommand returns the offline chat replay subcommand: it runs a
// conversation against a file of scripted model responses, one JSON reply
// per line. Useful for exercising a config without a live model.
func NewChatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Replay a conversation with scripted model responses",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the conversation document",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "script",
				Usage:    "File of model responses, one JSON object per line",
				Required: true,
			},
		},
		Action: runChat,
	}
}

func runChat(ctx context.Context, cmd *cli.Command) error {
	setupLogging(cmd.Bool("debug"))

	doc, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(cmd.String("config"))
	if err != nil {
		return err
	}

	responses, err := readScript(cmd.String("script"))
	if err != nil {
		return err
	}

	g := guide.New(doc, &model.ScriptedInvoker{Responses: responses}, guide.Options{
		RawConfig: raw,
	})

	res, err := g.ProcessTurn(ctx, "")
	if err != nil {
		return err
	}
	printTurn(res)

	scanner := bufio.NewScanner(os.Stdin)
	for g.Status() != guide.StatusComplete {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		msg := strings.TrimSpace(scanner.Text())
		if msg == "" {
			continue
		}
		res, err := g.ProcessTurn(ctx, msg)
		if err != nil {
			return err
		}
		printTurn(res)
	}

	p := g.Progress()
	fmt.Printf("\nsession %s: %d/%d tasks completed (%.0f%%)\n",
		g.SessionID(), p.Completed, p.Total, p.Percent)
	return scanner.Err()
}

func readScript(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	var responses []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		responses = append(responses, line)
	}
	return responses, scanner.Err()
}

func printTurn(res *guide.TurnResult) {
	if res.Reply != "" {
		fmt.Println(res.Reply)
	}
	for _, name := range res.FiredAdjustments {
		fmt.Printf("  [adjustment fired: %s]\n", name)
	}
	for _, p := range res.PendingUITools {
		fmt.Printf("  [ui tool pending: %s]\n", p.Tool)
	}
	for _, e := range res.Errors {
		fmt.Printf("  [%s error: %s]\n", e.Kind, e.Message)
	}
}
