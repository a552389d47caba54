package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/chatguide/internal/checkpoint"
)

// NewCheckpointCommand returns the checkpoint subcommand.
func NewCheckpointCommand() *cli.Command {
	dataFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Directory for checkpoints",
			Value: "data",
		},
		&cli.StringFlag{
			Name:  "store",
			Usage: "Checkpoint store backend: file or sqlite",
			Value: "file",
		},
	}

	return &cli.Command{
		Name:  "checkpoint",
		Usage: "Inspect persisted sessions",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List session ids",
				Flags:  dataFlags,
				Action: runCheckpointList,
			},
			{
				Name:      "inspect",
				Usage:     "Print a session's checkpoint document",
				ArgsUsage: "<session-id>",
				Flags:     dataFlags,
				Action:    runCheckpointInspect,
			},
		},
	}
}

func openStore(cmd *cli.Command) (checkpoint.Store, func(), error) {
	dataDir := cmd.String("data-dir")
	switch backend := cmd.String("store"); backend {
	case "file":
		return checkpoint.NewFileStore(filepath.Join(dataDir, "sessions")), func() {}, nil
	case "sqlite":
		s, err := checkpoint.NewSQLiteStore(filepath.Join(dataDir, "checkpoints.db"))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func runCheckpointList(ctx context.Context, cmd *cli.Command) error {
	store, closeStore, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	ids, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func runCheckpointInspect(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: chatguide checkpoint inspect <session-id>")
	}

	store, closeStore, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	cp, err := store.Load(ctx, id)
	if err != nil {
		return err
	}
	data, err := cp.Marshal()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}
