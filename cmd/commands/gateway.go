package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/chatguide/internal/checkpoint"
	"github.com/dohr-michael/chatguide/internal/events"
	"github.com/dohr-michael/chatguide/internal/gateway"
	"github.com/dohr-michael/chatguide/internal/model"
	"github.com/dohr-michael/chatguide/internal/storage"
)

// NewGatewayCommand returns the gateway subcommand.
func NewGatewayCommand() *cli.Command {
	return &cli.Command{
		Name:  "gateway",
		Usage: "Start the HTTP gateway server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
				Value: "127.0.0.1",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
				Value: 8480,
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Directory for checkpoints and event logs",
				Value: "data",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Checkpoint store backend: file or sqlite",
				Value: "file",
			},
			&cli.StringFlag{
				Name:     "model-endpoint",
				Usage:    "HTTP endpoint implementing the model reply contract",
				Required: true,
			},
		},
		Action: runGateway,
	}
}

func runGateway(_ context.Context, cmd *cli.Command) error {
	setupLogging(cmd.Bool("debug"))

	dataDir := cmd.String("data-dir")

	var store checkpoint.Store
	switch backend := cmd.String("store"); backend {
	case "file":
		store = checkpoint.NewFileStore(filepath.Join(dataDir, "sessions"))
	case "sqlite":
		s, err := checkpoint.NewSQLiteStore(filepath.Join(dataDir, "checkpoints.db"))
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	default:
		return fmt.Errorf("unknown store backend %q", backend)
	}

	bus := events.NewBus(1024)
	defer bus.Close()
	eventLog := storage.NewEventLogger(filepath.Join(dataDir, "events"), bus)
	defer eventLog.Close()

	server := gateway.NewServer(gateway.Options{
		Store:    store,
		Invoker:  &model.HTTPInvoker{Endpoint: cmd.String("model-endpoint")},
		Bus:      bus,
		EventLog: eventLog,
		Host:     cmd.String("host"),
		Port:     int(cmd.Int("port")),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
