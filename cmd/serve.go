package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/olusolaa/connector/internal/observability"
	"github.com/olusolaa/connector/internal/server"
)

var (
	serveHost        string
	servePort        int
	serveSyncOnStart bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the connector as a long-lived service with a periodic scheduler",
	Long: `
The serve command starts the admin API and a scheduler that triggers a
sync pass every SYNC_INTERVAL. The API exposes health, sync control and
inspection endpoints:

  GET  /healthz
  POST /api/sync
  GET  /api/sync/status
  GET  /api/checkpoints
  GET  /api/events/recent
  GET  /api/stats

Endpoints other than /healthz honor AUTH_MODE (none, oidc or secret).

Example:
  connector serve                       # Serve on SERVER_HOST:SERVER_PORT
  connector serve --port 9090           # Override the port
  connector serve --sync-on-start       # Kick off a sync immediately
`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind the admin API (overrides SERVER_HOST)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to bind the admin API (overrides SERVER_PORT)")
	serveCmd.Flags().BoolVar(&serveSyncOnStart, "sync-on-start", false, "Trigger a sync run at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stdout, "[serve] ", log.LstdFlags)

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if serveHost != "" {
		cfg.ServerHost = serveHost
	}
	if servePort > 0 {
		cfg.ServerPort = servePort
	}

	shutdownOTel, err := observability.Init(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			logger.Printf("observability shutdown error: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Printf("Received signal: %v", sig)
		cancel()
	}()

	svc, events, checkpoints, cleanup, err := buildSyncer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	auth, err := server.NewAuthenticator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to configure authentication: %w", err)
	}

	var reader server.EventReader
	if events != nil {
		reader = events
	}

	srv := server.New(cfg, svc, checkpoints, reader, auth, logger)
	srv.Scheduler().Start(ctx)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gCtx)
	})
	if serveSyncOnStart {
		g.Go(func() error {
			if _, err := svc.Sync(gCtx); err != nil {
				logger.Printf("initial sync failed: %v", err)
			}
			return nil
		})
	}

	return g.Wait()
}
