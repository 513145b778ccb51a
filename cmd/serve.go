package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ca-srg/prodsearch/internal/server"
)

var (
	serveHost       string
	servePort       int
	serveDisableMCP bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and MCP endpoint",
	Long: `
Start the product search HTTP server.

Routes:
  POST /analyze   multipart form: q (required), file (optional image)
  GET  /health    liveness check
  GET  /metrics   Prometheus metrics
  /mcp            MCP streamable HTTP endpoint exposing the product_search tool

Configuration is loaded from environment variables and an optional .env file.

Examples:
  prodsearch serve
  prodsearch serve --port 9000
  prodsearch serve --disable-mcp
`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Server host address (overrides SERVER_HOST)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Server port (overrides SERVER_PORT)")
	serveCmd.Flags().BoolVar(&serveDisableMCP, "disable-mcp", false, "Do not mount the /mcp endpoint")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			a.logger.Warn("shutdown finished with errors", zap.Error(err))
		}
	}()

	// /health stays static; an unreachable index only warns at startup
	if err := checkIndexHealth(ctx, a); err != nil {
		a.logger.Warn("search index unreachable at startup", zap.Error(err))
	}

	srvCfg := serverConfig(a)
	if cmd.Flags().Changed("host") {
		srvCfg.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		if servePort < 1 || servePort > 65535 {
			return fmt.Errorf("invalid port: %d", servePort)
		}
		srvCfg.Port = servePort
	}
	if serveDisableMCP {
		srvCfg.MCPEnabled = false
	}

	srv, err := server.New(srvCfg, a.pipeline, a.logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		poolStatsLoop(gctx, a)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}

func serverConfig(a *app) server.Config {
	return server.Config{
		Host:            a.cfg.ServerHost,
		Port:            a.cfg.ServerPort,
		ReadTimeout:     a.cfg.ServerReadTimeout,
		WriteTimeout:    a.cfg.ServerWriteTimeout,
		IdleTimeout:     a.cfg.ServerIdleTimeout,
		ShutdownTimeout: a.cfg.ServerShutdownTimeout,
		MaxUploadBytes:  int64(a.cfg.MaxUploadBytes),
		MCPEnabled:      a.cfg.MCPEnabled,
		Version:         Version,
	}
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

type metricsLogger interface {
	LogMetrics()
}

// checkIndexHealth pings the index when the client supports it
func checkIndexHealth(ctx context.Context, a *app) error {
	hc, ok := a.index.(healthChecker)
	if !ok {
		return nil
	}
	timeout := a.cfg.SearchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return hc.HealthCheck(ctx)
}

// poolStatsLoop logs worker pool pressure once a minute
func poolStatsLoop(ctx context.Context, a *app) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logRuntimeStats(a)
		}
	}
}

func logRuntimeStats(a *app) {
	stats := a.pool.Stats()
	a.logger.Debug("worker pool",
		zap.Int("capacity", stats.Capacity),
		zap.Int("running", stats.Running),
		zap.Int("waiting", stats.Waiting),
	)
	if ml, ok := a.index.(metricsLogger); ok {
		ml.LogMetrics()
	}
}
