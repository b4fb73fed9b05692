// Package main provides the agekit CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agekit/agekit/pkg/age"
	"github.com/agekit/agekit/pkg/config"
	"github.com/agekit/agekit/pkg/connection"
	"github.com/agekit/agekit/pkg/mcp"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "agekit",
		Short: "Apache AGE graph tools over MCP",
		Long:  "agekit exposes an Apache AGE graph database to MCP clients,\ndecoding agtype results into structured graph records.",
	}

	rootCmd.AddCommand(newServeCmd(), newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("agekit %s (%s, built %s)\n", version, commit, buildTime)
		},
	}
}

func newServeCmd() *cobra.Command {
	var (
		configPath  string
		dsn         string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve graph tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = config.FindConfigFile()
			}
			cfg, err := config.LoadFromFile(configPath)
			if err != nil {
				return err
			}
			if dsn != "" {
				cfg.DB.DSN = dsn
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := buildLogger(cfg.App.LogLevel, cfg.App.LogFormat)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			return serve(cmd.Context(), cfg, metricsAddr, logger)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to agekit.yaml")
	cmd.Flags().StringVar(&dsn, "dsn", "", "database DSN (overrides config)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (e.g. :9187)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, metricsAddr string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := cfg.PrimarySettings()
	if err != nil {
		return err
	}

	manager := connection.NewManager(settings, cfg.DB.MaxEngines, logger)
	defer manager.DisposeAll(context.Background())

	client := age.NewClient(manager, logger)

	if metricsAddr != "" {
		prometheus.MustRegister(connection.NewPoolStatsCollector(manager))
		go func() {
			srv := &http.Server{
				Addr:              metricsAddr,
				Handler:           promhttp.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			logger.Info("serving metrics", zap.String("addr", metricsAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	serverCfg := mcp.DefaultServerConfig()
	serverCfg.Version = version
	serverCfg.DefaultGraph = cfg.Age.DefaultGraph

	logger.Info("serving MCP over stdio",
		zap.String("database", settings.DSN.Redacted()),
		zap.String("default_graph", serverCfg.DefaultGraph))

	return mcp.NewServer(client, serverCfg, logger).Run(ctx)
}

// buildLogger builds the process logger. Logs go to stderr: stdout carries
// the MCP transport.
func buildLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	return zapCfg.Build()
}
