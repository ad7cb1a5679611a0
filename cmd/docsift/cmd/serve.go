package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/logging"
	"github.com/docsift/docsift/internal/server"
)

// newServeCmd creates the serve command, which serves an existing index.
func newServeCmd() *cobra.Command {
	var (
		listen       string
		indexPath    string
		adminToken   string
		workers      int
		minQueryLen  int
		maxQueryLen  int
		defaultLimit int
		maxLimit     int
		logLevel     string
		logFile      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Long: `Serve opens the index read-only and answers GET /search, GET /meta,
GET /healthz, and POST /admin/reopen until interrupted.

Reopen swaps in a freshly built index file without dropping connections;
it requires the configured admin token as a bearer credential.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.Serve.Listen = listen
			}
			if flags.Changed("index") {
				cfg.Serve.IndexPath = indexPath
			}
			if flags.Changed("admin-token") {
				cfg.Serve.AdminToken = adminToken
			}
			if flags.Changed("workers") {
				cfg.Serve.Workers = workers
			}
			if flags.Changed("min-query") {
				cfg.Serve.MinQueryLen = minQueryLen
			}
			if flags.Changed("max-query") {
				cfg.Serve.MaxQueryLen = maxQueryLen
			}
			if flags.Changed("default-limit") {
				cfg.Serve.DefaultLimit = defaultLimit
			}
			if flags.Changed("max-limit") {
				cfg.Serve.MaxLimit = maxLimit
			}
			if flags.Changed("log-level") {
				cfg.Serve.LogLevel = logLevel
			}
			if flags.Changed("log-file") {
				cfg.Serve.LogFile = logFile
			}
			if err := cfg.ValidateServe(); err != nil {
				return err
			}

			logger, cleanup, err := logging.Setup(logging.Config{
				Level:         cfg.Serve.LogLevel,
				FilePath:      cfg.Serve.LogFile,
				WriteToStderr: true,
			})
			if err != nil {
				return err
			}
			defer cleanup()
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(),
				syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := server.New(ctx, cfg.Serve, logger)
			if err != nil {
				return err
			}
			defer srv.Close()

			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (host:port)")
	cmd.Flags().StringVar(&indexPath, "index", "", "Index file to serve")
	cmd.Flags().StringVar(&adminToken, "admin-token", "", "Bearer token for /admin/reopen")
	cmd.Flags().IntVar(&workers, "workers", 0, "Connection worker pool size")
	cmd.Flags().IntVar(&minQueryLen, "min-query", 0, "Minimum query length")
	cmd.Flags().IntVar(&maxQueryLen, "max-query", 0, "Maximum query length")
	cmd.Flags().IntVar(&defaultLimit, "default-limit", 0, "Default result limit")
	cmd.Flags().IntVar(&maxLimit, "max-limit", 0, "Maximum result limit")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Rotating log file path")

	return cmd
}
