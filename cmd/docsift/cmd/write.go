package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/convert"
	"github.com/docsift/docsift/internal/index"
	"github.com/docsift/docsift/internal/logging"
	"github.com/docsift/docsift/internal/watcher"
)

// newWriteCmd creates the write command, which builds the index.
func newWriteCmd() *cobra.Command {
	var (
		sourceDir         string
		repoRoot          string
		outputPath        string
		includeCodeBlocks bool
		ngramSize         int
		maxBytes          int64
		watch             bool
		logLevel          string
	)

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Build the search index from a markdown tree",
		Long: `Write converts every .md/.mdx file under the source directory into a
fresh SQLite index, replacing any existing index file atomically.

With --watch, the process stays running and rebuilds after each burst of
source changes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("src") {
				cfg.Write.SourceDir = sourceDir
			}
			if flags.Changed("repo") {
				cfg.Write.RepoRoot = repoRoot
			}
			if flags.Changed("out") {
				cfg.Write.OutputPath = outputPath
			}
			if flags.Changed("include-code-blocks") {
				cfg.Write.IncludeCodeBlocks = includeCodeBlocks
			}
			if flags.Changed("ngram") {
				cfg.Write.NgramSize = ngramSize
			}
			if flags.Changed("max-bytes") {
				cfg.Write.MaxBytes = maxBytes
			}
			if err := cfg.ValidateWrite(); err != nil {
				return err
			}

			logger, cleanup, err := logging.Setup(logging.Config{
				Level:         logLevel,
				WriteToStderr: true,
			})
			if err != nil {
				return err
			}
			defer cleanup()
			slog.SetDefault(logger)

			return runWrite(cmd.Context(), cfg, logger, watch)
		},
	}

	cmd.Flags().StringVar(&sourceDir, "src", "", "Source directory of markdown files")
	cmd.Flags().StringVar(&repoRoot, "repo", "", "Repository root for commit metadata")
	cmd.Flags().StringVar(&outputPath, "out", "", "Index file or directory to write into")
	cmd.Flags().BoolVar(&includeCodeBlocks, "include-code-blocks", false, "Index fenced code blocks")
	cmd.Flags().IntVar(&ngramSize, "ngram", 0, "Overlay fixed-width n-gram tokens (0 disables)")
	cmd.Flags().Int64Var(&maxBytes, "max-bytes", 0, "Per-file size ceiling in bytes")
	cmd.Flags().BoolVar(&watch, "watch", false, "Rebuild when source files change")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	return cmd
}

func runWrite(ctx context.Context, cfg *config.Config, logger *slog.Logger, watch bool) error {
	builder := index.NewBuilder(index.BuilderConfig{
		SourceDir:  cfg.Write.SourceDir,
		RepoRoot:   cfg.Write.RepoRoot,
		OutputPath: cfg.Write.OutputPath,
		Convert: convert.Options{
			IncludeCodeBlocks: cfg.Write.IncludeCodeBlocks,
			NgramSize:         cfg.Write.NgramSize,
			MaxBytes:          cfg.Write.MaxBytes,
		},
		Logger: logger,
	})

	result, err := builder.Build(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("indexed %d documents (%d skipped) into %s\n",
		result.DocCount, result.Skipped, result.OutputPath)

	if !watch {
		return nil
	}
	return watchAndRebuild(ctx, cfg, logger, builder)
}

// watchAndRebuild reruns the builder after each debounced change burst
// until interrupted. A failed rebuild leaves the previous index in place
// and watching continues.
func watchAndRebuild(ctx context.Context, cfg *config.Config, logger *slog.Logger, builder *index.Builder) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root, err := index.ResolveRoot(cfg.Write.SourceDir, cfg.Write.RepoRoot)
	if err != nil {
		return err
	}

	w, err := watcher.New(root, watcher.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer w.Close()

	go func() { _ = w.Run(ctx) }()
	logger.Info("watching", slog.String("root", root))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Triggers():
			result, err := builder.Build(ctx)
			if err != nil {
				logger.Error("rebuild_failed", slog.String("error", err.Error()))
				continue
			}
			logger.Info("rebuilt",
				slog.Int("doc_count", result.DocCount),
				slog.Int("skipped", result.Skipped))
		}
	}
}
