package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dgallion1/coursegest/internal/catalog"
	"github.com/dgallion1/coursegest/internal/config"
	"github.com/dgallion1/coursegest/internal/embed"
	"github.com/dgallion1/coursegest/internal/index"
	"github.com/dgallion1/coursegest/internal/llm"
)

// version is set at build time with -ldflags "-X".
var version = "dev"

var (
	cfg    config.Config
	logger *slog.Logger

	indexDirFlag    string
	catalogFileFlag string
	logLevelFlag    string
)

// newCompleter builds the completion client for ask, quiz, repl and serve.
// Tests replace it.
var newCompleter = func(c config.Config, stats *llm.Stats, log *slog.Logger) (llm.Completer, error) {
	if err := c.ValidateLLM(); err != nil {
		return nil, err
	}
	return llm.NewClient(llm.Config{
		APIKey: c.AnthropicAPIKey,
		Model:  c.AnthropicModel,
		Stats:  stats,
		Log:    log,
	})
}

var rootCmd = &cobra.Command{
	Use:   "coursegest",
	Short: "Course-material retrieval and quiz generation",
	Long: `coursegest converts course PDFs and documents to HTML, chunks them by
chapter, slide or heading, builds a hybrid keyword and vector index, and
answers questions or generates quizzes from the indexed material.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&indexDirFlag, "index-dir", "", "index location (default $INDEX_DIR or ./data/index)")
	rootCmd.PersistentFlags().StringVar(&catalogFileFlag, "catalog", "", "book catalog YAML file (default $CATALOG_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx available to subcommands.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}
	if indexDirFlag != "" {
		loaded.IndexDir = indexDirFlag
	}
	if catalogFileFlag != "" {
		loaded.CatalogFile = catalogFileFlag
	}
	if logLevelFlag != "" {
		loaded.LogLevel = logLevelFlag
	}
	cfg = loaded
	logger = newLogger(cmd.ErrOrStderr(), cfg.SlogLevel())
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func loadCatalog() (*catalog.Catalog, error) {
	return catalog.Load(cfg.CatalogFile)
}

func embedSettings() embed.Settings {
	return embed.Settings{
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		OllamaURL:        cfg.OllamaURL,
		OllamaDimensions: cfg.OllamaEmbedDimensions,
		Log:              logger,
	}
}

// buildEmbedder returns the embedder for writing to the index: the
// family already recorded there, or the configured one for a new index.
func buildEmbedder(fresh bool) (embed.Embedder, error) {
	family := cfg.ResolvedEmbedFamily()
	if !fresh {
		if recorded, err := index.FamilyAt(cfg.IndexDir); err == nil && recorded != "" {
			if cfg.EmbedFamily != "" && recorded != cfg.EmbedFamily {
				return nil, fmt.Errorf("%w: index uses %s but EMBED_FAMILY is %s; rebuild with --fresh",
					index.ErrDimensionMismatch, recorded, cfg.EmbedFamily)
			}
			family = recorded
		}
	}
	return embed.ForFamily(family, embedSettings())
}

// queryEmbedder returns the embedder matching the index on disk.
func queryEmbedder() (embed.Embedder, error) {
	family, err := index.FamilyAt(cfg.IndexDir)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", cfg.IndexDir, err)
	}
	return embed.ForFamily(family, embedSettings())
}
