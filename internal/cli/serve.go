package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/coursegest/internal/api"
	"github.com/dgallion1/coursegest/internal/index"
	"github.com/dgallion1/coursegest/internal/llm"
	"github.com/dgallion1/coursegest/internal/pipeline"
	"github.com/dgallion1/coursegest/internal/query"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves question answering, quiz generation and ingest jobs over HTTP.
Every /api route requires "Authorization: Bearer $COURSEGEST_API_KEY".
Ingest jobs run one at a time and the served index is reloaded after each
job that changed it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "listen port (default $PORT or 8090)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}
	if servePort != "" {
		cfg.Port = servePort
	}
	log := newLogger(os.Stdout, cfg.SlogLevel())

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	e, err := buildEmbedder(false)
	if err != nil {
		return err
	}
	claude, err := llm.NewClient(llm.Config{
		APIKey: cfg.AnthropicAPIKey,
		Model:  cfg.AnthropicModel,
		Stats:  llm.NewStats(0),
		Log:    log,
	})
	if err != nil {
		return err
	}
	defer claude.Close()

	lib := api.NewLibrary(cfg.IndexDir, e, claude, cat, query.Options{TopK: cfg.TopK}, log)
	if err := lib.Reload(ctx); err != nil {
		if !errors.Is(err, index.ErrNotFound) {
			return err
		}
		log.Warn("no index yet; ask and quiz are unavailable until an ingest completes", "index", cfg.IndexDir)
	}

	worker := pipeline.NewWorker(pipeline.NewIngester(e, cat, log), pipeline.IngestOptions{
		IndexDir:  cfg.IndexDir,
		CourseID:  cfg.CourseID,
		Version:   cfg.CourseVersion,
		BatchSize: cfg.EmbedBatchSize,
	}, log)
	orch := pipeline.NewOrchestrator(worker, cfg.MaxQueueSize, cfg.JobTTL, lib.Reload, log)
	orch.Start(ctx)

	srv := api.NewServer(lib, orch, claude, cfg.APIKey, log)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
	}()

	log.Info("starting coursegest", "port", cfg.Port, "index", cfg.IndexDir, "embed_family", e.Family())
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
