package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/coursegest/internal/corpus"
	"github.com/dgallion1/coursegest/internal/pipeline"
)

var (
	ingestTextbooks   []string
	ingestSlides      []string
	ingestHTML        []string
	ingestCourseID    string
	ingestVersion     string
	ingestFresh       bool
	ingestTargetWords int
	ingestBatchSize   int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Chunk HTML files and update the index",
	Long: `Chunks converted HTML by chapter, slide or heading and adds the chunks to the
hybrid index. Files whose bytes are unchanged since the last run are
skipped; changed files have their old chunks replaced.

Textbook files take their book title from the catalog, slide decks take
their deck title from the file name.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestTextbooks, "textbooks", nil, "textbook HTML file or directory (repeatable)")
	ingestCmd.Flags().StringSliceVar(&ingestSlides, "slides", nil, "slide deck HTML file or directory (repeatable)")
	ingestCmd.Flags().StringSliceVar(&ingestHTML, "html", nil, "generic HTML file or directory (repeatable)")
	ingestCmd.Flags().StringVar(&ingestCourseID, "course-id", "", "course id stamped on chunks (default $COURSE_ID)")
	ingestCmd.Flags().StringVar(&ingestVersion, "course-version", "", "course version stamped on chunks (default $COURSE_VERSION)")
	ingestCmd.Flags().BoolVar(&ingestFresh, "fresh", false, "delete the index and rebuild from scratch")
	ingestCmd.Flags().IntVar(&ingestTargetWords, "target-words", 0, "override the window size in words")
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 0, "chunks per embedding batch (default $EMBED_BATCH_SIZE)")
	rootCmd.AddCommand(ingestCmd)
}

func ingestInputs() []pipeline.Input {
	var inputs []pipeline.Input
	add := func(role corpus.DocType, paths []string) {
		for _, p := range paths {
			inputs = append(inputs, pipeline.Input{Role: role, Path: p})
		}
	}
	add(corpus.DocTextbook, ingestTextbooks)
	add(corpus.DocSlides, ingestSlides)
	add(corpus.DocHTML, ingestHTML)
	return inputs
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	inputs := ingestInputs()
	if len(inputs) == 0 {
		return fmt.Errorf("%w: pass --textbooks, --slides or --html", pipeline.ErrNoInputs)
	}

	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	e, err := buildEmbedder(ingestFresh)
	if err != nil {
		return err
	}

	opts := pipeline.IngestOptions{
		Inputs:      inputs,
		IndexDir:    cfg.IndexDir,
		CourseID:    firstNonEmpty(ingestCourseID, cfg.CourseID),
		Version:     firstNonEmpty(ingestVersion, cfg.CourseVersion),
		Fresh:       ingestFresh,
		TargetWords: ingestTargetWords,
		BatchSize:   ingestBatchSize,
		OnFile: func(f pipeline.FileReport) {
			switch f.Status {
			case pipeline.FileFailed:
				cmd.Printf("FAIL %s: %s\n", f.Name, f.Error)
			case pipeline.FileSkipped:
				cmd.Printf("SKIP %s: unchanged\n", f.Name)
			default:
				cmd.Printf("OK   %s: %d chunks (%s)\n", f.Name, f.Chunks, f.Strategy)
			}
		},
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = cfg.EmbedBatchSize
	}

	report, err := pipeline.NewIngester(e, cat, logger).Run(ctx, opts)
	if err != nil {
		return err
	}
	cmd.Printf("Done. Files: %d, Skipped: %d, Failed: %d, Chunks added: %d, removed: %d, Index: %s\n",
		len(report.Files), report.Count(pipeline.FileSkipped), report.Count(pipeline.FileFailed),
		report.Added, report.Removed, cfg.IndexDir)
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
