package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/coursegest/internal/index"
	"github.com/dgallion1/coursegest/internal/llm"
	"github.com/dgallion1/coursegest/internal/query"
)

var (
	askJSON   bool
	quizCount int
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed material",
	Long: `Retrieves the most relevant chunks from the whole corpus with hybrid keyword
and vector search and asks the completion model to answer from them only,
citing chapters and slides.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var quizCmd = &cobra.Command{
	Use:   "quiz [request]",
	Short: "Generate a quiz as JSON",
	Long: `Generates a quiz from the chunks matching the request. Mention a book
("algorithms", "discrete") or chapters ("chapter 3", "chapters 1-4") to
narrow the material; n=5 sets the question count.`,
	RunE: runQuiz,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer and sources as JSON")
	quizCmd.Flags().IntVarP(&quizCount, "count", "n", 0, "number of questions (default 10, or n= in the request)")
	rootCmd.AddCommand(askCmd, quizCmd)
}

// session is a loaded index with an orchestrator over it.
type session struct {
	snapshot *index.Snapshot
	query    *query.Orchestrator
	stats    *llm.Stats
}

func openSession(ctx context.Context) (*session, error) {
	e, err := queryEmbedder()
	if err != nil {
		return nil, err
	}
	snap, err := index.Open(ctx, cfg.IndexDir, e, logger)
	if err != nil {
		return nil, err
	}
	cat, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	stats := llm.NewStats(0)
	completer, err := newCompleter(cfg, stats, logger)
	if err != nil {
		return nil, err
	}
	return &session{
		snapshot: snap,
		query:    query.FromSnapshot(snap, completer, cat, query.Options{TopK: cfg.TopK, Log: logger}),
		stats:    stats,
	}, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	ans, err := s.query.Ask(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	if askJSON {
		return printJSON(cmd, ans)
	}
	cmd.Println(ans.Text)
	if len(ans.Sources) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		seen := make(map[string]bool)
		for _, c := range ans.Sources {
			cite := c.Citation()
			if !seen[cite] {
				seen[cite] = true
				cmd.Printf("  %s\n", cite)
			}
		}
	}
	return nil
}

func runQuiz(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	req := query.ParseQuiz(strings.Join(args, " "))
	if quizCount > 0 {
		req.Count = quizCount
	}
	res, err := s.query.Quiz(ctx, req)
	if err != nil {
		return fmt.Errorf("quiz: %w", err)
	}
	if res.NoMatch {
		cmd.Println(res.Message)
		return nil
	}
	return printJSON(cmd, res.Quiz)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
