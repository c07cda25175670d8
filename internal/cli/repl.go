package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dgallion1/coursegest/internal/tui"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive question and quiz prompt",
	Long: `Opens an interactive prompt over the index.

Plain text asks a question. "/quiz <request>" generates a quiz, for example
"/quiz chapters 2-3 n=5". Type exit or press Ctrl+C to quit.`,
	Args: cobra.NoArgs,
	RunE: runREPL,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func runREPL(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	m := s.snapshot.Manifest()
	summary := tui.Summary(s.snapshot.Len(), len(m.Files), m.EmbedFamily)

	p := tea.NewProgram(tui.New(ctx, s.query, summary),
		tea.WithAltScreen(),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	_, err = p.Run()
	return err
}
