package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookTitleForFile(t *testing.T) {
	c := Default()
	tests := []struct {
		path string
		want string
	}{
		{"books/Goodrich_Tamassia.html", "Algorithms (Goodrich & Tamassia)"},
		{"ALGORITHMS-4th.pdf", "Algorithms (Goodrich & Tamassia)"},
		{"Discrete_and_Combinatorial.html", "Discrete & Combinatorial Mathematics"},
		{"notes/week1.html", "week1"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, c.BookTitleForFile(tt.path))
		})
	}
}

func TestDetect(t *testing.T) {
	c := Default()
	assert.Equal(t, "algorithms", c.Detect("quiz me on Tamassia chapter 3"))
	assert.Equal(t, "discrete", c.Detect("combinatorics basics"))
	assert.Equal(t, "algorithms", c.Detect("algorithms and discrete math"))
	assert.Equal(t, "", c.Detect("heaps"))
}

func TestMatchesTitle(t *testing.T) {
	c := Default()
	algo, ok := c.Lookup("algorithms")
	require.True(t, ok)
	assert.True(t, algo.MatchesTitle("Algorithms (Goodrich & Tamassia)"))
	assert.False(t, algo.MatchesTitle("Discrete & Combinatorial Mathematics"))

	_, ok = c.Lookup("physics")
	assert.False(t, ok)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	c, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Len(t, c.Books, 2)

	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
books:
  - tag: os
    title: Operating Systems
    keywords: [kernel, scheduler]
    file_hints: [silberschatz]
`), 0o644))

	c, err = Load(path)
	require.NoError(t, err)
	require.Len(t, c.Books, 1)
	assert.Equal(t, "os", c.Books[0].Name)
	assert.Equal(t, "os", c.Detect("explain the scheduler"))
	assert.Equal(t, "Operating Systems", c.BookTitleForFile("Silberschatz.pdf"))

	require.NoError(t, os.WriteFile(path, []byte("books:\n  - name: x\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
