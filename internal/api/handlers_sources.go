package api

import (
	"net/http"
)

type sourceEntry struct {
	Name   string `json:"name"`
	SHA1   string `json:"sha1"`
	Chunks int    `json:"chunks"`
}

// handleSources lists the files recorded in the served index.
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	snap, _ := s.library.Current()
	if snap == nil {
		writeJSON(w, http.StatusOK, map[string]any{"embed_family": "", "files": []sourceEntry{}})
		return
	}

	counts := make(map[string]int)
	for _, c := range snap.Chunks() {
		counts[c.Meta.Source]++
	}
	m := snap.Manifest()
	files := make([]sourceEntry, 0, len(m.Files))
	for _, name := range m.Names() {
		files = append(files, sourceEntry{Name: name, SHA1: m.Files[name].SHA1, Chunks: counts[name]})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"embed_family": m.EmbedFamily,
		"files":        files,
	})
}
