package api

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/dgallion1/coursegest/internal/catalog"
	"github.com/dgallion1/coursegest/internal/embed"
	"github.com/dgallion1/coursegest/internal/index"
	"github.com/dgallion1/coursegest/internal/llm"
	"github.com/dgallion1/coursegest/internal/query"
)

// Library holds the index snapshot currently served and the query
// orchestrator built over it. Reload swaps both at once; requests already
// running keep the view they started with.
type Library struct {
	dir       string
	embedder  embed.Embedder
	completer llm.Completer
	catalog   *catalog.Catalog
	opts      query.Options
	log       *slog.Logger

	cur atomic.Pointer[view]
}

type view struct {
	snapshot *index.Snapshot
	query    *query.Orchestrator
}

func NewLibrary(dir string, e embed.Embedder, completer llm.Completer, cat *catalog.Catalog, opts query.Options, log *slog.Logger) *Library {
	if opts.Log == nil {
		opts.Log = log
	}
	return &Library{
		dir:       dir,
		embedder:  e,
		completer: completer,
		catalog:   cat,
		opts:      opts,
		log:       log,
	}
}

// Reload opens the index from disk and makes it the served view. On error
// the previous view stays in place.
func (l *Library) Reload(ctx context.Context) error {
	snap, err := index.Open(ctx, l.dir, l.embedder, l.log)
	if err != nil {
		return err
	}
	l.cur.Store(&view{
		snapshot: snap,
		query:    query.FromSnapshot(snap, l.completer, l.catalog, l.opts),
	})
	return nil
}

// Current returns the served view, or nils before the first load.
func (l *Library) Current() (*index.Snapshot, *query.Orchestrator) {
	v := l.cur.Load()
	if v == nil {
		return nil, nil
	}
	return v.snapshot, v.query
}
