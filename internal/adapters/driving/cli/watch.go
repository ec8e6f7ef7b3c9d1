package cli

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry/internal/adapters/driving/watch"
	"github.com/custodia-labs/quarry/internal/core/domain"
)

var (
	watchDebounce time.Duration
	watchIndex    bool
	watchInitial  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Process files as they land in the inboxes",
	Long: `Watches docs/unprocessed and data/unprocessed and processes each new
file once it has stopped changing. Documents are parsed into chunk-form
files; tabular files are converted into SQLite databases.

With --index the search index is rebuilt after each parsed document.
Press Ctrl+C to stop.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before a file is processed")
	watchCmd.Flags().BoolVar(&watchIndex, "index", false, "rebuild the search index after each document")
	watchCmd.Flags().BoolVar(&watchInitial, "initial", true, "process files already waiting before watching")
	rootCmd.AddCommand(watchCmd)
}

// printer serialises output from dispatch goroutines.
type printer struct {
	mu  sync.Mutex
	cmd *cobra.Command
}

func (p *printer) item(it domain.ItemResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	printItem(p.cmd, it)
}

func (p *printer) line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cmd.Printf(format+"\n", args...)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("document ingest service not configured")
	}
	if tabularService == nil {
		return errors.New("tabular service not configured")
	}
	ctx := commandContext(cmd)
	out := &printer{cmd: cmd}

	if watchInitial {
		drainInboxes(ctx, out)
	}

	w := watch.New(watchDebounce)
	w.Route(workspace.DocsInbox(), func(ctx context.Context, path string) {
		it := ingestService.ProcessFile(ctx, path)
		out.item(it)
		if it.OK() && watchIndex {
			reindex(ctx, out)
		}
	})
	w.Route(workspace.DataInbox(), func(ctx context.Context, path string) {
		out.item(tabularService.ConvertFile(ctx, path))
	})

	go func() {
		select {
		case <-w.Ready():
			out.line("Watching %s and %s (Ctrl+C to stop)", workspace.DocsInbox(), workspace.DataInbox())
		case <-ctx.Done():
		}
	}()
	return w.Run(ctx)
}

// drainInboxes processes whatever is already waiting.
func drainInboxes(ctx context.Context, out *printer) {
	docs, err := ingestService.ProcessInbox(ctx)
	if err != nil {
		out.line("Document inbox: %v", err)
	} else {
		for _, it := range docs.Items {
			out.item(it)
		}
		if docs.Succeeded() > 0 && watchIndex {
			reindex(ctx, out)
		}
	}

	data, err := tabularService.ConvertInbox(ctx)
	if err != nil {
		out.line("Data inbox: %v", err)
		return
	}
	for _, it := range data.Items {
		out.item(it)
	}
}

func reindex(ctx context.Context, out *printer) {
	if indexService == nil {
		out.line("Index service not configured; skipping rebuild.")
		return
	}
	stats, err := indexService.Rebuild(ctx)
	if err != nil {
		out.line("Index rebuild failed: %v", err)
		return
	}
	out.line("Indexed %d chunks from %d files.", stats.Chunks, stats.Files)
}
