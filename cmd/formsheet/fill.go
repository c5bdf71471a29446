package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	sqlitestore "github.com/goliatone/go-formsheet/internal/storage/sqlite"
	"github.com/goliatone/go-formsheet/pkg/draft"
	"github.com/goliatone/go-formsheet/pkg/prompt"
	"github.com/goliatone/go-formsheet/pkg/section"
	"github.com/goliatone/go-formsheet/pkg/submission"
)

const (
	draftSchemeFile   = "file"
	draftSchemeSQLite = "sqlite"
)

type fillOptions struct {
	endpoint       string
	draft          string
	sections       []string
	clearOnSuccess bool
	direct         bool
}

func (a *app) newFillCmd() *cobra.Command {
	opts := &fillOptions{}
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Answer the form in the terminal",
		Long: `Walks through the form one section at a time. Answers are saved after
every section, so an interrupted run resumes where it stopped.

Draft locations:
  file:<path>    JSON file (default from draft.store)
  sqlite:<path>  SQLite database

With --direct the row is appended to the local SQLite sink instead of being
posted to --endpoint.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if !flags.Changed("endpoint") {
				opts.endpoint = a.cfg.Draft.Endpoint
			}
			if !flags.Changed("draft") {
				opts.draft = a.cfg.Draft.Store
			}
			if !flags.Changed("clear-on-success") {
				opts.clearOnSuccess = a.cfg.Draft.ClearOnSuccess
			}
			return a.runFill(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.endpoint, "endpoint", "", "submission endpoint URL (overrides draft.endpoint)")
	flags.StringVar(&opts.draft, "draft", "", "draft location, file:<path> or sqlite:<path> (overrides draft.store)")
	flags.StringSliceVar(&opts.sections, "sections", nil, "only ask these section keys, in catalogue order")
	flags.BoolVar(&opts.clearOnSuccess, "clear-on-success", false, "delete the draft after a successful submission")
	flags.BoolVar(&opts.direct, "direct", false, "append to the local SQLite sink instead of the endpoint")
	return cmd
}

func (a *app) runFill(ctx context.Context, out io.Writer, opts *fillOptions) error {
	// Prompts own the terminal, so console logging is dropped and only the
	// log file (when configured) receives entries.
	logger, err := a.logger(io.Discard)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	catalogue, err := section.Default()
	if err != nil {
		return err
	}
	if len(opts.sections) > 0 {
		if catalogue, err = catalogue.Subset(opts.sections...); err != nil {
			return err
		}
	}

	dbs := newSQLitePool()
	defer func() {
		if err := dbs.Close(); err != nil {
			logger.Warn("close sqlite", zap.Error(err))
		}
	}()

	store, err := openDraftStore(ctx, opts.draft, dbs)
	if err != nil {
		return err
	}

	submitter, err := a.fillSubmitter(ctx, opts, dbs, logger)
	if err != nil {
		return err
	}

	controller, err := draft.NewController(catalogue, store, submitter,
		draft.WithClearOnSuccess(opts.clearOnSuccess),
		draft.WithLogger(logger.Named("draft")),
	)
	if err != nil {
		return err
	}
	runner, err := prompt.NewRunner(controller, prompt.WithRunnerLogger(logger.Named("prompt")))
	if err != nil {
		return err
	}

	if _, err := runner.Run(ctx); err != nil {
		if errors.Is(err, prompt.ErrAborted) || errors.Is(err, prompt.ErrQuit) {
			fmt.Fprintf(out, "Your answers are saved in %s. Run \"formsheet fill\" to continue.\n", opts.draft)
			return nil
		}
		return err
	}
	return nil
}

func (a *app) fillSubmitter(ctx context.Context, opts *fillOptions, dbs *sqlitePool, logger *zap.Logger) (draft.Submitter, error) {
	if !opts.direct {
		client, err := submission.NewClient(opts.endpoint, submission.WithClientLogger(logger.Named("client")))
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	store, err := dbs.open(ctx, a.cfg.Sink.SQLitePath)
	if err != nil {
		return nil, err
	}
	target := submission.Target{StoreID: a.cfg.Sink.StoreID, Range: a.cfg.Sink.Range}
	pipeline, err := submission.NewPipeline(store.Rows(), target, submission.WithLogger(logger.Named("submission")))
	if err != nil {
		return nil, err
	}
	return pipeline, nil
}

// parseDraftLocation splits "scheme:path". A bare path is a file location.
func parseDraftLocation(raw string) (scheme, path string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", errors.New("draft location is empty")
	}
	scheme, path, found := strings.Cut(raw, ":")
	if !found {
		return draftSchemeFile, raw, nil
	}
	switch scheme = strings.ToLower(scheme); scheme {
	case draftSchemeFile, draftSchemeSQLite:
	default:
		// Windows drive letters and other colons belong to the path.
		return draftSchemeFile, raw, nil
	}
	if strings.TrimSpace(path) == "" {
		return "", "", fmt.Errorf("draft location %q has no path", raw)
	}
	return scheme, path, nil
}

func openDraftStore(ctx context.Context, location string, dbs *sqlitePool) (draft.Store, error) {
	scheme, path, err := parseDraftLocation(location)
	if err != nil {
		return nil, err
	}
	if scheme == draftSchemeSQLite {
		store, err := dbs.open(ctx, path)
		if err != nil {
			return nil, err
		}
		return store.Drafts(draft.DefaultSlot), nil
	}
	store, err := draft.NewFileStore(path)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// sqlitePool opens each database path once so the draft and the direct sink
// can share a file.
type sqlitePool struct {
	stores map[string]*sqlitestore.Store
}

func newSQLitePool() *sqlitePool {
	return &sqlitePool{stores: make(map[string]*sqlitestore.Store)}
}

func (p *sqlitePool) open(ctx context.Context, path string) (*sqlitestore.Store, error) {
	if store, ok := p.stores[path]; ok {
		return store, nil
	}
	store, err := sqlitestore.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	p.stores[path] = store
	return store, nil
}

func (p *sqlitePool) Close() error {
	var errs []error
	for path, store := range p.stores {
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}
