package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/feedtools/readersync/internal/config"
	"github.com/feedtools/readersync/internal/reader"
	"github.com/feedtools/readersync/internal/storage"
	"github.com/feedtools/readersync/internal/update"
)

// version is set via ldflags at build time.
var version = "dev"

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "readersync",
		Short:         "Feed list synchronization for Google-Reader-compatible accounts",
		Long:          "readersync keeps a local subscription tree and per-item read/starred state in sync with a Reedah or TheOldReader account.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newSyncCmd(),
		newQuickCmd(),
		newListCmd(),
		newAddCmd(),
		newRemoveCmd(),
		newReadCmd(),
		newUnreadCmd(),
		newStarCmd(),
		newUnstarCmd(),
	)
	return root
}

// account bundles everything a command needs for one run.
type account struct {
	cfg    config.Config
	repo   *storage.Repository
	source *reader.Source
}

// openAccount wires config, storage and the sync engine together. The
// returned cleanup persists the timestamp cache and releases the account.
func openAccount(ctx context.Context) (*account, func(), error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("config error: %w", err)
	}

	api, ok := reader.BackendByName(cfg.Backend)
	if !ok {
		return nil, nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}

	repo, err := storage.NewRepository(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("storage init error: %w", err)
	}
	if err := repo.Init(ctx); err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("storage schema error: %w", err)
	}
	if err := repo.CheckWritable(ctx); err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("storage write check failed (%w); verify READERSYNC_DB_PATH is writable: %s", err, cfg.DBPath)
	}

	tree, err := repo.LoadTree(ctx, api.Name, api.FeedIDKey)
	if err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("load feed tree: %w", err)
	}
	tree.SetListener(repo.Saver(ctx, api.FeedIDKey))

	timestamps, err := repo.LoadTimestamps(ctx)
	if err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("load timestamps: %w", err)
	}

	source := reader.NewSource(api,
		reader.Credentials{Username: cfg.Username, Password: cfg.Password},
		tree,
		repo.Bind(ctx),
		update.NewHTTPExecutor(nil),
		reader.Options{
			MaxAuthFailures: cfg.MaxAuthFailures,
			PageSize:        cfg.PageSize,
			ListInterval:    cfg.ListInterval,
			QuickInterval:   cfg.QuickInterval,
			OnCredentialsNeeded: func() {
				log.Printf("[auth] login rejected; check READERSYNC_USERNAME and READERSYNC_PASSWORD")
			},
		})
	source.RestoreTimestamps(timestamps)

	cleanup := func() {
		if err := repo.SaveTimestamps(ctx, source.Timestamps()); err != nil {
			log.Printf("[storage] save timestamps: %v", err)
		}
		source.Close()
		repo.Close()
	}
	return &account{cfg: cfg, repo: repo, source: source}, cleanup, nil
}

// waitSettled blocks until the engine drained its queue or the timeout
// passed. One-shot commands need the asynchronous engine to finish before
// the process exits.
func waitSettled(src *reader.Source, timeout time.Duration) error {
	if src.WaitIdle(timeout) {
		return nil
	}
	return fmt.Errorf("sync did not settle within %s (%d actions still queued)", timeout, src.QueueLen())
}
