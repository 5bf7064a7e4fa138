package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pairnull/pkg/buildinfo"
	"github.com/matzehuels/pairnull/pkg/cache"
	"github.com/matzehuels/pairnull/pkg/pipeline"
	"github.com/matzehuels/pairnull/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "pairnull"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "pairnull builds spatially constrained null models for pairs of point patterns",
		Long: `pairnull relocates two point patterns inside a study-region raster so that
their within-set and between-set distance distributions match the observed
ones. The randomized pairs serve as null models for co-occurrence and niche
overlap tests.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.randomizeCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.runsCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// backendOpts selects where runs are cached and archived.
type backendOpts struct {
	noCache  bool
	redisURL string
	mongoURI string
	noStore  bool
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, b backendOpts) (*pipeline.Runner, error) {
	ch, err := newCache(ctx, b)
	if err != nil {
		return nil, err
	}
	st, err := newStore(ctx, b)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return pipeline.NewRunner(ch, nil, st, c.Logger), nil
}

func newCache(ctx context.Context, b backendOpts) (cache.Cache, error) {
	switch {
	case b.noCache:
		return cache.NewNullCache(), nil
	case b.redisURL != "":
		cfg, err := cache.ParseRedisURL(b.redisURL)
		if err != nil {
			return nil, err
		}
		return cache.NewRedisCache(ctx, cfg)
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

func newStore(ctx context.Context, b backendOpts) (store.Store, error) {
	switch {
	case b.noStore:
		return store.NullStore{}, nil
	case b.mongoURI != "":
		return store.NewMongoStore(ctx, store.MongoConfig{URI: b.mongoURI})
	}
	dir, err := dataDir()
	if err != nil {
		return store.NullStore{}, nil
	}
	return store.NewFileStore(filepath.Join(dir, "runs"))
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/pairnull/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// dataDir returns the run history directory (~/.local/share/pairnull/).
func dataDir() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", appName), nil
}
