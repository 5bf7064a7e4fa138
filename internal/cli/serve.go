package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pairnull/internal/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
		backend backendOpts
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve randomization over HTTP",
		Long: `Serve randomization over HTTP.

  POST /v1/randomize   run a randomization (GeoJSON point sets, inline mask)
  GET  /v1/runs        list archived runs
  GET  /v1/runs/{id}   fetch an archived run
  GET  /healthz        liveness probe`,
		Example: `  pairnull serve --addr :8080 --cache-url redis://localhost:6379/0 --mongo-uri mongodb://localhost:27017`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner, err := c.newRunner(ctx, backend)
			if err != nil {
				return err
			}
			defer runner.Close()

			srv := server.New(server.Config{
				Runner:         runner,
				Store:          runner.Store,
				Logger:         c.Logger,
				RequestTimeout: timeout,
			})
			return c.listen(ctx, addr, srv.Handler())
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":8080", "listen address")
	f.DurationVar(&timeout, "request-timeout", server.DefaultRequestTimeout, "budget for requests that set no timeout")
	f.BoolVar(&backend.noCache, "no-cache", false, "disable caching")
	f.StringVar(&backend.redisURL, "cache-url", "", "cache runs in Redis, e.g. redis://localhost:6379/0")
	f.StringVar(&backend.mongoURI, "mongo-uri", "", "archive runs in MongoDB instead of the local run history")
	f.BoolVar(&backend.noStore, "no-store", false, "do not archive runs")

	return cmd
}

// listen serves h until ctx is cancelled, then shuts down gracefully.
func (c *CLI) listen(ctx context.Context, addr string, h http.Handler) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		c.Logger.Info("listening", "addr", addr)
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	c.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
