package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mhersch/flowlevel/internal/server"
	"github.com/mhersch/flowlevel/pkg/store"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr     string // listen address
	storeURI string // MongoDB URI for the report archive (in-memory if empty)
	noCache  bool   // disable the report cache
}

// newServeCmd creates the serve command for running the HTTP API.
func newServeCmd() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the flowlevel HTTP API",
		Long: `Run the HTTP API.

Endpoints:
  POST /api/legalize      legalize a TOML manifest body, returns the report
  GET  /api/reports       list archived reports
  GET  /api/reports/{id}  fetch an archived report
  GET  /healthz           liveness probe

Reports are archived in MongoDB when --store-uri is set; otherwise an
in-memory store is used (archived reports vanish on restart).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyServeConfig(cmd, &opts)
			return runServe(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&opts.storeURI, "store-uri", "", "MongoDB URI for the report archive")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the report cache")

	return cmd
}

// applyServeConfig fills unset flags from the config file.
func applyServeConfig(cmd *cobra.Command, opts *serveOpts) {
	cfg := configFromContext(cmd.Context())
	if !cmd.Flags().Changed("addr") && cfg.Serve.Addr != "" {
		opts.addr = cfg.Serve.Addr
	}
	if !cmd.Flags().Changed("store-uri") {
		opts.storeURI = cfg.Store.MongoURI
	}
}

// runServe builds the store and runner, then serves until the context is
// cancelled. Shutdown waits up to ten seconds for in-flight requests.
func runServe(ctx context.Context, opts *serveOpts) error {
	logger := loggerFromContext(ctx)

	st, err := newStore(ctx, opts.storeURI)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	runner, err := newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           server.New(runner, st, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Serving on %s", opts.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// newStore builds the report store: MongoDB when a URI is given, otherwise
// the in-memory store.
func newStore(ctx context.Context, uri string) (store.Store, error) {
	if uri == "" {
		return store.NewMemoryStore(), nil
	}
	return store.NewMongoStore(ctx, uri)
}
