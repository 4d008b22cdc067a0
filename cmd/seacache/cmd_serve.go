package main

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/skyline93/seacache/internal/errors"
	"github.com/skyline93/seacache/internal/metrics"
	"github.com/skyline93/seacache/internal/mirror"
)

var cmdServe = &cobra.Command{
	Use:   "serve [flags]",
	Short: "Keep the cache warm and export metrics",
	Long: `
The "serve" command periodically refreshes the library list, the starred files
and the root listing of every library once they are stale, and serves
Prometheus metrics on /metrics.

EXIT STATUS
===========

Exit status is 0 after an interrupt, and non-zero if the metrics listener
failed.
`,
	DisableAutoGenTag: true,
	Args:              cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveOptions.MetricsAddr != "" {
			globalConfig.MetricsAddr = serveOptions.MetricsAddr
		}
		return withSession(cmd.Context(), func(s *session) error {
			return runServe(cmd.Context(), s)
		})
	},
}

// ServeOptions bundles all options for the serve command.
type ServeOptions struct {
	MetricsAddr string
}

var serveOptions ServeOptions

func init() {
	cmdRoot.AddCommand(cmdServe)

	f := cmdServe.Flags()
	f.StringVar(&serveOptions.MetricsAddr, "metrics-addr", "", "listen `address` for /metrics (default: $SEACACHE_METRICS_ADDR)")
}

func runServe(ctx context.Context, s *session) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              globalConfig.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg, wgCtx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		log.Infof("serving metrics on %v", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "metrics listener")
		}
		return nil
	})
	wg.Go(func() error {
		<-wgCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	wg.Go(func() error {
		refreshLoop(wgCtx, s, globalConfig.RefreshInterval, globalConfig.Concurrency)
		return nil
	})
	return wg.Wait()
}

func refreshLoop(ctx context.Context, s *session, interval time.Duration, concurrency int) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		refreshStale(ctx, s, concurrency)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// refreshStale refreshes every stale scope. Failures are logged; the next
// round retries them.
func refreshStale(ctx context.Context, s *session, concurrency int) {
	gate := s.State().Refresh
	if !s.Online() {
		log.Debug("offline, skipping refresh")
		return
	}

	if gate.IsStale(mirror.ScopeRepos) {
		_, err := s.ReposFromServer(ctx)
		metrics.RecordRefresh(string(mirror.ScopeRepos), err)
		if err != nil {
			log.Warnf("refresh library list: %v", err)
		}
	}
	repos, err := s.ReposFromCache()
	if err != nil {
		log.Debugf("no library list: %v", err)
		return
	}

	p := pool.New().WithMaxGoroutines(concurrency).WithContext(ctx)
	if gate.IsStale(mirror.ScopeStarred) {
		p.Go(func(ctx context.Context) error {
			_, err := s.StarredFiles(ctx)
			metrics.RecordRefresh(string(mirror.ScopeStarred), err)
			if err != nil {
				log.Warnf("refresh starred files: %v", err)
			}
			return nil
		})
	}
	for _, r := range repos {
		if r.Encrypted && !s.State().Passwords.IsPasswordSet(r.ID) {
			continue
		}
		if !gate.IsStale(mirror.DirScope(r.ID, "/")) {
			continue
		}
		p.Go(func(ctx context.Context) error {
			_, err := s.ListDir(ctx, r.ID, "/", true)
			metrics.RecordRefresh("dir", err)
			if err != nil {
				log.Warnf("refresh %v: %v", r.Name, err)
			}
			return nil
		})
	}
	_ = p.Wait()
}
