package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"

	"github.com/skyline93/seacache/internal/config"
	"github.com/skyline93/seacache/internal/errors"
	"github.com/skyline93/seacache/internal/fs"
	"github.com/skyline93/seacache/internal/index"
	"github.com/skyline93/seacache/internal/mirror"
	"github.com/skyline93/seacache/internal/remote"
	"github.com/skyline93/seacache/internal/seaf"
)

var _ mirror.Remote = (*remote.Client)(nil)

// session bundles what a command needs to work on the configured account.
type session struct {
	*mirror.Manager
	client *remote.Client
	idx    index.Index
}

func (s *session) Close() error {
	return s.idx.Close()
}

func openIndex(ctx context.Context, cfg config.Config) (index.Index, error) {
	if cfg.Index == config.MemoryIndex {
		return index.NewMemory(), nil
	}
	dir := filepath.Dir(cfg.Index)
	if err := fs.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Storage(dir, err)
	}
	return index.Open(ctx, cfg.Index)
}

func openSession(ctx context.Context, cfg config.Config) (*session, error) {
	if err := cfg.RequireRemote(); err != nil {
		return nil, err
	}

	rcfg := remote.NewConfig()
	rcfg.Server = cfg.Server
	rcfg.Token = cfg.Token
	client, err := remote.New(rcfg)
	if err != nil {
		return nil, errors.Fatalf("%v", err)
	}

	idx, err := openIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}

	state := mirror.NewState(mirror.StateOptions{
		RefreshTTL:  cfg.RefreshTTL,
		PasswordTTL: cfg.PasswordTTL,
	})
	m, err := mirror.NewManager(state, cfg.Account(), idx, client, mirror.Options{
		DataDir:     cfg.DataDir,
		CacheDir:    cfg.CacheDir,
		Compression: cfg.Compression,
	})
	if err != nil {
		_ = idx.Close()
		return nil, err
	}

	log.Debugf("opened %v, cache at %v", m.Account, cfg.CacheDir)
	return &session{Manager: m, client: client, idx: idx}, nil
}

// withSession runs fn on a session of the global config and closes it.
func withSession(ctx context.Context, fn func(*session) error) (err error) {
	s, err := openSession(ctx, globalConfig)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

// repo returns the repo with id, looking at the cached list first.
func (s *session) repo(ctx context.Context, id string) (*seaf.Repo, error) {
	if r := s.CachedRepoByID(id); r != nil {
		return r, nil
	}
	if _, err := s.Repos(ctx, false); err != nil {
		return nil, err
	}
	if r := s.CachedRepoByID(id); r != nil {
		return r, nil
	}
	return nil, errors.Fatalf("unknown library %v", id)
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return filepath.ToSlash(filepath.Clean("/" + strings.TrimPrefix(p, "/")))
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

func printf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format, args...)
}
