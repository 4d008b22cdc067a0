package mirror

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/skyline93/seacache/internal/errors"
	"github.com/skyline93/seacache/internal/fs"
	"github.com/skyline93/seacache/internal/index"
	"github.com/skyline93/seacache/internal/metrics"
	"github.com/skyline93/seacache/internal/seaf"
)

const lockFileName = ".seacache.lock"

// Resolver maps repo ids to stable local directories below the account
// directory. A mapping is created on first access and never changes.
type Resolver struct {
	state   *State
	idx     index.Index
	account string
	root    string
}

// NewResolver returns a resolver for account, whose directory lives in
// dataDir.
func NewResolver(state *State, idx index.Index, dataDir string, account seaf.Account) *Resolver {
	return &Resolver{
		state:   state,
		idx:     idx,
		account: account.Signature(),
		root:    filepath.Join(dataDir, account.DirName()),
	}
}

// AccountDir returns the root directory of the account.
func (r *Resolver) AccountDir() string {
	return r.root
}

// sanitizeRepoName makes name usable as a single path element.
func sanitizeRepoName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." || name == lockFileName {
		name = "_" + name
	}
	return name
}

// Resolve returns the local directory of repoID, creating it (and the
// mapping) when needed. Concurrent calls for one account are serialized,
// within the process and across processes sharing the data directory.
func (r *Resolver) Resolve(ctx context.Context, repoID, displayName string) (string, error) {
	unlock := r.state.accounts.Lock(r.account)
	defer unlock()

	if err := fs.MkdirAll(r.root, 0700); err != nil {
		return "", errors.Storage(r.root, err)
	}
	lock, err := fs.Lock(filepath.Join(r.root, lockFileName))
	if err != nil {
		return "", errors.Storage(r.root, err)
	}
	defer func() { _ = lock.Unlock() }()

	dir, ok, err := r.idx.RepoDir(ctx, r.account, repoID)
	if err != nil {
		return "", err
	}
	if ok {
		p := filepath.Join(r.root, dir)
		if err := fs.MkdirAll(p, 0700); err != nil {
			return "", errors.Storage(p, err)
		}
		return p, nil
	}

	dir, err = r.freeName(ctx, sanitizeRepoName(displayName))
	if err != nil {
		return "", err
	}

	p := filepath.Join(r.root, dir)
	if err := fs.MkdirAll(p, 0700); err != nil {
		return "", errors.Storage(p, err)
	}
	if err := r.idx.SaveRepoDir(ctx, r.account, repoID, dir); err != nil {
		return "", err
	}

	metrics.RecordRepoDirCreated()
	log.Debugf("repo %v mapped to %q", repoID, dir)
	return p, nil
}

// freeName probes base, "base (1)", "base (2)", ... and returns the first
// name that is neither present on disk nor mapped to another repo.
func (r *Resolver) freeName(ctx context.Context, base string) (string, error) {
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		name := base
		if i > 0 {
			name = fmt.Sprintf("%s (%d)", base, i)
		}
		if fs.Exists(filepath.Join(r.root, name)) {
			continue
		}
		taken, err := r.idx.RepoDirTaken(ctx, r.account, name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
	}
}

// localName joins a repo relative path to dir without leaving it.
func localName(dir, p string) string {
	return filepath.Join(dir, filepath.FromSlash(path.Clean("/"+p)))
}

// LocalPath returns the local file of path in the repo, creating the repo
// directory and the parent directories of the file.
func (r *Resolver) LocalPath(ctx context.Context, repoName, repoID, p string) (string, error) {
	dir, err := r.Resolve(ctx, repoID, repoName)
	if err != nil {
		return "", err
	}

	name := localName(dir, p)
	parent := filepath.Dir(name)
	if err := fs.MkdirAll(parent, 0700); err != nil {
		return "", errors.Storage(parent, err)
	}
	return name, nil
}

// ExistingPath returns the local file of path if the repo has been
// resolved before. It creates nothing.
func (r *Resolver) ExistingPath(ctx context.Context, repoID, p string) (string, bool, error) {
	dir, ok, err := r.idx.RepoDir(ctx, r.account, repoID)
	if err != nil || !ok {
		return "", false, err
	}
	return localName(filepath.Join(r.root, dir), p), true, nil
}
