package mirror

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/skyline93/seacache/internal/cache"
	"github.com/skyline93/seacache/internal/errors"
	"github.com/skyline93/seacache/internal/fs"
	"github.com/skyline93/seacache/internal/index"
	"github.com/skyline93/seacache/internal/seaf"
)

// Options configures a Manager.
type Options struct {
	// DataDir holds the account directories with the local repo copies.
	DataDir string
	// CacheDir holds the side cache areas, one per account.
	CacheDir    string
	Compression cache.CompressionMode
	Notifier    MediaNotifier
}

// Manager is the cache core of one account. It wires the components to
// each other and serves reads through the RefreshGate.
type Manager struct {
	Account seaf.Account

	Resolver *Resolver
	Dirents  *DirentCache
	Files    *FileVersionCache
	Sync     *SyncCoordinator

	state  *State
	idx    index.Index
	cache  *cache.Cache
	remote Remote

	mu    sync.Mutex
	repos []seaf.Repo
}

// NewManager returns the Manager of account.
func NewManager(state *State, account seaf.Account, idx index.Index, remote Remote, opts Options) (*Manager, error) {
	if opts.DataDir == "" || opts.CacheDir == "" {
		return nil, errors.New("data and cache directories must be set")
	}

	c, err := cache.New(filepath.Join(opts.CacheDir, account.Signature()), opts.Compression)
	if err != nil {
		return nil, err
	}

	resolver := NewResolver(state, idx, opts.DataDir, account)
	dirents := NewDirentCache(account, idx, c, remote)
	return &Manager{
		Account:  account,
		Resolver: resolver,
		Dirents:  dirents,
		Files:    NewFileVersionCache(account, idx, remote, resolver, opts.Notifier),
		Sync:     NewSyncCoordinator(remote, dirents, state.Refresh),
		state:    state,
		idx:      idx,
		cache:    c,
		remote:   remote,
	}, nil
}

// State returns the shared cache state.
func (m *Manager) State() *State {
	return m.state
}

// Online reports whether the server is believed reachable.
func (m *Manager) Online() bool {
	return m.remote.Online()
}

func (m *Manager) checkOnline() error {
	if !m.remote.Online() {
		return errors.ErrNetworkUnavailable
	}
	return nil
}

// --- Repo list ---

func (m *Manager) reposHandle() seaf.Handle {
	return seaf.Handle{Type: seaf.RepoListFile, Name: seaf.Hash([]byte(m.Account.Server + m.Account.Email)).String()}
}

// Repos returns the repo list, from the cache while it is fresh and from
// the server otherwise. Offline, a stale cached list is returned.
func (m *Manager) Repos(ctx context.Context, refresh bool) ([]seaf.Repo, error) {
	if !refresh && !m.state.Refresh.IsStale(ScopeRepos) {
		repos, err := m.ReposFromCache()
		if err == nil {
			return repos, nil
		}
		if !errors.Is(err, errors.ErrCacheMiss) {
			return nil, err
		}
	}

	if !m.remote.Online() {
		repos, err := m.ReposFromCache()
		if errors.Is(err, errors.ErrCacheMiss) {
			return nil, errors.ErrNetworkUnavailable
		}
		return repos, err
	}
	return m.ReposFromServer(ctx)
}

// ReposFromCache returns the cached repo list: the in-memory copy, else the
// snapshot file.
func (m *Manager) ReposFromCache() ([]seaf.Repo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.repos != nil {
		return m.repos, nil
	}

	h := m.reposHandle()
	raw, err := m.cache.Load(h)
	if err != nil {
		return nil, err
	}
	repos, err := seaf.DecodeRepos(raw)
	if err != nil {
		if ferr := m.cache.Forget(h); ferr != nil {
			log.Debug(ferr)
		}
		return nil, errors.CorruptCache(h.Name, err)
	}
	m.repos = repos
	return repos, nil
}

// ReposFromServer fetches the repo list and stores it.
func (m *Manager) ReposFromServer(ctx context.Context) ([]seaf.Repo, error) {
	const op = "list repos"

	if err := m.checkOnline(); err != nil {
		return nil, err
	}
	raw, err := m.remote.ListRepos(ctx)
	if err != nil {
		return nil, errors.Remote(op, err)
	}
	repos, err := seaf.DecodeRepos(raw)
	if err != nil {
		return nil, errors.Remote(op, errors.Wrap(errors.ErrCorruptPayload, err.Error()))
	}

	m.mu.Lock()
	m.repos = repos
	m.mu.Unlock()

	if err := m.cache.Save(m.reposHandle(), raw); err != nil {
		errors.LogCacheWriteFailure("repo list", err)
	}
	m.state.Refresh.MarkRefreshed(ScopeRepos)
	return repos, nil
}

// CachedRepoByID returns the cached repo with id, or nil.
func (m *Manager) CachedRepoByID(id string) *seaf.Repo {
	repos, err := m.ReposFromCache()
	if err != nil {
		return nil
	}
	for i := range repos {
		if repos[i].ID == id {
			r := repos[i]
			return &r
		}
	}
	return nil
}

// --- Directory listings ---

// ListDir returns the listing of (repoID, path). A fresh cached listing is
// served without a round trip; otherwise it is validated against the
// server. Offline, the cached listing is served regardless of its age.
func (m *Manager) ListDir(ctx context.Context, repoID, path string, refresh bool) ([]seaf.Dirent, error) {
	scope := DirScope(repoID, path)
	if !refresh && !m.state.Refresh.IsStale(scope) {
		snap, err := m.Dirents.Lookup(ctx, repoID, path)
		if err == nil {
			return snap.Dirents, nil
		}
		if !errors.Is(err, errors.ErrCacheMiss) {
			return nil, err
		}
	}

	if !m.remote.Online() {
		snap, err := m.Dirents.Lookup(ctx, repoID, path)
		if errors.Is(err, errors.ErrCacheMiss) {
			return nil, errors.ErrNetworkUnavailable
		}
		if err != nil {
			return nil, err
		}
		return snap.Dirents, nil
	}

	snap, err := m.Dirents.FetchOrValidate(ctx, repoID, path)
	if err != nil {
		return nil, err
	}
	m.state.Refresh.MarkRefreshed(scope)
	return snap.Dirents, nil
}

// --- Starred files ---

// Starred returns the starred files, gated like Repos.
func (m *Manager) Starred(ctx context.Context, refresh bool) ([]seaf.StarredFile, error) {
	if !refresh && !m.state.Refresh.IsStale(ScopeStarred) {
		files, err := m.CachedStarredFiles(ctx)
		if err == nil {
			return files, nil
		}
		if !errors.Is(err, errors.ErrCacheMiss) {
			return nil, err
		}
	}

	if !m.remote.Online() {
		files, err := m.CachedStarredFiles(ctx)
		if errors.Is(err, errors.ErrCacheMiss) {
			return nil, errors.ErrNetworkUnavailable
		}
		return files, err
	}
	return m.StarredFiles(ctx)
}

// StarredFiles fetches the starred files and stores them in the index.
func (m *Manager) StarredFiles(ctx context.Context) ([]seaf.StarredFile, error) {
	const op = "starred files"

	if err := m.checkOnline(); err != nil {
		return nil, err
	}
	raw, err := m.remote.StarredFiles(ctx)
	if err != nil {
		return nil, errors.Remote(op, err)
	}
	files, err := seaf.DecodeStarredFiles(raw)
	if err != nil {
		return nil, errors.Remote(op, errors.Wrap(errors.ErrCorruptPayload, err.Error()))
	}

	if err := m.idx.SaveStarredFiles(ctx, m.Account.Signature(), raw); err != nil {
		errors.LogCacheWriteFailure("starred files", err)
	}
	m.state.Refresh.MarkRefreshed(ScopeStarred)
	return files, nil
}

// CachedStarredFiles returns the starred files stored by the last fetch.
func (m *Manager) CachedStarredFiles(ctx context.Context) ([]seaf.StarredFile, error) {
	raw, err := m.idx.StarredFiles(ctx, m.Account.Signature())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.ErrCacheMiss
	}
	files, err := seaf.DecodeStarredFiles(raw)
	if err != nil {
		return nil, errors.CorruptCache("starred files", err)
	}
	return files, nil
}

// Star stars path. The starred list becomes stale.
func (m *Manager) Star(ctx context.Context, repoID, path string) error {
	if err := m.checkOnline(); err != nil {
		return err
	}
	if err := m.remote.Star(ctx, repoID, path); err != nil {
		return errors.Remote("star", err)
	}
	m.state.Refresh.Invalidate(ScopeStarred)
	return nil
}

// Unstar removes the star of path. The starred list becomes stale.
func (m *Manager) Unstar(ctx context.Context, repoID, path string) error {
	if err := m.checkOnline(); err != nil {
		return err
	}
	if err := m.remote.Unstar(ctx, repoID, path); err != nil {
		return errors.Remote("unstar", err)
	}
	m.state.Refresh.Invalidate(ScopeStarred)
	return nil
}

// --- Pass-through calls ---

// SetPassword unlocks an encrypted repo on the server and remembers the
// password for this session.
func (m *Manager) SetPassword(ctx context.Context, repoID, password string) error {
	if err := m.checkOnline(); err != nil {
		return err
	}
	if err := m.remote.SetPassword(ctx, repoID, password); err != nil {
		return errors.Remote("set password", err)
	}
	m.state.Passwords.Set(repoID, password)
	return nil
}

// AccountInfo fetches usage and quota of the account.
func (m *Manager) AccountInfo(ctx context.Context) (*seaf.AccountInfo, error) {
	if err := m.checkOnline(); err != nil {
		return nil, err
	}
	raw, err := m.remote.AccountInfo(ctx)
	if err != nil {
		return nil, errors.Remote("account info", err)
	}
	info, err := seaf.DecodeAccountInfo(raw, m.Account.Server)
	return info, corrupt("account info", err)
}

// ServerInfo fetches version and features of the server.
func (m *Manager) ServerInfo(ctx context.Context) (*seaf.ServerInfo, error) {
	if err := m.checkOnline(); err != nil {
		return nil, err
	}
	raw, err := m.remote.ServerInfo(ctx)
	if err != nil {
		return nil, errors.Remote("server info", err)
	}
	info, err := seaf.DecodeServerInfo(raw, m.Account.Server)
	return info, corrupt("server info", err)
}

// Events fetches one page of the activity feed. Nothing is cached.
func (m *Manager) Events(ctx context.Context, offset int) (*seaf.Activities, error) {
	if err := m.checkOnline(); err != nil {
		return nil, err
	}
	raw, err := m.remote.Events(ctx, offset)
	if err != nil {
		return nil, errors.Remote("events", err)
	}
	a, err := seaf.DecodeActivities(raw)
	return a, corrupt("events", err)
}

// Search runs a full text search. Nothing is cached.
func (m *Manager) Search(ctx context.Context, query string, page int) ([]seaf.SearchedFile, error) {
	if err := m.checkOnline(); err != nil {
		return nil, err
	}
	raw, err := m.remote.Search(ctx, query, page)
	if err != nil {
		return nil, errors.Remote("search", err)
	}
	files, err := seaf.DecodeSearchResults(raw)
	return files, corrupt("search", err)
}

// HistoryChanges fetches the raw changes of one commit of the repo.
func (m *Manager) HistoryChanges(ctx context.Context, repoID, commitID string) ([]byte, error) {
	if err := m.checkOnline(); err != nil {
		return nil, err
	}
	raw, err := m.remote.HistoryChanges(ctx, repoID, commitID)
	return raw, errors.Remote("history changes", err)
}

func corrupt(op string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Remote(op, errors.Wrap(errors.ErrCorruptPayload, err.Error()))
}

// ThumbnailLink returns a link to a thumbnail of the file: the local copy if
// there is one, the server thumbnail otherwise. Encrypted repos have no
// thumbnails.
func (m *Manager) ThumbnailLink(ctx context.Context, repoID, path string, size int) (string, bool) {
	if r := m.CachedRepoByID(repoID); r != nil && r.Encrypted {
		return "", false
	}

	local, ok, err := m.Resolver.ExistingPath(ctx, repoID, path)
	if err == nil && ok && fs.IsRegular(local) {
		return "file://" + local, true
	}
	return m.remote.ThumbnailURL(repoID, path, size), true
}

// --- Temporary files and maintenance ---

// CreateTempFile creates an empty temporary file in the cache area.
func (m *Manager) CreateTempFile() (*os.File, error) {
	return m.cache.CreateTempFile()
}

// CreateTempDir creates an empty temporary directory in the cache area.
func (m *Manager) CreateTempDir() (string, error) {
	return m.cache.CreateTempDir()
}

// GC deletes listing blobs nothing references and all temporary files.
func (m *Manager) GC(ctx context.Context) (int, error) {
	n, err := m.Dirents.GC(ctx)
	if err != nil {
		return n, err
	}
	return n, m.cache.ClearTemp()
}

// ClearCache drops every cached listing, the repo list snapshot and all
// temporary files of the account. Local repo copies and their version
// entries are kept.
func (m *Manager) ClearCache(ctx context.Context) error {
	if err := m.Dirents.Clear(ctx); err != nil {
		return err
	}
	if err := m.cache.Wipe(); err != nil {
		return err
	}

	m.mu.Lock()
	m.repos = nil
	m.mu.Unlock()

	m.state.Refresh.Invalidate(ScopeRepos)
	log.Infof("cleared cache of %v", m.Account)
	return nil
}
