package index

import (
	"context"
	"sort"
	"sync"

	"github.com/skyline93/seacache/internal/errors"
	"github.com/skyline93/seacache/internal/seaf"
)

type repoKey struct{ account, repoID string }

type pathKey struct{ account, repoID, path string }

// Memory is an Index kept in process memory. It is used for tests and
// for throwaway sessions that should not leave state behind.
type Memory struct {
	m sync.RWMutex

	repoDirs map[repoKey]string
	dirs     map[repoKey]string // (account, dir) -> repoID
	dirents  map[pathKey]seaf.ID
	files    map[pathKey]seaf.CachedFile
	starred  map[string][]byte
}

var _ Index = &Memory{}

// NewMemory returns an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{
		repoDirs: make(map[repoKey]string),
		dirs:     make(map[repoKey]string),
		dirents:  make(map[pathKey]seaf.ID),
		files:    make(map[pathKey]seaf.CachedFile),
		starred:  make(map[string][]byte),
	}
}

func (mi *Memory) RepoDir(_ context.Context, account, repoID string) (string, bool, error) {
	mi.m.RLock()
	defer mi.m.RUnlock()

	dir, ok := mi.repoDirs[repoKey{account, repoID}]
	return dir, ok, nil
}

func (mi *Memory) RepoDirTaken(_ context.Context, account, dir string) (bool, error) {
	mi.m.RLock()
	defer mi.m.RUnlock()

	_, ok := mi.dirs[repoKey{account, dir}]
	return ok, nil
}

func (mi *Memory) SaveRepoDir(_ context.Context, account, repoID, dir string) error {
	mi.m.Lock()
	defer mi.m.Unlock()

	if old, ok := mi.repoDirs[repoKey{account, repoID}]; ok {
		return errors.Errorf("repo %v is already mapped to %q", repoID, old)
	}
	if other, ok := mi.dirs[repoKey{account, dir}]; ok {
		return errors.Errorf("directory %q is already used by repo %v", dir, other)
	}
	mi.repoDirs[repoKey{account, repoID}] = dir
	mi.dirs[repoKey{account, dir}] = repoID
	return nil
}

func (mi *Memory) ContentID(_ context.Context, account, repoID, path string) (seaf.ID, bool, error) {
	mi.m.RLock()
	defer mi.m.RUnlock()

	id, ok := mi.dirents[pathKey{account, repoID, path}]
	return id, ok, nil
}

func (mi *Memory) SetContentID(_ context.Context, account, repoID, path string, id seaf.ID) (seaf.ID, error) {
	mi.m.Lock()
	defer mi.m.Unlock()

	k := pathKey{account, repoID, path}
	old := mi.dirents[k]
	mi.dirents[k] = id
	return old, nil
}

func (mi *Memory) RemoveContentID(_ context.Context, account, repoID, path string) (seaf.ID, error) {
	mi.m.Lock()
	defer mi.m.Unlock()

	k := pathKey{account, repoID, path}
	old := mi.dirents[k]
	delete(mi.dirents, k)
	return old, nil
}

func (mi *Memory) ContentRefs(_ context.Context, account string, id seaf.ID) (int, error) {
	mi.m.RLock()
	defer mi.m.RUnlock()

	n := 0
	for k, v := range mi.dirents {
		if k.account == account && v == id {
			n++
		}
	}
	return n, nil
}

func (mi *Memory) ContentIDs(_ context.Context, account string) (seaf.IDSet, error) {
	mi.m.RLock()
	defer mi.m.RUnlock()

	ids := seaf.NewIDSet()
	for k, v := range mi.dirents {
		if k.account == account {
			ids.Insert(v)
		}
	}
	return ids, nil
}

func (mi *Memory) RemoveContentIDs(_ context.Context, account string) error {
	mi.m.Lock()
	defer mi.m.Unlock()

	for k := range mi.dirents {
		if k.account == account {
			delete(mi.dirents, k)
		}
	}
	return nil
}

func (mi *Memory) CachedFile(_ context.Context, account, repoID, path string) (*seaf.CachedFile, error) {
	mi.m.RLock()
	defer mi.m.RUnlock()

	f, ok := mi.files[pathKey{account, repoID, path}]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (mi *Memory) CachedFiles(_ context.Context, account string) ([]seaf.CachedFile, error) {
	mi.m.RLock()
	defer mi.m.RUnlock()

	var files []seaf.CachedFile
	for k, f := range mi.files {
		if k.account == account {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].RepoID != files[j].RepoID {
			return files[i].RepoID < files[j].RepoID
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}

func (mi *Memory) SaveCachedFile(_ context.Context, f seaf.CachedFile) error {
	mi.m.Lock()
	defer mi.m.Unlock()

	f.LocalPath = ""
	mi.files[pathKey{f.Account, f.RepoID, f.Path}] = f
	return nil
}

func (mi *Memory) RemoveCachedFile(_ context.Context, account, repoID, path string) error {
	mi.m.Lock()
	defer mi.m.Unlock()

	delete(mi.files, pathKey{account, repoID, path})
	return nil
}

func (mi *Memory) StarredFiles(_ context.Context, account string) ([]byte, error) {
	mi.m.RLock()
	defer mi.m.RUnlock()

	return mi.starred[account], nil
}

func (mi *Memory) SaveStarredFiles(_ context.Context, account string, raw []byte) error {
	mi.m.Lock()
	defer mi.m.Unlock()

	mi.starred[account] = append([]byte(nil), raw...)
	return nil
}

func (mi *Memory) Close() error { return nil }
