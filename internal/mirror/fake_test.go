package mirror

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/skyline93/seacache/internal/errors"
	"github.com/skyline93/seacache/internal/index"
	"github.com/skyline93/seacache/internal/seaf"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type remoteFile struct {
	id      string
	content string
}

// fakeRemote is an in-memory server. Listings and files are set up by the
// tests; calls are counted.
type fakeRemote struct {
	mu sync.Mutex

	offline  bool
	failNext error

	listings map[string]*seaf.DirListing
	files    map[string]remoteFile
	repos    string
	starred  string

	// mutation replies
	reply *seaf.DirListing

	calls      map[string]int
	knownSeen  []seaf.ID
	uploadedID string

	// listing requests signal started, then wait for hold and run during
	started chan struct{}
	hold    chan struct{}
	during  func()
}

var _ Remote = &fakeRemote{}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		listings: make(map[string]*seaf.DirListing),
		files:    make(map[string]remoteFile),
		calls:    make(map[string]int),
	}
}

func (r *fakeRemote) setListing(repoID, dir string, id seaf.ID, raw string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[dirKey(repoID, dir)] = &seaf.DirListing{ContentID: id, Raw: []byte(raw)}
}

func (r *fakeRemote) setOffline(offline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offline = offline
}

func (r *fakeRemote) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// begin counts op and returns the error the call should fail with.
func (r *fakeRemote) begin(op string) error {
	r.calls[op]++
	if r.offline {
		return errors.ErrNetworkUnavailable
	}
	if err := r.failNext; err != nil {
		r.failNext = nil
		return err
	}
	return nil
}

func (r *fakeRemote) Online() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.offline
}

func (r *fakeRemote) ListRepos(context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin("repos"); err != nil {
		return nil, err
	}
	return []byte(r.repos), nil
}

func (r *fakeRemote) ListDirents(ctx context.Context, repoID, dir string, known seaf.ID) (*seaf.DirListing, error) {
	r.mu.Lock()
	started, hold, during := r.started, r.hold, r.during
	r.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if during != nil {
		during()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin("dirents"); err != nil {
		return nil, err
	}
	r.knownSeen = append(r.knownSeen, known)

	l, ok := r.listings[dirKey(repoID, dir)]
	if !ok {
		return nil, errors.New("not found")
	}
	if !known.IsNull() && known == l.ContentID {
		return &seaf.DirListing{ContentID: known}, nil
	}
	return &seaf.DirListing{ContentID: l.ContentID, Raw: append([]byte(nil), l.Raw...)}, nil
}

func (r *fakeRemote) GetFile(_ context.Context, repoID, p, dest, known string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin("get"); err != nil {
		return "", err
	}
	f, ok := r.files[dirKey(repoID, p)]
	if !ok {
		return "", errors.New("not found")
	}
	if known == f.id {
		return f.id, nil
	}
	r.calls["download"]++
	if err := os.WriteFile(dest, []byte(f.content), 0600); err != nil {
		return "", err
	}
	return f.id, nil
}

func (r *fakeRemote) UploadFile(_ context.Context, repoID, dir, src string, update bool) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin("upload"); err != nil {
		return "", err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	r.files[dirKey(repoID, path.Join(dir, filepath.Base(src)))] = remoteFile{id: r.uploadedID, content: string(data)}
	return r.uploadedID, nil
}

func (r *fakeRemote) mutate(op string) (*seaf.DirListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(op); err != nil {
		return nil, err
	}
	return r.reply, nil
}

func (r *fakeRemote) CreateDir(context.Context, string, string, string) (*seaf.DirListing, error) {
	return r.mutate("mkdir")
}

func (r *fakeRemote) CreateFile(context.Context, string, string, string) (*seaf.DirListing, error) {
	return r.mutate("touch")
}

func (r *fakeRemote) Rename(context.Context, string, string, string, bool) (*seaf.DirListing, error) {
	return r.mutate("rename")
}

func (r *fakeRemote) Delete(context.Context, string, string, bool) (*seaf.DirListing, error) {
	return r.mutate("delete")
}

func (r *fakeRemote) Copy(context.Context, string, string, string, string, string) (*seaf.DirListing, error) {
	return r.mutate("copy")
}

func (r *fakeRemote) Move(context.Context, string, string, string, string, string, bool) (*seaf.DirListing, error) {
	return r.mutate("move")
}

func (r *fakeRemote) SetPassword(context.Context, string, string) error {
	_, err := r.mutate("password")
	return err
}

func (r *fakeRemote) raw(op, body string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.begin(op); err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (r *fakeRemote) AccountInfo(context.Context) ([]byte, error) {
	return r.raw("account", `{"email":"foo@example.com","usage":10,"total":100}`)
}

func (r *fakeRemote) ServerInfo(context.Context) ([]byte, error) {
	return r.raw("server", `{"version":"11.0.0","features":["seafile-basic"]}`)
}

func (r *fakeRemote) Events(context.Context, int) ([]byte, error) {
	return r.raw("events", `{"events":[],"more":false,"more_offset":0}`)
}

func (r *fakeRemote) Search(context.Context, string, int) ([]byte, error) {
	return r.raw("search", `{"results":[{"repo_id":"r1","name":"a.txt","fullpath":"/a.txt"}]}`)
}

func (r *fakeRemote) StarredFiles(context.Context) ([]byte, error) {
	r.mu.Lock()
	body := r.starred
	r.mu.Unlock()
	return r.raw("starred", body)
}

func (r *fakeRemote) Star(context.Context, string, string) error {
	_, err := r.mutate("star")
	return err
}

func (r *fakeRemote) Unstar(context.Context, string, string) error {
	_, err := r.mutate("unstar")
	return err
}

func (r *fakeRemote) HistoryChanges(context.Context, string, string) ([]byte, error) {
	return r.raw("history", `{}`)
}

func (r *fakeRemote) ThumbnailURL(repoID, p string, size int) string {
	return "https://cloud.example.com/thumb/" + repoID + p
}

var testAccount = seaf.Account{Server: "https://cloud.example.com", Email: "foo@example.com", Token: "t"}

type testEnv struct {
	m      *Manager
	remote *fakeRemote
	clock  *fakeClock
	idx    index.Index
	opts   Options
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	clock := newFakeClock()
	env := &testEnv{
		remote: newFakeRemote(),
		clock:  clock,
		idx:    index.NewMemory(),
		opts: Options{
			DataDir:  filepath.Join(dir, "data"),
			CacheDir: filepath.Join(dir, "cache"),
		},
	}

	state := NewState(StateOptions{Now: clock.Now})
	m, err := NewManager(state, testAccount, env.idx, env.remote, env.opts)
	if err != nil {
		t.Fatal(err)
	}
	env.m = m
	return env
}

func (e *testEnv) blobPath(id seaf.ID) string {
	return filepath.Join(e.m.cache.Path(), "dirents", string(id[:2]), string(id))
}

func (e *testEnv) blobExists(id seaf.ID) bool {
	_, err := os.Stat(e.blobPath(id))
	return err == nil
}

func (e *testEnv) blobCount(t *testing.T) int {
	t.Helper()
	n := 0
	err := filepath.Walk(filepath.Join(e.m.cache.Path(), "dirents"), func(_ string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.Mode().IsRegular() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return n
}
