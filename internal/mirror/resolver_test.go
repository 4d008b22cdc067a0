package mirror

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/skyline93/seacache/internal/errors"
	"github.com/skyline93/seacache/internal/index"
)

func TestResolveIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := env.m.Resolver

	p1, err := r.Resolve(ctx, "r1", "Docs")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(env.opts.DataDir, "foo@example.com (cloud.example.com)", "Docs"); p1 != want {
		t.Errorf("Resolve = %q, want %q", p1, want)
	}
	if fi, err := os.Stat(p1); err != nil || !fi.IsDir() {
		t.Fatalf("repo directory not created: %v", err)
	}

	again, err := r.Resolve(ctx, "r1", "Renamed on server")
	if err != nil {
		t.Fatal(err)
	}
	if again != p1 {
		t.Errorf("second Resolve = %q, want %q", again, p1)
	}
}

func TestResolveCollisions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := env.m.Resolver

	// a directory an external actor created must not be taken over
	if err := os.MkdirAll(filepath.Join(r.AccountDir(), "Photos"), 0700); err != nil {
		t.Fatal(err)
	}

	want := map[string]string{"r1": "Docs", "r2": "Docs (1)", "r3": "Docs (2)", "r4": "Photos (1)"}
	names := map[string]string{"r1": "Docs", "r2": "Docs", "r3": "Docs", "r4": "Photos"}
	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		p, err := r.Resolve(ctx, id, names[id])
		if err != nil {
			t.Fatal(err)
		}
		if filepath.Base(p) != want[id] {
			t.Errorf("%v resolved to %q, want %q", id, filepath.Base(p), want[id])
		}
	}

	// a mapped directory deleted from disk is recreated, not remapped
	if err := os.RemoveAll(filepath.Join(r.AccountDir(), "Docs")); err != nil {
		t.Fatal(err)
	}
	p, err := r.Resolve(ctx, "r5", "Docs")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(p) != "Docs (3)" {
		t.Errorf("r5 resolved to %q, want \"Docs (3)\"", filepath.Base(p))
	}
	p, err = r.Resolve(ctx, "r1", "Docs")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(p) != "Docs" {
		t.Errorf("r1 remapped to %q", filepath.Base(p))
	}
	if _, err := os.Stat(p); err != nil {
		t.Errorf("deleted directory not recreated: %v", err)
	}
}

func TestResolveConcurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// a second resolver on the same index and data dir, like a second
	// process sharing the account
	other := NewResolver(NewState(StateOptions{}), env.idx, env.opts.DataDir, testAccount)

	const n = 16
	paths := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := env.m.Resolver
			if i%2 == 1 {
				r = other
			}
			repoID := "same"
			if i >= n/2 {
				repoID = "other-" + string(rune('a'+i))
			}
			p, err := r.Resolve(ctx, repoID, "Shared")
			if err != nil {
				t.Error(err)
				return
			}
			paths[i] = p
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < n/2; i++ {
		if paths[i] != paths[0] {
			t.Errorf("repo resolved to %q and %q", paths[0], paths[i])
		}
	}
	for i := n / 2; i < n; i++ {
		if seen[paths[i]] || paths[i] == paths[0] {
			t.Errorf("directory %q handed out twice", paths[i])
		}
		seen[paths[i]] = true
	}

	entries, err := os.ReadDir(env.m.Resolver.AccountDir())
	if err != nil {
		t.Fatal(err)
	}
	dirs := 0
	for _, e := range entries {
		if e.IsDir() {
			dirs++
		}
	}
	if dirs != 1+n/2 {
		t.Errorf("%d directories created, want %d", dirs, 1+n/2)
	}
}

func TestResolveStorageFault(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	if err := os.WriteFile(dataDir, []byte("not a directory"), 0600); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(NewState(StateOptions{}), index.NewMemory(), dataDir, testAccount)
	_, err := r.Resolve(context.Background(), "r1", "Docs")
	var sf *errors.StorageFault
	if !errors.As(err, &sf) {
		t.Fatalf("want StorageFault, got %v", err)
	}
	if !errors.IsFatal(err) {
		t.Error("storage faults must be fatal")
	}
}

func TestSanitizeRepoName(t *testing.T) {
	for in, want := range map[string]string{
		"Docs":       "Docs",
		"a/b":        "a_b",
		"..":         "_..",
		"":           "_",
		" spaced ":   "spaced",
		lockFileName: "_" + lockFileName,
		"Backup (1)": "Backup (1)",
		`win\style`:  "win_style",
	} {
		if got := sanitizeRepoName(in); got != want {
			t.Errorf("sanitizeRepoName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLocalPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.m.Resolver.LocalPath(ctx, "Docs", "r1", "/a/b/../c.txt")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(env.m.Resolver.AccountDir(), "Docs", "a", "c.txt")
	if p != want {
		t.Errorf("LocalPath = %q, want %q", p, want)
	}
	if _, err := os.Stat(filepath.Dir(p)); err != nil {
		t.Errorf("parent not created: %v", err)
	}

	p, err = env.m.Resolver.LocalPath(ctx, "Docs", "r1", "../../escape")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(p) != filepath.Join(env.m.Resolver.AccountDir(), "Docs") {
		t.Errorf("path escaped the repo directory: %q", p)
	}
}
