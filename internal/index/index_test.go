package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/skyline93/seacache/internal/seaf"
)

func testIndexes(t *testing.T) map[string]Index {
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return map[string]Index{
		"memory": NewMemory(),
		"sqlite": db,
	}
}

func TestRepoDirs(t *testing.T) {
	ctx := context.Background()
	for name, idx := range testIndexes(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := idx.RepoDir(ctx, "acc", "r1"); err != nil || ok {
				t.Fatalf("unexpected mapping: %v %v", ok, err)
			}
			if err := idx.SaveRepoDir(ctx, "acc", "r1", "Docs"); err != nil {
				t.Fatal(err)
			}

			dir, ok, err := idx.RepoDir(ctx, "acc", "r1")
			if err != nil || !ok || dir != "Docs" {
				t.Fatalf("RepoDir = %q %v %v", dir, ok, err)
			}

			taken, err := idx.RepoDirTaken(ctx, "acc", "Docs")
			if err != nil || !taken {
				t.Errorf("Docs should be taken: %v %v", taken, err)
			}
			taken, err = idx.RepoDirTaken(ctx, "other", "Docs")
			if err != nil || taken {
				t.Errorf("Docs should be free for another account: %v %v", taken, err)
			}

			if err := idx.SaveRepoDir(ctx, "acc", "r2", "Docs"); err == nil {
				t.Error("duplicate directory accepted")
			}
			if err := idx.SaveRepoDir(ctx, "acc", "r1", "Other"); err == nil {
				t.Error("remapping accepted")
			}
		})
	}
}

func TestContentIDs(t *testing.T) {
	ctx := context.Background()
	for name, idx := range testIndexes(t) {
		t.Run(name, func(t *testing.T) {
			old, err := idx.SetContentID(ctx, "acc", "r1", "/", "d1")
			if err != nil || !old.IsNull() {
				t.Fatalf("first SetContentID = %q %v", old, err)
			}
			if _, err := idx.SetContentID(ctx, "acc", "r2", "/", "d1"); err != nil {
				t.Fatal(err)
			}
			if _, err := idx.SetContentID(ctx, "other", "r1", "/", "d1"); err != nil {
				t.Fatal(err)
			}

			n, err := idx.ContentRefs(ctx, "acc", "d1")
			if err != nil || n != 2 {
				t.Fatalf("ContentRefs = %d %v, want 2", n, err)
			}

			old, err = idx.SetContentID(ctx, "acc", "r1", "/", "d2")
			if err != nil || old != "d1" {
				t.Fatalf("repoint returned %q %v", old, err)
			}
			if n, _ := idx.ContentRefs(ctx, "acc", "d1"); n != 1 {
				t.Errorf("ContentRefs after repoint = %d, want 1", n)
			}

			id, ok, err := idx.ContentID(ctx, "acc", "r1", "/")
			if err != nil || !ok || id != "d2" {
				t.Errorf("ContentID = %q %v %v", id, ok, err)
			}

			ids, err := idx.ContentIDs(ctx, "acc")
			if err != nil {
				t.Fatal(err)
			}
			if len(ids) != 2 || !ids.Has("d1") || !ids.Has("d2") {
				t.Errorf("ContentIDs = %v", ids.List())
			}

			old, err = idx.RemoveContentID(ctx, "acc", "r2", "/")
			if err != nil || old != "d1" {
				t.Errorf("RemoveContentID = %q %v", old, err)
			}
			if _, ok, _ := idx.ContentID(ctx, "acc", "r2", "/"); ok {
				t.Error("entry still present after remove")
			}

			if err := idx.RemoveContentIDs(ctx, "acc"); err != nil {
				t.Fatal(err)
			}
			if ids, _ := idx.ContentIDs(ctx, "acc"); len(ids) != 0 {
				t.Errorf("entries left after RemoveContentIDs: %v", ids.List())
			}
			if n, _ := idx.ContentRefs(ctx, "other", "d1"); n != 1 {
				t.Error("RemoveContentIDs touched another account")
			}
		})
	}
}

func TestCachedFiles(t *testing.T) {
	ctx := context.Background()
	for name, idx := range testIndexes(t) {
		t.Run(name, func(t *testing.T) {
			f := seaf.CachedFile{Account: "acc", RepoID: "r1", RepoName: "Docs", Path: "/a.txt", FileID: "f1", LocalPath: "/tmp/a"}
			if err := idx.SaveCachedFile(ctx, f); err != nil {
				t.Fatal(err)
			}
			f.FileID = "f2"
			if err := idx.SaveCachedFile(ctx, f); err != nil {
				t.Fatal(err)
			}
			if err := idx.SaveCachedFile(ctx, seaf.CachedFile{Account: "acc", RepoID: "r1", Path: "/b.txt", FileID: "f3"}); err != nil {
				t.Fatal(err)
			}

			got, err := idx.CachedFile(ctx, "acc", "r1", "/a.txt")
			if err != nil || got == nil {
				t.Fatalf("CachedFile = %v %v", got, err)
			}
			if got.FileID != "f2" || got.RepoName != "Docs" || got.LocalPath != "" {
				t.Errorf("unexpected entry %+v", got)
			}

			files, err := idx.CachedFiles(ctx, "acc")
			if err != nil || len(files) != 2 || files[0].Path != "/a.txt" {
				t.Errorf("CachedFiles = %+v %v", files, err)
			}

			if err := idx.RemoveCachedFile(ctx, "acc", "r1", "/a.txt"); err != nil {
				t.Fatal(err)
			}
			if got, _ := idx.CachedFile(ctx, "acc", "r1", "/a.txt"); got != nil {
				t.Errorf("entry still present: %+v", got)
			}
		})
	}
}

func TestStarredFiles(t *testing.T) {
	ctx := context.Background()
	for name, idx := range testIndexes(t) {
		t.Run(name, func(t *testing.T) {
			raw, err := idx.StarredFiles(ctx, "acc")
			if err != nil || raw != nil {
				t.Fatalf("StarredFiles = %q %v", raw, err)
			}
			for _, s := range []string{`[1]`, `[2]`} {
				if err := idx.SaveStarredFiles(ctx, "acc", []byte(s)); err != nil {
					t.Fatal(err)
				}
			}
			raw, _ = idx.StarredFiles(ctx, "acc")
			if string(raw) != `[2]` {
				t.Errorf("StarredFiles = %q", raw)
			}
		})
	}
}
