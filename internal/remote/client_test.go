package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skyline93/seacache/internal/errors"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c, err := New(Config{
		Server:        ts.URL,
		Token:         "secret",
		MaxRetries:    2,
		RetryInterval: time.Millisecond,
		OfflineProbe:  time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	return c, ts
}

func TestListDirents(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/api2/repos/r1/dir/" || r.URL.Query().Get("p") != "/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("oid") == "d1" {
			fmt.Fprint(w, `"uptodate"`)
			return
		}
		w.Header().Set("oid", "d1")
		fmt.Fprint(w, `[{"id":"x","type":"dir","name":"Docs"}]`)
	}))
	ctx := context.Background()

	l, err := c.ListDirents(ctx, "r1", "/", "")
	if err != nil {
		t.Fatal(err)
	}
	if l.ContentID != "d1" || string(l.Raw) != `[{"id":"x","type":"dir","name":"Docs"}]` {
		t.Errorf("unexpected listing %v %q", l.ContentID, l.Raw)
	}

	l, err = c.ListDirents(ctx, "r1", "/", "d1")
	if err != nil {
		t.Fatal(err)
	}
	if l.ContentID != "d1" || l.Raw != nil {
		t.Errorf("want unchanged listing, got %v %q", l.ContentID, l.Raw)
	}

	_, err = c.ListDirents(ctx, "r2", "/", "")
	if !errors.IsRemote(err) {
		t.Errorf("want RemoteError, got %v", err)
	}
}

func TestRetryServerErrors(t *testing.T) {
	var calls int32
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[]`)
	}))

	raw, err := c.ListRepos(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "[]" || atomic.LoadInt32(&calls) != 3 {
		t.Errorf("got %q after %d calls", raw, calls)
	}
}

func TestNoRetryOnClientErrors(t *testing.T) {
	var calls int32
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := c.ListRepos(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Fatalf("want 403 StatusError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("4xx retried %d times", calls)
	}
}

func TestOffline(t *testing.T) {
	c, ts := testClient(t, http.NotFoundHandler())
	ts.Close()

	if !c.Online() {
		t.Fatal("client should start online")
	}
	_, err := c.ListRepos(context.Background())
	if !errors.Is(err, errors.ErrNetworkUnavailable) {
		t.Fatalf("want ErrNetworkUnavailable, got %v", err)
	}
	if errors.IsRemote(err) {
		t.Error("connectivity errors must not be wrapped as RemoteError")
	}
	if c.Online() {
		t.Error("client should be offline after a transport failure")
	}
}

func TestGetFile(t *testing.T) {
	var downloads int32
	mux := http.NewServeMux()
	var server string
	mux.HandleFunc("/api2/repos/r1/file/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("oid", "f2")
		fmt.Fprintf(w, `"%s/files/a.txt"`, server)
	})
	mux.HandleFunc("/files/a.txt", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&downloads, 1)
		fmt.Fprint(w, "hello")
	})
	c, ts := testClient(t, mux)
	server = ts.URL

	dest := filepath.Join(t.TempDir(), "sub", "a.txt")
	id, err := c.GetFile(context.Background(), "r1", "/a.txt", dest, "f1")
	if err != nil {
		t.Fatal(err)
	}
	if id != "f2" {
		t.Errorf("file id %q, want f2", id)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "hello" {
		t.Fatalf("downloaded %q %v", data, err)
	}

	id, err = c.GetFile(context.Background(), "r1", "/a.txt", dest, "f2")
	if err != nil || id != "f2" {
		t.Fatalf("GetFile = %q %v", id, err)
	}
	if downloads != 1 {
		t.Errorf("file downloaded %d times, want 1", downloads)
	}
}

func TestMutationListing(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Query().Get("reloaddir") != "true" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("operation") != "mkdir" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("oid", "d9")
		fmt.Fprint(w, `[{"type":"dir","name":"Docs"}]`)
	}))

	l, err := c.CreateDir(context.Background(), "r1", "/", "Docs")
	if err != nil {
		t.Fatal(err)
	}
	if l == nil || l.ContentID != "d9" {
		t.Fatalf("unexpected listing %+v", l)
	}
}

func TestUploadedFileID(t *testing.T) {
	for body, want := range map[string]string{
		`[{"name":"a.txt","id":"f1","size":3}]`: "f1",
		`"f2"`:                                  "f2",
		"f3\n":                                  "f3",
	} {
		if got := uploadedFileID([]byte(body)); got != want {
			t.Errorf("uploadedFileID(%q) = %q, want %q", body, got, want)
		}
	}
}
