package seaf

import "testing"

func TestParseID(t *testing.T) {
	for _, s := range []string{"0000000000000000000000000000000000000000", "a1b2-C3_d4"} {
		if _, err := ParseID(s); err != nil {
			t.Errorf("ParseID(%q): %v", s, err)
		}
	}
	for _, s := range []string{"", "a", "../etc", "a/b", "x y"} {
		if _, err := ParseID(s); err == nil {
			t.Errorf("ParseID(%q) should fail", s)
		}
	}
}

func TestAccountDirName(t *testing.T) {
	a := Account{Server: "https://cloud.example.com:8000/", Email: "foo@example.com"}
	if got, want := a.Host(), "cloud.example.com"; got != want {
		t.Errorf("Host() = %q, want %q", got, want)
	}
	if got, want := a.DirName(), "foo@example.com (cloud.example.com)"; got != want {
		t.Errorf("DirName() = %q, want %q", got, want)
	}

	b := Account{Server: "https://cloud.example.com", Email: "foo@example.com"}
	if a.Signature() == (Account{Server: "https://other", Email: "foo@example.com"}).Signature() {
		t.Error("different servers must have different signatures")
	}
	if a.Signature() == "" || b.Signature() == "" {
		t.Error("empty signature")
	}
	if n := len(b.Signature()); n != 64 {
		t.Errorf("signature has %d hex digits, want the full sha256", n)
	}
}

func TestDecodeDirents(t *testing.T) {
	dirents, err := DecodeDirents([]byte(`[]`))
	if err != nil {
		t.Fatalf("empty listing: %v", err)
	}
	if len(dirents) != 0 {
		t.Errorf("want empty listing, got %v", dirents)
	}

	dirents, err = DecodeDirents([]byte(`[{"id":"abc","type":"dir","name":"Docs","mtime":1}]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(dirents) != 1 || !dirents[0].IsDir() || dirents[0].Name != "Docs" {
		t.Errorf("unexpected dirents %+v", dirents)
	}

	for _, raw := range []string{`{"a":1}`, `not json`, `null`} {
		if _, err := DecodeDirents([]byte(raw)); err == nil {
			t.Errorf("DecodeDirents(%q) should fail", raw)
		}
	}
}
