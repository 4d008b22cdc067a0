package mirror

import (
	"testing"
	"time"
)

func TestCredentialCache(t *testing.T) {
	clock := newFakeClock()
	c := NewCredentialCache(DefaultPasswordTTL, clock.Now)

	if c.IsPasswordSet("r1") {
		t.Fatal("empty cache reports a password")
	}
	if _, ok := c.Get("r1"); ok {
		t.Fatal("empty cache returned a password")
	}

	c.Set("r1", "hunter2")
	if !c.IsPasswordSet("r1") {
		t.Error("password not set")
	}
	if pw, ok := c.Get("r1"); !ok || pw != "hunter2" {
		t.Errorf("Get = %q %v", pw, ok)
	}
	if c.IsPasswordSet("r2") {
		t.Error("password leaked to another repo")
	}

	clock.Advance(58 * time.Minute)
	if !c.IsPasswordSet("r1") {
		t.Error("password expired too early")
	}
	clock.Advance(time.Minute)
	if c.IsPasswordSet("r1") {
		t.Error("password should expire after 59 minutes")
	}
	if _, ok := c.Get("r1"); ok {
		t.Error("Get should honor the TTL")
	}

	c.Set("r1", "again")
	c.Forget("r1")
	if c.IsPasswordSet("r1") {
		t.Error("password still set after Forget")
	}
}

func TestCredentialCacheSealsEntries(t *testing.T) {
	c := NewCredentialCache(DefaultPasswordTTL, time.Now)
	c.Set("r1", "hunter2")

	c.mu.Lock()
	sealed := string(c.entries["r1"].sealed)
	c.mu.Unlock()
	if sealed == "hunter2" || len(sealed) <= len("hunter2") {
		t.Error("password kept in plain text")
	}
}
