package auth

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/bayue48/pia-scrap/model"
)

func TestLoadSessionMissingFile(t *testing.T) {
	session, err := LoadSession(filepath.Join(t.TempDir(), ".session.json"))
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if session.Valid() {
		t.Error("fresh session should not be valid")
	}
	if session.UserKey == "" {
		t.Error("fresh session should carry a device key")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".session.json")
	saved := &Session{LoginAt: "tok-1", UserKey: "key-1"}
	if err := SaveSession(path, saved); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	loaded, err := LoadSession(path)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if loaded.LoginAt != "tok-1" || loaded.UserKey != "key-1" {
		t.Fatalf("loaded = %+v", loaded)
	}
	if !loaded.Valid() {
		t.Error("round-tripped session should be valid")
	}
}

func TestLoadSessionGarbage(t *testing.T) {
	path := writeTemp(t, ".session.json", "{nope")
	_, err := LoadSession(path)
	var malformed *model.MalformedInputError
	if !errors.As(err, &malformed) {
		t.Fatalf("want MalformedInputError, got %v", err)
	}
}

func TestSessionPath(t *testing.T) {
	if got := SessionPath("output"); got != filepath.Join("output", ".session.json") {
		t.Errorf("SessionPath = %q", got)
	}
}
