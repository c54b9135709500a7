package keyring

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/tunnelguard/tunnelguard/common"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	if err := store.Set("profile-1", "hunter2"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := store.Get("profile-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "hunter2" {
		t.Errorf("Get = %q, want %q", got, "hunter2")
	}
	if !store.Exists("profile-1") {
		t.Error("Exists = false for stored credential")
	}
}

func TestLocalStoreMissing(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	if _, err := store.Get("absent"); !errors.Is(err, common.ErrCredentialsNotFound) {
		t.Errorf("Get = %v, want ErrCredentialsNotFound", err)
	}
	if store.Exists("absent") {
		t.Error("Exists = true for missing credential")
	}
}

func TestLocalStoreDelete(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	if err := store.Set("profile-1", "hunter2"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Delete("profile-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if store.Exists("profile-1") {
		t.Error("credential survived Delete")
	}
	if err := store.Delete("profile-1"); err != nil {
		t.Errorf("Delete of absent credential: %v", err)
	}
}

func TestLocalStorePersistsEncrypted(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	if err := store.Set("profile-1", "topsecret"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	raw, err := os.ReadFile(store.file)
	if err != nil {
		t.Fatalf("reading store file: %v", err)
	}
	if string(raw) == "" {
		t.Fatal("store file empty")
	}
	if strings.Contains(string(raw), "topsecret") {
		t.Error("password stored in cleartext")
	}

	// A new store over the same directory sees the credential.
	reopened := NewLocalStore(dir)
	got, err := reopened.Get("profile-1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got != "topsecret" {
		t.Errorf("Get after reopen = %q, want %q", got, "topsecret")
	}
}

func TestSetRejectsEmptyArguments(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	if err := store.Set("", "pw"); err == nil {
		t.Error("Set accepted empty profile ID")
	}
	if err := store.Set("profile-1", ""); err == nil {
		t.Error("Set accepted empty password")
	}
}
