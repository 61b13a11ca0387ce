package storage

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	data := []byte{0xE9, 0x01, 0x02}
	if err := store.Put("abc_1.0.0.bin", data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get("abc_1.0.0.bin")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("read bytes differ from written")
	}

	if _, err := store.Get("missing.bin"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFileStorePathStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	got := store.Path("../../etc/passwd")
	if got != filepath.Join(dir, "passwd") {
		t.Errorf("Path = %q, escaped the store directory", got)
	}
}
