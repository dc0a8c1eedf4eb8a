package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandUser(t *testing.T) {
	path := ExpandUser("~/abc")
	expected := os.ExpandEnv("$HOME/abc")
	if path != expected {
		t.Error("Expected ", expected, ", got ", path)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	if err := WriteFileAtomic(path, []byte("a: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("a: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "a: 2\n" {
		t.Error("Expected overwrite, got ", string(data))
	}
}
