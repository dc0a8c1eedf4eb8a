package util

import (
	"os"
	"path/filepath"
	"strings"
)

func ExpandUser(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		path = strings.Replace(path, "~", os.Getenv("HOME"), 1)
	}
	return path
}

// WriteFileAtomic writes data to a temporary file in the same directory and
// renames it over path, so readers never observe a half-written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
