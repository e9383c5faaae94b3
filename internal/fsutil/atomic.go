// Package fsutil provides crash-safe file replacement.
package fsutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to dir/name using a temp file and rename, so
// readers see either the previous content or the new content, never a mix.
// An existing file is replaced.
func WriteFileAtomic(dir, name string, data []byte, perm os.FileMode) error {
	return replace(dir, name, perm, bytes.NewReader(data))
}

// CopyFileAtomic copies src to dst the same way WriteFileAtomic writes, with
// perm applied to the new file.
func CopyFileAtomic(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return replace(filepath.Dir(dst), filepath.Base(dst), perm, in)
}

func replace(dir, name string, perm os.FileMode, r io.Reader) error {
	targetPath := filepath.Join(dir, name)
	tmpPath := filepath.Join(dir, ".tmp-"+name)

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	// OpenFile's perm is subject to umask and ignored for an existing temp file.
	if err := f.Chmod(perm); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, targetPath)
}
