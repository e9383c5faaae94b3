package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unit.service")
	if err := os.WriteFile(path, []byte("old content that is longer"), 0o600); err != nil {
		t.Fatalf("WriteFile(%q) = %v", path, err)
	}

	if err := WriteFileAtomic(dir, "unit.service", []byte("new"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic() = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%q) = %v", path, err)
	}
	if string(data) != "new" {
		t.Errorf("content = %q, want %q", data, "new")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat(%q) = %v", path, err)
	}
	if perm := info.Mode().Perm(); perm != 0o644 {
		t.Errorf("perm = %04o, want 0644", perm)
	}
	if _, err := os.Stat(filepath.Join(dir, ".tmp-unit.service")); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestWriteFileAtomic_MissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	if err := WriteFileAtomic(dir, "f", []byte("x"), 0o644); err == nil {
		t.Fatal("WriteFileAtomic() = nil, want error for missing directory")
	}
}

func TestCopyFileAtomic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "worker.bin")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("WriteFile(%q) = %v", src, err)
	}
	if err := os.WriteFile(dst, []byte("stale payload from a previous install"), 0o644); err != nil {
		t.Fatalf("WriteFile(%q) = %v", dst, err)
	}

	if err := CopyFileAtomic(src, dst, 0o755); err != nil {
		t.Fatalf("CopyFileAtomic() = %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile(%q) = %v", dst, err)
	}
	if string(data) != "payload" {
		t.Errorf("content = %q, want %q", data, "payload")
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("Stat(%q) = %v", dst, err)
	}
	if perm := info.Mode().Perm(); perm != 0o755 {
		t.Errorf("perm = %04o, want 0755", perm)
	}
}

func TestCopyFileAtomic_MissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "worker.bin")
	if err := CopyFileAtomic(filepath.Join(dir, "nope"), dst, 0o755); err == nil {
		t.Fatal("CopyFileAtomic() = nil, want error for missing source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Errorf("destination created despite missing source: %v", err)
	}
}
