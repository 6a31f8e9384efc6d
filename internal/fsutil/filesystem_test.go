package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_RoundTrip(t *testing.T) {
	osfs := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "maps", "mu9")

	if err := osfs.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	path := filepath.Join(dir, "mean.json")
	w, err := osfs.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := io.WriteString(w, `{"mu": 9}`); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := osfs.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil || string(data) != `{"mu": 9}` {
		t.Errorf("read %q, %v", data, err)
	}

	if err := osfs.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if data, _ := osfs.ReadFile(path); string(data) != "{}" {
		t.Errorf("ReadFile = %q, want {}", data)
	}
	if err := osfs.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := osfs.ReadFile(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist after Remove, got %v", err)
	}
}

func TestMemoryFileSystem_CreatePublishesOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("profile.png")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if data, err := mfs.ReadFile("profile.png"); err != nil || len(data) != 0 {
		t.Errorf("file before Close = %q, %v; want empty", data, err)
	}
	io.WriteString(w, "png")
	io.WriteString(w, " bytes")
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if data, _ := mfs.ReadFile("./profile.png"); string(data) != "png bytes" {
		t.Errorf("ReadFile = %q, want %q", data, "png bytes")
	}

	if _, err := w.Write([]byte("late")); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Write after Close = %v, want ErrClosed", err)
	}
	if err := w.Close(); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("second Close = %v, want ErrClosed", err)
	}
}

func TestMemoryFileSystem_RequiresParentDir(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.Create("out/map.png"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Create without parent = %v, want ErrNotExist", err)
	}
	if err := mfs.WriteFile("/tmp/run/in.json", nil, 0o644); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("WriteFile without parent = %v, want ErrNotExist", err)
	}

	if err := mfs.MkdirAll("/tmp/run", 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := mfs.WriteFile("/tmp/run/in.json", []byte("{}"), 0o644); err != nil {
		t.Errorf("WriteFile after MkdirAll failed: %v", err)
	}
	if err := mfs.WriteFile("/tmp/other.json", []byte("{}"), 0o644); err != nil {
		t.Errorf("MkdirAll should create parents: %v", err)
	}
}

func TestMemoryFileSystem_MkdirAllOverFile(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.WriteFile("maps", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := mfs.MkdirAll("maps/mu9", 0o755); !errors.Is(err, fs.ErrExist) {
		t.Errorf("MkdirAll over a file = %v, want ErrExist", err)
	}
}

func TestMemoryFileSystem_OpenAndIsolation(t *testing.T) {
	mfs := NewMemoryFileSystem()
	src := []byte("clouds")
	mfs.WriteFile("c.json", src, 0o644)
	src[0] = 'X'

	r, err := mfs.Open("c.json")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, _ := io.ReadAll(r)
	if string(data) != "clouds" {
		t.Errorf("stored data changed with caller's slice: %q", data)
	}

	got, _ := mfs.ReadFile("c.json")
	got[0] = 'Y'
	if again, _ := mfs.ReadFile("c.json"); string(again) != "clouds" {
		t.Errorf("ReadFile result aliases storage: %q", again)
	}

	if _, err := mfs.Open("missing.json"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open(missing) = %v, want ErrNotExist", err)
	}
}

func TestMemoryFileSystem_RemoveAndFiles(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.MkdirAll("run", 0o755)
	mfs.WriteFile("run/b.out.json", nil, 0o644)
	mfs.WriteFile("run/a.in.json", nil, 0o644)

	want := []string{"run/a.in.json", "run/b.out.json"}
	got := mfs.Files()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Files() = %v, want %v", got, want)
	}

	if err := mfs.Remove("run/a.in.json"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := mfs.Remove("run/a.in.json"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("second Remove = %v, want ErrNotExist", err)
	}
	if got := mfs.Files(); len(got) != 1 {
		t.Errorf("Files() after Remove = %v", got)
	}
}
