package archive

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func buildBundle(t *testing.T, names ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bundle.zip")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer file.Close()

	w := zip.NewWriter(file)
	for _, name := range names {
		if name[len(name)-1] == '/' {
			hdr := &zip.FileHeader{Name: name}
			hdr.SetMode(os.ModeDir | 0755)
			if _, err := w.CreateHeader(hdr); err != nil {
				t.Fatalf("create dir %s: %v", name, err)
			}
			continue
		}
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		f.Write([]byte("content of " + name))
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close bundle: %v", err)
	}
	return path
}

func visit(t *testing.T, path, prefix string) []string {
	t.Helper()

	var names []string
	err := Walk(path, prefix, func(f *zip.File) error {
		names = append(names, f.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk(%q, %q): %v", path, prefix, err)
	}
	return names
}

func TestWalkPrefixes(t *testing.T) {
	path := buildBundle(t, "docs/readme.txt", "docs/guide.txt", "src/main.txt", "top.yml")

	tests := []struct {
		prefix string
		want   int
	}{
		{"docs/", 2},
		{"src/", 1},
		{"", 4},
		{"nonexistent/", 0},
		{"Docs/", 0}, // prefix matching is case sensitive
	}
	for _, tt := range tests {
		if got := visit(t, path, tt.prefix); len(got) != tt.want {
			t.Errorf("Walk with prefix %q visited %v, want %d entries", tt.prefix, got, tt.want)
		}
	}
}

func TestWalkSkipsDirectoryEntries(t *testing.T) {
	path := buildBundle(t, "mydir/", "mydir/file.txt")

	got := visit(t, path, "mydir/")
	if len(got) != 1 || got[0] != "mydir/file.txt" {
		t.Errorf("visited %v, want only mydir/file.txt", got)
	}
}

func TestWalkStopsOnCallbackError(t *testing.T) {
	path := buildBundle(t, "files/a.txt", "files/b.txt", "files/c.txt")

	stop := errors.New("stop walking")
	count := 0
	err := Walk(path, "files/", func(f *zip.File) error {
		count++
		if count == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Errorf("Walk() error = %v, want %v", err, stop)
	}
	if count != 2 {
		t.Errorf("callback ran %d times, want 2", count)
	}
}

func TestWalkBadBundle(t *testing.T) {
	if err := Walk(filepath.Join(t.TempDir(), "missing.zip"), "", func(*zip.File) error { return nil }); err == nil {
		t.Error("expected error for missing bundle")
	}

	bad := filepath.Join(t.TempDir(), "bad.zip")
	if err := os.WriteFile(bad, []byte("not a zip"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := Walk(bad, "", func(*zip.File) error { return nil }); err == nil {
		t.Error("expected error for invalid bundle")
	}
}

func TestEscapesRoot(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"docs/readme.txt", false},
		{"plain.txt", false},
		{"/etc/passwd", true},
		{`\windows\system32`, true},
		{"a/../../outside", true},
		{"trick..name.txt", false},
	}
	for _, tt := range tests {
		if got := escapesRoot(tt.name); got != tt.want {
			t.Errorf("escapesRoot(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
