package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"brc/common"
	"brc/config"
	"brc/state"
)

const fixtureChapter = `<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter</title></head>
<body><h1>Opening</h1><p>Running words here</p></body>
</html>`

const fixtureOPF = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Run Fixture</dc:title>
    <dc:creator>Fixture Author</dc:creator>
    <dc:identifier id="uid">urn:uuid:00000000-0000-0000-0000-000000000001</dc:identifier>
  </metadata>
  <manifest>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
  </spine>
</package>`

const fixtureContainer = `<?xml version="1.0" encoding="utf-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

func buildFixtureEPUB(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	mt, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("create mimetype: %v", err)
	}
	mt.Write([]byte("application/epub+zip"))

	entries := map[string]string{
		"META-INF/container.xml": fixtureContainer,
		"OEBPS/content.opf":      fixtureOPF,
		"OEBPS/ch1.xhtml":        fixtureChapter,
	}
	for name, content := range entries {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		f.Write([]byte(content))
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return buf.Bytes()
}

func newConvertContext(t *testing.T) (context.Context, *state.LocalEnv) {
	t.Helper()

	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)

	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("loading default configuration: %v", err)
	}
	env.Cfg = cfg
	env.Log = zaptest.NewLogger(t)
	return ctx, env
}

func readZipEntry(t *testing.T, path, name string) string {
	t.Helper()

	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open output %s: %v", path, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read entry %s: %v", name, err)
		}
		return string(data)
	}
	t.Fatalf("entry %s not found in %s", name, path)
	return ""
}

func TestProcessDocumentEpub(t *testing.T) {
	ctx, env := newConvertContext(t)
	data := buildFixtureEPUB(t)

	dst := t.TempDir()
	if err := processDocument(ctx, bytes.NewReader(data), common.DocumentFmtEpub, "sample.epub", dst, env.Log); err != nil {
		t.Fatalf("processDocument() error = %v", err)
	}

	// default template expands document title
	out := filepath.Join(dst, "run-fixture-bionic.epub")
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected output at %s: %v", out, err)
	}

	chapter := readZipEntry(t, out, "OEBPS/ch1.xhtml")
	if !strings.Contains(chapter, "<b>Run</b>ning") {
		t.Errorf("chapter missing emphasis markup: %s", chapter)
	}
}

func TestProcessDocumentOverwrite(t *testing.T) {
	ctx, env := newConvertContext(t)
	data := buildFixtureEPUB(t)
	dst := t.TempDir()

	if err := processDocument(ctx, bytes.NewReader(data), common.DocumentFmtEpub, "sample.epub", dst, env.Log); err != nil {
		t.Fatalf("first conversion: %v", err)
	}
	if err := processDocument(ctx, bytes.NewReader(data), common.DocumentFmtEpub, "sample.epub", dst, env.Log); err == nil {
		t.Fatal("expected error on existing output")
	}

	env.Overwrite = true
	if err := processDocument(ctx, bytes.NewReader(data), common.DocumentFmtEpub, "sample.epub", dst, env.Log); err != nil {
		t.Fatalf("conversion with overwrite: %v", err)
	}
}

func TestProcessDirectory(t *testing.T) {
	ctx, env := newConvertContext(t)
	data := buildFixtureEPUB(t)

	srcDir := t.TempDir()
	sub := filepath.Join(srcDir, "shelf")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "sample.epub"), data, 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	// unrelated files should be silently skipped
	if err := os.WriteFile(filepath.Join(sub, "notes.txt"), []byte("skip me"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	dst := t.TempDir()
	if err := process(ctx, srcDir, dst, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	out := filepath.Join(dst, "shelf", "run-fixture-bionic.epub")
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected output at %s: %v", out, err)
	}
}

func TestProcessArchive(t *testing.T) {
	ctx, env := newConvertContext(t)
	data := buildFixtureEPUB(t)

	srcDir := t.TempDir()
	bundle := filepath.Join(srcDir, "bundle.zip")
	file, err := os.Create(bundle)
	if err != nil {
		t.Fatalf("create bundle: %v", err)
	}
	w := zip.NewWriter(file)
	f, _ := w.Create("sample.epub")
	f.Write(data)
	f, _ = w.Create("readme.txt")
	f.Write([]byte("not a document"))
	w.Close()
	file.Close()

	dst := t.TempDir()
	if err := process(ctx, bundle, dst, env.Log); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	out := filepath.Join(dst, "run-fixture-bionic.epub")
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected output at %s: %v", out, err)
	}
}

func TestProcessMissingSource(t *testing.T) {
	ctx, env := newConvertContext(t)
	if err := process(ctx, filepath.Join(t.TempDir(), "no-such-thing"), t.TempDir(), env.Log); err == nil {
		t.Fatal("expected error for missing source")
	}
}
