package server

import (
	"archive/zip"
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap/zaptest"

	"brc/config"
	"brc/store"
)

const testContainerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testOPF = `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Served Book</dc:title>
    <dc:creator>Serving Author</dc:creator>
  </metadata>
  <manifest>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
  </spine>
</package>`

const testChapter = `<?xml version="1.0"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>One</title></head>
<body><h1>Opening</h1><p>Serving chapters works</p></body></html>`

func buildTestEPUB(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	mt, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("create mimetype: %v", err)
	}
	if _, err := mt.Write([]byte("application/epub+zip")); err != nil {
		t.Fatalf("write mimetype: %v", err)
	}

	entries := map[string]string{
		"META-INF/container.xml": testContainerXML,
		"OEBPS/content.opf":      testOPF,
		"OEBPS/ch1.xhtml":        testChapter,
	}
	for name, content := range entries {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return buf.Bytes()
}

func testService(t *testing.T) *service {
	t.Helper()

	log := zaptest.NewLogger(t)
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "sessions.db"), time.Hour, log)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		Version: 1,
		Document: config.DocumentConfig{
			EmphasisRatio: 0.5,
			Images:        config.ImagesConfig{JPEGQuality: 85},
		},
		Server: config.ServerConfig{
			MaxUploadMBytes: 1,
			CORSOrigins:     []string{"*"},
		},
	}
	return &service{cfg: cfg, log: log, store: st}
}

func multipartUpload(t *testing.T, field, name string, content []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for k, v := range extra {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	router := testService(t).routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]string
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %q, want ok", resp["status"])
	}
}

func TestUploadFlow(t *testing.T) {
	router := testService(t).routes()
	epubData := buildTestEPUB(t)

	// upload
	body, contentType := multipartUpload(t, "file", "book.epub", epubData, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/epub/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body)
	}
	var info bookInfo
	if err := sonic.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if info.ID == "" || info.Title != "Served Book" || len(info.Chapters) != 1 {
		t.Fatalf("unexpected book info: %+v", info)
	}

	// metadata
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/epub/"+info.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("info status = %d", rec.Code)
	}

	// chapter with emphasis
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/epub/"+info.ID+"/chapter/0?ratio=0.5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("chapter status = %d, body %s", rec.Code, rec.Body)
	}
	var chapter chapterContent
	if err := sonic.Unmarshal(rec.Body.Bytes(), &chapter); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !strings.Contains(chapter.Content, "<b>Ser</b>ving") {
		t.Errorf("chapter content lacks emphasis: %q", chapter.Content)
	}
	if chapter.Title != "Opening" {
		t.Errorf("chapter title = %q, want Opening", chapter.Title)
	}

	// full download
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/epub/"+info.ID+"/download", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/epub+zip" {
		t.Errorf("download content type = %q", ct)
	}
	if _, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len())); err != nil {
		t.Errorf("download is not a zip archive: %v", err)
	}

	// delete
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/epub/"+info.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/epub/"+info.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", rec.Code)
	}
}

func TestUploadRejectsNonEpub(t *testing.T) {
	router := testService(t).routes()

	body, contentType := multipartUpload(t, "file", "notes.txt", []byte("plain text"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/epub/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestConvertEpub(t *testing.T) {
	router := testService(t).routes()

	body, contentType := multipartUpload(t, "file", "book.epub", buildTestEPUB(t), map[string]string{"ratio": "0.3"})
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "book [bionic].epub") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestConvertRejectsBadRatio(t *testing.T) {
	router := testService(t).routes()

	body, contentType := multipartUpload(t, "file", "book.epub", buildTestEPUB(t), map[string]string{"ratio": "0.9"})
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChapterOutOfRange(t *testing.T) {
	router := testService(t).routes()

	body, contentType := multipartUpload(t, "file", "book.epub", buildTestEPUB(t), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/epub/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d", rec.Code)
	}
	var info bookInfo
	if err := sonic.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/epub/"+info.ID+"/chapter/7", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUnknownSession(t *testing.T) {
	router := testService(t).routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/epub/no-such-id", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
