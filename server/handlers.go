package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"brc/common"
	"brc/convert"
	"brc/convert/epub"
	"brc/convert/pdf"
	"brc/misc"
	"brc/store"
	"brc/utils/images"
)

type bookInfo struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Title    string         `json:"title"`
	Author   string         `json:"author,omitempty"`
	Digest   string         `json:"digest"`
	Chapters []epub.Chapter `json:"chapters"`
}

type chapterContent struct {
	Index   int     `json:"index"`
	Title   string  `json:"title"`
	Ratio   float64 `json:"ratio"`
	Content string  `json:"content"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *service) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		s.log.Error("Unable to marshal response", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func (s *service) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": misc.GetVersion(),
	})
}

// parseRatio reads the emphasis ratio from a request value, falling back
// to the configured default when absent.
func (s *service) parseRatio(value string) (float64, error) {
	if value == "" {
		return s.cfg.Document.EmphasisRatio, nil
	}
	ratio, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed ratio value: %s", value)
	}
	if ratio < 0 || ratio > 0.7 {
		return 0, fmt.Errorf("emphasis ratio out of range [0, 0.7]: %f", ratio)
	}
	return ratio, nil
}

// readUpload pulls the "file" part from a multipart request enforcing the
// configured size limit.
func (s *service) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, *multipart.FileHeader, error) {
	limit := int64(s.cfg.Server.MaxUploadMBytes) << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, fmt.Errorf("upload exceeds %d MiB limit", s.cfg.Server.MaxUploadMBytes)
		}
		return nil, nil, fmt.Errorf("malformed multipart request: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errors.New("request has no file field")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to read upload: %w", err)
	}
	return data, header, nil
}

func (s *service) handleConvert(w http.ResponseWriter, r *http.Request) {
	data, header, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	ratio, err := s.parseRatio(r.FormValue("ratio"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	format := convert.DetectDocument(data)
	if format == common.DocumentFmtUnknown {
		s.writeError(w, http.StatusBadRequest, errors.New("unsupported document format, expecting PDF or EPUB"))
		return
	}

	var out bytes.Buffer
	switch format {
	case common.DocumentFmtPdf:
		err = pdf.Generate(r.Context(), data, ratio, &out, s.log)
	case common.DocumentFmtEpub:
		err = epub.Generate(r.Context(), data, ratio, &out, s.log)
	}
	if err != nil {
		s.log.Error("Conversion failed", zap.String("name", header.Filename), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, errors.New("conversion failed"))
		return
	}

	s.sendAttachment(w, out.Bytes(), header.Filename, format)
}

func (s *service) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, header, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if convert.DetectDocument(data) != common.DocumentFmtEpub {
		s.writeError(w, http.StatusBadRequest, errors.New("unsupported document format, expecting EPUB"))
		return
	}

	book, err := epub.Open(data, s.log)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unable to read epub: %w", err))
		return
	}

	ses, err := s.store.Put(r.Context(), header.Filename, data)
	if err != nil {
		s.log.Error("Unable to store upload", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, errors.New("unable to store upload"))
		return
	}

	s.writeJSON(w, http.StatusCreated, s.bookInfo(ses, book))
}

func (s *service) handleInfo(w http.ResponseWriter, r *http.Request) {
	ses, book, ok := s.openSession(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.bookInfo(ses, book))
}

func (s *service) handleChapter(w http.ResponseWriter, r *http.Request) {
	_, book, ok := s.openSession(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 || index >= book.ChapterCount() {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no chapter %s", chi.URLParam(r, "index")))
		return
	}

	ratio, err := s.parseRatio(r.URL.Query().Get("ratio"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	content, err := book.ChapterHTML(index, ratio, images.EmbedOptions{
		MaxWidth:     s.cfg.Document.Images.MaxWidth,
		RasterizeSVG: s.cfg.Document.Images.RasterizeSVG,
		JPEGQuality:  s.cfg.Document.Images.JPEGQuality,
	})
	if err != nil {
		s.log.Error("Unable to render chapter", zap.Int("index", index), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, errors.New("unable to render chapter"))
		return
	}

	s.writeJSON(w, http.StatusOK, chapterContent{
		Index:   index,
		Title:   book.Chapters()[index].Title,
		Ratio:   ratio,
		Content: content,
	})
}

func (s *service) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ses, data, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.sessionError(w, id, err)
		return
	}

	ratio, err := s.parseRatio(r.URL.Query().Get("ratio"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	var out bytes.Buffer
	if err := epub.Generate(r.Context(), data, ratio, &out, s.log); err != nil {
		s.log.Error("Conversion failed", zap.String("id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, errors.New("conversion failed"))
		return
	}

	s.sendAttachment(w, out.Bytes(), ses.Name, common.DocumentFmtEpub)
}

func (s *service) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.log.Error("Unable to delete session", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, errors.New("unable to delete session"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// openSession loads a stored book for session scoped endpoints, writing
// the error response itself when it cannot.
func (s *service) openSession(w http.ResponseWriter, r *http.Request) (store.Session, *epub.Book, bool) {
	id := chi.URLParam(r, "id")

	ses, data, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.sessionError(w, id, err)
		return store.Session{}, nil, false
	}

	book, err := epub.Open(data, s.log)
	if err != nil {
		s.log.Error("Unable to reopen stored epub", zap.String("id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, errors.New("unable to read stored epub"))
		return store.Session{}, nil, false
	}
	return ses, book, true
}

func (s *service) sessionError(w http.ResponseWriter, id string, err error) {
	var notFound *store.ErrNotFound
	if errors.As(err, &notFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.log.Error("Session lookup failed", zap.String("id", id), zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, errors.New("session lookup failed"))
}

func (s *service) bookInfo(ses store.Session, book *epub.Book) bookInfo {
	return bookInfo{
		ID:       ses.ID,
		Name:     ses.Name,
		Title:    book.Title,
		Author:   book.Author,
		Digest:   ses.Digest,
		Chapters: book.Chapters(),
	}
}

func (s *service) sendAttachment(w http.ResponseWriter, data []byte, srcName string, format common.DocumentFmt) {
	base := strings.TrimSuffix(filepath.Base(srcName), filepath.Ext(srcName))
	if base == "" {
		base = "document"
	}
	name := base + " [bionic]" + format.Ext()

	w.Header().Set("Content-Type", format.MIME())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
