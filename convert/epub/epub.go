// Package epub reads EPUB containers and produces their bionic reading
// variant: chapter markup with inline emphasis and embedded images,
// either served one chapter at a time or written back as a complete
// rewritten container.
package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/maruel/natural"
	"go.uber.org/zap"
)

const containerPath = "META-INF/container.xml"

// item is a single OPF manifest entry, href resolved against the OPF
// directory so it addresses the archive directly.
type item struct {
	id        string
	href      string
	mediaType string
}

// Chapter describes one spine document for listings.
type Chapter struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Name  string `json:"name"`
}

// Book is a parsed EPUB container. It keeps the raw archive around so
// chapters and images are decompressed on demand.
type Book struct {
	Title  string
	Author string

	log    *zap.Logger
	files  map[string]*zip.File
	docs   []item // spine order
	images []item
}

// Open parses the container and its package document. The archive stays
// referenced by the returned Book, so data must not be reused by the
// caller.
func Open(data []byte, log *zap.Logger) (*Book, error) {

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("unable to read epub archive: %w", err)
	}

	b := &Book{
		log:   log,
		files: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		b.files[path.Clean(f.Name)] = f
	}

	opfPath, err := b.rootFilePath()
	if err != nil {
		return nil, err
	}
	if err := b.parsePackage(opfPath); err != nil {
		return nil, err
	}
	return b, nil
}

// readFile decompresses a single archive entry.
func (b *Book) readFile(name string) ([]byte, error) {
	f, ok := b.files[path.Clean(name)]
	if !ok {
		return nil, fmt.Errorf("no such file in epub archive: %s", name)
	}
	r, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("unable to open archive entry (%s): %w", name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read archive entry (%s): %w", name, err)
	}
	return data, nil
}

// rootFilePath locates the package document through META-INF/container.xml.
func (b *Book) rootFilePath() (string, error) {

	data, err := b.readFile(containerPath)
	if err != nil {
		return "", fmt.Errorf("epub has no container descriptor: %w", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return "", fmt.Errorf("unable to parse container descriptor: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "container" {
		return "", fmt.Errorf("malformed container descriptor")
	}

	for _, child := range root.ChildElements() {
		if child.Tag != "rootfiles" {
			continue
		}
		for _, rf := range child.ChildElements() {
			if rf.Tag != "rootfile" {
				continue
			}
			if p := rf.SelectAttrValue("full-path", ""); p != "" {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("container descriptor names no rootfile")
}

// parsePackage reads the OPF: metadata for title/author, manifest for
// resources, spine for document order.
func (b *Book) parsePackage(opfPath string) error {

	data, err := b.readFile(opfPath)
	if err != nil {
		return fmt.Errorf("unable to read package document: %w", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("unable to parse package document: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "package" {
		return fmt.Errorf("malformed package document")
	}

	opfDir := path.Dir(opfPath)
	manifest := make(map[string]item)
	var spine []string

	for _, child := range root.ChildElements() {
		switch child.Tag {
		case "metadata":
			for _, meta := range child.ChildElements() {
				switch meta.Tag {
				case "title":
					if b.Title == "" {
						b.Title = strings.TrimSpace(meta.Text())
					}
				case "creator":
					if b.Author == "" {
						b.Author = strings.TrimSpace(meta.Text())
					}
				}
			}
		case "manifest":
			for _, el := range child.ChildElements() {
				if el.Tag != "item" {
					continue
				}
				it := item{
					id:        el.SelectAttrValue("id", ""),
					href:      resolveHref(opfDir, el.SelectAttrValue("href", "")),
					mediaType: el.SelectAttrValue("media-type", ""),
				}
				if it.href == "" {
					continue
				}
				if it.id != "" {
					manifest[it.id] = it
				}
				if strings.HasPrefix(it.mediaType, "image/") {
					b.images = append(b.images, it)
				}
			}
		case "spine":
			for _, el := range child.ChildElements() {
				if el.Tag != "itemref" {
					continue
				}
				if idref := el.SelectAttrValue("idref", ""); idref != "" {
					spine = append(spine, idref)
				}
			}
		default:
			b.log.Debug("Skipping package element", zap.String("tag", child.Tag))
		}
	}

	for _, idref := range spine {
		it, ok := manifest[idref]
		if !ok {
			b.log.Warn("Spine references missing manifest item", zap.String("idref", idref))
			continue
		}
		if !isDocumentType(it.mediaType) {
			continue
		}
		b.docs = append(b.docs, it)
	}

	if len(b.docs) == 0 {
		// No usable spine. Fall back to every markup item in the
		// manifest, ordered the way a human would read the names.
		for _, it := range manifest {
			if isDocumentType(it.mediaType) {
				b.docs = append(b.docs, it)
			}
		}
		sort.Slice(b.docs, func(i, j int) bool {
			return natural.Less(b.docs[i].href, b.docs[j].href)
		})
	}
	if len(b.docs) == 0 {
		return fmt.Errorf("epub has no readable documents")
	}
	return nil
}

func isDocumentType(mediaType string) bool {
	return mediaType == "application/xhtml+xml" || mediaType == "text/html"
}

// resolveHref joins a manifest href onto the package directory.
func resolveHref(opfDir, href string) string {
	if href == "" {
		return ""
	}
	if opfDir == "." {
		return path.Clean(href)
	}
	return path.Clean(path.Join(opfDir, href))
}

// ChapterCount reports the number of spine documents.
func (b *Book) ChapterCount() int {
	return len(b.docs)
}

// RawChapter returns the untransformed markup of a single spine document
// together with its archive name.
func (b *Book) RawChapter(index int) ([]byte, string, error) {
	if index < 0 || index >= len(b.docs) {
		return nil, "", fmt.Errorf("chapter index %d out of range [0, %d)", index, len(b.docs))
	}
	data, err := b.readFile(b.docs[index].href)
	if err != nil {
		return nil, "", err
	}
	return data, b.docs[index].href, nil
}

// Chapters lists every spine document with a human readable title taken
// from its first heading.
func (b *Book) Chapters() []Chapter {

	chapters := make([]Chapter, 0, len(b.docs))
	for i, d := range b.docs {
		title := ""
		if data, err := b.readFile(d.href); err == nil {
			title = documentTitle(data)
		} else {
			b.log.Warn("Unable to read chapter for listing", zap.String("name", d.href), zap.Error(err))
		}
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		chapters = append(chapters, Chapter{Index: i, Title: title, Name: d.href})
	}
	return chapters
}

// ImageData resolves a markup reference (img src attribute value) to the
// bytes of a manifest image and its name. References in chapter markup
// are relative to the chapter, absolute, or dressed with "../" hops, so
// resolution falls back from an exact manifest match to a base name match.
func (b *Book) ImageData(src string) ([]byte, string, error) {

	ref := strings.TrimPrefix(path.Clean(strings.TrimPrefix(src, "/")), "../")
	for strings.HasPrefix(ref, "../") {
		ref = strings.TrimPrefix(ref, "../")
	}
	if ref == "" || ref == "." {
		return nil, "", fmt.Errorf("empty image reference")
	}

	var found *item
	for i := range b.images {
		if b.images[i].href == ref || strings.HasSuffix(b.images[i].href, "/"+ref) {
			found = &b.images[i]
			break
		}
	}
	if found == nil {
		base := path.Base(ref)
		for i := range b.images {
			if path.Base(b.images[i].href) == base {
				found = &b.images[i]
				break
			}
		}
	}
	if found == nil {
		return nil, "", fmt.Errorf("image not present in manifest: %s", src)
	}

	data, err := b.readFile(found.href)
	if err != nil {
		return nil, "", err
	}
	return data, found.href, nil
}
