package convert

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"

	"brc/common"
)

// detection needs enough of the head to cover the zip local header plus
// the epub mimetype entry
const detectHeadSize = 512

// DetectDocument recognizes supported document containers by content.
func DetectDocument(head []byte) common.DocumentFmt {
	switch {
	case filetype.IsType(head, matchers.TypePdf):
		return common.DocumentFmtPdf
	case isEpubHead(head):
		return common.DocumentFmtEpub
	default:
		return common.DocumentFmtUnknown
	}
}

var (
	zipLocalHeaderMagic = []byte("PK\x03\x04")
	epubEntryName       = []byte("mimetype")
	epubMediaType       = []byte("application/epub+zip")
)

// isEpubHead checks for the OCF container shape: a zip whose first entry
// is a stored "mimetype" file holding the epub media type. The entry name
// sits at offset 30 of the local file header, its content right after the
// variable-length extra field (lengths at offsets 26 and 28).
func isEpubHead(head []byte) bool {
	if len(head) < 30 || !bytes.HasPrefix(head, zipLocalHeaderMagic) {
		return false
	}
	nameLen := int(binary.LittleEndian.Uint16(head[26:28]))
	extraLen := int(binary.LittleEndian.Uint16(head[28:30]))
	if nameLen != len(epubEntryName) || len(head) < 30+nameLen {
		return false
	}
	if !bytes.Equal(head[30:30+nameLen], epubEntryName) {
		return false
	}
	off := 30 + nameLen + extraLen
	if len(head) < off+len(epubMediaType) {
		return false
	}
	return bytes.Equal(head[off:off+len(epubMediaType)], epubMediaType)
}

// isArchiveFile reports whether path is a plain zip container used to
// bundle documents. EPUBs are zip archives too, so the check requires the
// .zip extension before looking at content.
func isArchiveFile(path string) (bool, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return false, nil
	}

	head, err := readHead(path)
	if err != nil {
		return false, err
	}
	if !filetype.IsType(head, matchers.TypeZip) {
		return false, nil
	}
	// an epub renamed to .zip is still a document, not a bundle
	return DetectDocument(head) == common.DocumentFmtUnknown, nil
}

// isDocumentFile reports the recognized format of a file on disk.
func isDocumentFile(path string) (common.DocumentFmt, error) {
	head, err := readHead(path)
	if err != nil {
		return common.DocumentFmtUnknown, err
	}
	return DetectDocument(head), nil
}

// isDocumentInArchive reports the recognized format of a zip entry.
func isDocumentInArchive(f *zip.File) (common.DocumentFmt, error) {
	r, err := f.Open()
	if err != nil {
		return common.DocumentFmtUnknown, fmt.Errorf("unable to open archive entry (%s): %w", f.FileHeader.Name, err)
	}
	defer r.Close()

	head := make([]byte, detectHeadSize)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return common.DocumentFmtUnknown, fmt.Errorf("unable to read archive entry (%s): %w", f.FileHeader.Name, err)
	}
	return DetectDocument(head[:n]), nil
}

func readHead(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	head := make([]byte, detectHeadSize)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return head[:n], nil
}
