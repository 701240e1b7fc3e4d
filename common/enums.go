// The only reason this package exists is because both the command line
// front end and the serving mode need these enums and neither should have
// to drag the full program configuration in for them.
package common

import "fmt"

// Specification of a recognized document container format.
type DocumentFmt int

const (
	DocumentFmtUnknown DocumentFmt = iota
	DocumentFmtPdf
	DocumentFmtEpub
)

func (d DocumentFmt) String() string {
	switch d {
	case DocumentFmtPdf:
		return "pdf"
	case DocumentFmtEpub:
		return "epub"
	default:
		return "unknown"
	}
}

func (d DocumentFmt) Ext() string {
	switch d {
	case DocumentFmtPdf:
		return ".pdf"
	case DocumentFmtEpub:
		return ".epub"
	default:
		// this should never happen
		panic("unsupported format requested")
	}
}

func (d DocumentFmt) MIME() string {
	switch d {
	case DocumentFmtPdf:
		return "application/pdf"
	case DocumentFmtEpub:
		return "application/epub+zip"
	default:
		return "application/octet-stream"
	}
}

// ParseDocumentFmt maps a user supplied name to a format.
func ParseDocumentFmt(name string) (DocumentFmt, error) {
	switch name {
	case "pdf":
		return DocumentFmtPdf, nil
	case "epub":
		return DocumentFmtEpub, nil
	default:
		return DocumentFmtUnknown, fmt.Errorf("unsupported document format: %s", name)
	}
}
