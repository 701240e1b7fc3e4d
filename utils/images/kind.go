// Package images provides image classification and embedding helpers
// shared by the conversion paths.
package images

import (
	"bytes"
	"path"
	"strings"

	"github.com/h2non/filetype"
)

// Kind is a canonical image type. Detection sniffs magic bytes first and
// falls back to the resource name's extension only when the content is
// inconclusive (SVG has no magic bytes).
type Kind int

const (
	KindUnknown Kind = iota
	KindJPEG
	KindPNG
	KindGIF
	KindWebP
	KindSVG
)

func (k Kind) String() string {
	switch k {
	case KindJPEG:
		return "jpeg"
	case KindPNG:
		return "png"
	case KindGIF:
		return "gif"
	case KindWebP:
		return "webp"
	case KindSVG:
		return "svg"
	default:
		return "unknown"
	}
}

// MIME returns the media type used in data URLs and content negotiation.
func (k Kind) MIME() string {
	switch k {
	case KindJPEG:
		return "image/jpeg"
	case KindPNG:
		return "image/png"
	case KindGIF:
		return "image/gif"
	case KindWebP:
		return "image/webp"
	case KindSVG:
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

var sniffedKinds = map[string]Kind{
	"jpg":  KindJPEG,
	"png":  KindPNG,
	"gif":  KindGIF,
	"webp": KindWebP,
}

var extKinds = map[string]Kind{
	".jpg":  KindJPEG,
	".jpeg": KindJPEG,
	".png":  KindPNG,
	".gif":  KindGIF,
	".webp": KindWebP,
	".svg":  KindSVG,
}

// Detect classifies an image resource, preferring content over name.
func Detect(data []byte, name string) Kind {
	if t, err := filetype.Match(data); err == nil {
		if k, ok := sniffedKinds[t.Extension]; ok {
			return k
		}
	}
	if k, ok := extKinds[strings.ToLower(path.Ext(name))]; ok {
		return k
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if bytes.Contains(head, []byte("<svg")) {
		return KindSVG
	}
	return KindUnknown
}
