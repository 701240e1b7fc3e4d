// Package content defines the extracted document model shared between
// input providers (pdf, epub) and output generators (convert/...).
// Everything here is transient: created for one document, consumed by one
// generator, never persisted.
package content

// Color is an RGB text color in the 0-255 range per channel.
type Color struct {
	R, G, B int
}

// Black is what extractors report when the source library does not expose
// fill colors.
var Black = Color{}

// Rect is an axis-aligned bounding box in page coordinate units, with the
// origin at the top-left corner of the page.
type Rect struct {
	X, Y, W, H float64
}

// Span is a maximal run of text sharing one font, size and color.
// OriginX/OriginY anchor the text baseline, not a bounding box corner.
type Span struct {
	Text     string
	FontName string
	FontSize float64
	Color    Color
	OriginX  float64
	OriginY  float64
}

// Line is an ordered left-to-right sequence of spans sharing a baseline.
type Line struct {
	Spans []Span
}

// ImageBlock is a placed raster image. Resources holds the candidate
// payloads associated with the block; generators embed the first one they
// can handle and skip the block when none works.
type ImageBlock struct {
	Rect      Rect
	Resources [][]byte
}

// Page is one extracted page: dimensions, text lines in reading order and
// image blocks.
type Page struct {
	Number int
	Width  float64
	Height float64
	Lines  []Line
	Images []ImageBlock
}

// Document is the ordered set of pages produced by an extractor.
type Document struct {
	Pages []Page
}
