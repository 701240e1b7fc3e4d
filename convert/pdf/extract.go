// Package pdf converts PDF documents into their bionic reading variant:
// positioned text and embedded images are extracted into the content
// model, then replayed onto regenerated pages with per-word emphasis.
// Text extraction uses ledongthuc/pdf glyph runs regrouped into lines and
// spans; images and document validation go through pdfcpu. No PDF object
// model is manipulated here.
package pdf

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"math"
	"sort"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"brc/content"

	// decoders for intrinsic image size probing
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// glyph grouping thresholds, in fractions of the glyph font size. A gap
// wider than charGap but narrower than wordGap separates words inside one
// span; anything wider starts a new span at its own origin.
const (
	charGapFraction = 1.0 / 6.0
	wordGapFraction = 2.0 / 3.0
	lineNudge       = 1.0
)

// Extract parses the document and returns pages with text lines grouped
// into same-font spans plus per-page raster resources. Pages that fail to
// parse are skipped with a warning, never failing the whole document.
func Extract(data []byte, log *zap.Logger) (*content.Document, error) {
	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF: %w", err)
	}

	images, err := extractImages(data, log)
	if err != nil {
		// text-only fallback
		log.Warn("Unable to extract embedded images", zap.Error(err))
		images = nil
	}

	doc := &content.Document{Pages: make([]content.Page, 0, r.NumPage())}
	for n := 1; n <= r.NumPage(); n++ {
		p := r.Page(n)
		if p.V.IsNull() {
			log.Warn("Skipping unreadable page", zap.Int("page", n))
			continue
		}
		width, height := pageSize(p)
		page := content.Page{
			Number: n,
			Width:  width,
			Height: height,
			Lines:  groupLines(p.Content().Text, height),
			Images: images[n],
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

// PageCount validates the document with pdfcpu and returns the number of
// pages. Used by callers that need cheap upload validation.
func PageCount(data []byte) (int, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("not a valid PDF: %w", err)
	}
	return ctx.PageCount, nil
}

// pageSize resolves the page MediaBox, walking up the page tree for
// inherited values. Defaults to US Letter when nothing is found.
func pageSize(p lpdf.Page) (width, height float64) {
	box := p.V.Key("MediaBox")
	for v := p.V; box.IsNull() && !v.Key("Parent").IsNull(); v = v.Key("Parent") {
		box = v.Key("Parent").Key("MediaBox")
	}
	if box.IsNull() || box.Len() < 4 {
		return 612, 792
	}
	llx, lly := box.Index(0).Float64(), box.Index(1).Float64()
	urx, ury := box.Index(2).Float64(), box.Index(3).Float64()
	return urx - llx, ury - lly
}

// groupLines converts raw glyph runs (bottom-origin baseline coordinates)
// into top-origin lines of spans in reading order.
func groupLines(chars []lpdf.Text, pageHeight float64) []content.Line {
	if len(chars) == 0 {
		return nil
	}

	// Snap near-identical baselines together, then order top-to-bottom,
	// left-to-right.
	sort.Sort(lpdf.TextVertical(chars))
	old := -100000.0
	for i, c := range chars {
		if c.Y != old && math.Abs(old-c.Y) < lineNudge {
			chars[i].Y = old
		} else {
			old = c.Y
		}
	}
	sort.Sort(lpdf.TextVertical(chars))

	var lines []content.Line
	for i := 0; i < len(chars); {
		j := i + 1
		for j < len(chars) && chars[j].Y == chars[i].Y {
			j++
		}
		line := buildLine(chars[i:j], pageHeight)
		if len(line.Spans) > 0 {
			lines = append(lines, line)
		}
		i = j
	}
	return lines
}

// buildLine merges one baseline's glyphs into spans. A span breaks on font
// or size change and on gaps too wide to be inter-word spacing.
func buildLine(chars []lpdf.Text, pageHeight float64) content.Line {
	var line content.Line
	var sb bytes.Buffer

	flush := func(first lpdf.Text) {
		if sb.Len() == 0 {
			return
		}
		line.Spans = append(line.Spans, content.Span{
			Text:     sb.String(),
			FontName: first.Font,
			FontSize: first.FontSize,
			Color:    content.Black,
			OriginX:  first.X,
			OriginY:  pageHeight - first.Y,
		})
		sb.Reset()
	}

	start := chars[0]
	end := start.X + start.W
	sb.WriteString(start.S)

	for _, c := range chars[1:] {
		charGap := start.FontSize * charGapFraction
		wordGap := start.FontSize * wordGapFraction
		switch {
		case c.Font == start.Font && math.Abs(c.FontSize-start.FontSize) < 0.1 && c.X <= end+charGap:
			sb.WriteString(c.S)
		case c.Font == start.Font && math.Abs(c.FontSize-start.FontSize) < 0.1 && c.X <= end+wordGap:
			sb.WriteString(" ")
			sb.WriteString(c.S)
		default:
			flush(start)
			start = c
			sb.WriteString(c.S)
		}
		end = c.X + c.W
	}
	flush(start)
	return line
}

// extractImages pulls raster resources per page. Placement is not exposed
// by the extraction library, so blocks are anchored at the page origin
// with the intrinsic image size; the replayer treats the reported box as
// authoritative.
func extractImages(data []byte, log *zap.Logger) (map[int][]content.ImageBlock, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, err
	}

	result := make(map[int][]content.ImageBlock)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		if len(pdfcpu.ImageObjNrs(ctx, pageNr)) == 0 {
			continue
		}
		imgs, err := pdfcpu.ExtractPageImages(ctx, pageNr, false)
		if err != nil {
			log.Warn("Unable to extract page images", zap.Int("page", pageNr), zap.Error(err))
			continue
		}

		objNrs := make([]int, 0, len(imgs))
		for nr := range imgs {
			objNrs = append(objNrs, nr)
		}
		sort.Ints(objNrs)

		var resources [][]byte
		var rect content.Rect
		for _, nr := range objNrs {
			payload, err := io.ReadAll(imgs[nr])
			if err != nil || len(payload) == 0 {
				continue
			}
			if rect.W == 0 {
				if cfg, _, err := image.DecodeConfig(bytes.NewReader(payload)); err == nil {
					rect = content.Rect{W: float64(cfg.Width), H: float64(cfg.Height)}
				}
			}
			resources = append(resources, payload)
		}
		if len(resources) > 0 {
			result[pageNr] = []content.ImageBlock{{Rect: rect, Resources: resources}}
		}
	}
	return result, nil
}
