package pdf

import (
	"strings"

	"go.uber.org/zap"

	"brc/bionic"
	"brc/content"
)

// FontStyle selects between the fixed regular/bold face pair used on
// regenerated pages. Source fonts are not preserved - arbitrary embedded
// fonts are not guaranteed to exist in a bold variant.
type FontStyle int

const (
	FontRegular FontStyle = iota
	FontBold
)

// PageWriter is the rendering contract the replayer needs: page
// construction, width measurement and placement of styled runs and raster
// images, all in the same coordinate units (top-left origin, text at
// baseline).
type PageWriter interface {
	AddPage(width, height float64)
	Measure(text string, style FontStyle, size float64) (float64, error)
	PlaceText(x, y float64, text string, style FontStyle, size float64, color content.Color) error
	PlaceImage(rect content.Rect, data []byte) error
}

// Replay regenerates every page of doc onto w, splitting each word into a
// bold prefix and a regular remainder at cursor positions advanced by
// measured widths. Failures are scoped to a single token or image block;
// the document always completes.
func Replay(doc *content.Document, ratio float64, w PageWriter, log *zap.Logger) {
	for _, page := range doc.Pages {
		w.AddPage(page.Width, page.Height)
		for _, line := range page.Lines {
			for _, span := range line.Spans {
				replaySpan(span, ratio, w, log)
			}
		}
		for _, img := range page.Images {
			placeImage(img, w, log)
		}
	}
}

// replaySpan walks one extracted span left to right. The cursor starts at
// the span origin; every emitted sub-run advances it by its measured
// width, and every token but the last advances it by one regular-face
// space. Since bold+regular+spaces partition the span text, the total
// advance matches what the unsplit span would have measured.
func replaySpan(span content.Span, ratio float64, w PageWriter, log *zap.Logger) {
	segments := bionic.Format(bionic.ExpandLigatures(span.Text), ratio)

	cursor := span.OriginX
	for i, seg := range segments {
		regular := strings.TrimSuffix(seg.Regular, " ")
		if err := emitToken(w, &cursor, span, seg.Bold, regular); err != nil {
			// Degrade this token to unstyled text at the current cursor;
			// width tracking for it stops here.
			log.Warn("Unable to emit styled token, falling back to regular text",
				zap.String("token", seg.Bold+regular), zap.Error(err))
		}
		if i < len(segments)-1 {
			if space, err := w.Measure(" ", FontRegular, span.FontSize); err == nil {
				cursor += space
			}
		}
	}
}

// emitToken places the bold prefix and the regular remainder of one token,
// advancing the cursor after each. On the first failure the rest of the
// token is emitted unstyled at the current cursor and the cursor freezes.
func emitToken(w PageWriter, cursor *float64, span content.Span, bold, regular string) error {
	parts := []struct {
		text  string
		style FontStyle
	}{
		{bold, FontBold},
		{regular, FontRegular},
	}
	for k, part := range parts {
		if part.text == "" {
			continue
		}
		width, err := w.Measure(part.text, part.style, span.FontSize)
		if err == nil {
			err = w.PlaceText(*cursor, span.OriginY, part.text, part.style, span.FontSize, span.Color)
		}
		if err != nil {
			rest := part.text
			if k == 0 {
				rest += regular
			}
			_ = w.PlaceText(*cursor, span.OriginY, rest, FontRegular, span.FontSize, span.Color)
			return err
		}
		*cursor += width
	}
	return nil
}

// placeImage copies the first usable raster resource of a block to its
// original bounding box. A block with no usable resource is skipped.
func placeImage(img content.ImageBlock, w PageWriter, log *zap.Logger) {
	for _, data := range img.Resources {
		if err := w.PlaceImage(img.Rect, data); err == nil {
			return
		}
	}
	log.Warn("No usable resource for image block, skipping",
		zap.Int("candidates", len(img.Resources)))
}
