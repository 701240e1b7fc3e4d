package pdf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"brc/content"
	"brc/utils/images"
)

const outputFontFamily = "Helvetica"

func (s FontStyle) fontStyle() string {
	if s == FontBold {
		return "B"
	}
	return ""
}

// gofpdf image type strings for the raster kinds it can embed.
var embedTypes = map[images.Kind]string{
	images.KindJPEG: "JPG",
	images.KindPNG:  "PNG",
	images.KindGIF:  "GIF",
}

// Writer renders regenerated pages with gofpdf. All text uses the fixed
// Helvetica regular/bold pair in point units; measurement and placement
// share one font state so widths always match what ends up on the page.
type Writer struct {
	doc       *gofpdf.Fpdf
	translate func(string) string
	imageSeq  int
}

func NewWriter() *Writer {
	doc := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: 612, Ht: 792},
	})
	doc.SetAutoPageBreak(false, 0)
	doc.SetMargins(0, 0, 0)
	return &Writer{
		doc:       doc,
		translate: doc.UnicodeTranslatorFromDescriptor(""),
	}
}

func (w *Writer) AddPage(width, height float64) {
	w.doc.AddPageFormat("P", gofpdf.SizeType{Wd: width, Ht: height})
}

func (w *Writer) Measure(text string, style FontStyle, size float64) (float64, error) {
	encoded := w.translate(text)
	if encoded == "" && text != "" {
		return 0, fmt.Errorf("text %q has no codepage representation", text)
	}
	w.doc.SetFont(outputFontFamily, style.fontStyle(), size)
	width := w.doc.GetStringWidth(encoded)
	if err := w.doc.Error(); err != nil {
		w.doc.ClearError()
		return 0, err
	}
	return width, nil
}

func (w *Writer) PlaceText(x, y float64, text string, style FontStyle, size float64, color content.Color) error {
	w.doc.SetFont(outputFontFamily, style.fontStyle(), size)
	w.doc.SetTextColor(color.R, color.G, color.B)
	w.doc.Text(x, y, w.translate(text))
	if err := w.doc.Error(); err != nil {
		w.doc.ClearError()
		return err
	}
	return nil
}

func (w *Writer) PlaceImage(rect content.Rect, data []byte) error {
	imgType, ok := embedTypes[images.Detect(data, "")]
	if !ok {
		return fmt.Errorf("unsupported raster type")
	}
	w.imageSeq++
	name := fmt.Sprintf("block-%d", w.imageSeq)
	opts := gofpdf.ImageOptions{ImageType: imgType}
	w.doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	w.doc.ImageOptions(name, rect.X, rect.Y, rect.W, rect.H, false, opts, 0, "")
	if err := w.doc.Error(); err != nil {
		w.doc.ClearError()
		return err
	}
	return nil
}

// Output finalizes the document and writes it out.
func (w *Writer) Output(out io.Writer) error {
	return w.doc.Output(out)
}
