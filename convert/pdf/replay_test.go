package pdf

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"brc/content"
)

// fakeWriter measures text as rune count times a per-size factor, which is
// additive over concatenation - exactly the property the cumulative width
// invariant relies on.
type fakeWriter struct {
	failMeasure string // substring that makes Measure fail
	failImage   []byte // payload prefix that makes PlaceImage fail

	pages  int
	texts  []placedText
	images []placedImage
}

type placedText struct {
	x, y  float64
	text  string
	style FontStyle
	size  float64
}

type placedImage struct {
	rect content.Rect
	data []byte
}

func (f *fakeWriter) width(text string, size float64) float64 {
	return float64(len([]rune(text))) * size * 0.5
}

func (f *fakeWriter) AddPage(width, height float64) { f.pages++ }

func (f *fakeWriter) Measure(text string, style FontStyle, size float64) (float64, error) {
	if f.failMeasure != "" && strings.Contains(text, f.failMeasure) {
		return 0, fmt.Errorf("unmeasurable text %q", text)
	}
	return f.width(text, size), nil
}

func (f *fakeWriter) PlaceText(x, y float64, text string, style FontStyle, size float64, color content.Color) error {
	f.texts = append(f.texts, placedText{x, y, text, style, size})
	return nil
}

func (f *fakeWriter) PlaceImage(rect content.Rect, data []byte) error {
	if f.failImage != nil && strings.HasPrefix(string(data), string(f.failImage)) {
		return fmt.Errorf("unsupported payload")
	}
	f.images = append(f.images, placedImage{rect, data})
	return nil
}

func singleSpanDoc(text string, size float64) *content.Document {
	return &content.Document{Pages: []content.Page{{
		Number: 1, Width: 612, Height: 792,
		Lines: []content.Line{{Spans: []content.Span{{
			Text: text, FontName: "Times-Roman", FontSize: size, OriginX: 72, OriginY: 100,
		}}}},
	}}}
}

func TestReplayEmitsBoldThenRegular(t *testing.T) {
	w := &fakeWriter{}
	Replay(singleSpanDoc("reading", 10), 0.5, w, zaptest.NewLogger(t))

	if w.pages != 1 {
		t.Fatalf("pages = %d, want 1", w.pages)
	}
	if len(w.texts) != 2 {
		t.Fatalf("placed %d runs, want 2", len(w.texts))
	}
	if w.texts[0].text != "rea" || w.texts[0].style != FontBold {
		t.Errorf("first run = %+v, want bold \"rea\"", w.texts[0])
	}
	if w.texts[1].text != "ding" || w.texts[1].style != FontRegular {
		t.Errorf("second run = %+v, want regular \"ding\"", w.texts[1])
	}
	// regular part starts where the bold part ended
	wantX := 72 + w.width("rea", 10)
	if math.Abs(w.texts[1].x-wantX) > 1e-9 {
		t.Errorf("regular run at x=%v, want %v", w.texts[1].x, wantX)
	}
	if w.texts[0].y != 100 || w.texts[1].y != 100 {
		t.Errorf("baseline moved: %v, %v", w.texts[0].y, w.texts[1].y)
	}
}

func TestReplayCumulativeWidthInvariant(t *testing.T) {
	const text = "The quick brown fox jumps"
	const size = 12.0
	w := &fakeWriter{}
	Replay(singleSpanDoc(text, size), 0.5, w, zaptest.NewLogger(t))

	// Total advance over emitted sub-runs plus inter-word spaces must
	// equal the width of the unsplit text: the sub-runs partition it.
	var advanced float64
	for _, p := range w.texts {
		advanced += w.width(p.text, size)
	}
	advanced += float64(strings.Count(text, " ")) * w.width(" ", size)

	if want := w.width(text, size); math.Abs(advanced-want) > 1e-9 {
		t.Errorf("total advance %v, want %v", advanced, want)
	}

	// And the last run must start exactly at origin + everything before it.
	last := w.texts[len(w.texts)-1]
	wantX := 72 + w.width(text, size) - w.width(last.text, size)
	if math.Abs(last.x-wantX) > 1e-9 {
		t.Errorf("last run at x=%v, want %v", last.x, wantX)
	}
}

func TestReplayExpandsLigatures(t *testing.T) {
	w := &fakeWriter{}
	Replay(singleSpanDoc("ﬁrst", 10), 0.5, w, zaptest.NewLogger(t))

	if len(w.texts) != 2 {
		t.Fatalf("placed %d runs, want 2", len(w.texts))
	}
	if w.texts[0].text != "fi" || w.texts[1].text != "rst" {
		t.Errorf("runs = %q, %q, want \"fi\", \"rst\"", w.texts[0].text, w.texts[1].text)
	}
}

func TestReplayMeasurementFailureFallsBack(t *testing.T) {
	w := &fakeWriter{failMeasure: "br"}
	Replay(singleSpanDoc("The brown fox", 10), 0.5, w, zaptest.NewLogger(t))

	var fallback *placedText
	for i := range w.texts {
		if w.texts[i].text == "brown" {
			fallback = &w.texts[i]
		}
	}
	if fallback == nil {
		t.Fatal("failed token was not emitted at all")
	}
	if fallback.style != FontRegular {
		t.Errorf("fallback token emitted with style %v, want regular", fallback.style)
	}
	// following token is still emitted - failures stay scoped to one token
	if last := w.texts[len(w.texts)-1]; last.text != "x" {
		t.Errorf("last run = %q, want \"x\"", last.text)
	}
}

func TestReplayImagePassthroughFirstUsableWins(t *testing.T) {
	bad := []byte("bad-payload")
	good := []byte("good-payload")
	doc := &content.Document{Pages: []content.Page{{
		Number: 1, Width: 612, Height: 792,
		Images: []content.ImageBlock{{
			Rect:      content.Rect{X: 10, Y: 20, W: 100, H: 50},
			Resources: [][]byte{bad, good, []byte("never-reached")},
		}},
	}}}

	w := &fakeWriter{failImage: bad}
	Replay(doc, 0.5, w, zaptest.NewLogger(t))

	if len(w.images) != 1 {
		t.Fatalf("placed %d images, want 1", len(w.images))
	}
	if string(w.images[0].data) != string(good) {
		t.Errorf("placed payload %q, want first usable resource", w.images[0].data)
	}
	if w.images[0].rect != (content.Rect{X: 10, Y: 20, W: 100, H: 50}) {
		t.Errorf("image rect changed: %+v", w.images[0].rect)
	}
}

func TestReplayEmptySpanTokens(t *testing.T) {
	// double space: the empty middle token advances the cursor by one
	// space but emits nothing
	w := &fakeWriter{}
	Replay(singleSpanDoc("a  b", 10), 0.5, w, zaptest.NewLogger(t))

	if len(w.texts) != 2 {
		t.Fatalf("placed %d runs, want 2", len(w.texts))
	}
	wantX := 72 + w.width("a", 10) + 2*w.width(" ", 10)
	if math.Abs(w.texts[1].x-wantX) > 1e-9 {
		t.Errorf("second word at x=%v, want %v (two spaces advanced)", w.texts[1].x, wantX)
	}
}
