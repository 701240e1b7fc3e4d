package pdf

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Generate converts a PDF document into its bionic reading variant.
// Extraction and replay failures inside a page never abort the document;
// only an unreadable input or an unwritable output is fatal.
func Generate(ctx context.Context, data []byte, ratio float64, out io.Writer, log *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc, err := Extract(data, log)
	if err != nil {
		return fmt.Errorf("unable to extract PDF content: %w", err)
	}
	log.Debug("Extracted document", zap.Int("pages", len(doc.Pages)))

	w := NewWriter()
	Replay(doc, ratio, w, log)

	if err := w.Output(out); err != nil {
		return fmt.Errorf("unable to write output PDF: %w", err)
	}
	return nil
}
